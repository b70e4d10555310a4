package crypto

import (
	"bytes"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxSeeds bounds the number of seeds accepted by DeriveAddress.
	MaxSeeds = 16
	// MaxSeedLength bounds the width of an individual seed.
	MaxSeedLength = 32

	derivationMarker = "ProgramDerivedAddress"
)

var (
	// TokenProgramID namespaces vault addresses derived from (owner, asset).
	TokenProgramID = programID("peerlend/token")
	// LendingProgramID namespaces loan authorities derived from (lender, key).
	LendingProgramID = programID("peerlend/lending")

	ErrTooManySeeds    = errors.New("crypto: too many derivation seeds")
	ErrSeedTooLong     = errors.New("crypto: derivation seed too long")
	ErrAuthorityForged = errors.New("crypto: derived authority does not match its seeds")
)

func programID(name string) [20]byte {
	var out [20]byte
	copy(out[:], ethcrypto.Keccak256([]byte(name))[12:])
	return out
}

// DeriveAddress deterministically computes the identity controlled by program
// for the supplied seeds. The address is a truncated keccak256 digest over a
// domain separated preimage rather than a public key hash, so no private key
// can sign for it.
func DeriveAddress(program [20]byte, seeds ...[]byte) ([20]byte, error) {
	var out [20]byte
	if len(seeds) > MaxSeeds {
		return out, ErrTooManySeeds
	}
	buf := new(bytes.Buffer)
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return out, fmt.Errorf("%w: seed %d is %d bytes", ErrSeedTooLong, i, len(seed))
		}
		// Length prefix keeps ("ab","c") and ("a","bc") apart.
		buf.WriteByte(byte(len(seed)))
		buf.Write(seed)
	}
	buf.Write(program[:])
	buf.WriteString(derivationMarker)
	copy(out[:], ethcrypto.Keccak256(buf.Bytes())[12:])
	return out, nil
}

// DerivedAuthority is a signing capability bound to a program and the seeds
// that identify one of its accounts. Possessing the seeds is the proof; there
// is no secret to store.
type DerivedAuthority struct {
	Program [20]byte
	Seeds   [][]byte
	Address [20]byte
}

// NewDerivedAuthority derives the authority address for the supplied seeds.
func NewDerivedAuthority(program [20]byte, seeds ...[]byte) (*DerivedAuthority, error) {
	addr, err := DeriveAddress(program, seeds...)
	if err != nil {
		return nil, err
	}
	cloned := make([][]byte, len(seeds))
	for i, seed := range seeds {
		cloned[i] = append([]byte(nil), seed...)
	}
	return &DerivedAuthority{Program: program, Seeds: cloned, Address: addr}, nil
}

// Verify re-derives the authority from its seeds and checks that it matches
// both the recorded address and the expected owner.
func (a *DerivedAuthority) Verify(owner [20]byte) error {
	if a == nil {
		return ErrAuthorityForged
	}
	derived, err := DeriveAddress(a.Program, a.Seeds...)
	if err != nil {
		return err
	}
	if derived != a.Address || derived != owner {
		return ErrAuthorityForged
	}
	return nil
}
