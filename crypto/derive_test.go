package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveAddressDeterministic(t *testing.T) {
	lender := bytes.Repeat([]byte{0x11}, 20)
	key := bytes.Repeat([]byte{0x22}, 32)

	first, err := DeriveAddress(LendingProgramID, []byte("loan"), lender, key)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	second, err := DeriveAddress(LendingProgramID, []byte("loan"), lender, key)
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if first != second {
		t.Fatalf("derivation not deterministic: %x != %x", first, second)
	}

	other, err := DeriveAddress(TokenProgramID, []byte("loan"), lender, key)
	if err != nil {
		t.Fatalf("derive other program: %v", err)
	}
	if other == first {
		t.Fatalf("program id must namespace derived addresses")
	}
}

func TestDeriveAddressSeedBoundaries(t *testing.T) {
	a, err := DeriveAddress(TokenProgramID, []byte("ab"), []byte("c"))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := DeriveAddress(TokenProgramID, []byte("a"), []byte("bc"))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a == b {
		t.Fatalf("seed boundaries must affect the derived address")
	}
}

func TestDeriveAddressLimits(t *testing.T) {
	if _, err := DeriveAddress(TokenProgramID, bytes.Repeat([]byte{1}, MaxSeedLength+1)); !errors.Is(err, ErrSeedTooLong) {
		t.Fatalf("expected ErrSeedTooLong, got %v", err)
	}
	seeds := make([][]byte, MaxSeeds+1)
	for i := range seeds {
		seeds[i] = []byte{byte(i)}
	}
	if _, err := DeriveAddress(TokenProgramID, seeds...); !errors.Is(err, ErrTooManySeeds) {
		t.Fatalf("expected ErrTooManySeeds, got %v", err)
	}
}

func TestDerivedAuthorityVerify(t *testing.T) {
	auth, err := NewDerivedAuthority(LendingProgramID, []byte("loan"), []byte{0x01})
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	if err := auth.Verify(auth.Address); err != nil {
		t.Fatalf("verify: %v", err)
	}

	var stranger [20]byte
	stranger[0] = 0xFF
	if err := auth.Verify(stranger); !errors.Is(err, ErrAuthorityForged) {
		t.Fatalf("expected forged error for wrong owner, got %v", err)
	}

	forged := *auth
	forged.Seeds = [][]byte{[]byte("loan"), {0x02}}
	if err := forged.Verify(auth.Address); !errors.Is(err, ErrAuthorityForged) {
		t.Fatalf("expected forged error for tampered seeds, got %v", err)
	}

	var nilAuth *DerivedAuthority
	if err := nilAuth.Verify(auth.Address); !errors.Is(err, ErrAuthorityForged) {
		t.Fatalf("expected forged error for nil authority, got %v", err)
	}
}

func TestAddressBech32RoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Raw() != addr.Raw() {
		t.Fatalf("round trip mismatch: %s != %s", decoded, addr)
	}
	if _, err := DecodeAddress("cosmos1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq"); err == nil {
		t.Fatalf("expected foreign or malformed address to be rejected")
	}
}
