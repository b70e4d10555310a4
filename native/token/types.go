package token

import (
	"errors"
	"fmt"
	"strings"

	"peerlend/crypto"
)

const maxSymbolLength = 16

var (
	ErrInvalidAsset   = errors.New("token: invalid asset symbol")
	ErrUnknownToken   = errors.New("token: asset not registered")
	ErrVaultNotFound  = errors.New("token: vault not found")
	ErrAssetMismatch  = errors.New("token: vault assets differ")
	ErrTokenExists    = errors.New("token: asset already registered")
	errNilState       = errors.New("token ledger: state not configured")
	errVaultCorrupted = errors.New("token ledger: vault address does not match owner and asset")
)

// Metadata describes a registered fungible asset.
type Metadata struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name" yaml:"name"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

// NormalizeAsset canonicalises an asset symbol to upper case and validates its
// shape. Symbols double as derivation seeds, so they are short ASCII tokens.
func NormalizeAsset(asset string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(asset))
	if trimmed == "" || len(trimmed) > maxSymbolLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidAsset, asset)
	}
	for _, r := range trimmed {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return "", fmt.Errorf("%w: %q", ErrInvalidAsset, asset)
		}
	}
	return trimmed, nil
}

// Vault is a custody account holding one asset for one owner. The owner is
// either a key-controlled account or a derived authority.
type Vault struct {
	Address [20]byte
	Owner   [20]byte
	Asset   string
	Balance uint64
	Payer   [20]byte
}

// Clone returns a copy safe to mutate.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

// VaultAddress returns the deterministic address of the (owner, asset) vault.
func VaultAddress(owner [20]byte, asset string) ([20]byte, error) {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return [20]byte{}, err
	}
	return crypto.DeriveAddress(crypto.TokenProgramID, owner[:], []byte(normalized))
}

// Signer is an identity whose control was proven by a transaction signature.
// Only the transaction executor should mint signers.
type Signer struct {
	addr [20]byte
}

// NewSigner wraps an address recovered from a verified signature.
func NewSigner(addr [20]byte) Signer {
	return Signer{addr: addr}
}

// Address returns the signer's account address.
func (s Signer) Address() [20]byte { return s.addr }
