package token

import (
	"fmt"
	"math/bits"

	coreerrors "peerlend/core/errors"
	"peerlend/core/events"
	"peerlend/crypto"
)

type engineState interface {
	TokenExists(symbol string) (bool, error)
	VaultGet(addr [20]byte) (*Vault, bool, error)
	VaultPut(v *Vault) error
}

// Ledger owns vault balances and exposes the two transfer paths: one
// authorised by the vault owner's signature and one by a derived authority.
type Ledger struct {
	state   engineState
	emitter events.Emitter
}

// NewLedger creates a ledger with a no-op emitter.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state engineState) { l.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(evt events.Event) {
	if l == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(evt)
}

// Vault loads the vault for (owner, asset).
func (l *Ledger) Vault(owner [20]byte, asset string) (*Vault, bool, error) {
	if l == nil || l.state == nil {
		return nil, false, errNilState
	}
	addr, err := VaultAddress(owner, asset)
	if err != nil {
		return nil, false, err
	}
	return l.state.VaultGet(addr)
}

// Balance returns the balance held for (owner, asset), zero when the vault
// does not exist yet.
func (l *Ledger) Balance(owner [20]byte, asset string) (uint64, error) {
	vault, ok, err := l.Vault(owner, asset)
	if err != nil || !ok {
		return 0, err
	}
	return vault.Balance, nil
}

// EnsureVault returns the (owner, asset) vault, creating it on first use with
// payer recorded as the account that funded the creation. Calling it for an
// existing vault is a no-op.
func (l *Ledger) EnsureVault(payer [20]byte, owner [20]byte, asset string) (*Vault, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	exists, err := l.state.TokenExists(normalized)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	addr, err := VaultAddress(owner, normalized)
	if err != nil {
		return nil, err
	}
	existing, ok, err := l.state.VaultGet(addr)
	if err != nil {
		return nil, err
	}
	if ok {
		if existing.Owner != owner || existing.Asset != normalized {
			return nil, errVaultCorrupted
		}
		return existing, nil
	}
	vault := &Vault{Address: addr, Owner: owner, Asset: normalized, Payer: payer}
	if err := l.state.VaultPut(vault); err != nil {
		return nil, err
	}
	l.emit(events.VaultCreated{Vault: addr, Owner: owner, Asset: normalized, Payer: payer})
	return vault.Clone(), nil
}

// TransferAsUser moves amount out of a vault owned by signer.
func (l *Ledger) TransferAsUser(from [20]byte, signer Signer, to [20]byte, amount uint64) error {
	return l.transfer(from, to, amount, events.AuthorizationUser, func(src *Vault) error {
		if src.Owner != signer.Address() {
			return coreerrors.Wrap(coreerrors.ErrIncorrectAuthority, "vault %x is not owned by the signer", from)
		}
		return nil
	})
}

// TransferAsEscrow moves amount out of a vault owned by a derived authority.
// The authority proves itself by re-deriving its address from its seeds.
func (l *Ledger) TransferAsEscrow(from [20]byte, authority *crypto.DerivedAuthority, to [20]byte, amount uint64) error {
	return l.transfer(from, to, amount, events.AuthorizationEscrow, func(src *Vault) error {
		if err := authority.Verify(src.Owner); err != nil {
			return coreerrors.Wrap(coreerrors.ErrIncorrectAuthority, "escrow authority rejected for vault %x: %v", from, err)
		}
		return nil
	})
}

func (l *Ledger) transfer(from, to [20]byte, amount uint64, authorization string, authorize func(*Vault) error) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	src, ok, err := l.state.VaultGet(from)
	if err != nil {
		return err
	}
	if !ok {
		return coreerrors.Wrap(coreerrors.ErrInsufficientFunds, "source vault %x does not exist", from)
	}
	if err := authorize(src); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	if from == to {
		if src.Balance < amount {
			return coreerrors.ErrInsufficientFunds
		}
		return nil
	}
	dst, ok, err := l.state.VaultGet(to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %x", ErrVaultNotFound, to)
	}
	if dst.Asset != src.Asset {
		return fmt.Errorf("%w: %s -> %s", ErrAssetMismatch, src.Asset, dst.Asset)
	}
	if src.Balance < amount {
		return coreerrors.Wrap(coreerrors.ErrInsufficientFunds, "vault %x holds %d %s, needs %d", from, src.Balance, src.Asset, amount)
	}
	credited, carry := bits.Add64(dst.Balance, amount, 0)
	if carry != 0 {
		return coreerrors.ErrOverflowOrUnderflowOccurred
	}
	src.Balance -= amount
	dst.Balance = credited
	if err := l.state.VaultPut(src); err != nil {
		return err
	}
	if err := l.state.VaultPut(dst); err != nil {
		return err
	}
	l.emit(events.Transfer{Asset: src.Asset, From: src.Owner, To: dst.Owner, Amount: amount, Authorization: authorization})
	return nil
}

// Mint credits freshly issued supply to (owner, asset). It backs genesis
// allocations and the devnet faucet and is never reachable from a user
// transaction.
func (l *Ledger) Mint(owner [20]byte, asset string, amount uint64) error {
	vault, err := l.EnsureVault(owner, owner, asset)
	if err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	credited, carry := bits.Add64(vault.Balance, amount, 0)
	if carry != 0 {
		return coreerrors.ErrOverflowOrUnderflowOccurred
	}
	vault.Balance = credited
	if err := l.state.VaultPut(vault); err != nil {
		return err
	}
	l.emit(events.Mint{Asset: vault.Asset, Vault: vault.Address, Amount: amount})
	return nil
}
