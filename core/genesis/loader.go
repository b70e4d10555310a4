package genesis

import (
	"bytes"
	"errors"
	"fmt"

	"peerlend/core/state"
	"peerlend/native/params"
	"peerlend/native/token"
)

// ErrGenesisMismatch is returned when a database was seeded from a different
// genesis document.
var ErrGenesisMismatch = errors.New("genesis: database was initialised from a different genesis")

// Apply seeds an empty database from spec: registers tokens, mints the
// allocations, writes the lending configuration and pause switches, then
// records the state version and the genesis digest in one commit. Applying
// the same document again is a no-op and reports applied=false.
func Apply(spec *GenesisSpec, manager *state.Manager) (applied bool, err error) {
	if spec == nil {
		return false, fmt.Errorf("genesis spec must not be nil")
	}
	if manager == nil {
		return false, fmt.Errorf("genesis: state manager must not be nil")
	}
	hash, err := spec.Hash()
	if err != nil {
		return false, fmt.Errorf("genesis: hash spec: %w", err)
	}
	existing, ok, err := manager.GenesisHash()
	if err != nil {
		return false, err
	}
	if ok {
		if !bytes.Equal(existing[:], hash[:]) {
			return false, fmt.Errorf("%w: stored=%x spec=%x", ErrGenesisMismatch, existing, hash)
		}
		return false, nil
	}

	defer func() {
		if err != nil {
			manager.Discard()
		}
	}()

	for _, meta := range spec.Tokens {
		if err := manager.RegisterToken(meta); err != nil {
			return false, fmt.Errorf("genesis: register %s: %w", meta.Symbol, err)
		}
	}

	ledger := token.NewLedger()
	ledger.SetState(manager)
	for _, alloc := range spec.Allocations() {
		if err := ledger.Mint(alloc.Owner, alloc.Asset, alloc.Amount); err != nil {
			return false, fmt.Errorf("genesis: alloc %x %s: %w", alloc.Owner, alloc.Asset, err)
		}
	}

	store := params.NewStore(manager)
	if cfg, ok := spec.LendingConfig(); ok {
		if err := store.Initialize(cfg); err != nil {
			return false, fmt.Errorf("genesis: lending config: %w", err)
		}
	}
	if spec.Pauses != nil {
		if err := store.SetPauses(*spec.Pauses); err != nil {
			return false, fmt.Errorf("genesis: pauses: %w", err)
		}
	}

	if err := manager.SetStateVersion(state.StateVersion); err != nil {
		return false, err
	}
	if err := manager.SetGenesisHash(hash); err != nil {
		return false, err
	}
	if err := manager.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
