package state

import (
	"fmt"

	"peerlend/native/token"
)

type storedVault struct {
	Address [20]byte
	Owner   [20]byte
	Asset   string
	Balance uint64
	Payer   [20]byte
}

func vaultKey(addr [20]byte) []byte {
	return prefixedKey(vaultRecordPrefix, addr[:])
}

// VaultPut persists the vault under its derived address.
func (m *Manager) VaultPut(v *token.Vault) error {
	if v == nil {
		return fmt.Errorf("state: nil vault")
	}
	stored := storedVault{
		Address: v.Address,
		Owner:   v.Owner,
		Asset:   v.Asset,
		Balance: v.Balance,
		Payer:   v.Payer,
	}
	return m.KVPut(vaultKey(v.Address), stored)
}

// VaultGet loads the vault stored at addr.
func (m *Manager) VaultGet(addr [20]byte) (*token.Vault, bool, error) {
	var stored storedVault
	ok, err := m.KVGet(vaultKey(addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	if stored.Address != addr {
		return nil, false, fmt.Errorf("state: vault record %x stored under %x", stored.Address, addr)
	}
	return &token.Vault{
		Address: stored.Address,
		Owner:   stored.Owner,
		Asset:   stored.Asset,
		Balance: stored.Balance,
		Payer:   stored.Payer,
	}, true, nil
}
