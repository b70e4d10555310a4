package state

func nonceKey(addr [20]byte) []byte {
	return prefixedKey(accountNoncePrefix, addr[:])
}

// Nonce returns the next transaction nonce expected from addr.
func (m *Manager) Nonce(addr [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := m.KVGet(nonceKey(addr), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// SetNonce records the next nonce expected from addr.
func (m *Manager) SetNonce(addr [20]byte, nonce uint64) error {
	return m.KVPut(nonceKey(addr), nonce)
}
