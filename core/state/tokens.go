package state

import (
	"fmt"

	"peerlend/native/token"
)

type storedToken struct {
	Symbol   string
	Name     string
	Decimals uint8
}

func tokenKey(symbol string) []byte {
	return prefixedKey(tokenRecordPrefix, []byte(symbol))
}

// RegisterToken adds an asset to the registry. Symbols are unique.
func (m *Manager) RegisterToken(meta token.Metadata) error {
	symbol, err := token.NormalizeAsset(meta.Symbol)
	if err != nil {
		return err
	}
	exists, err := m.TokenExists(symbol)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", token.ErrTokenExists, symbol)
	}
	if err := m.KVPut(tokenKey(symbol), storedToken{Symbol: symbol, Name: meta.Name, Decimals: meta.Decimals}); err != nil {
		return err
	}
	var index []string
	if err := m.KVGetList(tokenIndexKey, &index); err != nil {
		return err
	}
	index = append(index, symbol)
	return m.KVPut(tokenIndexKey, index)
}

// Token returns the registry entry for symbol.
func (m *Manager) Token(symbol string) (*token.Metadata, bool, error) {
	normalized, err := token.NormalizeAsset(symbol)
	if err != nil {
		return nil, false, nil
	}
	var stored storedToken
	ok, err := m.KVGet(tokenKey(normalized), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &token.Metadata{Symbol: stored.Symbol, Name: stored.Name, Decimals: stored.Decimals}, true, nil
}

// TokenExists reports whether symbol is registered. Malformed symbols are
// simply unknown.
func (m *Manager) TokenExists(symbol string) (bool, error) {
	normalized, err := token.NormalizeAsset(symbol)
	if err != nil {
		return false, nil
	}
	return m.KVGet(tokenKey(normalized), nil)
}

// TokenList returns registered tokens in registration order.
func (m *Manager) TokenList() ([]token.Metadata, error) {
	var index []string
	if err := m.KVGetList(tokenIndexKey, &index); err != nil {
		return nil, err
	}
	out := make([]token.Metadata, 0, len(index))
	for _, symbol := range index {
		meta, ok, err := m.Token(symbol)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("state: token index references missing %s", symbol)
		}
		out = append(out, *meta)
	}
	return out, nil
}
