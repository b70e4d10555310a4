package state

import "fmt"

func paramKey(name string) []byte {
	return prefixedKey(paramStorePrefix, []byte(name))
}

// ParamStoreSet stores an opaque parameter payload under name.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	if name == "" {
		return fmt.Errorf("params: name required")
	}
	return m.KVPut(paramKey(name), value)
}

// ParamStoreGet returns the payload stored under name.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	if name == "" {
		return nil, false, fmt.Errorf("params: name required")
	}
	var value []byte
	ok, err := m.KVGet(paramKey(name), &value)
	if err != nil || !ok {
		return nil, false, err
	}
	return value, true, nil
}
