package state

import (
	"fmt"

	nativecommon "peerlend/native/common"
)

func quotaKey(module string, addr [20]byte) []byte {
	return prefixedKey(quotaPrefix, append([]byte(module+"/"), addr[:]...))
}

// QuotaGet returns the usage counters recorded for addr under module. Unknown
// addresses report zeroed counters.
func (m *Manager) QuotaGet(module string, addr [20]byte) (nativecommon.QuotaNow, error) {
	var counters nativecommon.QuotaNow
	if module == "" {
		return counters, fmt.Errorf("state: quota module must be set")
	}
	if _, err := m.KVGet(quotaKey(module, addr), &counters); err != nil {
		return nativecommon.QuotaNow{}, err
	}
	return counters, nil
}

// QuotaPut stores the usage counters for addr under module.
func (m *Manager) QuotaPut(module string, addr [20]byte, counters nativecommon.QuotaNow) error {
	if module == "" {
		return fmt.Errorf("state: quota module must be set")
	}
	return m.KVPut(quotaKey(module, addr), counters)
}
