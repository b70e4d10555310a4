package params

import (
	"errors"
	"fmt"
	"strings"

	"peerlend/crypto"
)

// MaxFeeRate caps fee rates, expressed in whole percentage points.
const MaxFeeRate = 100

var (
	ErrFeeRateTooHigh  = errors.New("params: fee rate exceeds 100")
	ErrConfigExists    = errors.New("params: lending config already initialised")
	ErrNoPendingChange = errors.New("params: no pending authority")
	ErrZeroAuthority   = errors.New("params: authority must be set")
)

// GlobalConfig is the singleton record of protocol-wide lending parameters.
// Lifecycle transitions read one snapshot of it per call.
type GlobalConfig struct {
	Authority         [20]byte
	PendingAuthority  [20]byte
	TeamWallet        [20]byte
	LendFeeRate       uint64
	BorrowFeeRate     uint64
	DefaultExpiryDays uint8
}

// HasPendingAuthority reports whether a hand-off is in flight.
func (c GlobalConfig) HasPendingAuthority() bool {
	return c.PendingAuthority != ([20]byte{})
}

type globalConfigJSON struct {
	Authority         string `json:"authority"`
	PendingAuthority  string `json:"pendingAuthority,omitempty"`
	TeamWallet        string `json:"teamWallet"`
	LendFeeRate       uint64 `json:"lendFeeRate"`
	BorrowFeeRate     uint64 `json:"borrowFeeRate"`
	DefaultExpiryDays uint8  `json:"defaultExpiryDays"`
}

func formatAddr(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return crypto.FromRaw(addr).String()
}

func parseAddr(field, value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, nil
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, fmt.Errorf("params: %s: %w", field, err)
	}
	return addr.Raw(), nil
}

func (c GlobalConfig) toJSON() globalConfigJSON {
	return globalConfigJSON{
		Authority:         formatAddr(c.Authority),
		PendingAuthority:  formatAddr(c.PendingAuthority),
		TeamWallet:        formatAddr(c.TeamWallet),
		LendFeeRate:       c.LendFeeRate,
		BorrowFeeRate:     c.BorrowFeeRate,
		DefaultExpiryDays: c.DefaultExpiryDays,
	}
}

func (j globalConfigJSON) toConfig() (GlobalConfig, error) {
	var (
		cfg GlobalConfig
		err error
	)
	if cfg.Authority, err = parseAddr("authority", j.Authority); err != nil {
		return GlobalConfig{}, err
	}
	if cfg.PendingAuthority, err = parseAddr("pendingAuthority", j.PendingAuthority); err != nil {
		return GlobalConfig{}, err
	}
	if cfg.TeamWallet, err = parseAddr("teamWallet", j.TeamWallet); err != nil {
		return GlobalConfig{}, err
	}
	cfg.LendFeeRate = j.LendFeeRate
	cfg.BorrowFeeRate = j.BorrowFeeRate
	cfg.DefaultExpiryDays = j.DefaultExpiryDays
	return cfg, nil
}

// Update carries the administrator-controlled fields of GlobalConfig.
type Update struct {
	TeamWallet        [20]byte
	LendFeeRate       uint64
	BorrowFeeRate     uint64
	DefaultExpiryDays uint8
}
