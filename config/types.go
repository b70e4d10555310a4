package config

// Pauses switches individual modules off without a restart of the ledger.
// The genesis document seeds the persisted copy; the node config only
// provides the operator default.
type Pauses struct {
	Lending bool `toml:"Lending" json:"lending" yaml:"lending"`
	Token   bool `toml:"Token" json:"token" yaml:"token"`
}

// IsPaused reports whether the named module is switched off.
func (p Pauses) IsPaused(module string) bool {
	switch module {
	case "lending":
		return p.Lending
	case "token":
		return p.Token
	default:
		return false
	}
}

// Quota defines per-address limits within one epoch. Zero limits are
// unlimited.
type Quota struct {
	MaxRequestsPerEpoch uint32 `toml:"MaxRequestsPerEpoch"`
	MaxAmountPerEpoch   uint64 `toml:"MaxAmountPerEpoch"`
	EpochSeconds        uint32 `toml:"EpochSeconds"`
}

// Global bundles the runtime switches applied on top of persisted state.
type Global struct {
	Pauses Pauses `toml:"pauses"`
}
