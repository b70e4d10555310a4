// core/genesis/spec.go
package genesis

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"peerlend/config"
	"peerlend/native/params"
	"peerlend/native/token"
)

type GenesisSpec struct {
	GenesisTime string                       `json:"genesisTime" yaml:"genesisTime"`
	ChainID     *uint64                      `json:"chainId,omitempty" yaml:"chainId,omitempty"`
	Tokens      []token.Metadata             `json:"tokens" yaml:"tokens"`
	Alloc       map[string]map[string]string `json:"alloc" yaml:"alloc"` // addr -> token -> amount
	Lending     *LendingSpec                 `json:"lending,omitempty" yaml:"lending,omitempty"`
	Pauses      *config.Pauses               `json:"pauses,omitempty" yaml:"pauses,omitempty"`

	genesisTimestamp time.Time
	lendingConfig    params.GlobalConfig
	allocations      []Allocation
}

// LendingSpec seeds the global lending configuration.
type LendingSpec struct {
	Authority         string `json:"authority" yaml:"authority"`
	TeamWallet        string `json:"teamWallet" yaml:"teamWallet"`
	LendFeeRate       uint64 `json:"lendFeeRate" yaml:"lendFeeRate"`
	BorrowFeeRate     uint64 `json:"borrowFeeRate" yaml:"borrowFeeRate"`
	DefaultExpiryDays uint8  `json:"defaultExpiryDays" yaml:"defaultExpiryDays"`
}

// Allocation is one validated (account, asset, amount) credit.
type Allocation struct {
	Owner  [20]byte
	Asset  string
	Amount uint64
}

// LoadGenesisSpec reads a genesis document. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON. Unknown fields are rejected in
// both encodings.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec *GenesisSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		spec, err = DecodeYAML(raw)
	default:
		spec, err = DecodeJSON(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// DecodeJSON parses and validates a JSON genesis document.
func DecodeJSON(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

// DecodeYAML parses and validates a YAML genesis document.
func DecodeYAML(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

func (s *GenesisSpec) ChainIDValue() (uint64, bool) {
	if s.ChainID == nil {
		return 0, false
	}
	return *s.ChainID, true
}

// LendingConfig returns the parsed lending configuration. ok is false when
// the document has no lending section.
func (s *GenesisSpec) LendingConfig() (params.GlobalConfig, bool) {
	return s.lendingConfig, s.Lending != nil
}

// Allocations returns the credits in deterministic (account, asset) order.
func (s *GenesisSpec) Allocations() []Allocation {
	return append([]Allocation(nil), s.allocations...)
}

// Hash is the sha256 digest of the canonical JSON form of the document. It is
// recorded in state so a database is only ever seeded once.
func (s *GenesisSpec) Hash() ([32]byte, error) {
	encoded, err := json.Marshal(s)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(encoded), nil
}

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	if s.ChainID != nil && *s.ChainID == 0 {
		return fmt.Errorf("chainId must be positive")
	}

	// tokens
	tokenSymbols := make(map[string]struct{}, len(s.Tokens))
	for i := range s.Tokens {
		symbol, err := token.NormalizeAsset(s.Tokens[i].Symbol)
		if err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
		if strings.TrimSpace(s.Tokens[i].Name) == "" {
			return fmt.Errorf("tokens[%d]: name must be provided", i)
		}
		if _, exists := tokenSymbols[symbol]; exists {
			return fmt.Errorf("tokens[%d]: duplicate symbol %q", i, s.Tokens[i].Symbol)
		}
		s.Tokens[i].Symbol = symbol
		tokenSymbols[symbol] = struct{}{}
	}

	// alloc
	s.allocations = s.allocations[:0]
	accounts := make([]string, 0, len(s.Alloc))
	for account := range s.Alloc {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		owner, err := ParseBech32Account(account)
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		tokenAlloc := s.Alloc[account]
		symbols := make([]string, 0, len(tokenAlloc))
		for symbol := range tokenAlloc {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		seen := make(map[string]struct{}, len(symbols))
		for _, symbol := range symbols {
			amount := strings.TrimSpace(tokenAlloc[symbol])
			if amount == "" {
				return fmt.Errorf("alloc[%q][%q]: amount must be provided", account, symbol)
			}
			value, err := strconv.ParseUint(amount, 10, 64)
			if err != nil {
				return fmt.Errorf("alloc[%q][%q]: invalid amount %q", account, symbol, amount)
			}
			symKey := strings.ToUpper(strings.TrimSpace(symbol))
			if _, exists := tokenSymbols[symKey]; !exists {
				return fmt.Errorf("alloc[%q][%q]: undefined token", account, symbol)
			}
			if _, dup := seen[symKey]; dup {
				return fmt.Errorf("alloc[%q]: duplicate token %q", account, symbol)
			}
			seen[symKey] = struct{}{}
			s.allocations = append(s.allocations, Allocation{Owner: owner, Asset: symKey, Amount: value})
		}
	}

	// lending
	if s.Lending != nil {
		cfg, err := s.Lending.parse()
		if err != nil {
			return fmt.Errorf("lending: %w", err)
		}
		s.lendingConfig = cfg
	}
	return nil
}

func (l *LendingSpec) parse() (params.GlobalConfig, error) {
	var cfg params.GlobalConfig
	authority, err := ParseBech32Account(strings.TrimSpace(l.Authority))
	if err != nil {
		return cfg, fmt.Errorf("authority: %w", err)
	}
	team, err := ParseBech32Account(strings.TrimSpace(l.TeamWallet))
	if err != nil {
		return cfg, fmt.Errorf("teamWallet: %w", err)
	}
	if l.LendFeeRate > params.MaxFeeRate || l.BorrowFeeRate > params.MaxFeeRate {
		return cfg, params.ErrFeeRateTooHigh
	}
	cfg.Authority = authority
	cfg.TeamWallet = team
	cfg.LendFeeRate = l.LendFeeRate
	cfg.BorrowFeeRate = l.BorrowFeeRate
	cfg.DefaultExpiryDays = l.DefaultExpiryDays
	return cfg, nil
}

func parseGenesisTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid genesisTime %q: %w", raw, err)
	}
	return ts.UTC(), nil
}
