package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultRPCAddress = ":8545"
	DefaultDataDir    = "./lend-data"
	DefaultChainID    = 1337
)

type Config struct {
	RPCAddress   string    `toml:"RPCAddress"`
	DataDir      string    `toml:"DataDir"`
	GenesisFile  string    `toml:"GenesisFile"`
	ChainID      uint64    `toml:"ChainID"`
	AllowMigrate bool      `toml:"AllowMigrate"`
	Log          Log       `toml:"log"`
	RPC          RPC       `toml:"rpc"`
	Telemetry    Telemetry `toml:"telemetry"`
	Faucet       Faucet    `toml:"faucet"`
	Global       Global    `toml:"global"`
}

// Log controls structured logging output. An empty File logs to stdout.
type Log struct {
	Env        string `toml:"Env"`
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// RPC holds HTTP server limits. Timeouts are expressed in seconds.
type RPC struct {
	ReadHeaderTimeout int     `toml:"ReadHeaderTimeout"`
	ReadTimeout       int     `toml:"ReadTimeout"`
	WriteTimeout      int     `toml:"WriteTimeout"`
	IdleTimeout       int     `toml:"IdleTimeout"`
	MaxBodyBytes      int64   `toml:"MaxBodyBytes"`
	RateLimitPerSec   float64 `toml:"RateLimitPerSec"`
	RateLimitBurst    int     `toml:"RateLimitBurst"`
	TrustProxyHeaders bool    `toml:"TrustProxyHeaders"`
}

// Telemetry configures the OTLP exporters. An empty endpoint disables them.
type Telemetry struct {
	Endpoint string            `toml:"Endpoint"`
	Insecure bool              `toml:"Insecure"`
	Headers  map[string]string `toml:"Headers"`
	Traces   bool              `toml:"Traces"`
	Metrics  bool              `toml:"Metrics"`
	// SampleRatio in (0,1) enables parent-based ratio sampling.
	SampleRatio float64 `toml:"SampleRatio"`
}

// Faucet gates the devnet token faucet. Tokens are bearer JWTs signed with the
// HMAC secret read from JWTSecretEnv.
type Faucet struct {
	Enabled      bool   `toml:"Enabled"`
	JWTSecretEnv string `toml:"JWTSecretEnv"`
	Issuer       string `toml:"Issuer"`
	MaxAmount    uint64 `toml:"MaxAmount"`
	Quota        Quota  `toml:"quota"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written on first start.
func Default() *Config {
	cfg := &Config{
		RPCAddress: DefaultRPCAddress,
		DataDir:    DefaultDataDir,
		ChainID:    DefaultChainID,
		Log:        Log{Env: "dev"},
		Faucet: Faucet{
			JWTSecretEnv: "LEND_FAUCET_SECRET",
			Issuer:       "peerlend-faucet",
			MaxAmount:    1_000_000,
			Quota:        Quota{MaxRequestsPerEpoch: 5, MaxAmountPerEpoch: 5_000_000, EpochSeconds: 3600},
		},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = DefaultRPCAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = DefaultChainID
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
	if cfg.RPC.ReadHeaderTimeout == 0 {
		cfg.RPC.ReadHeaderTimeout = 5
	}
	if cfg.RPC.ReadTimeout == 0 {
		cfg.RPC.ReadTimeout = 15
	}
	if cfg.RPC.WriteTimeout == 0 {
		cfg.RPC.WriteTimeout = 15
	}
	if cfg.RPC.IdleTimeout == 0 {
		cfg.RPC.IdleTimeout = 60
	}
	if cfg.RPC.MaxBodyBytes == 0 {
		cfg.RPC.MaxBodyBytes = 1 << 20
	}
	if cfg.RPC.RateLimitPerSec == 0 {
		cfg.RPC.RateLimitPerSec = 20
	}
	if cfg.RPC.RateLimitBurst == 0 {
		cfg.RPC.RateLimitBurst = 40
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
