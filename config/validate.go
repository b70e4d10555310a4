package config

import (
	"fmt"
	"strings"
)

// ValidateConfig rejects configurations the node cannot start with.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("ChainID must be positive")
	}
	if cfg.RPC.MaxBodyBytes < 0 {
		return fmt.Errorf("rpc: MaxBodyBytes must not be negative")
	}
	if cfg.RPC.RateLimitPerSec < 0 || cfg.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log: rotation limits must not be negative")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	if cfg.Faucet.Enabled {
		if strings.TrimSpace(cfg.Faucet.JWTSecretEnv) == "" {
			return fmt.Errorf("faucet: JWTSecretEnv required when enabled")
		}
		if cfg.Faucet.Quota.EpochSeconds == 0 {
			return fmt.Errorf("faucet: quota EpochSeconds must be positive")
		}
	}
	return nil
}
