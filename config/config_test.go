package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != DefaultRPCAddress || cfg.ChainID != DefaultChainID {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Faucet.Quota.EpochSeconds != 3600 {
		t.Fatalf("faucet quota lost on reload: %+v", reloaded.Faucet)
	}
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `RPCAddress = "127.0.0.1:9000"
DataDir = "./data"
GenesisFile = "genesis.yaml"
ChainID = 42

[log]
Env = "prod"
File = "/var/log/lendd.log"

[rpc]
RateLimitPerSec = 5.5
RateLimitBurst = 10
TrustProxyHeaders = true

[telemetry]
Endpoint = "otel:4318"
Insecure = true
Traces = true

[faucet]
Enabled = true
JWTSecretEnv = "FAUCET_SECRET"

[faucet.quota]
MaxRequestsPerEpoch = 2
EpochSeconds = 60

[global.pauses]
Lending = true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChainID != 42 || cfg.GenesisFile != "genesis.yaml" {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.Log.Env != "prod" || cfg.Log.MaxBackups != 5 {
		t.Fatalf("unexpected log section: %+v", cfg.Log)
	}
	if cfg.RPC.RateLimitPerSec != 5.5 || cfg.RPC.MaxBodyBytes != 1<<20 || !cfg.RPC.TrustProxyHeaders {
		t.Fatalf("unexpected rpc section: %+v", cfg.RPC)
	}
	if !cfg.Telemetry.Insecure || cfg.Telemetry.Endpoint != "otel:4318" {
		t.Fatalf("unexpected telemetry section: %+v", cfg.Telemetry)
	}
	if !cfg.Global.Pauses.IsPaused("lending") || cfg.Global.Pauses.IsPaused("token") {
		t.Fatalf("unexpected pauses: %+v", cfg.Global.Pauses)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("ValidatorKey = \"abc\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ValidatorKey") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	cfg := Default()
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	cfg.Faucet.Enabled = true
	cfg.Faucet.JWTSecretEnv = ""
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected faucet without secret to be rejected")
	}
	cfg = Default()
	cfg.RPC.RateLimitBurst = -1
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected negative burst to be rejected")
	}
}
