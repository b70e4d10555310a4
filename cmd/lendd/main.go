package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"peerlend/config"
	"peerlend/core"
	"peerlend/core/genesis"
	"peerlend/core/state"
	"peerlend/observability/logging"
	lendotel "peerlend/observability/otel"
	"peerlend/rpc"
	"peerlend/storage"
)

const (
	genesisPathEnv = "LEND_GENESIS"
	envNameEnv     = "LEND_ENV"
	shutdownGrace  = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON or YAML file (overrides LEND_GENESIS and config GenesisFile)")
	allowMigrateFlag := flag.Bool("allow-migrate", false, "Allow starting with a mismatched state schema (manual migrations only)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *allowMigrateFlag {
		cfg.AllowMigrate = true
	}

	if err := run(cfg, *genesisFlag); err != nil {
		slog.Error("node exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, genesisFlag string) error {
	env := strings.TrimSpace(os.Getenv(envNameEnv))
	if env == "" {
		env = cfg.Log.Env
	}
	logger, closer := logging.SetupWithOptions(logging.Options{
		Service:    "lendd",
		Env:        env,
		Level:      logging.ParseLevel(cfg.Log.Level),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := lendotel.Init(ctx, lendotel.Config{
		ServiceName:   "lendd",
		Environment:   env,
		ChainID:       cfg.ChainID,
		Role:          lendotel.RoleWriter,
		StateVersion:  state.StateVersion,
		FaucetEnabled: cfg.Faucet.Enabled,
		Endpoint:      cfg.Telemetry.Endpoint,
		Insecure:      cfg.Telemetry.Insecure,
		Headers:       cfg.Telemetry.Headers,
		Metrics:       cfg.Telemetry.Metrics,
		Traces:        cfg.Telemetry.Traces,
		SampleRatio:   cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node, err := core.NewNode(db, cfg.ChainID)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	node.SetLogger(logger)

	manager := node.StateManager()
	if err := manager.EnsureStateVersion(cfg.AllowMigrate); err != nil {
		return err
	}

	genesisPath := resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv)
	if genesisPath != "" {
		spec, err := genesis.LoadGenesisSpec(genesisPath)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		if err := verifyChainID(spec, cfg.ChainID); err != nil {
			return err
		}
		applied, err := genesis.Apply(spec, manager)
		if err != nil {
			return err
		}
		logger.Info("genesis checked",
			slog.String("path", genesisPath),
			slog.Bool("applied", applied))
	} else if _, ok, err := manager.GenesisHash(); err != nil {
		return err
	} else if !ok {
		logger.Warn("starting without genesis; lending stays unconfigured until one is applied")
	}

	node.SetPauseOverrides(cfg.Global.Pauses)
	node.ConfigureFaucet(cfg.Faucet)

	var faucetAuth *rpc.FaucetAuth
	if cfg.Faucet.Enabled {
		faucetAuth = rpc.NewFaucetAuth(os.Getenv(cfg.Faucet.JWTSecretEnv), cfg.Faucet.Issuer)
		if faucetAuth == nil {
			logger.Warn("faucet enabled without a signing secret; requests will be rejected",
				slog.String("env", cfg.Faucet.JWTSecretEnv))
		}
	}

	server := rpc.NewServer(node, rpc.Config{
		ReadHeaderTimeout: seconds(cfg.RPC.ReadHeaderTimeout),
		ReadTimeout:       seconds(cfg.RPC.ReadTimeout),
		WriteTimeout:      seconds(cfg.RPC.WriteTimeout),
		IdleTimeout:       seconds(cfg.RPC.IdleTimeout),
		MaxBodyBytes:      cfg.RPC.MaxBodyBytes,
		RateLimitPerSec:   cfg.RPC.RateLimitPerSec,
		RateLimitBurst:    cfg.RPC.RateLimitBurst,
		TrustProxyHeaders: cfg.RPC.TrustProxyHeaders,
		Faucet:            faucetAuth,
		Logger:            logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.RPCAddress)
	}()
	logger.Info("node started",
		slog.Uint64("chain_id", cfg.ChainID),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("data_dir", cfg.DataDir))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("rpc shutdown: %w", err)
	}
	return <-errCh
}

// resolveGenesisPath picks the genesis document: flag, then environment, then
// config. An empty result means the node starts from existing state.
func resolveGenesisPath(flagValue, configValue string, lookupEnv func(string) (string, bool)) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if lookupEnv != nil {
		if value, ok := lookupEnv(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return strings.TrimSpace(configValue)
}

var errChainIDMismatch = errors.New("genesis chain id does not match config")

func verifyChainID(spec *genesis.GenesisSpec, configured uint64) error {
	chainID, ok := spec.ChainIDValue()
	if !ok {
		return nil
	}
	if chainID != configured {
		return fmt.Errorf("%w: genesis=%d config=%d", errChainIDMismatch, chainID, configured)
	}
	return nil
}

func seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
}
