package otel

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Resource attribute keys describing the ledger node that emits telemetry.
const (
	ChainIDKey       = attribute.Key("peerlend.chain_id")
	NodeRoleKey      = attribute.Key("peerlend.node.role")
	StateVersionKey  = attribute.Key("peerlend.state.version")
	FaucetEnabledKey = attribute.Key("peerlend.faucet.enabled")
)

// RoleWriter marks the single node that executes transactions.
const RoleWriter = "writer"

const serviceNamespace = "peerlend"

func ledgerAttributes(cfg Config) []attribute.KeyValue {
	role := cfg.Role
	if role == "" {
		role = RoleWriter
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceNamespaceKey.String(serviceNamespace),
		ChainIDKey.String(strconv.FormatUint(cfg.ChainID, 10)),
		NodeRoleKey.String(role),
		FaucetEnabledKey.Bool(cfg.FaucetEnabled),
	}
	if cfg.StateVersion != 0 {
		attrs = append(attrs, StateVersionKey.Int64(int64(cfg.StateVersion)))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(cfg.Environment))
	}
	return attrs
}

func ledgerResource(cfg Config) (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewSchemaless(ledgerAttributes(cfg)...))
}
