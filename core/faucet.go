package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"peerlend/config"
	"peerlend/core/events"
	"peerlend/crypto"
	nativecommon "peerlend/native/common"
	"peerlend/native/token"
	"peerlend/observability"
	lendotel "peerlend/observability/otel"
)

const faucetQuotaModule = "faucet"

var (
	ErrFaucetDisabled = errors.New("faucet: disabled")
	ErrFaucetAmount   = errors.New("faucet: amount exceeds per-request limit")
)

type faucetLimits struct {
	enabled   bool
	maxAmount uint64
	quota     nativecommon.Quota
}

// ConfigureFaucet enables devnet minting with the supplied limits.
func (n *Node) ConfigureFaucet(cfg config.Faucet) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.faucet = faucetLimits{
		enabled:   cfg.Enabled,
		maxAmount: cfg.MaxAmount,
		quota: nativecommon.Quota{
			MaxRequestsPerEpoch: cfg.Quota.MaxRequestsPerEpoch,
			MaxAmountPerEpoch:   cfg.Quota.MaxAmountPerEpoch,
			EpochSeconds:        cfg.Quota.EpochSeconds,
		},
	}
}

// Faucet mints amount of asset into to's vault, subject to the per-request
// cap and the per-address quota. Quota counters and the mint commit together.
func (n *Node) Faucet(ctx context.Context, to [20]byte, asset string, amount uint64) (*Receipt, error) {
	_, span := lendotel.Tracer().Start(ctx, "node.Faucet")
	defer span.End()
	span.SetAttributes(attribute.String("asset", asset))

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	limits := n.faucet
	if !limits.enabled {
		return nil, ErrFaucetDisabled
	}
	if amount == 0 || (limits.maxAmount > 0 && amount > limits.maxAmount) {
		return nil, fmt.Errorf("%w: %d", ErrFaucetAmount, amount)
	}
	pauses, err := n.pauses()
	if err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(pauses, nativecommon.ModuleToken); err != nil {
		return nil, err
	}

	prev, err := n.state.QuotaGet(faucetQuotaModule, to)
	if err != nil {
		return nil, err
	}
	next, err := nativecommon.CheckQuota(limits.quota, limits.quota.EpochID(n.now()), prev, 1, amount)
	if err != nil {
		observability.ModuleMetrics().RecordThrottle(faucetQuotaModule, "quota_exceeded")
		span.RecordError(err)
		return nil, err
	}

	snapshot := n.state.Snapshot()
	n.buffer.Reset()
	err = n.ledger.Mint(to, asset, amount)
	if err == nil {
		err = n.state.QuotaPut(faucetQuotaModule, to, next)
	}
	if err != nil {
		n.state.RevertToSnapshot(snapshot)
		n.buffer.Reset()
		return nil, err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		n.buffer.Reset()
		return nil, err
	}
	evts := n.buffer.Drain()
	normalized, _ := token.NormalizeAsset(asset)
	n.logger.Info("faucet mint",
		slog.String("addr", crypto.FromRaw(to).String()),
		slog.String("asset", normalized),
		slog.Uint64("amount", amount))
	return &Receipt{
		Sender: crypto.FromRaw(to).String(),
		Type:   "faucet",
		Events: events.Render(evts),
	}, nil
}
