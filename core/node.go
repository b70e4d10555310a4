package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"peerlend/config"
	coreerrors "peerlend/core/errors"
	"peerlend/core/events"
	"peerlend/core/state"
	"peerlend/core/types"
	"peerlend/crypto"
	nativecommon "peerlend/native/common"
	"peerlend/native/lending"
	"peerlend/native/params"
	"peerlend/native/token"
	"peerlend/observability"
	lendotel "peerlend/observability/otel"
	"peerlend/storage"
)

var (
	ErrNilTransaction   = errors.New("node: transaction must not be nil")
	ErrInvalidSignature = errors.New("node: invalid transaction signature")
	ErrWrongChainID     = errors.New("node: transaction chain id mismatch")
	ErrUnknownTxType    = errors.New("node: unknown transaction type")
	ErrInvalidNonce     = errors.New("node: invalid transaction nonce")
	ErrInvalidPayload   = errors.New("node: invalid transaction payload")
)

// Node is the single-writer ledger: it owns the state manager and the native
// engines and applies signed transactions one at a time. A transaction either
// commits every write it made, bumps the sender nonce and publishes its events,
// or leaves the database exactly as it found it.
type Node struct {
	db      storage.Database
	state   *state.Manager
	ledger  *token.Ledger
	params  *params.Store
	lending *lending.Engine
	buffer  *events.Buffer

	chainID        uint64
	pauseOverrides config.Pauses
	faucet         faucetLimits
	nowFn          func() int64
	logger         *slog.Logger

	stateMu sync.Mutex
}

// NewNode wires the engines over db for chainID.
func NewNode(db storage.Database, chainID uint64) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database must not be nil")
	}
	if chainID == 0 {
		return nil, fmt.Errorf("node: chain id must be positive")
	}
	manager := state.NewManager(db)
	buffer := &events.Buffer{}

	ledger := token.NewLedger()
	ledger.SetState(manager)
	ledger.SetEmitter(buffer)

	store := params.NewStore(manager)
	store.SetEmitter(buffer)

	engine := lending.NewEngine()
	engine.SetState(manager)
	engine.SetLedger(ledger)
	engine.SetConfigSource(store)
	engine.SetEmitter(buffer)

	n := &Node{
		db:      db,
		state:   manager,
		ledger:  ledger,
		params:  store,
		lending: engine,
		buffer:  buffer,
		chainID: chainID,
		nowFn:   func() int64 { return time.Now().Unix() },
		logger:  slog.Default(),
	}
	engine.SetNowFunc(n.now)
	return n, nil
}

// ChainID returns the chain identifier transactions must carry.
func (n *Node) ChainID() uint64 { return n.chainID }

// StateManager exposes the underlying manager for bootstrap tasks such as
// genesis and schema checks. It must not be used while the node serves
// transactions.
func (n *Node) StateManager() *state.Manager { return n.state }

// SetNowFunc overrides the clock used for expiry checks and quota epochs.
func (n *Node) SetNowFunc(now func() int64) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.nowFn = now
}

// SetLogger replaces the structured logger. Nil keeps the current one.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger != nil {
		n.logger = logger
	}
}

// SetPauseOverrides installs operator pause switches that apply on top of the
// persisted ones. A module is paused when either source pauses it.
func (n *Node) SetPauseOverrides(p config.Pauses) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.pauseOverrides = p
}

func (n *Node) now() int64 { return n.nowFn() }

type pauseView struct {
	stored   config.Pauses
	override config.Pauses
}

func (p pauseView) IsPaused(module string) bool {
	return p.stored.IsPaused(module) || p.override.IsPaused(module)
}

func (n *Node) pauses() (pauseView, error) {
	stored, err := n.params.Pauses()
	if err != nil {
		return pauseView{}, err
	}
	return pauseView{stored: stored, override: n.pauseOverrides}, nil
}

// Receipt describes a committed transaction.
type Receipt struct {
	TxHash string         `json:"txHash"`
	Sender string         `json:"sender"`
	Type   string         `json:"type"`
	Nonce  uint64         `json:"nonce"`
	LoanID string         `json:"loanId,omitempty"`
	Events []*types.Event `json:"events"`
}

// ApplyTransaction verifies and executes tx against the ledger.
func (n *Node) ApplyTransaction(ctx context.Context, tx *types.Transaction) (*Receipt, error) {
	if tx == nil {
		return nil, ErrNilTransaction
	}
	_, span := lendotel.Tracer().Start(ctx, "node.ApplyTransaction",
		trace.WithAttributes(
			attribute.String("tx.type", tx.Type.String()),
			attribute.Int64("tx.nonce", int64(tx.Nonce)),
		))
	defer span.End()

	start := time.Now()
	n.stateMu.Lock()
	receipt, evts, err := n.applyLocked(tx)
	n.stateMu.Unlock()

	metrics := observability.Ledger()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveTransaction(tx.Type.String(), outcomeLabel(err), time.Since(start))
		n.logger.Debug("transaction rejected",
			slog.String("tx_type", tx.Type.String()),
			slog.String("error", err.Error()))
		return nil, err
	}
	metrics.ObserveTransaction(tx.Type.String(), "committed", time.Since(start))
	recordEventMetrics(metrics, evts)
	span.SetAttributes(attribute.String("tx.sender", receipt.Sender))
	n.logger.Info("transaction committed",
		slog.String("tx_type", receipt.Type),
		slog.String("tx_hash", receipt.TxHash),
		slog.String("sender", receipt.Sender),
		slog.String("loan_id", receipt.LoanID))
	return receipt, nil
}

func (n *Node) applyLocked(tx *types.Transaction) (*Receipt, []events.Event, error) {
	fromBytes, err := tx.From()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	var sender [20]byte
	copy(sender[:], fromBytes)

	if tx.ChainID != n.chainID {
		return nil, nil, fmt.Errorf("%w: got %d want %d", ErrWrongChainID, tx.ChainID, n.chainID)
	}
	if !tx.Type.Valid() {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownTxType, tx.Type)
	}
	expected, err := n.state.Nonce(sender)
	if err != nil {
		return nil, nil, err
	}
	if tx.Nonce != expected {
		return nil, nil, fmt.Errorf("%w: got %d want %d", ErrInvalidNonce, tx.Nonce, expected)
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, nil, err
	}

	snapshot := n.state.Snapshot()
	n.buffer.Reset()
	loanID, err := n.dispatch(sender, tx)
	if err == nil {
		err = n.state.SetNonce(sender, expected+1)
	}
	if err != nil {
		n.state.RevertToSnapshot(snapshot)
		n.buffer.Reset()
		return nil, nil, err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		n.buffer.Reset()
		return nil, nil, err
	}

	evts := n.buffer.Drain()
	receipt := &Receipt{
		TxHash: hex.EncodeToString(hash),
		Sender: crypto.FromRaw(sender).String(),
		Type:   tx.Type.String(),
		Nonce:  tx.Nonce,
		Events: events.Render(evts),
	}
	if loanID != nil {
		receipt.LoanID = crypto.FromRaw(*loanID).String()
	}
	return receipt, evts, nil
}

// dispatch runs the transition for tx. It returns the loan the transaction
// touched, if any.
func (n *Node) dispatch(sender [20]byte, tx *types.Transaction) (*[20]byte, error) {
	pauses, err := n.pauses()
	if err != nil {
		return nil, err
	}
	n.lending.SetPauses(pauses)
	signer := token.NewSigner(sender)

	switch tx.Type {
	case types.TxTypeTransfer:
		var payload types.TransferPayload
		if err := decodePayload(tx, &payload); err != nil {
			return nil, err
		}
		return nil, n.applyTransfer(pauses, signer, payload)
	case types.TxTypeCreateLoan:
		var payload types.CreateLoanPayload
		if err := decodePayload(tx, &payload); err != nil {
			return nil, err
		}
		key, err := parseLoanKey(payload.Key)
		if err != nil {
			return nil, err
		}
		loan, err := n.lending.Create(signer, lending.CreateParams{
			Key:              key,
			LoanAsset:        payload.LoanAsset,
			CollateralAsset:  payload.CollateralAsset,
			LoanAmount:       payload.LoanAmount,
			InterestRate:     payload.InterestRate,
			DurationDays:     payload.DurationDays,
			CollateralAmount: payload.CollateralAmount,
		})
		return loanIDOf(loan), err
	case types.TxTypeBorrowLoan:
		var payload types.BorrowLoanPayload
		if err := decodePayload(tx, &payload); err != nil {
			return nil, err
		}
		id, err := parseAccount("loanId", payload.LoanID)
		if err != nil {
			return nil, err
		}
		loan, err := n.lending.Borrow(signer, id, payload.CollateralAmount)
		return loanIDOf(loan), err
	case types.TxTypeCancelLoan:
		var payload types.CancelLoanPayload
		if err := decodePayload(tx, &payload); err != nil {
			return nil, err
		}
		id, err := parseAccount("loanId", payload.LoanID)
		if err != nil {
			return nil, err
		}
		loan, err := n.lending.Cancel(signer, id)
		return loanIDOf(loan), err
	case types.TxTypeRepayLoan:
		var payload types.RepayLoanPayload
		if err := decodePayload(tx, &payload); err != nil {
			return nil, err
		}
		id, err := parseAccount("loanId", payload.LoanID)
		if err != nil {
			return nil, err
		}
		loan, err := n.lending.Repay(signer, id)
		return loanIDOf(loan), err
	case types.TxTypeConfigure:
		var payload types.ConfigurePayload
		if err := decodePayload(tx, &payload); err != nil {
			return nil, err
		}
		team, err := parseAccount("teamWallet", payload.TeamWallet)
		if err != nil {
			return nil, err
		}
		_, err = n.params.Configure(sender, params.Update{
			TeamWallet:        team,
			LendFeeRate:       payload.LendFeeRate,
			BorrowFeeRate:     payload.BorrowFeeRate,
			DefaultExpiryDays: payload.DefaultExpiryDays,
		})
		return nil, err
	case types.TxTypeProposeAuthority:
		var payload types.ProposeAuthorityPayload
		if err := decodePayload(tx, &payload); err != nil {
			return nil, err
		}
		var next [20]byte
		if strings.TrimSpace(payload.NewAuthority) != "" {
			if next, err = parseAccount("newAuthority", payload.NewAuthority); err != nil {
				return nil, err
			}
		}
		return nil, n.params.ProposeAuthority(sender, next)
	case types.TxTypeAcceptAuthority:
		var payload types.AcceptAuthorityPayload
		if len(tx.Data) > 0 {
			if err := decodePayload(tx, &payload); err != nil {
				return nil, err
			}
		}
		return nil, n.params.AcceptAuthority(sender)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTxType, tx.Type)
	}
}

// applyTransfer moves tokens between the sender's vault and the recipient's,
// creating the recipient vault at the sender's expense when missing.
func (n *Node) applyTransfer(pauses pauseView, signer token.Signer, payload types.TransferPayload) error {
	if err := nativecommon.Guard(pauses, nativecommon.ModuleToken); err != nil {
		return err
	}
	to, err := parseAccount("to", payload.To)
	if err != nil {
		return err
	}
	asset, err := token.NormalizeAsset(payload.Asset)
	if err != nil {
		return err
	}
	from, err := token.VaultAddress(signer.Address(), asset)
	if err != nil {
		return err
	}
	dst, err := n.ledger.EnsureVault(signer.Address(), to, asset)
	if err != nil {
		return err
	}
	return n.ledger.TransferAsUser(from, signer, dst.Address, payload.Amount)
}

func decodePayload(tx *types.Transaction, out interface{}) error {
	if err := tx.DecodePayload(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func parseAccount(field, value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, field, err)
	}
	return addr.Raw(), nil
}

func parseLoanKey(value string) ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil || len(raw) != len(key) {
		return key, fmt.Errorf("%w: key must be 32 hex-encoded bytes", lending.ErrInvalidLoanKey)
	}
	copy(key[:], raw)
	return key, nil
}

func loanIDOf(l *lending.Loan) *[20]byte {
	if l == nil {
		return nil
	}
	id := l.ID
	return &id
}

// outcomeLabel keeps metric cardinality bounded: coded errors report their
// name, everything else a coarse class.
func outcomeLabel(err error) string {
	if coded, ok := coreerrors.As(err); ok {
		return coded.Name
	}
	switch {
	case errors.Is(err, ErrInvalidNonce):
		return "invalid_nonce"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrWrongChainID):
		return "wrong_chain"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	default:
		return "rejected"
	}
}

func recordEventMetrics(metrics *observability.LedgerMetrics, evts []events.Event) {
	for _, evt := range evts {
		switch e := evt.(type) {
		case events.Transfer:
			metrics.RecordTransfer(e.Asset, e.Authorization)
		case events.Typed:
			if name, ok := strings.CutPrefix(e.EventType(), "lending.loan."); ok {
				metrics.RecordLoanTransition(name)
			}
		}
	}
}
