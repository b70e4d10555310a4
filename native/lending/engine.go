package lending

import (
	"errors"
	"fmt"
	"time"

	coreerrors "peerlend/core/errors"
	"peerlend/core/events"
	"peerlend/crypto"
	nativecommon "peerlend/native/common"
	"peerlend/native/params"
	"peerlend/native/token"
)

var (
	errNilState       = errors.New("lending engine: state not configured")
	errNilLedger      = errors.New("lending engine: vault ledger not configured")
	errNilConfig      = errors.New("lending engine: config source not configured")
	errLoanIdentity   = errors.New("lending engine: loan id does not match its derivation seeds")
	ErrLoanNotFound   = errors.New("lending engine: loan not found")
	ErrLoanExists     = errors.New("lending engine: loan already exists")
	ErrSameAssetLoan  = errors.New("lending engine: loan and collateral assets must differ")
	ErrInvalidLoanKey = errors.New("lending engine: invalid loan key")
)

const moduleName = nativecommon.ModuleLending

type engineState interface {
	LoanGet(id [20]byte) (*Loan, bool, error)
	LoanPut(*Loan) error
	TokenExists(symbol string) (bool, error)
}

type vaultLedger interface {
	EnsureVault(payer [20]byte, owner [20]byte, asset string) (*token.Vault, error)
	TransferAsUser(from [20]byte, signer token.Signer, to [20]byte, amount uint64) error
	TransferAsEscrow(from [20]byte, authority *crypto.DerivedAuthority, to [20]byte, amount uint64) error
}

type configSource interface {
	LendingConfig() (params.GlobalConfig, error)
}

// CreateParams carries the lender's offer terms.
type CreateParams struct {
	Key              [32]byte
	LoanAsset        string
	CollateralAsset  string
	LoanAmount       uint64
	InterestRate     uint64
	DurationDays     uint64
	CollateralAmount uint64
}

// Engine runs the loan lifecycle: Create, Borrow, Cancel and Repay. Every
// method either returns an error or has applied all of its writes; callers
// are expected to run each call inside a state snapshot and roll it back on
// error.
type Engine struct {
	state   engineState
	ledger  vaultLedger
	config  configSource
	pauses  nativecommon.PauseView
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a lending engine with a no-op emitter and the wall clock.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the loan store.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the vault ledger used for every fund movement.
func (e *Engine) SetLedger(ledger vaultLedger) { e.ledger = ledger }

// SetConfigSource configures where the global lending parameters are read.
func (e *Engine) SetConfigSource(src configSource) { e.config = src }

// SetPauses wires the module pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.ledger == nil:
		return errNilLedger
	case e.config == nil:
		return errNilConfig
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

// loadConfig reads the single configuration snapshot a transition works
// against.
func (e *Engine) loadConfig(needTeamWallet bool) (params.GlobalConfig, error) {
	cfg, err := e.config.LendingConfig()
	if err != nil {
		return params.GlobalConfig{}, err
	}
	if needTeamWallet && cfg.TeamWallet == ([20]byte{}) {
		return params.GlobalConfig{}, coreerrors.ErrIncorrectTeamWallet
	}
	return cfg, nil
}

func (e *Engine) loadLoan(id [20]byte) (*Loan, error) {
	loan, ok, err := e.state.LoanGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLoanNotFound, formatAddr(id))
	}
	return loan, nil
}

// Loan returns the loan with the supplied identifier.
func (e *Engine) Loan(id [20]byte) (*Loan, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.LoanGet(id)
}

// Create opens a lending offer and escrows LoanAmount of the loan asset
// from the lender's vault.
func (e *Engine) Create(lender token.Signer, p CreateParams) (*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig(false)
	if err != nil {
		return nil, err
	}
	if p.Key == ([32]byte{}) {
		return nil, ErrInvalidLoanKey
	}
	loanAsset, err := token.NormalizeAsset(p.LoanAsset)
	if err != nil {
		return nil, err
	}
	collateralAsset, err := token.NormalizeAsset(p.CollateralAsset)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrInvalidCollateral, "%v", err)
	}
	if collateralAsset == loanAsset {
		return nil, coreerrors.Wrap(coreerrors.ErrInvalidCollateral, "%v", ErrSameAssetLoan)
	}
	duration, err := daysToSeconds(p.DurationDays)
	if err != nil {
		return nil, err
	}
	expiryWindow, err := daysToSeconds(uint64(cfg.DefaultExpiryDays))
	if err != nil {
		return nil, err
	}
	now := e.now()
	expireDate, err := addI64(now, expiryWindow)
	if err != nil {
		return nil, err
	}

	lenderAddr := lender.Address()
	authority, err := LoanAuthority(lenderAddr, p.Key)
	if err != nil {
		return nil, err
	}
	if _, exists, err := e.state.LoanGet(authority.Address); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %s", ErrLoanExists, formatAddr(authority.Address))
	}
	known, err := e.state.TokenExists(collateralAsset)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, coreerrors.Wrap(coreerrors.ErrInvalidCollateral, "collateral asset %s is not registered", collateralAsset)
	}

	loan := &Loan{
		ID:               authority.Address,
		Key:              p.Key,
		Lender:           lenderAddr,
		LoanAsset:        loanAsset,
		LoanAmount:       p.LoanAmount,
		InterestRate:     p.InterestRate,
		DurationSeconds:  duration,
		CollateralAsset:  collateralAsset,
		CollateralAmount: p.CollateralAmount,
		CreateDate:       now,
		ExpireDate:       expireDate,
	}

	loanVault, err := e.ledger.EnsureVault(lenderAddr, loan.ID, loanAsset)
	if err != nil {
		return nil, err
	}
	if _, err := e.ledger.EnsureVault(lenderAddr, loan.ID, collateralAsset); err != nil {
		return nil, err
	}
	lenderVault, err := token.VaultAddress(lenderAddr, loanAsset)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.TransferAsUser(lenderVault, lender, loanVault.Address, loan.LoanAmount); err != nil {
		return nil, err
	}
	if err := e.state.LoanPut(loan); err != nil {
		return nil, err
	}
	e.emit(loanCreatedEvent(loan))
	return loan.Clone(), nil
}

// Borrow claims an open offer: the loan asset is released from escrow to the
// borrower and collateralAmount of the collateral asset is pulled into
// escrow. The posted amount replaces the advisory figure recorded at
// creation; no collateral ratio is enforced.
func (e *Engine) Borrow(borrower token.Signer, id [20]byte, collateralAmount uint64) (*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	loan, err := e.loadLoan(id)
	if err != nil {
		return nil, err
	}
	if loan.HasBorrower() {
		return nil, coreerrors.ErrAlreadyLended
	}
	if loan.Cancelled {
		return nil, coreerrors.ErrLoanCancelled
	}
	now := e.now()
	if !(now < loan.ExpireDate) {
		return nil, coreerrors.ErrAlreadyExpired
	}
	authority, err := e.authorityFor(loan)
	if err != nil {
		return nil, err
	}

	borrowerAddr := borrower.Address()
	loan.Borrower = borrowerAddr
	loan.BorrowDate = now
	loan.CollateralAmount = collateralAmount

	loanEscrow, collateralEscrow, err := EscrowVaults(loan)
	if err != nil {
		return nil, err
	}
	borrowerLoanVault, err := e.ledger.EnsureVault(borrowerAddr, borrowerAddr, loan.LoanAsset)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.TransferAsEscrow(loanEscrow, authority, borrowerLoanVault.Address, loan.LoanAmount); err != nil {
		return nil, err
	}
	borrowerCollateral, err := token.VaultAddress(borrowerAddr, loan.CollateralAsset)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.TransferAsUser(borrowerCollateral, borrower, collateralEscrow, collateralAmount); err != nil {
		return nil, err
	}
	if err := e.state.LoanPut(loan); err != nil {
		return nil, err
	}
	e.emit(loanBorrowedEvent(loan))
	return loan.Clone(), nil
}

// Cancel releases the escrowed collateral to the lender, minus the lend fee
// which goes to the team wallet. It is allowed once the loan has a borrower
// or once borrowDate + duration lies in the past. For an unclaimed loan
// borrowDate is zero, so the second clause holds for any realistic clock.
// The escrowed loan asset is not moved.
func (e *Engine) Cancel(lender token.Signer, id [20]byte) (*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig(true)
	if err != nil {
		return nil, err
	}
	loan, err := e.loadLoan(id)
	if err != nil {
		return nil, err
	}
	expireLoan, err := addI64(loan.BorrowDate, loan.DurationSeconds)
	if err != nil {
		return nil, err
	}
	lenderAddr := lender.Address()
	if loan.Lender != lenderAddr {
		return nil, coreerrors.ErrIncorrectAuthority
	}
	if loan.Repaid {
		return nil, coreerrors.ErrAlreadyRepaid
	}
	if loan.Cancelled {
		return nil, coreerrors.ErrLoanCancelled
	}
	if !(loan.HasBorrower() || expireLoan < e.now()) {
		return nil, coreerrors.ErrLoanActivated
	}
	authority, err := e.authorityFor(loan)
	if err != nil {
		return nil, err
	}

	fee, err := feeAmount(loan.CollateralAmount, cfg.LendFeeRate)
	if err != nil {
		return nil, err
	}
	toLender, err := subU64(loan.CollateralAmount, fee)
	if err != nil {
		return nil, err
	}
	_, collateralEscrow, err := EscrowVaults(loan)
	if err != nil {
		return nil, err
	}
	lenderVault, err := e.ledger.EnsureVault(lenderAddr, lenderAddr, loan.CollateralAsset)
	if err != nil {
		return nil, err
	}
	teamVault, err := e.ledger.EnsureVault(lenderAddr, cfg.TeamWallet, loan.CollateralAsset)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.TransferAsEscrow(collateralEscrow, authority, lenderVault.Address, toLender); err != nil {
		return nil, err
	}
	if err := e.ledger.TransferAsEscrow(collateralEscrow, authority, teamVault.Address, fee); err != nil {
		return nil, err
	}
	loan.Cancelled = true
	if err := e.state.LoanPut(loan); err != nil {
		return nil, err
	}
	e.emit(loanCancelledEvent(loan, toLender, fee))
	return loan.Clone(), nil
}

// Repay settles an active loan. The collateral returns to the borrower, the
// lender receives LoanAmount minus the lend fee and the team wallet receives
// twice the lend fee, both paid from the borrower's loan-asset vault.
func (e *Engine) Repay(borrower token.Signer, id [20]byte) (*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig(true)
	if err != nil {
		return nil, err
	}
	loan, err := e.loadLoan(id)
	if err != nil {
		return nil, err
	}
	if loan.Repaid {
		return nil, coreerrors.ErrAlreadyRepaid
	}
	if loan.Cancelled {
		return nil, coreerrors.ErrLoanCancelled
	}
	borrowerAddr := borrower.Address()
	if !loan.HasBorrower() || loan.Borrower != borrowerAddr {
		return nil, coreerrors.ErrIncorrectAuthority
	}
	loan.Repaid = true

	authority, err := e.authorityFor(loan)
	if err != nil {
		return nil, err
	}
	fee, err := feeAmount(loan.LoanAmount, cfg.LendFeeRate)
	if err != nil {
		return nil, err
	}
	toLender, err := subU64(loan.LoanAmount, fee)
	if err != nil {
		return nil, err
	}
	toTeam, err := mulU64(fee, 2)
	if err != nil {
		return nil, err
	}

	_, collateralEscrow, err := EscrowVaults(loan)
	if err != nil {
		return nil, err
	}
	borrowerCollateral, err := e.ledger.EnsureVault(borrowerAddr, borrowerAddr, loan.CollateralAsset)
	if err != nil {
		return nil, err
	}
	lenderLoanVault, err := e.ledger.EnsureVault(borrowerAddr, loan.Lender, loan.LoanAsset)
	if err != nil {
		return nil, err
	}
	teamLoanVault, err := e.ledger.EnsureVault(borrowerAddr, cfg.TeamWallet, loan.LoanAsset)
	if err != nil {
		return nil, err
	}
	borrowerLoanVault, err := token.VaultAddress(borrowerAddr, loan.LoanAsset)
	if err != nil {
		return nil, err
	}

	if err := e.ledger.TransferAsEscrow(collateralEscrow, authority, borrowerCollateral.Address, loan.CollateralAmount); err != nil {
		return nil, err
	}
	if err := e.ledger.TransferAsUser(borrowerLoanVault, borrower, lenderLoanVault.Address, toLender); err != nil {
		return nil, err
	}
	if err := e.ledger.TransferAsUser(borrowerLoanVault, borrower, teamLoanVault.Address, toTeam); err != nil {
		return nil, err
	}
	if err := e.state.LoanPut(loan); err != nil {
		return nil, err
	}
	e.emit(loanRepaidEvent(loan, toLender, toTeam))
	return loan.Clone(), nil
}
