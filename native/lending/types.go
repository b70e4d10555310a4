package lending

// LoanStatus is derived from a loan's recorded fields; it is never stored.
type LoanStatus uint8

const (
	// LoanCreated marks an offer awaiting a borrower.
	LoanCreated LoanStatus = iota
	// LoanActive marks a claimed loan that is neither repaid nor cancelled.
	LoanActive
	// LoanRepaid is terminal.
	LoanRepaid
	// LoanCancelled is terminal.
	LoanCancelled
)

func (s LoanStatus) String() string {
	switch s {
	case LoanCreated:
		return "created"
	case LoanActive:
		return "active"
	case LoanRepaid:
		return "repaid"
	case LoanCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Loan captures a single peer-to-peer lending offer and its lifecycle. The
// identifier is the address of the loan's derived authority, computed from
// the lender and the lender-chosen key, so the record and its escrow vaults
// can always be located from those two values.
type Loan struct {
	// ID is the derived authority address that owns both escrow vaults.
	ID [20]byte
	// Key is the lender-chosen 32-byte seed that distinguishes offers made
	// by the same lender.
	Key [32]byte
	// Lender funded the offer and is the only identity allowed to cancel it.
	Lender [20]byte
	// Borrower is the zero address until the offer is claimed.
	Borrower [20]byte
	// LoanAsset is the symbol of the lent asset.
	LoanAsset string
	// LoanAmount is escrowed at creation and released on borrow.
	LoanAmount uint64
	// InterestRate is recorded for the counterparties; no transfer reads it.
	InterestRate uint64
	// DurationSeconds is the borrower's repayment window.
	DurationSeconds int64
	// CollateralAsset is the symbol of the asset posted by the borrower.
	CollateralAsset string
	// CollateralAmount is advisory until borrow, when it is overwritten with
	// the amount actually posted.
	CollateralAmount uint64
	// CreateDate is the unix timestamp of the create transition.
	CreateDate int64
	// ExpireDate is the deadline for a borrower to claim the offer.
	ExpireDate int64
	// BorrowDate is zero until the offer is claimed.
	BorrowDate int64
	// Repaid flips to true exactly once.
	Repaid bool
	// Cancelled flips to true exactly once and blocks every later transition.
	Cancelled bool
}

// HasBorrower reports whether the offer has been claimed.
func (l *Loan) HasBorrower() bool {
	return l != nil && l.Borrower != ([20]byte{})
}

// Status derives the lifecycle state from the recorded fields.
func (l *Loan) Status() LoanStatus {
	switch {
	case l == nil:
		return LoanCreated
	case l.Cancelled:
		return LoanCancelled
	case l.Repaid:
		return LoanRepaid
	case l.HasBorrower():
		return LoanActive
	default:
		return LoanCreated
	}
}

// Clone returns a copy of the loan safe for mutation.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}
