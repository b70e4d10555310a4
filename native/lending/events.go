package lending

import (
	"strconv"

	"peerlend/core/types"
	"peerlend/crypto"
)

const (
	EventTypeLoanCreated   = "lending.loan.created"
	EventTypeLoanBorrowed  = "lending.loan.borrowed"
	EventTypeLoanCancelled = "lending.loan.cancelled"
	EventTypeLoanRepaid    = "lending.loan.repaid"
)

type loanEvent struct {
	evt *types.Event
}

func (e loanEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e loanEvent) Event() *types.Event { return e.evt }

func formatAddr(addr [20]byte) string {
	return crypto.FromRaw(addr).String()
}

func formatU64(v uint64) string { return strconv.FormatUint(v, 10) }

func formatI64(v int64) string { return strconv.FormatInt(v, 10) }

func newLoanEvent(eventType string, l *Loan, extra map[string]string) loanEvent {
	attrs := map[string]string{
		"id":     formatAddr(l.ID),
		"lender": formatAddr(l.Lender),
		"status": l.Status().String(),
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return loanEvent{evt: &types.Event{Type: eventType, Attributes: attrs}}
}

func loanCreatedEvent(l *Loan) loanEvent {
	return newLoanEvent(EventTypeLoanCreated, l, map[string]string{
		"loanAsset":        l.LoanAsset,
		"loanAmount":       formatU64(l.LoanAmount),
		"collateralAsset":  l.CollateralAsset,
		"collateralAmount": formatU64(l.CollateralAmount),
		"interestRate":     formatU64(l.InterestRate),
		"durationSeconds":  formatI64(l.DurationSeconds),
		"expireDate":       formatI64(l.ExpireDate),
	})
}

func loanBorrowedEvent(l *Loan) loanEvent {
	return newLoanEvent(EventTypeLoanBorrowed, l, map[string]string{
		"borrower":         formatAddr(l.Borrower),
		"collateralAmount": formatU64(l.CollateralAmount),
		"borrowDate":       formatI64(l.BorrowDate),
	})
}

func loanCancelledEvent(l *Loan, toLender, fee uint64) loanEvent {
	return newLoanEvent(EventTypeLoanCancelled, l, map[string]string{
		"collateralToLender": formatU64(toLender),
		"fee":                formatU64(fee),
	})
}

func loanRepaidEvent(l *Loan, toLender, toTeam uint64) loanEvent {
	return newLoanEvent(EventTypeLoanRepaid, l, map[string]string{
		"borrower": formatAddr(l.Borrower),
		"toLender": formatU64(toLender),
		"fee":      formatU64(toTeam),
	})
}
