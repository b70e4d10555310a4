package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is the stable numeric identifier surfaced to callers for a ledger
// failure. Values start at 6000 and never get renumbered.
type Code uint32

const (
	CodeIncorrectConfigAccount Code = 6000 + iota
	CodeIncorrectAuthority
	CodeIncorrectTeamWallet
	CodeAlreadyLended
	CodeAlreadyRepaid
	CodeAlreadyExpired
	CodeInsufficientFunds
	CodeInvalidCollateral
	CodeOverflowOrUnderflowOccurred
	CodeLoanActivated
	CodeLoanCancelled
)

// Error is a coded ledger failure. Instances are sentinels: compare with
// errors.Is, never by message.
type Error struct {
	Code    Code
	Name    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code Code, name, message string) *Error {
	return &Error{Code: code, Name: name, Message: message}
}

var (
	ErrIncorrectConfigAccount      = newError(CodeIncorrectConfigAccount, "IncorrectConfigAccount", "incorrect config account")
	ErrIncorrectAuthority          = newError(CodeIncorrectAuthority, "IncorrectAuthority", "incorrect authority")
	ErrIncorrectTeamWallet         = newError(CodeIncorrectTeamWallet, "IncorrectTeamWallet", "incorrect team wallet address")
	ErrAlreadyLended               = newError(CodeAlreadyLended, "AlreadyLended", "loan already lended")
	ErrAlreadyRepaid               = newError(CodeAlreadyRepaid, "AlreadyRepaid", "loan already repaid")
	ErrAlreadyExpired              = newError(CodeAlreadyExpired, "AlreadyExpired", "loan already expired")
	ErrInsufficientFunds           = newError(CodeInsufficientFunds, "InsufficientFunds", "insufficient funds")
	ErrInvalidCollateral           = newError(CodeInvalidCollateral, "InvalidCollateral", "invalid collateral")
	ErrOverflowOrUnderflowOccurred = newError(CodeOverflowOrUnderflowOccurred, "OverflowOrUnderflowOccurred", "overflow or underflow occurred")
	ErrLoanActivated               = newError(CodeLoanActivated, "LoanActivated", "loan is activated")
	ErrLoanCancelled               = newError(CodeLoanCancelled, "LoanCancelled", "loan already cancelled")
)

var all = []*Error{
	ErrIncorrectConfigAccount,
	ErrIncorrectAuthority,
	ErrIncorrectTeamWallet,
	ErrAlreadyLended,
	ErrAlreadyRepaid,
	ErrAlreadyExpired,
	ErrInsufficientFunds,
	ErrInvalidCollateral,
	ErrOverflowOrUnderflowOccurred,
	ErrLoanActivated,
	ErrLoanCancelled,
}

// All returns every coded error in code order.
func All() []*Error {
	return append([]*Error(nil), all...)
}

// As extracts the coded error wrapped anywhere inside err.
func As(err error) (*Error, bool) {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}

// Wrap annotates a coded error with context while keeping errors.Is intact.
func Wrap(coded *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", coded, fmt.Sprintf(format, args...))
}
