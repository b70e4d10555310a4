package types

import "bytes"

// TransferPayload moves tokens out of the sender's own vault.
type TransferPayload struct {
	To     string `json:"to"`
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

// CreateLoanPayload opens a lending offer. Key is a hex-encoded 32-byte seed
// chosen by the lender; together with the lender it identifies the loan.
type CreateLoanPayload struct {
	Key              string `json:"key"`
	LoanAsset        string `json:"loanAsset"`
	CollateralAsset  string `json:"collateralAsset"`
	LoanAmount       uint64 `json:"loanAmount"`
	InterestRate     uint64 `json:"interestRate"`
	DurationDays     uint64 `json:"durationDays"`
	CollateralAmount uint64 `json:"collateralAmount"`
}

type BorrowLoanPayload struct {
	LoanID           string `json:"loanId"`
	CollateralAmount uint64 `json:"collateralAmount"`
}

type CancelLoanPayload struct {
	LoanID string `json:"loanId"`
}

type RepayLoanPayload struct {
	LoanID string `json:"loanId"`
}

// ConfigurePayload replaces the mutable global lending parameters.
type ConfigurePayload struct {
	TeamWallet        string `json:"teamWallet"`
	LendFeeRate       uint64 `json:"lendFeeRate"`
	BorrowFeeRate     uint64 `json:"borrowFeeRate"`
	DefaultExpiryDays uint8  `json:"defaultExpiryDays"`
}

type ProposeAuthorityPayload struct {
	NewAuthority string `json:"newAuthority"`
}

// AcceptAuthorityPayload is empty; the signer is the claimant.
type AcceptAuthorityPayload struct{}

func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
