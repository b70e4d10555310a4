package rpc

import (
	"encoding/hex"
	"encoding/json"

	"peerlend/crypto"
	"peerlend/native/lending"
	"peerlend/native/params"
	"peerlend/native/token"
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// LedgerErrorData is attached to every coded ledger rejection.
type LedgerErrorData struct {
	Name string `json:"name"`
	Code uint32 `json:"code"`
}

// LoanResult is the RPC view of a stored loan.
type LoanResult struct {
	ID               string `json:"id"`
	Key              string `json:"key"`
	Lender           string `json:"lender"`
	Borrower         string `json:"borrower,omitempty"`
	Status           string `json:"status"`
	LoanAsset        string `json:"loanAsset"`
	LoanAmount       uint64 `json:"loanAmount"`
	InterestRate     uint64 `json:"interestRate"`
	DurationSeconds  int64  `json:"durationSeconds"`
	CollateralAsset  string `json:"collateralAsset"`
	CollateralAmount uint64 `json:"collateralAmount"`
	CreateDate       int64  `json:"createDate"`
	ExpireDate       int64  `json:"expireDate"`
	BorrowDate       int64  `json:"borrowDate,omitempty"`
	Repaid           bool   `json:"repaid"`
	Cancelled        bool   `json:"cancelled"`
	LoanVault        string `json:"loanVault,omitempty"`
	CollateralVault  string `json:"collateralVault,omitempty"`
}

// ConfigResult is the RPC view of the global lending configuration.
type ConfigResult struct {
	Authority         string `json:"authority"`
	PendingAuthority  string `json:"pendingAuthority,omitempty"`
	TeamWallet        string `json:"teamWallet"`
	LendFeeRate       uint64 `json:"lendFeeRate"`
	BorrowFeeRate     uint64 `json:"borrowFeeRate"`
	DefaultExpiryDays uint8  `json:"defaultExpiryDays"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Vault   string `json:"vault"`
	Balance uint64 `json:"balance"`
	Exists  bool   `json:"exists"`
}

type NonceResult struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

func formatAddr(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return crypto.FromRaw(addr).String()
}

func loanResult(l *lending.Loan) LoanResult {
	out := LoanResult{
		ID:               formatAddr(l.ID),
		Key:              hex.EncodeToString(l.Key[:]),
		Lender:           formatAddr(l.Lender),
		Borrower:         formatAddr(l.Borrower),
		Status:           l.Status().String(),
		LoanAsset:        l.LoanAsset,
		LoanAmount:       l.LoanAmount,
		InterestRate:     l.InterestRate,
		DurationSeconds:  l.DurationSeconds,
		CollateralAsset:  l.CollateralAsset,
		CollateralAmount: l.CollateralAmount,
		CreateDate:       l.CreateDate,
		ExpireDate:       l.ExpireDate,
		BorrowDate:       l.BorrowDate,
		Repaid:           l.Repaid,
		Cancelled:        l.Cancelled,
	}
	if loanVault, collateralVault, err := lending.EscrowVaults(l); err == nil {
		out.LoanVault = formatAddr(loanVault)
		out.CollateralVault = formatAddr(collateralVault)
	}
	return out
}

func configResult(cfg params.GlobalConfig) ConfigResult {
	return ConfigResult{
		Authority:         formatAddr(cfg.Authority),
		PendingAuthority:  formatAddr(cfg.PendingAuthority),
		TeamWallet:        formatAddr(cfg.TeamWallet),
		LendFeeRate:       cfg.LendFeeRate,
		BorrowFeeRate:     cfg.BorrowFeeRate,
		DefaultExpiryDays: cfg.DefaultExpiryDays,
	}
}

func balanceResult(owner [20]byte, asset string, vault *token.Vault, exists bool) BalanceResult {
	out := BalanceResult{Address: formatAddr(owner), Asset: asset, Exists: exists}
	if addr, err := token.VaultAddress(owner, asset); err == nil {
		out.Vault = formatAddr(addr)
	}
	if exists && vault != nil {
		out.Balance = vault.Balance
		out.Asset = vault.Asset
	}
	return out
}
