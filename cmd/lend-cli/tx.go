package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"peerlend/core/types"
	"peerlend/crypto"
)

// missingFlags lists the required flags that were not set on the command line.
func missingFlags(fs *flag.FlagSet, names ...string) []string {
	seen := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	var missing []string
	for _, name := range names {
		if !seen[name] {
			missing = append(missing, "--"+name)
		}
	}
	return missing
}

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer, required ...string) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		printError(stderr, "unexpected positional arguments")
		return false
	}
	if missing := missingFlags(fs, required...); len(missing) > 0 {
		printError(stderr, strings.Join(missing, ", ")+" required")
		return false
	}
	return true
}

func validateAddress(field, value string) error {
	if _, err := crypto.DecodeAddress(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%s: %v", field, err)
	}
	return nil
}

func newLoanSeed() (string, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(seed[:]), nil
}

func normalizeSeed(raw string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != 32 {
		return "", fmt.Errorf("--seed must be 32 bytes of hex")
	}
	return hex.EncodeToString(decoded), nil
}

// submit signs payload with the keystore key at the sender's current nonce
// and sends it to the node.
func submit(keyPath string, txType types.TxType, payload interface{}, stdout, stderr io.Writer) int {
	key, err := loadSigner(keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	sender := key.PubKey().Address().String()

	result, rpcErr, err := rpcCall("lend_getNonce", []interface{}{sender}, "")
	if err != nil {
		fmt.Fprintf(stderr, "RPC call failed: %v\n", err)
		return 1
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	var nonce struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(result, &nonce); err != nil {
		return printError(stderr, fmt.Sprintf("decode nonce: %v", err))
	}

	tx := &types.Transaction{ChainID: chainID, Type: txType, Nonce: nonce.Nonce}
	if err := tx.SetPayload(payload); err != nil {
		return printError(stderr, err.Error())
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return printError(stderr, fmt.Sprintf("sign transaction: %v", err))
	}

	result, rpcErr, err = rpcCall("lend_sendTransaction", []interface{}{tx}, "")
	if err != nil {
		fmt.Fprintf(stderr, "RPC call failed: %v\n", err)
		return 1
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runCreateLoan(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("create-loan", stderr)
	var (
		keyPath, loanAsset, collateralAsset, seed string
		amount, interest, durationDays, collat    uint64
	)
	fs.StringVar(&keyPath, "key", "", "lender keystore file")
	fs.StringVar(&loanAsset, "loan-asset", "", "asset lent out")
	fs.StringVar(&collateralAsset, "collateral-asset", "", "asset required as collateral")
	fs.Uint64Var(&amount, "amount", 0, "loan amount in base units")
	fs.Uint64Var(&interest, "interest", 0, "interest in base units of the loan asset")
	fs.Uint64Var(&durationDays, "duration-days", 0, "loan duration in days")
	fs.Uint64Var(&collat, "collateral", 0, "advertised collateral amount")
	fs.StringVar(&seed, "seed", "", "optional 32-byte hex loan seed (random when omitted)")
	if !parseFlags(fs, args, stderr, "key", "loan-asset", "collateral-asset", "amount", "duration-days", "collateral") {
		return 1
	}

	var err error
	if strings.TrimSpace(seed) == "" {
		seed, err = newLoanSeed()
	} else {
		seed, err = normalizeSeed(seed)
	}
	if err != nil {
		return printError(stderr, err.Error())
	}
	return submit(keyPath, types.TxTypeCreateLoan, types.CreateLoanPayload{
		Key:              seed,
		LoanAsset:        strings.TrimSpace(loanAsset),
		CollateralAsset:  strings.TrimSpace(collateralAsset),
		LoanAmount:       amount,
		InterestRate:     interest,
		DurationDays:     durationDays,
		CollateralAmount: collat,
	}, stdout, stderr)
}

func runBorrow(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("borrow", stderr)
	var (
		keyPath, loanID string
		collateral      uint64
	)
	fs.StringVar(&keyPath, "key", "", "borrower keystore file")
	fs.StringVar(&loanID, "loan", "", "loan id")
	fs.Uint64Var(&collateral, "collateral", 0, "collateral amount to post")
	if !parseFlags(fs, args, stderr, "key", "loan", "collateral") {
		return 1
	}
	if err := validateAddress("--loan", loanID); err != nil {
		return printError(stderr, err.Error())
	}
	return submit(keyPath, types.TxTypeBorrowLoan, types.BorrowLoanPayload{
		LoanID:           strings.TrimSpace(loanID),
		CollateralAmount: collateral,
	}, stdout, stderr)
}

func runCancel(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("cancel", stderr)
	var keyPath, loanID string
	fs.StringVar(&keyPath, "key", "", "lender keystore file")
	fs.StringVar(&loanID, "loan", "", "loan id")
	if !parseFlags(fs, args, stderr, "key", "loan") {
		return 1
	}
	if err := validateAddress("--loan", loanID); err != nil {
		return printError(stderr, err.Error())
	}
	return submit(keyPath, types.TxTypeCancelLoan, types.CancelLoanPayload{LoanID: strings.TrimSpace(loanID)}, stdout, stderr)
}

func runRepay(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("repay", stderr)
	var keyPath, loanID string
	fs.StringVar(&keyPath, "key", "", "borrower keystore file")
	fs.StringVar(&loanID, "loan", "", "loan id")
	if !parseFlags(fs, args, stderr, "key", "loan") {
		return 1
	}
	if err := validateAddress("--loan", loanID); err != nil {
		return printError(stderr, err.Error())
	}
	return submit(keyPath, types.TxTypeRepayLoan, types.RepayLoanPayload{LoanID: strings.TrimSpace(loanID)}, stdout, stderr)
}

func runTransfer(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("transfer", stderr)
	var (
		keyPath, to, asset string
		amount             uint64
	)
	fs.StringVar(&keyPath, "key", "", "sender keystore file")
	fs.StringVar(&to, "to", "", "recipient address")
	fs.StringVar(&asset, "asset", "", "asset symbol")
	fs.Uint64Var(&amount, "amount", 0, "amount in base units")
	if !parseFlags(fs, args, stderr, "key", "to", "asset", "amount") {
		return 1
	}
	if err := validateAddress("--to", to); err != nil {
		return printError(stderr, err.Error())
	}
	return submit(keyPath, types.TxTypeTransfer, types.TransferPayload{
		To:     strings.TrimSpace(to),
		Asset:  strings.TrimSpace(asset),
		Amount: amount,
	}, stdout, stderr)
}

func runConfigure(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("configure", stderr)
	var (
		keyPath, team      string
		lendFee, borrowFee uint64
		expiryDays         uint
	)
	fs.StringVar(&keyPath, "key", "", "authority keystore file")
	fs.StringVar(&team, "team", "", "team wallet address")
	fs.Uint64Var(&lendFee, "lend-fee", 0, "lend fee rate in percent")
	fs.Uint64Var(&borrowFee, "borrow-fee", 0, "borrow fee rate in percent")
	fs.UintVar(&expiryDays, "expiry-days", 0, "days an unborrowed offer stays open")
	if !parseFlags(fs, args, stderr, "key", "team", "lend-fee", "borrow-fee", "expiry-days") {
		return 1
	}
	if err := validateAddress("--team", team); err != nil {
		return printError(stderr, err.Error())
	}
	if expiryDays > 255 {
		return printError(stderr, "--expiry-days must be <= 255")
	}
	return submit(keyPath, types.TxTypeConfigure, types.ConfigurePayload{
		TeamWallet:        strings.TrimSpace(team),
		LendFeeRate:       lendFee,
		BorrowFeeRate:     borrowFee,
		DefaultExpiryDays: uint8(expiryDays),
	}, stdout, stderr)
}

func runProposeAuthority(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("propose-authority", stderr)
	var keyPath, next string
	fs.StringVar(&keyPath, "key", "", "current authority keystore file")
	fs.StringVar(&next, "new", "", "nominated authority address")
	if !parseFlags(fs, args, stderr, "key", "new") {
		return 1
	}
	if err := validateAddress("--new", next); err != nil {
		return printError(stderr, err.Error())
	}
	return submit(keyPath, types.TxTypeProposeAuthority, types.ProposeAuthorityPayload{NewAuthority: strings.TrimSpace(next)}, stdout, stderr)
}

func runAcceptAuthority(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("accept-authority", stderr)
	var keyPath string
	fs.StringVar(&keyPath, "key", "", "nominee keystore file")
	if !parseFlags(fs, args, stderr, "key") {
		return 1
	}
	return submit(keyPath, types.TxTypeAcceptAuthority, types.AcceptAuthorityPayload{}, stdout, stderr)
}
