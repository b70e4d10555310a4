package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"peerlend/config"
	coreerrors "peerlend/core/errors"
	"peerlend/core/genesis"
	"peerlend/core/types"
	"peerlend/crypto"
	nativecommon "peerlend/native/common"
	"peerlend/native/lending"
	"peerlend/storage"
)

const (
	testChainID = uint64(1337)
	testNow     = int64(1_700_000_000)
	day         = int64(86_400)
)

type actor struct {
	key  *crypto.PrivateKey
	addr [20]byte
}

func newActor(t *testing.T) actor {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return actor{key: key, addr: key.PubKey().Address().Raw()}
}

func (a actor) String() string { return crypto.FromRaw(a.addr).String() }

type harness struct {
	node      *Node
	db        *storage.MemDB
	lender    actor
	borrower  actor
	authority actor
	team      [20]byte
	clock     int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		db:        storage.NewMemDB(),
		lender:    newActor(t),
		borrower:  newActor(t),
		authority: newActor(t),
		clock:     testNow,
	}
	h.team[0], h.team[19] = 0xEE, 0x09

	doc := fmt.Sprintf(`{
  "genesisTime": "2024-01-01T00:00:00Z",
  "chainId": %d,
  "tokens": [
    {"symbol": "USDC", "name": "USD Coin", "decimals": 6},
    {"symbol": "SOL", "name": "Solana", "decimals": 9}
  ],
  "alloc": {
    %q: {"USDC": "10000"},
    %q: {"SOL": "5000", "USDC": "100"}
  },
  "lending": {
    "authority": %q,
    "teamWallet": %q,
    "lendFeeRate": 5,
    "borrowFeeRate": 1,
    "defaultExpiryDays": 7
  }
}`, testChainID, h.lender, h.borrower, h.authority, crypto.FromRaw(h.team).String())
	spec, err := genesis.DecodeJSON([]byte(doc))
	require.NoError(t, err)

	node, err := NewNode(h.db, testChainID)
	require.NoError(t, err)
	applied, err := genesis.Apply(spec, node.StateManager())
	require.NoError(t, err)
	require.True(t, applied)
	node.SetNowFunc(func() int64 { return h.clock })
	h.node = node
	return h
}

func (h *harness) tx(t *testing.T, from actor, txType types.TxType, payload interface{}) *types.Transaction {
	t.Helper()
	nonce, err := h.node.Nonce(from.addr)
	require.NoError(t, err)
	tx := &types.Transaction{ChainID: testChainID, Type: txType, Nonce: nonce}
	require.NoError(t, tx.SetPayload(payload))
	require.NoError(t, tx.Sign(from.key.PrivateKey))
	return tx
}

func (h *harness) send(t *testing.T, from actor, txType types.TxType, payload interface{}) (*Receipt, error) {
	t.Helper()
	return h.node.ApplyTransaction(context.Background(), h.tx(t, from, txType, payload))
}

func (h *harness) balance(t *testing.T, owner [20]byte, asset string) uint64 {
	t.Helper()
	bal, err := h.node.Balance(owner, asset)
	require.NoError(t, err)
	return bal
}

func loanKey(b byte) string {
	var key [32]byte
	key[31] = b
	return hex.EncodeToString(key[:])
}

func (h *harness) createLoan(t *testing.T, key byte, amount, collateral uint64) string {
	t.Helper()
	receipt, err := h.send(t, h.lender, types.TxTypeCreateLoan, types.CreateLoanPayload{
		Key:              loanKey(key),
		LoanAsset:        "USDC",
		CollateralAsset:  "SOL",
		LoanAmount:       amount,
		InterestRate:     7,
		DurationDays:     30,
		CollateralAmount: collateral,
	})
	require.NoError(t, err)
	require.NotEmpty(t, receipt.LoanID)
	return receipt.LoanID
}

func decodeID(t *testing.T, id string) [20]byte {
	t.Helper()
	addr, err := crypto.DecodeAddress(id)
	require.NoError(t, err)
	return addr.Raw()
}

func eventTypes(r *Receipt) []string {
	out := make([]string, 0, len(r.Events))
	for _, evt := range r.Events {
		out = append(out, evt.Type)
	}
	return out
}

func TestLoanLifecycleCreateBorrowRepay(t *testing.T) {
	h := newHarness(t)

	loanID := h.createLoan(t, 1, 1_000, 0)
	id := decodeID(t, loanID)
	require.Equal(t, uint64(9_000), h.balance(t, h.lender.addr, "USDC"))
	require.Equal(t, uint64(1_000), h.balance(t, id, "USDC"))

	receipt, err := h.send(t, h.borrower, types.TxTypeBorrowLoan, types.BorrowLoanPayload{LoanID: loanID, CollateralAmount: 1_500})
	require.NoError(t, err)
	require.Contains(t, eventTypes(receipt), lending.EventTypeLoanBorrowed)
	require.Equal(t, uint64(1_100), h.balance(t, h.borrower.addr, "USDC"))
	require.Equal(t, uint64(3_500), h.balance(t, h.borrower.addr, "SOL"))
	require.Equal(t, uint64(1_500), h.balance(t, id, "SOL"))
	require.Zero(t, h.balance(t, id, "USDC"))

	h.clock += 10 * day
	receipt, err = h.send(t, h.borrower, types.TxTypeRepayLoan, types.RepayLoanPayload{LoanID: loanID})
	require.NoError(t, err)
	require.Contains(t, eventTypes(receipt), lending.EventTypeLoanRepaid)

	// fee = 1000/100*5 = 50: lender gets 950, team gets 100.
	require.Equal(t, uint64(9_950), h.balance(t, h.lender.addr, "USDC"))
	require.Equal(t, uint64(100), h.balance(t, h.team, "USDC"))
	require.Equal(t, uint64(50), h.balance(t, h.borrower.addr, "USDC"))
	require.Equal(t, uint64(5_000), h.balance(t, h.borrower.addr, "SOL"))
	require.Zero(t, h.balance(t, id, "SOL"))

	loan, err := h.node.Loan(id)
	require.NoError(t, err)
	require.Equal(t, lending.LoanRepaid, loan.Status())

	loans, err := h.node.LoansByLender(h.lender.addr)
	require.NoError(t, err)
	require.Len(t, loans, 1)

	_, err = h.send(t, h.borrower, types.TxTypeRepayLoan, types.RepayLoanPayload{LoanID: loanID})
	require.ErrorIs(t, err, coreerrors.ErrAlreadyRepaid)
	_, err = h.send(t, h.lender, types.TxTypeCancelLoan, types.CancelLoanPayload{LoanID: loanID})
	require.ErrorIs(t, err, coreerrors.ErrAlreadyRepaid)
}

func TestFailedTransactionLeavesStateAndNonceUntouched(t *testing.T) {
	h := newHarness(t)
	keysBefore := h.db.Len()

	_, err := h.send(t, h.lender, types.TxTypeCreateLoan, types.CreateLoanPayload{
		Key:             loanKey(1),
		LoanAsset:       "USDC",
		CollateralAsset: "SOL",
		LoanAmount:      20_000,
		DurationDays:    30,
	})
	require.ErrorIs(t, err, coreerrors.ErrInsufficientFunds)

	require.Equal(t, keysBefore, h.db.Len())
	require.Zero(t, h.node.StateManager().Pending())
	nonce, err := h.node.Nonce(h.lender.addr)
	require.NoError(t, err)
	require.Zero(t, nonce)
	require.Equal(t, uint64(10_000), h.balance(t, h.lender.addr, "USDC"))

	var key [32]byte
	key[31] = 1
	id, err := lending.LoanID(h.lender.addr, key)
	require.NoError(t, err)
	_, err = h.node.Loan(id)
	require.ErrorIs(t, err, ErrLoanNotFound)
	_, ok, err := h.node.Vault(id, "USDC")
	require.NoError(t, err)
	require.False(t, ok, "escrow vault creation must be rolled back")

	// The same nonce is accepted once the transaction is valid.
	h.createLoan(t, 1, 1_000, 0)
	nonce, err = h.node.Nonce(h.lender.addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
}

func TestApplyTransactionRejectsBadEnvelopes(t *testing.T) {
	h := newHarness(t)
	payload := types.TransferPayload{To: h.borrower.String(), Asset: "USDC", Amount: 1}

	wrongChain := &types.Transaction{ChainID: 99, Type: types.TxTypeTransfer}
	require.NoError(t, wrongChain.SetPayload(payload))
	require.NoError(t, wrongChain.Sign(h.lender.key.PrivateKey))
	_, err := h.node.ApplyTransaction(context.Background(), wrongChain)
	require.ErrorIs(t, err, ErrWrongChainID)

	badNonce := &types.Transaction{ChainID: testChainID, Type: types.TxTypeTransfer, Nonce: 5}
	require.NoError(t, badNonce.SetPayload(payload))
	require.NoError(t, badNonce.Sign(h.lender.key.PrivateKey))
	_, err = h.node.ApplyTransaction(context.Background(), badNonce)
	require.ErrorIs(t, err, ErrInvalidNonce)

	unsigned := &types.Transaction{ChainID: testChainID, Type: types.TxTypeTransfer}
	require.NoError(t, unsigned.SetPayload(payload))
	_, err = h.node.ApplyTransaction(context.Background(), unsigned)
	require.ErrorIs(t, err, ErrInvalidSignature)

	unknown := &types.Transaction{ChainID: testChainID, Type: types.TxType(0x7F)}
	require.NoError(t, unknown.SetPayload(payload))
	require.NoError(t, unknown.Sign(h.lender.key.PrivateKey))
	_, err = h.node.ApplyTransaction(context.Background(), unknown)
	require.ErrorIs(t, err, ErrUnknownTxType)

	_, err = h.send(t, h.lender, types.TxTypeCreateLoan, types.CreateLoanPayload{Key: "zz", LoanAsset: "USDC", CollateralAsset: "SOL"})
	require.ErrorIs(t, err, lending.ErrInvalidLoanKey)

	_, err = h.send(t, h.borrower, types.TxTypeBorrowLoan, types.BorrowLoanPayload{LoanID: "not-an-address"})
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = h.node.ApplyTransaction(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilTransaction)
}

func TestCancelledLoanCannotBeBorrowedOrRepaid(t *testing.T) {
	h := newHarness(t)
	loanID := h.createLoan(t, 2, 1_000, 0)

	receipt, err := h.send(t, h.lender, types.TxTypeCancelLoan, types.CancelLoanPayload{LoanID: loanID})
	require.NoError(t, err)
	require.Contains(t, eventTypes(receipt), lending.EventTypeLoanCancelled)

	_, err = h.send(t, h.borrower, types.TxTypeBorrowLoan, types.BorrowLoanPayload{LoanID: loanID, CollateralAmount: 1})
	require.ErrorIs(t, err, coreerrors.ErrLoanCancelled)
	_, err = h.send(t, h.borrower, types.TxTypeRepayLoan, types.RepayLoanPayload{LoanID: loanID})
	require.ErrorIs(t, err, coreerrors.ErrLoanCancelled)
	_, err = h.send(t, h.lender, types.TxTypeCancelLoan, types.CancelLoanPayload{LoanID: loanID})
	require.ErrorIs(t, err, coreerrors.ErrLoanCancelled)

	// Cancel moves collateral only; the loan asset stays escrowed.
	require.Equal(t, uint64(1_000), h.balance(t, decodeID(t, loanID), "USDC"))
}

func TestCancelAfterBorrowPaysCollateralToLender(t *testing.T) {
	h := newHarness(t)
	loanID := h.createLoan(t, 3, 1_000, 0)
	_, err := h.send(t, h.borrower, types.TxTypeBorrowLoan, types.BorrowLoanPayload{LoanID: loanID, CollateralAmount: 999})
	require.NoError(t, err)

	_, err = h.send(t, h.borrower, types.TxTypeCancelLoan, types.CancelLoanPayload{LoanID: loanID})
	require.ErrorIs(t, err, coreerrors.ErrIncorrectAuthority)

	_, err = h.send(t, h.lender, types.TxTypeCancelLoan, types.CancelLoanPayload{LoanID: loanID})
	require.NoError(t, err)
	// fee = 999/100*5 = 45
	require.Equal(t, uint64(954), h.balance(t, h.lender.addr, "SOL"))
	require.Equal(t, uint64(45), h.balance(t, h.team, "SOL"))
	require.Zero(t, h.balance(t, decodeID(t, loanID), "SOL"))
}

func TestBorrowAfterExpiryFails(t *testing.T) {
	h := newHarness(t)
	loanID := h.createLoan(t, 4, 1_000, 0)
	h.clock += 7 * day
	_, err := h.send(t, h.borrower, types.TxTypeBorrowLoan, types.BorrowLoanPayload{LoanID: loanID, CollateralAmount: 1})
	require.ErrorIs(t, err, coreerrors.ErrAlreadyExpired)
}

func TestPauseOverridesGateModules(t *testing.T) {
	h := newHarness(t)
	h.node.SetPauseOverrides(config.Pauses{Lending: true})

	_, err := h.send(t, h.lender, types.TxTypeCreateLoan, types.CreateLoanPayload{
		Key: loanKey(5), LoanAsset: "USDC", CollateralAsset: "SOL", LoanAmount: 1, DurationDays: 1,
	})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	_, err = h.send(t, h.lender, types.TxTypeTransfer, types.TransferPayload{To: h.borrower.String(), Asset: "USDC", Amount: 10})
	require.NoError(t, err)

	h.node.SetPauseOverrides(config.Pauses{Token: true})
	_, err = h.send(t, h.lender, types.TxTypeTransfer, types.TransferPayload{To: h.borrower.String(), Asset: "USDC", Amount: 10})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
}

func TestTransferCreatesRecipientVault(t *testing.T) {
	h := newHarness(t)
	stranger := newActor(t)

	receipt, err := h.send(t, h.lender, types.TxTypeTransfer, types.TransferPayload{To: stranger.String(), Asset: "usdc", Amount: 250})
	require.NoError(t, err)
	require.Equal(t, []string{"vault.created", "token.transfer"}, eventTypes(receipt))
	require.Equal(t, uint64(250), h.balance(t, stranger.addr, "USDC"))
	require.Equal(t, uint64(9_750), h.balance(t, h.lender.addr, "USDC"))

	_, err = h.send(t, stranger, types.TxTypeTransfer, types.TransferPayload{To: h.lender.String(), Asset: "SOL", Amount: 1})
	require.ErrorIs(t, err, coreerrors.ErrInsufficientFunds)
}

func TestConfigureAndAuthorityHandoff(t *testing.T) {
	h := newHarness(t)
	team := crypto.FromRaw(h.team).String()

	_, err := h.send(t, h.lender, types.TxTypeConfigure, types.ConfigurePayload{TeamWallet: team, LendFeeRate: 1})
	require.ErrorIs(t, err, coreerrors.ErrIncorrectAuthority)

	_, err = h.send(t, h.authority, types.TxTypeConfigure, types.ConfigurePayload{TeamWallet: team, LendFeeRate: 10, DefaultExpiryDays: 3})
	require.NoError(t, err)
	cfg, err := h.node.LendingConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(10), cfg.LendFeeRate)
	require.Equal(t, uint8(3), cfg.DefaultExpiryDays)

	successor := newActor(t)
	_, err = h.send(t, h.authority, types.TxTypeProposeAuthority, types.ProposeAuthorityPayload{NewAuthority: successor.String()})
	require.NoError(t, err)
	_, err = h.send(t, h.lender, types.TxTypeAcceptAuthority, types.AcceptAuthorityPayload{})
	require.ErrorIs(t, err, coreerrors.ErrIncorrectAuthority)
	_, err = h.send(t, successor, types.TxTypeAcceptAuthority, types.AcceptAuthorityPayload{})
	require.NoError(t, err)

	cfg, err = h.node.LendingConfig()
	require.NoError(t, err)
	require.Equal(t, successor.addr, cfg.Authority)
	_, err = h.send(t, h.authority, types.TxTypeConfigure, types.ConfigurePayload{TeamWallet: team})
	require.ErrorIs(t, err, coreerrors.ErrIncorrectAuthority)
}

func TestFaucetQuota(t *testing.T) {
	h := newHarness(t)
	target := newActor(t)

	_, err := h.node.Faucet(context.Background(), target.addr, "SOL", 10)
	require.ErrorIs(t, err, ErrFaucetDisabled)

	h.node.ConfigureFaucet(config.Faucet{
		Enabled:   true,
		MaxAmount: 100,
		Quota:     config.Quota{MaxRequestsPerEpoch: 2, EpochSeconds: 3_600},
	})
	_, err = h.node.Faucet(context.Background(), target.addr, "SOL", 101)
	require.ErrorIs(t, err, ErrFaucetAmount)

	for i := 0; i < 2; i++ {
		_, err = h.node.Faucet(context.Background(), target.addr, "SOL", 100)
		require.NoError(t, err)
	}
	_, err = h.node.Faucet(context.Background(), target.addr, "SOL", 1)
	require.ErrorIs(t, err, nativecommon.ErrQuotaRequestsExceeded)
	require.Equal(t, uint64(200), h.balance(t, target.addr, "SOL"))

	h.clock += 3_600
	_, err = h.node.Faucet(context.Background(), target.addr, "SOL", 1)
	require.NoError(t, err)
	require.Equal(t, uint64(201), h.balance(t, target.addr, "SOL"))

	_, err = h.node.Faucet(context.Background(), target.addr, "DOGE", 1)
	require.Error(t, err)
}
