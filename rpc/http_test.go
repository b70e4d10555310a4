package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"peerlend/config"
	"peerlend/core"
	"peerlend/core/genesis"
	"peerlend/core/types"
	"peerlend/crypto"
	"peerlend/storage"
)

const (
	testChainID  = uint64(4242)
	testNow      = int64(1_700_000_000)
	faucetSecret = "rpc-test-secret"
	faucetIssuer = "lend-test"
)

type testEnv struct {
	node    *core.Node
	handler http.Handler
	lender  *crypto.PrivateKey
	other   *crypto.PrivateKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	lender, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	authority, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	var team [20]byte
	team[0] = 0x7A

	doc := fmt.Sprintf(`{
  "genesisTime": "2024-01-01T00:00:00Z",
  "chainId": %d,
  "tokens": [
    {"symbol": "USDC", "name": "USD Coin", "decimals": 6},
    {"symbol": "SOL", "name": "Solana", "decimals": 9}
  ],
  "alloc": {
    %q: {"USDC": "5000"}
  },
  "lending": {
    "authority": %q,
    "teamWallet": %q,
    "lendFeeRate": 5,
    "borrowFeeRate": 1,
    "defaultExpiryDays": 7
  }
}`, testChainID, lender.PubKey().Address().String(), authority.PubKey().Address().String(), crypto.FromRaw(team).String())
	spec, err := genesis.DecodeJSON([]byte(doc))
	require.NoError(t, err)

	node, err := core.NewNode(storage.NewMemDB(), testChainID)
	require.NoError(t, err)
	_, err = genesis.Apply(spec, node.StateManager())
	require.NoError(t, err)
	node.SetNowFunc(func() int64 { return testNow })
	node.ConfigureFaucet(config.Faucet{
		Enabled:   true,
		MaxAmount: 1_000,
		Quota:     config.Quota{MaxRequestsPerEpoch: 2, EpochSeconds: 3600},
	})

	srv := NewServer(node, Config{Faucet: NewFaucetAuth(faucetSecret, faucetIssuer)})
	return &testEnv{node: node, handler: srv.Handler(), lender: lender, other: other}
}

type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func (e *testEnv) call(t *testing.T, header http.Header, method string, params ...interface{}) (int, rawResponse) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)
	return e.post(t, header, body)
}

func (e *testEnv) post(t *testing.T, header http.Header, body []byte) (int, rawResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	var resp rawResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func (e *testEnv) signedTx(t *testing.T, key *crypto.PrivateKey, txType types.TxType, payload interface{}) *types.Transaction {
	t.Helper()
	nonce, err := e.node.Nonce(key.PubKey().Address().Raw())
	require.NoError(t, err)
	tx := &types.Transaction{ChainID: testChainID, Type: txType, Nonce: nonce}
	require.NoError(t, tx.SetPayload(payload))
	require.NoError(t, tx.Sign(key.PrivateKey))
	return tx
}

func createPayload(keyByte byte, loanAsset, collateralAsset string) types.CreateLoanPayload {
	var key [32]byte
	key[31] = keyByte
	return types.CreateLoanPayload{
		Key:              hex.EncodeToString(key[:]),
		LoanAsset:        loanAsset,
		CollateralAsset:  collateralAsset,
		LoanAmount:       1_000,
		InterestRate:     5,
		DurationDays:     30,
		CollateralAmount: 2_000,
	}
}

func faucetToken(t *testing.T, secret, issuer string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops@example.com",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func TestHealthzAndRequestID(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))

	const supplied = "5f0c6c1e-3b8a-4c55-9d7e-8a2f1b7c9d10"
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, supplied)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, supplied, rec.Header().Get(requestIDHeader))
}

func TestMalformedRequests(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.post(t, nil, []byte("{not json"))
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeParseError, resp.Error.Code)

	status, resp = env.post(t, nil, []byte("   "))
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidRequest, resp.Error.Code)

	status, resp = env.call(t, nil, "lend_doesNotExist")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	status, resp = env.call(t, nil, "lend_getLoan")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	status, resp = env.call(t, nil, "lend_getLoan", "not-an-address")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestSendTransactionAndQueryLoan(t *testing.T) {
	env := newTestEnv(t)
	lenderAddr := env.lender.PubKey().Address().String()

	tx := env.signedTx(t, env.lender, types.TxTypeCreateLoan, createPayload(1, "USDC", "SOL"))
	status, resp := env.call(t, nil, "lend_sendTransaction", tx)
	require.Equal(t, http.StatusOK, status, "error: %+v", resp.Error)
	var receipt core.Receipt
	require.NoError(t, json.Unmarshal(resp.Result, &receipt))
	require.Equal(t, lenderAddr, receipt.Sender)
	require.NotEmpty(t, receipt.LoanID)
	require.NotEmpty(t, receipt.Events)

	status, resp = env.call(t, nil, "lend_getLoan", receipt.LoanID)
	require.Equal(t, http.StatusOK, status)
	var loan LoanResult
	require.NoError(t, json.Unmarshal(resp.Result, &loan))
	require.Equal(t, receipt.LoanID, loan.ID)
	require.Equal(t, lenderAddr, loan.Lender)
	require.Equal(t, "USDC", loan.LoanAsset)
	require.EqualValues(t, 1_000, loan.LoanAmount)
	require.EqualValues(t, testNow+7*86_400, loan.ExpireDate)
	require.Empty(t, loan.Borrower)
	require.NotEmpty(t, loan.LoanVault)

	status, resp = env.call(t, nil, "lend_getLoansByLender", lenderAddr)
	require.Equal(t, http.StatusOK, status)
	var loans []LoanResult
	require.NoError(t, json.Unmarshal(resp.Result, &loans))
	require.Len(t, loans, 1)

	status, resp = env.call(t, nil, "token_getBalance", lenderAddr, "usdc")
	require.Equal(t, http.StatusOK, status)
	var bal BalanceResult
	require.NoError(t, json.Unmarshal(resp.Result, &bal))
	require.True(t, bal.Exists)
	require.Equal(t, "USDC", bal.Asset)
	require.EqualValues(t, 4_000, bal.Balance)

	status, resp = env.call(t, nil, "lend_getNonce", lenderAddr)
	require.Equal(t, http.StatusOK, status)
	var nonce NonceResult
	require.NoError(t, json.Unmarshal(resp.Result, &nonce))
	require.EqualValues(t, 1, nonce.Nonce)
}

func TestLedgerErrorsCarryCodes(t *testing.T) {
	env := newTestEnv(t)

	tx := env.signedTx(t, env.lender, types.TxTypeCreateLoan, createPayload(2, "USDC", "USDC"))
	status, resp := env.call(t, nil, "lend_sendTransaction", tx)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeLedgerError, resp.Error.Code)
	data, ok := resp.Error.Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "InvalidCollateral", data["name"])
	require.EqualValues(t, 6007, data["code"])

	missing := crypto.FromRaw([20]byte{0x01, 0x02}).String()
	status, resp = env.call(t, nil, "lend_getLoan", missing)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeNotFound, resp.Error.Code)

	stale := env.signedTx(t, env.lender, types.TxTypeCreateLoan, createPayload(3, "USDC", "SOL"))
	stale.Nonce = 9
	require.NoError(t, stale.Sign(env.lender.PrivateKey))
	status, resp = env.call(t, nil, "lend_sendTransaction", stale)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestConfigAndTokens(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.call(t, nil, "lend_getConfig")
	require.Equal(t, http.StatusOK, status)
	var cfg ConfigResult
	require.NoError(t, json.Unmarshal(resp.Result, &cfg))
	require.EqualValues(t, 5, cfg.LendFeeRate)
	require.EqualValues(t, 1, cfg.BorrowFeeRate)
	require.EqualValues(t, 7, cfg.DefaultExpiryDays)
	require.Empty(t, cfg.PendingAuthority)

	status, resp = env.call(t, nil, "token_listTokens")
	require.Equal(t, http.StatusOK, status)
	var tokens []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Result, &tokens))
	require.Len(t, tokens, 2)
}

func TestFaucetRequiresBearerToken(t *testing.T) {
	env := newTestEnv(t)
	to := env.other.PubKey().Address().String()

	status, resp := env.call(t, nil, "token_faucet", to, "SOL", 500)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	wrongKey := faucetToken(t, "other-secret", faucetIssuer, time.Now().Add(time.Hour))
	status, _ = env.call(t, bearer(wrongKey), "token_faucet", to, "SOL", 500)
	require.Equal(t, http.StatusUnauthorized, status)

	expired := faucetToken(t, faucetSecret, faucetIssuer, time.Now().Add(-time.Hour))
	status, _ = env.call(t, bearer(expired), "token_faucet", to, "SOL", 500)
	require.Equal(t, http.StatusUnauthorized, status)

	wrongIssuer := faucetToken(t, faucetSecret, "someone-else", time.Now().Add(time.Hour))
	status, _ = env.call(t, bearer(wrongIssuer), "token_faucet", to, "SOL", 500)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestFaucetMintsWithinQuota(t *testing.T) {
	env := newTestEnv(t)
	to := env.other.PubKey().Address().String()
	auth := bearer(faucetToken(t, faucetSecret, faucetIssuer, time.Now().Add(time.Hour)))

	status, resp := env.call(t, auth, "token_faucet", to, "SOL", 5_000)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	for i := 0; i < 2; i++ {
		status, resp = env.call(t, auth, "token_faucet", to, "SOL", 500)
		require.Equal(t, http.StatusOK, status, "error: %+v", resp.Error)
	}
	status, resp = env.call(t, auth, "token_faucet", to, "SOL", 500)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, resp.Error.Code)

	bal, err := env.node.Balance(env.other.PubKey().Address().Raw(), "SOL")
	require.NoError(t, err)
	require.EqualValues(t, 1_000, bal)
}

func TestRateLimiterPerClient(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	now := time.Unix(testNow, 0)
	limiter.clockNow = func() time.Time { return now }

	require.True(t, limiter.allow("10.0.0.1"))
	require.True(t, limiter.allow("10.0.0.1"))
	require.False(t, limiter.allow("10.0.0.1"))
	require.True(t, limiter.allow("10.0.0.2"))

	now = now.Add(time.Second)
	require.True(t, limiter.allow("10.0.0.1"))

	require.Nil(t, NewRateLimiter(0, 5))
}

func TestRateLimitMiddlewareRejects(t *testing.T) {
	lender, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	node, err := core.NewNode(storage.NewMemDB(), testChainID)
	require.NoError(t, err)
	srv := NewServer(node, Config{RateLimitPerSec: 0.001, RateLimitBurst: 1})
	handler := srv.Handler()

	body := []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"lend_getNonce","params":[%q]}`, lender.PubKey().Address().String()))
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
		req.RemoteAddr = "192.0.2.10:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitIgnoresProxyHeadersByDefault(t *testing.T) {
	handler := NewRateLimiter(1, 1).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	require.Equal(t, 1, allowed)
}

func TestRateLimitKeysOnProxyHeadersWhenTrusted(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	limiter.TrustProxyHeaders = true
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(realIP string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("X-Real-IP", realIP)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusOK, send("198.51.100.1"))
	require.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))
	require.Equal(t, http.StatusOK, send("198.51.100.2"))
	require.Equal(t, http.StatusOK, send("not-an-ip"))
	require.Equal(t, http.StatusTooManyRequests, send("also-not-an-ip"))
}

func TestClientIDFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.0.2.44:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	require.Equal(t, "192.0.2.44", clientID(req, false))
	require.Equal(t, "198.51.100.9", clientID(req, true))
}
