package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"peerlend/core"
	coreerrors "peerlend/core/errors"
	nativecommon "peerlend/native/common"
	"peerlend/native/lending"
	"peerlend/native/params"
	"peerlend/native/token"
	"peerlend/observability"
)

const (
	jsonRPCVersion         = "2.0"
	defaultMaxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeNotFound       = -32004
	codeRateLimited    = -32020
	codeLedgerError    = -32030
	codeModulePaused   = -32040
)

// Config tunes the HTTP server. Zero values fall back to sane defaults.
type Config struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxBodyBytes      int64
	RateLimitPerSec   float64
	RateLimitBurst    int
	// TrustProxyHeaders keys rate limits on X-Real-IP / X-Forwarded-For.
	// Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
	Faucet            *FaucetAuth
	Logger            *slog.Logger
}

type handlerFunc func(r *http.Request, req *RPCRequest) (interface{}, *RPCError)

type method struct {
	module  string
	handler handlerFunc
}

// Server exposes the node over JSON-RPC 2.0.
type Server struct {
	node    *core.Node
	cfg     Config
	logger  *slog.Logger
	limiter *RateLimiter
	methods map[string]method
	httpSrv *http.Server
}

func NewServer(node *core.Node, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxRequestBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		logger:  logger,
		limiter: NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
	}
	if s.limiter != nil {
		s.limiter.TrustProxyHeaders = cfg.TrustProxyHeaders
	}
	s.methods = map[string]method{
		"lend_sendTransaction":  {"lend", s.handleSendTransaction},
		"lend_getLoan":          {"lend", s.handleGetLoan},
		"lend_getLoansByLender": {"lend", s.handleGetLoansByLender},
		"lend_getConfig":        {"lend", s.handleGetConfig},
		"lend_getNonce":         {"lend", s.handleGetNonce},
		"token_getBalance":      {"token", s.handleGetBalance},
		"token_listTokens":      {"token", s.handleListTokens},
		"token_faucet":          {"token", s.handleFaucet},
	}
	return s
}

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(s.limiter.Middleware).Post("/", s.handle)
	return otelhttp.NewHandler(r, "lend.rpc")
}

// Start serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	start := time.Now()
	result, rpcErr := m.handler(r, req)
	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
	}
	observability.ModuleMetrics().Observe(m.module, req.Method, code, time.Since(start))
	if rpcErr != nil {
		s.logger.Debug("rpc call failed",
			slog.String("method", req.Method),
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.Int("code", rpcErr.Code),
			slog.String("error", rpcErr.Message))
		writeError(w, statusFor(rpcErr.Code), req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

func statusFor(code int) int {
	switch code {
	case codeServerError:
		return http.StatusInternalServerError
	case codeUnauthorized:
		return http.StatusUnauthorized
	case codeNotFound:
		return http.StatusNotFound
	case codeRateLimited:
		return http.StatusTooManyRequests
	case codeModulePaused:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data}
}

// toRPCError classifies an error returned by the node.
func toRPCError(err error) *RPCError {
	if err == nil {
		return nil
	}
	if coded, ok := coreerrors.As(err); ok {
		return &RPCError{
			Code:    codeLedgerError,
			Message: err.Error(),
			Data:    LedgerErrorData{Name: coded.Name, Code: uint32(coded.Code)},
		}
	}
	switch {
	case core.IsLoanNotFound(err):
		return &RPCError{Code: codeNotFound, Message: err.Error()}
	case errors.Is(err, nativecommon.ErrModulePaused):
		return &RPCError{Code: codeModulePaused, Message: err.Error()}
	case errors.Is(err, nativecommon.ErrQuotaRequestsExceeded),
		errors.Is(err, nativecommon.ErrQuotaAmountExceeded),
		errors.Is(err, nativecommon.ErrQuotaCounterOverflow):
		return &RPCError{Code: codeRateLimited, Message: err.Error()}
	case errors.Is(err, core.ErrFaucetDisabled):
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	case isClientError(err):
		return invalidParams(err.Error(), nil)
	default:
		return &RPCError{Code: codeServerError, Message: "internal error", Data: err.Error()}
	}
}

var clientErrors = []error{
	core.ErrInvalidSignature,
	core.ErrWrongChainID,
	core.ErrUnknownTxType,
	core.ErrInvalidNonce,
	core.ErrInvalidPayload,
	core.ErrFaucetAmount,
	lending.ErrLoanExists,
	lending.ErrInvalidLoanKey,
	lending.ErrSameAssetLoan,
	token.ErrInvalidAsset,
	token.ErrUnknownToken,
	token.ErrVaultNotFound,
	token.ErrAssetMismatch,
	params.ErrFeeRateTooHigh,
	params.ErrNoPendingChange,
	params.ErrZeroAuthority,
}

func isClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
