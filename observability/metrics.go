package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lend",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a JSON-RPC call. code is zero on success and
// the JSON-RPC error code otherwise.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" or
// "quota_exceeded" so dashboards and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// LedgerMetrics tracks state transitions applied by the node.
type LedgerMetrics struct {
	transactions *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	loans        *prometheus.CounterVec
	transfers    *prometheus.CounterVec
}

// Ledger returns the singleton metrics registry for the transaction executor.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Count of applied transactions segmented by type and outcome.",
			}, []string{"type", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lend",
				Subsystem: "ledger",
				Name:      "transaction_duration_seconds",
				Help:      "Latency distribution for state transitions.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			}, []string{"type"}),
			loans: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "ledger",
				Name:      "loan_transitions_total",
				Help:      "Count of committed loan lifecycle transitions.",
			}, []string{"transition"}),
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lend",
				Subsystem: "ledger",
				Name:      "transfers_total",
				Help:      "Count of committed vault transfers segmented by asset and authorization.",
			}, []string{"asset", "authorization"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transactions,
			ledgerRegistry.latency,
			ledgerRegistry.loans,
			ledgerRegistry.transfers,
		)
	})
	return ledgerRegistry
}

// ObserveTransaction records one executed transaction. outcome is typically
// "committed" or the error name that reverted it.
func (m *LedgerMetrics) ObserveTransaction(txType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if txType == "" {
		txType = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.transactions.WithLabelValues(txType, outcome).Inc()
	m.latency.WithLabelValues(txType).Observe(duration.Seconds())
}

// RecordLoanTransition increments the lifecycle counter, e.g. "created".
func (m *LedgerMetrics) RecordLoanTransition(transition string) {
	if m == nil || transition == "" {
		return
	}
	m.loans.WithLabelValues(transition).Inc()
}

// RecordTransfer increments the transfer counter for the supplied asset ticker.
func (m *LedgerMetrics) RecordTransfer(asset, authorization string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToUpper(asset))
	if normalized == "" {
		normalized = "UNKNOWN"
	}
	if authorization == "" {
		authorization = "unknown"
	}
	m.transfers.WithLabelValues(normalized, authorization).Inc()
}
