package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetricsRecorder exposes the ledger scheduler counters.
type LedgerMetricsRecorder struct {
	transactions *prometheus.CounterVec
	calls        *prometheus.CounterVec
	callDepth    prometheus.Histogram
	txCalls      prometheus.Histogram
	txDuration   *prometheus.HistogramVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetricsRecorder
)

// LedgerMetrics returns the lazily-initialised registry used by the ledger to
// record delivered calls and transaction outcomes.
func LedgerMetrics() *LedgerMetricsRecorder {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetricsRecorder{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "leverage",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Transactions processed by the ledger segmented by entry action and outcome.",
			}, []string{"action", "outcome"}),
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "leverage",
				Subsystem: "ledger",
				Name:      "calls_total",
				Help:      "Calls delivered inside transactions segmented by contract label and action.",
			}, []string{"contract", "action"}),
			callDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "leverage",
				Subsystem: "ledger",
				Name:      "call_depth",
				Help:      "Depth in the call tree at which calls were delivered.",
				Buckets:   prometheus.LinearBuckets(0, 1, 12),
			}),
			txCalls: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "leverage",
				Subsystem: "ledger",
				Name:      "calls_per_transaction",
				Help:      "Number of calls delivered by a single committed transaction.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			}),
			txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "leverage",
				Subsystem: "ledger",
				Name:      "transaction_duration_seconds",
				Help:      "Wall-clock time spent executing a transaction.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transactions,
			ledgerRegistry.calls,
			ledgerRegistry.callDepth,
			ledgerRegistry.txCalls,
			ledgerRegistry.txDuration,
		)
	})
	return ledgerRegistry
}

// RecordCall counts a delivered call.
func (m *LedgerMetricsRecorder) RecordCall(contract, action string, depth int) {
	if m == nil {
		return
	}
	if contract == "" {
		contract = "unknown"
	}
	if action == "" {
		action = "unknown"
	}
	m.calls.WithLabelValues(contract, action).Inc()
	m.callDepth.Observe(float64(depth))
}

// RecordTransaction records the outcome of a transaction. Outcome is either
// "committed" or "reverted".
func (m *LedgerMetricsRecorder) RecordTransaction(action, outcome string, calls int, duration time.Duration) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	m.transactions.WithLabelValues(action, outcome).Inc()
	m.txDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if outcome == "committed" {
		m.txCalls.Observe(float64(calls))
	}
}
