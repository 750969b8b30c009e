package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TransactionMetrics records outcomes of core ledger transactions.
type TransactionMetrics struct {
	duration *prometheus.HistogramVec
	commits  *prometheus.CounterVec
	aborts   *prometheus.CounterVec
}

// NewTransactionMetrics registers the transaction metrics on the provided registerer.
func NewTransactionMetrics(reg prometheus.Registerer) *TransactionMetrics {
	if reg == nil {
		return &TransactionMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_tx_duration_seconds",
		Help:    "Duration of core ledger transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_tx_commits",
		Help: "Committed core ledger transactions.",
	}, []string{"operation"})
	aborts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_tx_aborts",
		Help: "Rolled-back core ledger transactions.",
	}, []string{"operation"})
	reg.MustRegister(duration, commits, aborts)
	return &TransactionMetrics{
		duration: duration,
		commits:  commits,
		aborts:   aborts,
	}
}

// ObserveDuration records the duration for the named operation.
func (t *TransactionMetrics) ObserveDuration(operation string, duration time.Duration) {
	if t == nil || t.duration == nil {
		return
	}
	t.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncCommit increments the commit counter for the named operation.
func (t *TransactionMetrics) IncCommit(operation string) {
	if t == nil || t.commits == nil {
		return
	}
	t.commits.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncAbort increments the abort counter for the named operation.
func (t *TransactionMetrics) IncAbort(operation string) {
	if t == nil || t.aborts == nil {
		return
	}
	t.aborts.WithLabelValues(normalizeLabel(operation)).Inc()
}

func normalizeLabel(operation string) string {
	if operation == "" {
		return "unknown"
	}
	return operation
}
