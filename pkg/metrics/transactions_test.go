package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewTransactionMetrics(registry)

	m.IncCommit("order_create")
	m.IncCommit("order_create")
	m.IncAbort("payment_create")
	m.ObserveDuration("order_create", 150*time.Millisecond)

	families, err := registry.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, family := range families {
		byName[family.GetName()] = family
	}

	commits := byName["ledger_tx_commits"]
	require.NotNil(t, commits)
	require.Len(t, commits.GetMetric(), 1)
	assert.Equal(t, float64(2), commits.GetMetric()[0].GetCounter().GetValue())

	aborts := byName["ledger_tx_aborts"]
	require.NotNil(t, aborts)
	assert.Equal(t, float64(1), aborts.GetMetric()[0].GetCounter().GetValue())

	histogram := byName["ledger_tx_duration_seconds"]
	require.NotNil(t, histogram)
	assert.Equal(t, uint64(1), histogram.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestTransactionMetricsNilSafe(t *testing.T) {
	var m *TransactionMetrics
	m.IncCommit("noop")
	m.IncAbort("noop")
	m.ObserveDuration("noop", time.Second)

	empty := NewTransactionMetrics(nil)
	empty.IncCommit("noop")
	empty.ObserveDuration("noop", time.Second)
}
