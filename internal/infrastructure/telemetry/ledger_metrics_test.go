package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if key == "" {
			total += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func newTestMetrics(t *testing.T) (*telemetry.LedgerMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewLedgerMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func TestLedgerMetrics_RecordPosted(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPosted(ctx, "GENERAL", 12*time.Millisecond)
	m.RecordPosted(ctx, "GENERAL", 3*time.Millisecond)
	m.RecordPosted(ctx, "REVERSAL", time.Millisecond)

	metrics := collect(t, reader)
	posted := metrics["ledger_transactions_posted_total"]
	assert.Equal(t, int64(2), sumFor(t, posted, telemetry.AttrTransactionType, "GENERAL"))
	assert.Equal(t, int64(1), sumFor(t, posted, telemetry.AttrTransactionType, "REVERSAL"))

	hist, ok := metrics["ledger_posting_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestLedgerMetrics_FailuresAndClosing(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPostingFailure(ctx, "PERIOD_CLOSED")
	m.RecordPostingFailure(ctx, "ALREADY_POSTED")
	m.RecordPostingFailure(ctx, "PERIOD_CLOSED")
	m.RecordPeriodClosed(ctx)
	m.RecordYearClosed(ctx)
	m.RecordConsistencyError(ctx, "ledger_balance")

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, metrics["ledger_posting_failures_total"], telemetry.AttrReason, "PERIOD_CLOSED"))
	assert.Equal(t, int64(1), sumFor(t, metrics["ledger_posting_failures_total"], telemetry.AttrReason, "ALREADY_POSTED"))
	assert.Equal(t, int64(1), sumFor(t, metrics["ledger_periods_closed_total"], "", ""))
	assert.Equal(t, int64(1), sumFor(t, metrics["ledger_fiscal_years_closed_total"], "", ""))
	assert.Equal(t, int64(1), sumFor(t, metrics["ledger_consistency_errors_total"], telemetry.AttrCheck, "ledger_balance"))
}

func TestLedgerMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.LedgerMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordPosted(ctx, "GENERAL", time.Millisecond)
		m.RecordPostingFailure(ctx, "PERIOD_CLOSED")
		m.RecordPeriodClosed(ctx)
		m.RecordYearClosed(ctx)
		m.RecordConsistencyError(ctx, "cached_balance")
	})
}
