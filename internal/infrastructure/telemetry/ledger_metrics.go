package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	AttrTransactionType = "transaction_type"
	AttrReason          = "reason"
	AttrCheck           = "check"
)

// postingBuckets covers a post from an uncontended in-memory run up to a
// slow lock wait on a busy period
var postingBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// LedgerMetrics holds the ledger's business instruments.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	posted            metric.Int64Counter
	postingFailures   metric.Int64Counter
	postingDuration   metric.Float64Histogram
	periodsClosed     metric.Int64Counter
	yearsClosed       metric.Int64Counter
	consistencyErrors metric.Int64Counter
}

// NewLedgerMetrics creates the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	var (
		m    LedgerMetrics
		errs []error
	)
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return c
	}

	m.posted = counter("ledger_transactions_posted_total",
		"Number of transactions posted to the ledger", "{transaction}")
	m.postingFailures = counter("ledger_posting_failures_total",
		"Number of rejected posting attempts by error code", "{attempt}")
	m.periodsClosed = counter("ledger_periods_closed_total",
		"Number of fiscal periods closed", "{period}")
	m.yearsClosed = counter("ledger_fiscal_years_closed_total",
		"Number of fiscal years closed", "{year}")
	m.consistencyErrors = counter("ledger_consistency_errors_total",
		"Number of failed ledger consistency checks", "{error}")

	duration, err := meter.Float64Histogram("ledger_posting_duration_seconds",
		metric.WithDescription("Time to post a transaction including lock wait"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(postingBuckets...),
	)
	m.postingDuration = duration
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordPosted counts a successful posting and its latency
func (m *LedgerMetrics) RecordPosted(ctx context.Context, txnType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrTransactionType, txnType))
	m.posted.Add(ctx, 1, attrs)
	m.postingDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordPostingFailure counts a rejected posting by error code
func (m *LedgerMetrics) RecordPostingFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.postingFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (m *LedgerMetrics) RecordPeriodClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.periodsClosed.Add(ctx, 1)
}

func (m *LedgerMetrics) RecordYearClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.yearsClosed.Add(ctx, 1)
}

// RecordConsistencyError counts a failed check: "ledger_balance",
// "trial_balance" or "cached_balance"
func (m *LedgerMetrics) RecordConsistencyError(ctx context.Context, check string) {
	if m == nil {
		return
	}
	m.consistencyErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCheck, check)))
}
