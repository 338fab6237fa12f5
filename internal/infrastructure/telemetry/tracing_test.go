package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attributesOf(span sdktrace.ReadOnlySpan) map[string]string {
	attrs := make(map[string]string)
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	return attrs
}

func TestStartServiceSpan(t *testing.T) {
	recorder := installRecorder(t)
	companyID := uuid.New()

	ctx, span := telemetry.StartServiceSpan(context.Background(), "transaction", "post",
		telemetry.WithAttribute(telemetry.SpanAttrCompanyID, companyID))
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	telemetry.SetAttributes(span,
		telemetry.SpanAttrLineCount, 2,
		telemetry.SpanAttrAmount, decimal.RequireFromString("1200.50"),
		telemetry.SpanAttrPeriod, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		42, "skipped",
	)
	telemetry.SetOK(span)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "transaction.post", got.Name())
	assert.Equal(t, trace.SpanKindInternal, got.SpanKind())
	assert.Equal(t, codes.Ok, got.Status().Code)

	attrs := attributesOf(got)
	assert.Equal(t, companyID.String(), attrs[telemetry.SpanAttrCompanyID])
	assert.Equal(t, "2", attrs[telemetry.SpanAttrLineCount])
	assert.Equal(t, "1200.5", attrs[telemetry.SpanAttrAmount])
	assert.Equal(t, "2024-03-01T00:00:00Z", attrs[telemetry.SpanAttrPeriod])
	assert.Len(t, attrs, 4)
}

func TestRecordError(t *testing.T) {
	recorder := installRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "failing")
	telemetry.RecordError(span, errors.New("period closed"))
	telemetry.RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "period closed", spans[0].Status().Description)
}

func TestHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
	})
}
