package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/societyledger/backend/internal/infrastructure/telemetry"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "bulk_bill", "generate",
		telemetry.WithAttribute(telemetry.SpanAttrRecipients, 3),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "bulk_bill.generate", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	require.Len(t, spans[0].Attributes(), 1)
	assert.Equal(t, int64(3), spans[0].Attributes()[0].Value.AsInt64())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	tenantID := uuid.New()

	_, span := telemetry.StartSpan(context.Background(), "ledger.update")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID,
		telemetry.SpanAttrAmount, "150.00",
		42, "ignored non-string key",
		"dangling",
	)
	span.End()

	attrs := sr.Ended()[0].Attributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, tenantID.String(), attrs[0].Value.AsString())
	assert.Equal(t, "150.00", attrs[1].Value.AsString())
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "sequence.reserve")
	telemetry.RecordError(span, errors.New("deadlock detected"))
	telemetry.RecordError(span, nil)
	span.End()

	s := sr.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "deadlock detected", s.Status().Description)
	require.Len(t, s.Events(), 1)
}

func TestAddEventAndSetOK(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartSpan(context.Background(), "bulk_bill.aggregate")
	telemetry.AddEvent(span, "bucket_applied", "bucket", "Income / Maintenance")
	telemetry.SetOK(span)
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	span.End()

	s := sr.Ended()[0]
	assert.Equal(t, codes.Ok, s.Status().Code)
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "bucket_applied", s.Events()[0].Name)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
}

func TestNilSpanHelpersDoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
		telemetry.AddEvent(nil, "e")
	})
}
