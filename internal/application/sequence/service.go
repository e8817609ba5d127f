// Package sequence hands out formatted bill, voucher and transaction numbers.
package sequence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/societyledger/backend/internal/domain/sequence"
	"github.com/societyledger/backend/internal/infrastructure/telemetry"
)

// Service reserves numbers and renders them as PURPOSE/FY/NNNNNN
type Service struct {
	reserver  sequence.Reserver
	formatter sequence.Formatter
	metrics   *telemetry.BillingMetrics
}

// NewService creates a new sequence Service
func NewService(reserver sequence.Reserver, formatter sequence.Formatter, metrics *telemetry.BillingMetrics) *Service {
	return &Service{reserver: reserver, formatter: formatter, metrics: metrics}
}

// Reserve returns count contiguous numbers for purpose
func (s *Service) Reserve(ctx context.Context, tenantID uuid.UUID, purpose sequence.Purpose, count int) (sequence.Range, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sequence", "reserve")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrPurpose, string(purpose),
		"count", count,
	)

	rng, err := s.reserver.Reserve(ctx, tenantID, purpose, count)
	if err != nil {
		telemetry.RecordError(span, err)
		return sequence.Range{}, err
	}
	s.metrics.RecordSequenceReserved(ctx, string(purpose), int64(rng.Len()))
	markRange(span, rng)
	return rng, nil
}

// ReserveFormatted reserves count numbers and formats them for the financial
// year containing at. The slice is ordered, so index i pairs with recipient i.
func (s *Service) ReserveFormatted(ctx context.Context, tenantID uuid.UUID, purpose sequence.Purpose, count int, at time.Time) ([]string, error) {
	rng, err := s.Reserve(ctx, tenantID, purpose, count)
	if err != nil {
		return nil, err
	}
	return s.formatter.FormatRange(purpose, at, rng), nil
}

// NextFormatted reserves and formats a single number in its own transaction
func (s *Service) NextFormatted(ctx context.Context, tenantID uuid.UUID, purpose sequence.Purpose, at time.Time) (string, error) {
	n, err := s.reserver.Next(ctx, tenantID, purpose)
	if err != nil {
		return "", err
	}
	s.metrics.RecordSequenceReserved(ctx, string(purpose), 1)
	return s.formatter.Format(purpose, at, n), nil
}

// Current returns the last number handed out for purpose
func (s *Service) Current(ctx context.Context, tenantID uuid.UUID, purpose sequence.Purpose) (int64, error) {
	return s.reserver.Current(ctx, tenantID, purpose)
}

func markRange(span trace.Span, rng sequence.Range) {
	telemetry.AddEvent(span, "range_reserved", "start", rng.Start, "end", rng.End)
}
