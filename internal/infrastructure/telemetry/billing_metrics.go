package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	AttrTenantID  = attribute.Key("tenant_id")
	AttrOutcome   = attribute.Key("outcome")
	AttrStage     = attribute.Key("stage")
	AttrDirection = attribute.Key("direction")
	AttrPurpose   = attribute.Key("purpose")
)

// BillingMetrics records bulk-bill, settlement and ledger activity. A nil
// *BillingMetrics is valid and records nothing.
type BillingMetrics struct {
	bulkJobs          metric.Int64Counter
	bulkJobDuration   metric.Float64Histogram
	recipients        metric.Int64Counter
	settlements       metric.Int64Counter
	settlementRetries metric.Int64Counter
	billedAmount      metric.Float64Counter
	paidAmount        metric.Float64Counter
	stageErrors       metric.Int64Counter
	ledgerPostings    metric.Int64Counter
	ledgerConflicts   metric.Int64Counter
	sequenceReserved  metric.Int64Counter
	deadLetters       metric.Int64Counter
}

// NewBillingMetrics creates the instruments on meter
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	m := &BillingMetrics{}
	var err error

	if m.bulkJobs, err = meter.Int64Counter("billing.bulk_jobs",
		metric.WithDescription("Bulk bill generations run"), metric.WithUnit("{job}")); err != nil {
		return nil, err
	}
	if m.bulkJobDuration, err = meter.Float64Histogram("billing.bulk_job.duration",
		metric.WithDescription("Wall time of a bulk bill generation"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120)); err != nil {
		return nil, err
	}
	if m.recipients, err = meter.Int64Counter("billing.recipients",
		metric.WithDescription("Recipients processed by outcome"), metric.WithUnit("{recipient}")); err != nil {
		return nil, err
	}
	if m.settlements, err = meter.Int64Counter("billing.settlements",
		metric.WithDescription("Wallet settlement attempts by outcome"), metric.WithUnit("{attempt}")); err != nil {
		return nil, err
	}
	if m.settlementRetries, err = meter.Int64Counter("billing.settlement.retries",
		metric.WithDescription("Wallet settlement attempts that were retried"), metric.WithUnit("{attempt}")); err != nil {
		return nil, err
	}
	if m.billedAmount, err = meter.Float64Counter("billing.amount.billed",
		metric.WithDescription("Total amount billed")); err != nil {
		return nil, err
	}
	if m.paidAmount, err = meter.Float64Counter("billing.amount.paid_from_wallet",
		metric.WithDescription("Total amount settled from wallets")); err != nil {
		return nil, err
	}
	if m.stageErrors, err = meter.Int64Counter("billing.errors",
		metric.WithDescription("Per-recipient and aggregation errors by stage"), metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.ledgerPostings, err = meter.Int64Counter("ledger.postings",
		metric.WithDescription("Ledger postings applied"), metric.WithUnit("{posting}")); err != nil {
		return nil, err
	}
	if m.ledgerConflicts, err = meter.Int64Counter("ledger.conflicts",
		metric.WithDescription("Ledger postings that hit a write conflict"), metric.WithUnit("{conflict}")); err != nil {
		return nil, err
	}
	if m.sequenceReserved, err = meter.Int64Counter("sequence.reserved",
		metric.WithDescription("Sequence numbers handed out"), metric.WithUnit("{number}")); err != nil {
		return nil, err
	}
	if m.deadLetters, err = meter.Int64Counter("billing.writer.dead_letters",
		metric.WithDescription("Recipient bills the buffered writer could not persist"), metric.WithUnit("{bill}")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordBulkJob records one finished generation
func (m *BillingMetrics) RecordBulkJob(ctx context.Context, tenantID uuid.UUID, success bool, elapsed time.Duration, billed, paid decimal.Decimal) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "partial"
	}
	attrs := metric.WithAttributes(AttrTenantID.String(tenantID.String()), AttrOutcome.String(outcome))
	m.bulkJobs.Add(ctx, 1, attrs)
	m.bulkJobDuration.Record(ctx, elapsed.Seconds(), attrs)

	tenant := metric.WithAttributes(AttrTenantID.String(tenantID.String()))
	m.billedAmount.Add(ctx, billed.InexactFloat64(), tenant)
	m.paidAmount.Add(ctx, paid.InexactFloat64(), tenant)
}

// RecordRecipients counts recipients that ended in outcome
func (m *BillingMetrics) RecordRecipients(ctx context.Context, tenantID uuid.UUID, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.recipients.Add(ctx, int64(n), metric.WithAttributes(AttrTenantID.String(tenantID.String()), AttrOutcome.String(outcome)))
}

// RecordSettlementAttempt counts one wallet transaction attempt
func (m *BillingMetrics) RecordSettlementAttempt(ctx context.Context, outcome string, retry bool) {
	if m == nil {
		return
	}
	m.settlements.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
	if retry {
		m.settlementRetries.Add(ctx, 1)
	}
}

// RecordStageError counts an error reported in a bulk result
func (m *BillingMetrics) RecordStageError(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.stageErrors.Add(ctx, 1, metric.WithAttributes(AttrStage.String(stage)))
}

// RecordLedgerPosting counts an applied posting
func (m *BillingMetrics) RecordLedgerPosting(ctx context.Context, direction string) {
	if m == nil {
		return
	}
	m.ledgerPostings.Add(ctx, 1, metric.WithAttributes(AttrDirection.String(direction)))
}

// RecordLedgerConflict counts a posting abandoned after retries
func (m *BillingMetrics) RecordLedgerConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.ledgerConflicts.Add(ctx, 1)
}

// RecordSequenceReserved counts numbers reserved for purpose
func (m *BillingMetrics) RecordSequenceReserved(ctx context.Context, purpose string, n int64) {
	if m == nil {
		return
	}
	m.sequenceReserved.Add(ctx, n, metric.WithAttributes(AttrPurpose.String(purpose)))
}

// RecordDeadLetters counts bills dropped by the writer
func (m *BillingMetrics) RecordDeadLetters(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.deadLetters.Add(ctx, int64(n))
}
