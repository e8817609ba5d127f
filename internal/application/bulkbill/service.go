// Package bulkbill generates one bill for many flats in a single operation:
// it prices every recipient, reserves bill numbers, settles what wallets can
// cover and posts the run's totals to the ledger.
package bulkbill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/ledger"
	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/domain/sequence"
	"github.com/societyledger/backend/internal/domain/shared"
	"github.com/societyledger/backend/internal/infrastructure/logger"
	"github.com/societyledger/backend/internal/infrastructure/telemetry"
)

// NumberReserver hands out formatted, contiguous document numbers
type NumberReserver interface {
	ReserveFormatted(ctx context.Context, tenantID uuid.UUID, purpose sequence.Purpose, count int, at time.Time) ([]string, error)
}

// Dependencies wires a Service. Idempotency and Metrics are optional.
type Dependencies struct {
	Directory      member.Directory
	Numbers        NumberReserver
	MasterBills    bill.MasterBillRepository
	RecipientBills bill.RecipientBillRepository
	Settler        bill.WalletSettler
	Ledger         LedgerUpdater
	Notifications  bill.NotificationQueue
	Idempotency    shared.IdempotencyStore
	Metrics        *telemetry.BillingMetrics
	Now            func() time.Time
}

// Service runs bulk-bill jobs
type Service struct {
	directory     member.Directory
	numbers       NumberReserver
	masters       bill.MasterBillRepository
	recipients    bill.RecipientBillRepository
	settler       bill.WalletSettler
	ledger        LedgerUpdater
	notifications bill.NotificationQueue
	idempotency   shared.IdempotencyStore
	metrics       *telemetry.BillingMetrics
	cfg           Config
	now           func() time.Time
}

// NewService creates a new bulk-bill Service
func NewService(deps Dependencies, cfg Config) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		directory:     deps.Directory,
		numbers:       deps.Numbers,
		masters:       deps.MasterBills,
		recipients:    deps.RecipientBills,
		settler:       deps.Settler,
		ledger:        deps.Ledger,
		notifications: deps.Notifications,
		idempotency:   deps.Idempotency,
		metrics:       deps.Metrics,
		cfg:           cfg.withDefaults(),
		now:           now,
	}
}

// GenerateBulkBill bills every recipient selected by spec.
//
// An error means nothing was written. Once the master bill exists the call
// always returns a Result; per-recipient and aggregation problems are listed
// in Result.Errors.
func (s *Service) GenerateBulkBill(ctx context.Context, tenantID uuid.UUID, spec bill.Spec) (*Result, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("tenant id is required")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "bulkbill", "generate_bulk_bill")
	defer span.End()
	ctx = logger.WithTenantID(ctx, tenantID.String())
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		"selectors", len(spec.Recipients),
		"items", len(spec.Items),
	)

	claimed, err := s.claim(ctx, tenantID, spec.IdempotencyKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	started := s.now()
	var result *Result
	telemetry.WithOperationLabels(ctx, "generate_bulk_bill", tenantID.String(), func(ctx context.Context) {
		result, err = s.run(ctx, tenantID, spec)
	})
	if err != nil || result.MasterBillID == uuid.Nil {
		s.release(ctx, claimed)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordBulkJob(ctx, tenantID, false, s.now().Sub(started), decimal.Zero, decimal.Zero)
		logger.L(ctx).Error("bulk bill aborted before any bill was written", zap.Error(err))
		return nil, err
	}

	s.metrics.RecordBulkJob(ctx, tenantID, result.Success, s.now().Sub(started), result.TotalBillAmount, result.TotalPaidAmount)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrMasterBillID, result.MasterBillID.String(),
		telemetry.SpanAttrRecipients, result.ProcessedCount,
		"paid", result.PaidCount,
		"unpaid", result.UnpaidCount,
		"errors", len(result.Errors),
	)
	if result.Success {
		telemetry.SetOK(span)
	}
	logger.L(ctx).Info("bulk bill finished",
		zap.String("master_bill_id", result.MasterBillID.String()),
		zap.Bool("success", result.Success),
		zap.Int("processed", result.ProcessedCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Int("paid", result.PaidCount),
		zap.Int("unpaid", result.UnpaidCount),
		zap.Int("failed", result.FailedCount),
		zap.String("total_bill_amount", result.TotalBillAmount.String()),
		zap.String("total_paid_amount", result.TotalPaidAmount.String()),
	)
	return result, nil
}

func (s *Service) run(ctx context.Context, tenantID uuid.UUID, spec bill.Spec) (*Result, error) {
	res := &Result{TotalBillAmount: decimal.Zero, TotalPaidAmount: decimal.Zero}

	pre := s.preload(ctx, tenantID, spec.Recipients, spec.Items)
	res.SkippedCount = pre.Skipped
	for _, e := range pre.Errors {
		res.addError(e)
	}
	s.metrics.RecordRecipients(ctx, tenantID, "skipped", pre.Skipped)
	if len(pre.Recipients) == 0 {
		logger.L(ctx).Warn("no billable recipients", zap.Int("skipped", pre.Skipped), zap.Int("errors", len(pre.Errors)))
		s.recordStageErrors(ctx, res)
		return res, nil
	}

	recs := pre.Recipients
	numbers, err := s.numbers.ReserveFormatted(ctx, tenantID, sequence.PurposeBill, len(recs), spec.InvoiceDate)
	if err != nil {
		return nil, fmt.Errorf("reserve bill numbers: %w", err)
	}

	keys := make([]member.FlatKey, len(recs))
	total := decimal.Zero
	for i, r := range recs {
		keys[i] = r.Flat.Key
		total = total.Add(r.Amount)
	}
	master, err := bill.NewMasterBill(tenantID, spec, keys, numbers, total)
	if err != nil {
		return nil, err
	}
	if err := s.masters.Create(ctx, master); err != nil {
		return nil, fmt.Errorf("create master bill: %w", err)
	}
	res.MasterBillID = master.ID
	res.TotalBillAmount = total
	ctx = logger.WithMasterBillID(ctx, master.ID.String())

	// from here on bills exist, so the remaining steps run to completion
	// even if the caller gives up
	work := context.WithoutCancel(ctx)

	acc := newAccumulator()
	writer := newRecipientWriter(work, s.recipients, s.cfg.WriterBatchSize, s.cfg.WriterQueueSize)
	outcomes := s.fanOut(ctx, settlementRun{writer: writer, acc: acc}, master, recs)
	_, dead := writer.Close()

	for i, out := range outcomes {
		res.ProcessedCount++
		switch out.State {
		case statePaid:
			res.PaidCount++
		case stateUnpaid:
			res.UnpaidCount++
		}
		if out.Failed {
			res.FailedCount++
			res.addError(BatchError{Stage: StageSettlement, Recipient: recs[i].Flat.Key.String(), Message: out.Err.Error()})
		}
	}

	for _, dl := range dead {
		if dl.Bill.Status == bill.StatusUnpaid {
			acc.dropUnpaid(dl.Bill.BillItemTotals)
			res.UnpaidCount--
		} else {
			res.PaidCount--
		}
		res.FailedCount++
		res.addError(BatchError{Stage: StageWrite, Recipient: dl.Bill.FlatKey.String(), Message: dl.Err.Error()})
	}
	if len(dead) > 0 {
		s.metrics.RecordDeadLetters(work, len(dead))
		logger.L(work).Error("recipient bills dead-lettered", zap.Int("count", len(dead)))
	}

	totals := acc.totals()
	for _, e := range s.aggregate(work, tenantID, ledger.Day(spec.InvoiceDate), totals) {
		res.addError(e)
	}

	res.TotalPaidAmount = totals.Paid
	if err := s.finalize(work, master, totals.Paid); err != nil {
		res.addError(BatchError{Stage: StageFinalize, Message: err.Error()})
	}
	res.Success = !res.hasStage(StageAggregation) && !res.hasStage(StageFinalize)

	job := bill.PendingJob{MasterBillID: master.ID, Name: master.Name, CreatedAt: s.now().UTC()}
	if err := s.notifications.Enqueue(work, tenantID, job); err != nil {
		logger.L(work).Error("notification hand-off failed", zap.Error(err))
		res.addError(BatchError{Stage: StageNotification, Message: err.Error()})
	}

	s.metrics.RecordRecipients(work, tenantID, "paid", res.PaidCount)
	s.metrics.RecordRecipients(work, tenantID, "unpaid", res.UnpaidCount)
	s.metrics.RecordRecipients(work, tenantID, "failed", res.FailedCount)
	s.recordStageErrors(work, res)
	return res, nil
}

// fanOut settles recipients in chunks of cfg.Concurrency. Each chunk is
// awaited before the next starts; outcomes are index-aligned with recs.
func (s *Service) fanOut(ctx context.Context, run settlementRun, master *bill.MasterBill, recs []recipient) []settlementOutcome {
	outcomes := make([]settlementOutcome, len(recs))
	date := ledger.Day(master.InvoiceDate)
	for start := 0; start < len(recs); start += s.cfg.Concurrency {
		end := min(start+s.cfg.Concurrency, len(recs))
		var g errgroup.Group
		g.SetLimit(s.cfg.Concurrency)
		for i := start; i < end; i++ {
			task := settlementTask{
				TenantID:     master.TenantID,
				MasterBillID: master.ID,
				BillNumber:   master.BillNumbers[i],
				DueDate:      master.DueDate,
				Date:         date,
				Recipient:    recs[i],
			}
			g.Go(func() error {
				outcomes[i] = s.settle(ctx, run, task)
				return nil
			})
		}
		_ = g.Wait()
	}
	return outcomes
}

func (s *Service) finalize(ctx context.Context, master *bill.MasterBill, paid decimal.Decimal) error {
	if err := master.RecordPaid(paid); err != nil {
		return err
	}
	if err := s.masters.UpdatePaidTotal(ctx, master); err != nil {
		logger.L(ctx).Error("failed to record paid total",
			zap.String("total_paid_amount", paid.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) recordStageErrors(ctx context.Context, res *Result) {
	for _, e := range res.Errors {
		s.metrics.RecordStageError(ctx, e.Stage)
	}
}

// claim marks the request key as accepted. A store outage does not block
// billing; the key is then simply not enforced.
func (s *Service) claim(ctx context.Context, tenantID uuid.UUID, key string) (string, error) {
	if s.idempotency == nil || key == "" {
		return "", nil
	}
	scoped := tenantID.String() + ":" + key
	fresh, err := s.idempotency.MarkProcessed(ctx, scoped, s.cfg.IdempotencyTTL)
	if err != nil {
		logger.L(ctx).Warn("idempotency store unavailable", zap.String("idempotency_key", key), zap.Error(err))
		return "", nil
	}
	if !fresh {
		return "", shared.NewDomainError(shared.CodeDuplicateRequest,
			fmt.Sprintf("bulk bill request %q has already been accepted", key))
	}
	return scoped, nil
}

func (s *Service) release(ctx context.Context, scoped string) {
	if scoped == "" {
		return
	}
	if err := s.idempotency.Release(context.WithoutCancel(ctx), scoped); err != nil {
		logger.L(ctx).Warn("failed to release idempotency key", zap.String("idempotency_key", scoped), zap.Error(err))
	}
}

// GetMasterBill returns one master bill
func (s *Service) GetMasterBill(ctx context.Context, tenantID, id uuid.UUID) (*MasterBillResponse, error) {
	m, err := s.masters.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToMasterBillResponse(m)
	return &resp, nil
}

// ListRecipientBills pages through the recipient bills of a master bill
func (s *Service) ListRecipientBills(ctx context.Context, tenantID, masterBillID uuid.UUID, filter shared.Filter) (shared.Paginated[RecipientBillResponse], error) {
	if _, err := s.masters.FindByID(ctx, tenantID, masterBillID); err != nil {
		return shared.Paginated[RecipientBillResponse]{}, err
	}
	bills, total, err := s.recipients.ListByMasterBill(ctx, tenantID, masterBillID, filter)
	if err != nil {
		return shared.Paginated[RecipientBillResponse]{}, err
	}
	items := make([]RecipientBillResponse, len(bills))
	for i := range bills {
		items[i] = ToRecipientBillResponse(&bills[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}
