package bulkbill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/infrastructure/logger"
)

// settlementState is where a recipient's settlement ended up.
//
//	preloaded -> attempting -> paid
//	                        -> insufficient_balance -> unpaid
//	                        -> failed -> unpaid
type settlementState int

const (
	statePreloaded settlementState = iota
	stateAttempting
	statePaid
	stateInsufficientBalance
	stateFailed
	stateUnpaid
)

func (s settlementState) String() string {
	switch s {
	case statePreloaded:
		return "preloaded"
	case stateAttempting:
		return "attempting"
	case statePaid:
		return "paid"
	case stateInsufficientBalance:
		return "insufficient_balance"
	case stateFailed:
		return "failed"
	case stateUnpaid:
		return "unpaid"
	}
	return "unknown"
}

// settlementTask is one recipient's share of a run
type settlementTask struct {
	TenantID     uuid.UUID
	MasterBillID uuid.UUID
	BillNumber   string
	DueDate      time.Time
	Date         time.Time
	Recipient    recipient
}

// settlementOutcome is what a task reports to the fan-in. Failed is true
// when the wallet path gave up on an error; the recipient is then billed as
// unpaid and Err says why.
type settlementOutcome struct {
	State    settlementState
	Paid     decimal.Decimal
	Attempts int
	Failed   bool
	Err      error
}

// settlementRun holds what every task of one run shares
type settlementRun struct {
	writer *recipientWriter
	acc    *accumulator
}

// settle drives one recipient through the state machine. It never returns
// with the recipient half written: either the wallet transaction committed
// the paid bill, or an unpaid bill was queued and its amounts accumulated.
func (s *Service) settle(ctx context.Context, run settlementRun, task settlementTask) settlementOutcome {
	out := settlementOutcome{State: statePreloaded, Paid: decimal.Zero}
	rec := task.Recipient

	if rec.Amount.IsZero() {
		rb := bill.NewPaidRecipientBill(task.TenantID, task.MasterBillID, rec.Flat.Key, task.BillNumber, decimal.Zero, task.DueDate, rec.Allocation)
		run.writer.Enqueue(rb)
		out.State = statePaid
		return out
	}

	out.State = stateAttempting
	cmd := bill.WalletSettlementCommand{
		TenantID:     task.TenantID,
		MasterBillID: task.MasterBillID,
		FlatKey:      rec.Flat.Key,
		BillNumber:   task.BillNumber,
		Amount:       rec.Amount,
		DueDate:      task.DueDate,
		Date:         task.Date,
		Allocation:   rec.Allocation,
	}

	// an attempt that has started runs to its end so its commit is never
	// mistaken for a failure; a gone caller only stops further attempts
	attemptCtx := context.WithoutCancel(ctx)
	var lastErr error
	for out.State == stateAttempting {
		if err := ctx.Err(); err != nil {
			lastErr = err
			out.State = stateFailed
			break
		}
		out.Attempts++
		res, err := s.settler.SettleFromWallet(attemptCtx, cmd)
		retry := out.Attempts > 1
		switch {
		case err == nil && res.Outcome == bill.OutcomePaid:
			s.metrics.RecordSettlementAttempt(ctx, string(bill.OutcomePaid), retry)
			if res.Replayed {
				logger.L(ctx).Info("wallet settlement already committed by an earlier attempt",
					zap.String("flat", rec.Flat.Key.String()),
					zap.Int("attempt", out.Attempts),
				)
			}
			run.acc.addPaid(rec.Amount)
			out.State = statePaid
			out.Paid = rec.Amount
			return out
		case err == nil:
			s.metrics.RecordSettlementAttempt(ctx, string(bill.OutcomeInsufficientBalance), retry)
			out.State = stateInsufficientBalance
		default:
			s.metrics.RecordSettlementAttempt(ctx, "error", retry)
			lastErr = err
			if out.Attempts >= s.cfg.MaxSettlementAttempts || ctx.Err() != nil {
				out.State = stateFailed
				break
			}
			logger.L(ctx).Debug("wallet settlement attempt failed",
				zap.String("flat", rec.Flat.Key.String()),
				zap.Int("attempt", out.Attempts),
				zap.Error(err),
			)
			if !s.pause(ctx, time.Duration(out.Attempts)*s.cfg.SettlementBackoff) {
				out.State = stateFailed
			}
		}
	}

	if out.State == stateFailed {
		out.Failed = true
		out.Err = fmt.Errorf("wallet settlement failed after %d attempts: %w", out.Attempts, lastErr)
		logger.L(ctx).Warn("falling back to unpaid bill",
			zap.String("flat", rec.Flat.Key.String()),
			zap.Error(out.Err),
		)
	}

	rb := bill.NewUnpaidRecipientBill(task.TenantID, task.MasterBillID, rec.Flat.Key, task.BillNumber, rec.Amount, task.DueDate, rec.Allocation)
	run.writer.Enqueue(rb)
	run.acc.addUnpaid(rec.Allocation)
	out.State = stateUnpaid
	return out
}

// pause waits d unless ctx ends first
func (s *Service) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
