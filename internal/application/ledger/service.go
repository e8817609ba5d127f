// Package ledger is the application side of the ledger account store: the
// UpdateLedger primitive used by bulk billing and by payment flows, plus
// read and reconciliation queries.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/societyledger/backend/internal/domain/ledger"
	"github.com/societyledger/backend/internal/domain/shared"
	"github.com/societyledger/backend/internal/infrastructure/logger"
	"github.com/societyledger/backend/internal/infrastructure/telemetry"
)

// Service posts to ledger accounts and answers balance queries
type Service struct {
	repo    ledger.Repository
	metrics *telemetry.BillingMetrics
}

// NewService creates a new ledger Service
func NewService(repo ledger.Repository, metrics *telemetry.BillingMetrics) *Service {
	return &Service{repo: repo, metrics: metrics}
}

// UpdateLedger validates the request and applies it as one atomic posting
func (s *Service) UpdateLedger(ctx context.Context, req UpdateLedgerRequest) (*AccountResponse, error) {
	p, err := ledger.NewPosting(req.TenantID, req.LedgerGroup, req.LedgerAccount, req.Amount, req.Direction, req.Date)
	if err != nil {
		return nil, err
	}
	acct, err := s.Apply(ctx, p)
	if err != nil {
		return nil, err
	}
	resp := ToAccountResponse(acct)
	return &resp, nil
}

// Apply posts p. Conflicting writers on the same account are retried by the
// store; exhaustion surfaces as TRANSIENT_STORAGE_ERROR with nothing written.
func (s *Service) Apply(ctx context.Context, p ledger.Posting) (*ledger.Account, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "update_ledger")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, p.TenantID.String(),
		telemetry.SpanAttrLedgerKey, p.Key.String(),
		telemetry.SpanAttrAmount, p.Amount.String(),
		telemetry.SpanAttrDirection, string(p.Direction),
	)

	acct, err := s.repo.Apply(ctx, p)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrTransientStorage) {
			s.metrics.RecordLedgerConflict(ctx)
			logger.L(ctx).Warn("ledger update abandoned after retries",
				zap.String("ledger_key", p.Key.String()),
				zap.String("amount", p.Amount.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.metrics.RecordLedgerPosting(ctx, string(p.Direction))
	telemetry.SetOK(span)
	return acct, nil
}

// GetAccount returns one account
func (s *Service) GetAccount(ctx context.Context, tenantID uuid.UUID, group, account string) (*AccountResponse, error) {
	key, err := accountKey(group, account)
	if err != nil {
		return nil, err
	}
	acct, err := s.repo.FindAccount(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	resp := ToAccountResponse(acct)
	return &resp, nil
}

// ListAccounts lists accounts, optionally within one group
func (s *Service) ListAccounts(ctx context.Context, tenantID uuid.UUID, group string) ([]AccountResponse, error) {
	accounts, err := s.repo.ListAccounts(ctx, tenantID, group)
	if err != nil {
		return nil, err
	}
	out := make([]AccountResponse, len(accounts))
	for i := range accounts {
		out[i] = ToAccountResponse(&accounts[i])
	}
	return out, nil
}

// ListDailyDeltas returns the account's deltas between from and to inclusive
func (s *Service) ListDailyDeltas(ctx context.Context, tenantID uuid.UUID, group, account string, from, to time.Time) ([]DailyDeltaResponse, error) {
	key, err := accountKey(group, account)
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, shared.NewValidationError("'to' is before 'from'")
	}
	deltas, err := s.repo.ListDailyDeltas(ctx, tenantID, key, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]DailyDeltaResponse, len(deltas))
	for i, d := range deltas {
		out[i] = DailyDeltaResponse{Date: d.Date.Format(ledger.DayLayout), Change: d.Change}
	}
	return out, nil
}

// Reconcile recomputes the balance from the daily deltas and reports drift
func (s *Service) Reconcile(ctx context.Context, tenantID uuid.UUID, group, account string) (*ReconcileResponse, error) {
	key, err := accountKey(group, account)
	if err != nil {
		return nil, err
	}
	acct, err := s.repo.FindAccount(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	sum, days, err := s.repo.SumDailyDeltas(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}

	drift := ledger.Drift{
		Key:          key,
		TotalBalance: acct.TotalBalance,
		SumOfDeltas:  sum,
		Difference:   acct.TotalBalance.Sub(sum),
		Days:         days,
	}
	if !drift.Balanced() {
		logger.L(ctx).Error("ledger drift detected",
			zap.String("ledger_key", key.String()),
			zap.String("total_balance", drift.TotalBalance.String()),
			zap.String("sum_of_deltas", drift.SumOfDeltas.String()),
		)
	}
	resp := toReconcileResponse(drift)
	return &resp, nil
}

func accountKey(group, account string) (ledger.AccountKey, error) {
	key := ledger.NewAccountKey(group, account)
	if key.Group == "" || key.Account == "" {
		return ledger.AccountKey{}, shared.NewValidationError("ledger group and account are required")
	}
	return key, nil
}
