package bulkbill

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/societyledger/backend/internal/domain/ledger"
	"github.com/societyledger/backend/internal/infrastructure/logger"
)

// LedgerUpdater applies one posting atomically
type LedgerUpdater interface {
	Apply(ctx context.Context, p ledger.Posting) (*ledger.Account, error)
}

// aggregate posts the run's accumulated amounts to the ledger: item buckets,
// then receivable buckets, then one Members Advanced subtraction for what
// wallets paid. A failed bucket is reported and the rest still go through.
func (s *Service) aggregate(ctx context.Context, tenantID uuid.UUID, date time.Time, totals ledgerTotals) []BatchError {
	var errs []BatchError

	post := func(key ledger.AccountKey, amount decimal.Decimal, dir ledger.Direction) {
		if !amount.IsPositive() {
			return
		}
		p, err := ledger.NewPosting(tenantID, key.Group, key.Account, amount, dir, date)
		if err == nil {
			_, err = s.ledger.Apply(ctx, p)
		}
		if err != nil {
			logger.L(ctx).Error("ledger aggregation failed",
				zap.String("bucket", key.String()),
				zap.String("amount", amount.String()),
				zap.Error(err),
			)
			errs = append(errs, BatchError{Stage: StageAggregation, Bucket: key.String(), Message: err.Error()})
		}
	}

	for _, key := range totals.Items.Keys() {
		post(key, totals.Items[key], ledger.DirectionAdd)
	}
	for _, key := range totals.Receivables.Keys() {
		post(key, totals.Receivables[key], ledger.DirectionAdd)
	}
	post(ledger.NewAccountKey(ledger.GroupCurrentLiabilities, ledger.AccountMembersAdvanced), totals.Paid, ledger.DirectionSubtract)

	return errs
}
