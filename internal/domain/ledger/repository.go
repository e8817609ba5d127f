package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository stores ledger accounts and their daily deltas.
//
// Apply is the only write path. Calls on different accounts proceed
// independently; calls on the same account are serialized by the store and
// retried on write conflicts.
type Repository interface {
	Apply(ctx context.Context, p Posting) (*Account, error)
	FindAccount(ctx context.Context, tenantID uuid.UUID, key AccountKey) (*Account, error)
	ListAccounts(ctx context.Context, tenantID uuid.UUID, group string) ([]Account, error)
	ListDailyDeltas(ctx context.Context, tenantID uuid.UUID, key AccountKey, from, to time.Time) ([]DailyDelta, error)
	SumDailyDeltas(ctx context.Context, tenantID uuid.UUID, key AccountKey) (decimal.Decimal, int, error)
}
