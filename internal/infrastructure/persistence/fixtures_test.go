package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/societyledger/backend/internal/domain/member"
)

var billingDay = time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC)

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}
}

func seedFlat(t *testing.T, db *gorm.DB, tenantID uuid.UUID, key member.FlatKey, class member.Classification, wallet int64) *member.Flat {
	t.Helper()

	flat, err := member.NewFlat(tenantID, key, class, "Member "+key.String())
	require.NoError(t, err)
	flat.WalletBalance = decimal.NewFromInt(wallet)
	require.NoError(t, NewGormFlatRepository(db).Save(context.Background(), flat))
	return flat
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
