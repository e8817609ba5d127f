package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyledger/backend/internal/domain/ledger"
	"github.com/societyledger/backend/internal/domain/shared"
)

func newLedgerRepo(t *testing.T) *GormLedgerRepository {
	t.Helper()
	return NewGormLedgerRepository(newSQLiteDB(t), testRetryPolicy())
}

func posting(t *testing.T, tenantID uuid.UUID, amount int64, dir ledger.Direction, day int) ledger.Posting {
	t.Helper()
	p, err := ledger.NewPosting(tenantID, "Income", "Maintenance", dec(amount), dir, billingDay.AddDate(0, 0, day))
	require.NoError(t, err)
	return p
}

func TestGormLedgerRepository_Apply_CreatesAccountLazily(t *testing.T) {
	repo := newLedgerRepo(t)
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := repo.FindAccount(ctx, tenantID, ledger.NewAccountKey("Income", "Maintenance"))
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	acct, err := repo.Apply(ctx, posting(t, tenantID, 120, ledger.DirectionAdd, 0))
	require.NoError(t, err)
	assert.True(t, acct.TotalBalance.Equal(dec(120)))
	require.NotNil(t, acct.LastUpdatedDate)
	assert.Equal(t, billingDay, *acct.LastUpdatedDate)

	stored, err := repo.FindAccount(ctx, tenantID, ledger.NewAccountKey("Income", "Maintenance"))
	require.NoError(t, err)
	assert.True(t, stored.TotalBalance.Equal(dec(120)))
}

func TestGormLedgerRepository_Apply_AddThenSubtractRoundTrips(t *testing.T) {
	repo := newLedgerRepo(t)
	ctx := context.Background()
	tenantID := uuid.New()
	key := ledger.NewAccountKey("Income", "Maintenance")

	_, err := repo.Apply(ctx, posting(t, tenantID, 500, ledger.DirectionAdd, 0))
	require.NoError(t, err)
	before, err := repo.ListDailyDeltas(ctx, tenantID, key, billingDay, billingDay)
	require.NoError(t, err)
	require.Len(t, before, 1)

	_, err = repo.Apply(ctx, posting(t, tenantID, 75, ledger.DirectionAdd, 0))
	require.NoError(t, err)
	acct, err := repo.Apply(ctx, posting(t, tenantID, 75, ledger.DirectionSubtract, 0))
	require.NoError(t, err)

	assert.True(t, acct.TotalBalance.Equal(dec(500)))
	after, err := repo.ListDailyDeltas(ctx, tenantID, key, billingDay, billingDay)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.True(t, after[0].Change.Equal(before[0].Change))
}

func TestGormLedgerRepository_TotalEqualsSumOfDeltas(t *testing.T) {
	repo := newLedgerRepo(t)
	ctx := context.Background()
	tenantID := uuid.New()
	key := ledger.NewAccountKey("Income", "Maintenance")

	steps := []struct {
		amount int64
		dir    ledger.Direction
		day    int
	}{
		{100, ledger.DirectionAdd, 0},
		{40, ledger.DirectionSubtract, 0},
		{250, ledger.DirectionAdd, 3},
		{10, ledger.DirectionSubtract, 1},
		{90, ledger.DirectionSubtract, 3},
	}
	for _, s := range steps {
		_, err := repo.Apply(ctx, posting(t, tenantID, s.amount, s.dir, s.day))
		require.NoError(t, err)
	}

	acct, err := repo.FindAccount(ctx, tenantID, key)
	require.NoError(t, err)
	sum, days, err := repo.SumDailyDeltas(ctx, tenantID, key)
	require.NoError(t, err)

	assert.Equal(t, 3, days)
	assert.True(t, sum.Equal(dec(210)), "sum %s", sum)
	assert.True(t, acct.TotalBalance.Equal(sum))
	require.NotNil(t, acct.LastUpdatedDate)
	assert.Equal(t, billingDay.AddDate(0, 0, 3), *acct.LastUpdatedDate)
}

func TestGormLedgerRepository_Apply_OlderDateKeepsLastUpdated(t *testing.T) {
	repo := newLedgerRepo(t)
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := repo.Apply(ctx, posting(t, tenantID, 10, ledger.DirectionAdd, 5))
	require.NoError(t, err)
	acct, err := repo.Apply(ctx, posting(t, tenantID, 10, ledger.DirectionAdd, 1))
	require.NoError(t, err)

	require.NotNil(t, acct.LastUpdatedDate)
	assert.Equal(t, billingDay.AddDate(0, 0, 5), *acct.LastUpdatedDate)
}

func TestGormLedgerRepository_Apply_RejectsInvalidPosting(t *testing.T) {
	repo := newLedgerRepo(t)

	_, err := repo.Apply(context.Background(), ledger.Posting{
		TenantID:  uuid.New(),
		Key:       ledger.NewAccountKey("Income", "Maintenance"),
		Amount:    dec(0),
		Direction: ledger.DirectionAdd,
		Date:      billingDay,
	})
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, shared.CodeValidation, domainErr.Code)
}

func TestGormLedgerRepository_Apply_ConcurrentSameAccount(t *testing.T) {
	repo := newLedgerRepo(t)
	ctx := context.Background()
	tenantID := uuid.New()

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Apply(ctx, posting(t, tenantID, 5, ledger.DirectionAdd, i%2))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	acct, err := repo.FindAccount(ctx, tenantID, ledger.NewAccountKey("Income", "Maintenance"))
	require.NoError(t, err)
	assert.True(t, acct.TotalBalance.Equal(dec(100)))
	sum, _, err := repo.SumDailyDeltas(ctx, tenantID, acct.Key)
	require.NoError(t, err)
	assert.True(t, sum.Equal(dec(100)))
}

func TestGormLedgerRepository_ListAccounts_FiltersByGroup(t *testing.T) {
	repo := newLedgerRepo(t)
	ctx := context.Background()
	tenantID := uuid.New()

	for _, k := range []ledger.AccountKey{
		ledger.NewAccountKey(ledger.GroupAccountReceivable, "Maintenance"),
		ledger.NewAccountKey(ledger.GroupAccountReceivable, "Water"),
		ledger.NewAccountKey("Income", "Water"),
	} {
		p, err := ledger.NewPosting(tenantID, k.Group, k.Account, dec(1), ledger.DirectionAdd, billingDay)
		require.NoError(t, err)
		_, err = repo.Apply(ctx, p)
		require.NoError(t, err)
	}

	receivables, err := repo.ListAccounts(ctx, tenantID, ledger.GroupAccountReceivable)
	require.NoError(t, err)
	require.Len(t, receivables, 2)
	assert.Equal(t, "Maintenance", receivables[0].Key.Account)
	assert.Equal(t, "Water", receivables[1].Key.Account)

	all, err := repo.ListAccounts(ctx, tenantID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	other, err := repo.ListAccounts(ctx, uuid.New(), "")
	require.NoError(t, err)
	assert.Empty(t, other)
}
