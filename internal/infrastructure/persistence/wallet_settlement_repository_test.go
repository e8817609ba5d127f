package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/ledger"
	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/domain/sequence"
	"github.com/societyledger/backend/internal/domain/shared"
	"github.com/societyledger/backend/internal/infrastructure/persistence/models"
)

func newWalletSettler(db *gorm.DB) (*GormWalletSettlementRepository, *GormSequenceRepository) {
	seqs := NewGormSequenceRepository(db, testRetryPolicy())
	return NewGormWalletSettlementRepository(db, seqs, sequence.DefaultFormatter()), seqs
}

func settlementCommand(tenantID uuid.UUID, key member.FlatKey, amount int64) bill.WalletSettlementCommand {
	alloc := bill.Allocation{}
	alloc.Add(ledger.NewAccountKey("Income", "Maintenance"), dec(amount))
	return bill.WalletSettlementCommand{
		TenantID:     tenantID,
		MasterBillID: uuid.New(),
		FlatKey:      key,
		BillNumber:   "BILL/2026-27/000001",
		Amount:       dec(amount),
		DueDate:      billingDay.AddDate(0, 0, 15),
		Date:         billingDay,
		Allocation:   alloc,
	}
}

func TestGormWalletSettlementRepository_PaysFromWallet(t *testing.T) {
	db := newSQLiteDB(t)
	settler, seqs := newWalletSettler(db)
	ctx := context.Background()
	tenantID := uuid.New()
	key := member.NewFlatKey("A", "1", "101")
	flat := seedFlat(t, db, tenantID, key, member.ClassificationOwner, 150)

	cmd := settlementCommand(tenantID, key, 100)
	res, err := settler.SettleFromWallet(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, bill.OutcomePaid, res.Outcome)
	assert.Equal(t, "TXN/2026-27/000001", res.TransactionID)
	assert.Equal(t, "VCH/2026-27/000001", res.VoucherNumber)
	assert.True(t, res.BalanceAfter.Equal(dec(50)))

	stored, err := NewGormFlatRepository(db).FindByKey(ctx, tenantID, key)
	require.NoError(t, err)
	assert.True(t, stored.WalletBalance.Equal(dec(50)))

	var rb models.RecipientBillModel
	require.NoError(t, db.Where("id = ?", res.RecipientBillID).Take(&rb).Error)
	assert.Equal(t, bill.StatusPaid, rb.Status)
	assert.True(t, rb.Amount.IsZero())
	assert.True(t, rb.OriginalAmount.Equal(dec(100)))
	assert.Equal(t, cmd.MasterBillID, rb.MasterBillID)

	var record models.SettlementRecordModel
	require.NoError(t, db.Where("tenant_id = ?", tenantID).Take(&record).Error)
	settled := record.ToDomain()
	assert.Equal(t, bill.SettlementCleared, settled.Status)
	assert.Equal(t, []string{cmd.BillNumber}, settled.BillNumbers)
	assert.True(t, settled.Amount.Equal(dec(100)))

	var delta models.WalletDailyDeltaModel
	require.NoError(t, db.Where("flat_id = ?", flat.ID).Take(&delta).Error)
	assert.Equal(t, "2026-05-10", delta.PostingDay)
	assert.True(t, delta.Change.Equal(dec(-100)))

	txn, err := seqs.Current(ctx, tenantID, sequence.PurposeTransaction)
	require.NoError(t, err)
	assert.Equal(t, int64(1), txn)
}

func TestGormWalletSettlementRepository_InsufficientBalanceWritesNothing(t *testing.T) {
	db := newSQLiteDB(t)
	settler, seqs := newWalletSettler(db)
	ctx := context.Background()
	tenantID := uuid.New()
	key := member.NewFlatKey("A", "1", "102")
	seedFlat(t, db, tenantID, key, member.ClassificationOwner, 40)

	res, err := settler.SettleFromWallet(ctx, settlementCommand(tenantID, key, 100))
	require.NoError(t, err)
	assert.Equal(t, bill.OutcomeInsufficientBalance, res.Outcome)
	assert.True(t, res.BalanceAfter.Equal(dec(40)))

	stored, err := NewGormFlatRepository(db).FindByKey(ctx, tenantID, key)
	require.NoError(t, err)
	assert.True(t, stored.WalletBalance.Equal(dec(40)))

	for _, m := range []any{&models.RecipientBillModel{}, &models.SettlementRecordModel{}, &models.WalletDailyDeltaModel{}} {
		var n int64
		require.NoError(t, db.Model(m).Count(&n).Error)
		assert.Zero(t, n)
	}

	for _, p := range []sequence.Purpose{sequence.PurposeTransaction, sequence.PurposeVoucher} {
		current, err := seqs.Current(ctx, tenantID, p)
		require.NoError(t, err)
		assert.Zero(t, current, "no %s number may be burned on a rolled back settlement", p)
	}
}

func TestGormWalletSettlementRepository_ExactBalanceEmptiesWallet(t *testing.T) {
	db := newSQLiteDB(t)
	settler, _ := newWalletSettler(db)
	tenantID := uuid.New()
	key := member.NewFlatKey("A", "2", "201")
	seedFlat(t, db, tenantID, key, member.ClassificationRenter, 50)

	res, err := settler.SettleFromWallet(context.Background(), settlementCommand(tenantID, key, 50))
	require.NoError(t, err)
	assert.Equal(t, bill.OutcomePaid, res.Outcome)
	assert.True(t, res.BalanceAfter.IsZero())
}

func TestGormWalletSettlementRepository_SameDayDeltasMerge(t *testing.T) {
	db := newSQLiteDB(t)
	settler, _ := newWalletSettler(db)
	ctx := context.Background()
	tenantID := uuid.New()
	key := member.NewFlatKey("A", "1", "101")
	flat := seedFlat(t, db, tenantID, key, member.ClassificationOwner, 100)

	first := settlementCommand(tenantID, key, 30)
	second := settlementCommand(tenantID, key, 20)
	second.BillNumber = "BILL/2026-27/000002"
	_, err := settler.SettleFromWallet(ctx, first)
	require.NoError(t, err)
	res, err := settler.SettleFromWallet(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "VCH/2026-27/000002", res.VoucherNumber)

	var deltas []models.WalletDailyDeltaModel
	require.NoError(t, db.Where("flat_id = ?", flat.ID).Find(&deltas).Error)
	require.Len(t, deltas, 1)
	assert.True(t, deltas[0].Change.Equal(dec(-50)))
}

func TestGormWalletSettlementRepository_Errors(t *testing.T) {
	db := newSQLiteDB(t)
	settler, _ := newWalletSettler(db)
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := settler.SettleFromWallet(ctx, settlementCommand(tenantID, member.NewFlatKey("Q", "1", "1"), 10))
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	_, err = settler.SettleFromWallet(ctx, settlementCommand(tenantID, member.NewFlatKey("A", "1", "101"), 0))
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestGormWalletSettlementRepository_RetryAfterCommitDoesNotDebitTwice(t *testing.T) {
	db := newSQLiteDB(t)
	settler, seqs := newWalletSettler(db)
	ctx := context.Background()
	tenantID := uuid.New()
	key := member.NewFlatKey("B", "3", "301")
	seedFlat(t, db, tenantID, key, member.ClassificationOwner, 250)

	cmd := settlementCommand(tenantID, key, 100)
	first, err := settler.SettleFromWallet(ctx, cmd)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	again, err := settler.SettleFromWallet(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, bill.OutcomePaid, again.Outcome)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.RecipientBillID, again.RecipientBillID)
	assert.True(t, again.BalanceAfter.Equal(dec(150)))

	stored, err := NewGormFlatRepository(db).FindByKey(ctx, tenantID, key)
	require.NoError(t, err)
	assert.True(t, stored.WalletBalance.Equal(dec(150)))

	var records int64
	require.NoError(t, db.Model(&models.SettlementRecordModel{}).Where("tenant_id = ?", tenantID).Count(&records).Error)
	assert.Equal(t, int64(1), records)

	current, err := seqs.Current(ctx, tenantID, sequence.PurposeVoucher)
	require.NoError(t, err)
	assert.Equal(t, int64(1), current)
}

func TestGormWalletSettlementRepository_BillNumberOfAnotherJob(t *testing.T) {
	db := newSQLiteDB(t)
	settler, _ := newWalletSettler(db)
	ctx := context.Background()
	tenantID := uuid.New()
	key := member.NewFlatKey("B", "3", "302")
	seedFlat(t, db, tenantID, key, member.ClassificationOwner, 250)

	_, err := settler.SettleFromWallet(ctx, settlementCommand(tenantID, key, 100))
	require.NoError(t, err)

	// same number, fresh master bill id
	_, err = settler.SettleFromWallet(ctx, settlementCommand(tenantID, key, 100))
	assert.True(t, errors.Is(err, shared.ErrAlreadyExists))

	stored, err := NewGormFlatRepository(db).FindByKey(ctx, tenantID, key)
	require.NoError(t, err)
	assert.True(t, stored.WalletBalance.Equal(dec(150)))
}
