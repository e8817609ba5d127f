package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/ledger"
	"github.com/societyledger/backend/internal/domain/sequence"
	"github.com/societyledger/backend/internal/domain/shared"
	"github.com/societyledger/backend/internal/infrastructure/persistence/models"
)

// errWalletShort rolls back a settlement whose wallet cannot cover the bill
var errWalletShort = errors.New("wallet balance below bill amount")

// GormWalletSettlementRepository pays recipient bills from flat wallets.
// Everything a paid settlement writes happens in one transaction.
type GormWalletSettlementRepository struct {
	db        *gorm.DB
	sequences *GormSequenceRepository
	formatter sequence.Formatter
}

// NewGormWalletSettlementRepository creates a new GormWalletSettlementRepository
func NewGormWalletSettlementRepository(db *gorm.DB, sequences *GormSequenceRepository, formatter sequence.Formatter) *GormWalletSettlementRepository {
	return &GormWalletSettlementRepository{db: db, sequences: sequences, formatter: formatter}
}

// SettleFromWallet locks the flat, checks the balance and, when it covers the
// amount, numbers the payment, debits the wallet and writes the settlement
// record, the wallet's daily delta and the paid recipient bill. A bill number
// this master bill already paid is reported as paid without a second debit.
func (r *GormWalletSettlementRepository) SettleFromWallet(ctx context.Context, cmd bill.WalletSettlementCommand) (bill.WalletSettlementResult, error) {
	if !cmd.Amount.IsPositive() {
		return bill.WalletSettlementResult{}, shared.NewValidationError("settlement amount must be positive")
	}
	date := ledger.Day(cmd.Date)

	var result bill.WalletSettlementResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var flatModel models.FlatModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND wing = ? AND floor = ? AND flat_no = ?",
				cmd.TenantID, cmd.FlatKey.Wing, cmd.FlatKey.Floor, cmd.FlatKey.Flat).
			Take(&flatModel).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.NewDomainError(shared.CodeNotFound, "flat "+cmd.FlatKey.String()+" not found")
			}
			return err
		}

		flat := flatModel.ToDomain()

		var prior models.RecipientBillModel
		found := tx.Where("tenant_id = ? AND bill_number = ?", cmd.TenantID, cmd.BillNumber).Limit(1).Find(&prior)
		if found.Error != nil {
			return found.Error
		}
		if found.RowsAffected > 0 {
			if prior.MasterBillID != cmd.MasterBillID || prior.Status != bill.StatusPaid {
				return shared.NewDomainError(shared.CodeAlreadyExists, "bill number "+cmd.BillNumber+" is already in use")
			}
			result = bill.WalletSettlementResult{
				Outcome:         bill.OutcomePaid,
				BalanceAfter:    flat.WalletBalance,
				RecipientBillID: prior.ID,
				Replayed:        true,
			}
			return nil
		}

		if !flat.CanCover(cmd.Amount) {
			result = bill.WalletSettlementResult{
				Outcome:      bill.OutcomeInsufficientBalance,
				BalanceAfter: flat.WalletBalance,
			}
			return errWalletShort
		}

		txnNo, err := r.sequences.NextInTx(tx, cmd.TenantID, sequence.PurposeTransaction)
		if err != nil {
			return err
		}
		voucherNo, err := r.sequences.NextInTx(tx, cmd.TenantID, sequence.PurposeVoucher)
		if err != nil {
			return err
		}

		if err := flat.Debit(cmd.Amount); err != nil {
			return err
		}
		if err := tx.Model(&models.FlatModel{}).
			Where("id = ?", flat.ID).
			Updates(map[string]any{"wallet_balance": flat.WalletBalance, "updated_at": flat.UpdatedAt}).Error; err != nil {
			return err
		}

		record := &bill.SettlementRecord{
			BaseEntity:    shared.NewBaseEntity(),
			TenantID:      cmd.TenantID,
			MasterBillID:  cmd.MasterBillID,
			FlatKey:       cmd.FlatKey,
			TransactionID: r.formatter.Format(sequence.PurposeTransaction, date, txnNo),
			VoucherNumber: r.formatter.Format(sequence.PurposeVoucher, date, voucherNo),
			Amount:        cmd.Amount,
			Status:        bill.SettlementCleared,
			BillNumbers:   []string{cmd.BillNumber},
			Date:          date,
		}
		recordModel := &models.SettlementRecordModel{}
		recordModel.FromDomain(record)
		if err := tx.Create(recordModel).Error; err != nil {
			return err
		}

		if err := addWalletDelta(tx, cmd.TenantID, flat.ID, date, cmd.Amount.Neg()); err != nil {
			return err
		}

		rb := bill.NewPaidRecipientBill(cmd.TenantID, cmd.MasterBillID, cmd.FlatKey, cmd.BillNumber, cmd.Amount, cmd.DueDate, cmd.Allocation)
		rbModel := &models.RecipientBillModel{}
		rbModel.FromDomain(rb)
		if err := tx.Create(rbModel).Error; err != nil {
			return err
		}

		result = bill.WalletSettlementResult{
			Outcome:         bill.OutcomePaid,
			TransactionID:   record.TransactionID,
			VoucherNumber:   record.VoucherNumber,
			BalanceAfter:    flat.WalletBalance,
			RecipientBillID: rb.ID,
		}
		return nil
	})

	if errors.Is(err, errWalletShort) {
		return result, nil
	}
	if err != nil {
		return bill.WalletSettlementResult{}, err
	}
	return result, nil
}

// addWalletDelta merges change into the flat's delta for date
func addWalletDelta(tx *gorm.DB, tenantID, flatID uuid.UUID, date time.Time, change decimal.Decimal) error {
	day := date.Format(ledger.DayLayout)
	now := time.Now().UTC()

	var delta models.WalletDailyDeltaModel
	err := tx.Where("flat_id = ? AND posting_day = ?", flatID, day).Take(&delta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		delta = models.WalletDailyDeltaModel{
			ID:         uuid.New(),
			TenantID:   tenantID,
			FlatID:     flatID,
			PostingDay: day,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		delta.Change = change
		return tx.Create(&delta).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&models.WalletDailyDeltaModel{}).
		Where("id = ?", delta.ID).
		Updates(map[string]any{"change": delta.Change.Add(change), "updated_at": now}).Error
}

var _ bill.WalletSettler = (*GormWalletSettlementRepository)(nil)
