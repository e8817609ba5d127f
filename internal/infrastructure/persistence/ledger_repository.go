package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/societyledger/backend/internal/domain/ledger"
	"github.com/societyledger/backend/internal/domain/shared"
	"github.com/societyledger/backend/internal/infrastructure/persistence/models"
)

// GormLedgerRepository implements ledger.Repository using GORM.
// Each Apply is one transaction holding a row lock on the account.
type GormLedgerRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB, retry RetryPolicy) *GormLedgerRepository {
	return &GormLedgerRepository{db: db, retry: retry}
}

// Apply posts p to its account and the day's delta atomically
func (r *GormLedgerRepository) Apply(ctx context.Context, p ledger.Posting) (*ledger.Account, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var result *ledger.Account
	err := withConflictRetry(ctx, r.retry, "update ledger "+p.Key.String(), func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			acct, err := r.applyInTx(tx, p)
			if err != nil {
				return err
			}
			result = acct
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *GormLedgerRepository) applyInTx(tx *gorm.DB, p ledger.Posting) (*ledger.Account, error) {
	model, err := lockLedgerAccount(tx, p.TenantID, p.Key)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var delta models.LedgerDailyDeltaModel
	found := true
	err = tx.Where("account_id = ? AND posting_day = ?", model.ID, p.DayKey()).Take(&delta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		found = false
		delta = models.LedgerDailyDeltaModel{
			ID:         uuid.New(),
			TenantID:   p.TenantID,
			AccountID:  model.ID,
			PostingDay: p.DayKey(),
			Change:     decimal.Zero,
			CreatedAt:  now,
		}
	} else if err != nil {
		return nil, err
	}

	acct := model.ToDomain()
	newDelta := acct.Apply(p, delta.Change)

	if found {
		err = tx.Model(&models.LedgerDailyDeltaModel{}).
			Where("id = ?", delta.ID).
			Updates(map[string]any{"change": newDelta, "updated_at": now}).Error
	} else {
		delta.Change = newDelta
		delta.UpdatedAt = now
		err = tx.Create(&delta).Error
	}
	if err != nil {
		return nil, err
	}

	model.FromDomain(acct)
	if err := tx.Model(&models.LedgerAccountModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"total_balance":    model.TotalBalance,
			"last_updated_day": model.LastUpdatedDay,
			"updated_at":       model.UpdatedAt,
		}).Error; err != nil {
		return nil, err
	}
	return acct, nil
}

// lockLedgerAccount creates the account row if missing and locks it
func lockLedgerAccount(tx *gorm.DB, tenantID uuid.UUID, key ledger.AccountKey) (*models.LedgerAccountModel, error) {
	now := time.Now().UTC()
	seed := models.LedgerAccountModel{
		BaseModel:     models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		TenantID:      tenantID,
		LedgerGroup:   key.Group,
		LedgerAccount: key.Account,
		TotalBalance:  decimal.Zero,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "ledger_group"}, {Name: "ledger_account"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return nil, err
	}

	var model models.LedgerAccountModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND ledger_group = ? AND ledger_account = ?", tenantID, key.Group, key.Account).
		Take(&model).Error; err != nil {
		return nil, err
	}
	return &model, nil
}

// FindAccount returns the account or shared.ErrNotFound
func (r *GormLedgerRepository) FindAccount(ctx context.Context, tenantID uuid.UUID, key ledger.AccountKey) (*ledger.Account, error) {
	model, err := r.findAccountModel(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormLedgerRepository) findAccountModel(ctx context.Context, tenantID uuid.UUID, key ledger.AccountKey) (*models.LedgerAccountModel, error) {
	var model models.LedgerAccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND ledger_group = ? AND ledger_account = ?", tenantID, key.Group, key.Account).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "ledger account "+key.String()+" not found")
		}
		return nil, err
	}
	return &model, nil
}

// ListAccounts lists a tenant's accounts, optionally within one group
func (r *GormLedgerRepository) ListAccounts(ctx context.Context, tenantID uuid.UUID, group string) ([]ledger.Account, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if group != "" {
		query = query.Where("ledger_group = ?", group)
	}
	var rows []models.LedgerAccountModel
	if err := query.Order("ledger_group ASC, ledger_account ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Account, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// ListDailyDeltas returns deltas between from and to inclusive; zero bounds are open
func (r *GormLedgerRepository) ListDailyDeltas(ctx context.Context, tenantID uuid.UUID, key ledger.AccountKey, from, to time.Time) ([]ledger.DailyDelta, error) {
	acct, err := r.findAccountModel(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Where("account_id = ?", acct.ID)
	if !from.IsZero() {
		query = query.Where("posting_day >= ?", ledger.Day(from).Format(ledger.DayLayout))
	}
	if !to.IsZero() {
		query = query.Where("posting_day <= ?", ledger.Day(to).Format(ledger.DayLayout))
	}
	var rows []models.LedgerDailyDeltaModel
	if err := query.Order("posting_day ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.DailyDelta, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

type deltaSum struct {
	Total decimal.Decimal
	Days  int
}

// SumDailyDeltas recomputes an account's balance from its deltas
func (r *GormLedgerRepository) SumDailyDeltas(ctx context.Context, tenantID uuid.UUID, key ledger.AccountKey) (decimal.Decimal, int, error) {
	acct, err := r.findAccountModel(ctx, tenantID, key)
	if err != nil {
		return decimal.Zero, 0, err
	}
	var sum deltaSum
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerDailyDeltaModel{}).
		Select("COALESCE(SUM(change), 0) AS total, COUNT(*) AS days").
		Where("account_id = ?", acct.ID).
		Scan(&sum).Error; err != nil {
		return decimal.Zero, 0, err
	}
	return sum.Total, sum.Days, nil
}

var _ ledger.Repository = (*GormLedgerRepository)(nil)
