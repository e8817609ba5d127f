package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/shared"
	"github.com/societyledger/backend/internal/infrastructure/persistence/models"
)

const recipientBillInsertBatch = 200

// GormRecipientBillRepository implements bill.RecipientBillRepository using GORM
type GormRecipientBillRepository struct {
	db *gorm.DB
}

// NewGormRecipientBillRepository creates a new GormRecipientBillRepository
func NewGormRecipientBillRepository(db *gorm.DB) *GormRecipientBillRepository {
	return &GormRecipientBillRepository{db: db}
}

// CreateBatch inserts bills in one transaction
func (r *GormRecipientBillRepository) CreateBatch(ctx context.Context, bills []*bill.RecipientBill) error {
	if len(bills) == 0 {
		return nil
	}
	rows := make([]models.RecipientBillModel, len(bills))
	for i, b := range bills {
		rows[i].FromDomain(b)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, recipientBillInsertBatch).Error
	})
}

// ListByMasterBill returns a page of recipient bills, by bill number unless
// the filter names a whitelisted field
func (r *GormRecipientBillRepository) ListByMasterBill(ctx context.Context, tenantID, masterBillID uuid.UUID, filter shared.Filter) ([]bill.RecipientBill, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.RecipientBillModel{}).
		Where("tenant_id = ? AND master_bill_id = ?", tenantID, masterBillID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Session(&gorm.Session{}).Order(sortClause(filter, RecipientBillSortFields, "bill_number ASC"))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	var rows []models.RecipientBillModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]bill.RecipientBill, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// SumOriginalAmount totals what was billed across a master bill's recipients
func (r *GormRecipientBillRepository) SumOriginalAmount(ctx context.Context, tenantID, masterBillID uuid.UUID) (decimal.Decimal, error) {
	var sum struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).Model(&models.RecipientBillModel{}).
		Select("COALESCE(SUM(original_amount), 0) AS total").
		Where("tenant_id = ? AND master_bill_id = ?", tenantID, masterBillID).
		Scan(&sum).Error; err != nil {
		return decimal.Zero, err
	}
	return sum.Total, nil
}

var _ bill.RecipientBillRepository = (*GormRecipientBillRepository)(nil)
