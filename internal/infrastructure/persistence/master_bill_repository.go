package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/shared"
	"github.com/societyledger/backend/internal/infrastructure/persistence/models"
)

// GormMasterBillRepository implements bill.MasterBillRepository using GORM
type GormMasterBillRepository struct {
	db *gorm.DB
}

// NewGormMasterBillRepository creates a new GormMasterBillRepository
func NewGormMasterBillRepository(db *gorm.DB) *GormMasterBillRepository {
	return &GormMasterBillRepository{db: db}
}

// Create inserts a new master bill
func (r *GormMasterBillRepository) Create(ctx context.Context, m *bill.MasterBill) error {
	model := &models.MasterBillModel{}
	model.FromDomain(m)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByID loads a master bill scoped to the tenant
func (r *GormMasterBillRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*bill.MasterBill, error) {
	var model models.MasterBillModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpdatePaidTotal writes the paid total. The caller has already bumped the
// version, so the row must still carry the previous one.
func (r *GormMasterBillRepository) UpdatePaidTotal(ctx context.Context, m *bill.MasterBill) error {
	result := r.db.WithContext(ctx).
		Model(&models.MasterBillModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", m.TenantID, m.ID, m.Version-1).
		Updates(map[string]any{
			"total_paid_amount": m.TotalPaidAmount,
			"paid_recorded":     m.PaidRecorded,
			"version":           m.Version,
			"updated_at":        m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var _ bill.MasterBillRepository = (*GormMasterBillRepository)(nil)
