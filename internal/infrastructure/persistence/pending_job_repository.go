package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/infrastructure/persistence/models"
)

// GormPendingJobRepository keeps one job list document per tenant
type GormPendingJobRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

// NewGormPendingJobRepository creates a new GormPendingJobRepository
func NewGormPendingJobRepository(db *gorm.DB, retry RetryPolicy) *GormPendingJobRepository {
	return &GormPendingJobRepository{db: db, retry: retry}
}

// Enqueue merges job into the tenant's list. A job already queued for the
// same master bill is left as is.
func (r *GormPendingJobRepository) Enqueue(ctx context.Context, tenantID uuid.UUID, job bill.PendingJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	return withConflictRetry(ctx, r.retry, "enqueue pending job", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			list, err := lockJobList(tx, tenantID)
			if err != nil {
				return err
			}
			if !list.Merge(job) {
				return nil
			}
			return saveJobList(tx, list)
		})
	})
}

// List returns the tenant's queued jobs, empty when none were ever queued
func (r *GormPendingJobRepository) List(ctx context.Context, tenantID uuid.UUID) (*bill.PendingJobList, error) {
	var model models.PendingJobListModel
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &bill.PendingJobList{TenantID: tenantID, Jobs: []bill.PendingJob{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ack removes the job for a master bill once it has been delivered
func (r *GormPendingJobRepository) Ack(ctx context.Context, tenantID, masterBillID uuid.UUID) error {
	return withConflictRetry(ctx, r.retry, "ack pending job", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			list, err := lockJobList(tx, tenantID)
			if err != nil {
				return err
			}
			if !list.Remove(masterBillID) {
				return nil
			}
			return saveJobList(tx, list)
		})
	})
}

func lockJobList(tx *gorm.DB, tenantID uuid.UUID) (*bill.PendingJobList, error) {
	seed := models.PendingJobListModel{
		TenantID:  tenantID,
		Jobs:      models.NewJSON([]bill.PendingJob{}),
		UpdatedAt: time.Now().UTC(),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return nil, err
	}

	var model models.PendingJobListModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ?", tenantID).
		Take(&model).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

func saveJobList(tx *gorm.DB, list *bill.PendingJobList) error {
	return tx.Model(&models.PendingJobListModel{}).
		Where("tenant_id = ?", list.TenantID).
		Updates(map[string]any{
			"jobs":       models.NewJSON(list.Jobs),
			"updated_at": list.UpdatedAt,
		}).Error
}

var _ bill.PendingJobRepository = (*GormPendingJobRepository)(nil)
