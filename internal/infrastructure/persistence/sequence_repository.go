package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/societyledger/backend/internal/domain/sequence"
	"github.com/societyledger/backend/internal/domain/shared"
	"github.com/societyledger/backend/internal/infrastructure/persistence/models"
)

// GormSequenceRepository implements sequence.Reserver with a row-locked
// counter per (tenant, purpose).
type GormSequenceRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB, retry RetryPolicy) *GormSequenceRepository {
	return &GormSequenceRepository{db: db, retry: retry}
}

// Reserve advances the counter by count and returns the reserved range
func (r *GormSequenceRepository) Reserve(ctx context.Context, tenantID uuid.UUID, purpose sequence.Purpose, count int) (sequence.Range, error) {
	if !purpose.IsValid() {
		return sequence.Range{}, shared.NewValidationError("unknown sequence purpose %q", string(purpose))
	}
	if count <= 0 {
		return sequence.Range{}, shared.NewValidationError("reserve count must be positive, got %d", count)
	}

	var rng sequence.Range
	err := withConflictRetry(ctx, r.retry, "reserve "+string(purpose), func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			rng, err = advanceCounter(tx, tenantID, purpose, count)
			return err
		})
	})
	if err != nil {
		return sequence.Range{}, err
	}
	return rng, nil
}

// Next reserves a single number in its own transaction
func (r *GormSequenceRepository) Next(ctx context.Context, tenantID uuid.UUID, purpose sequence.Purpose) (int64, error) {
	rng, err := r.Reserve(ctx, tenantID, purpose, 1)
	if err != nil {
		return 0, err
	}
	return rng.Start, nil
}

// NextInTx reserves a single number inside the caller's transaction. Only call
// it from a transaction that is about to commit, or the number is lost with
// the rollback.
func (r *GormSequenceRepository) NextInTx(tx *gorm.DB, tenantID uuid.UUID, purpose sequence.Purpose) (int64, error) {
	rng, err := advanceCounter(tx, tenantID, purpose, 1)
	if err != nil {
		return 0, err
	}
	return rng.Start, nil
}

// Current returns the last number handed out, 0 if none
func (r *GormSequenceRepository) Current(ctx context.Context, tenantID uuid.UUID, purpose sequence.Purpose) (int64, error) {
	var model models.SequenceCounterModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND purpose = ?", tenantID, purpose).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return model.Count, nil
}

func advanceCounter(tx *gorm.DB, tenantID uuid.UUID, purpose sequence.Purpose, count int) (sequence.Range, error) {
	now := time.Now().UTC()
	seed := models.SequenceCounterModel{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Purpose:   purpose,
		Count:     0,
		UpdatedAt: now,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "purpose"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return sequence.Range{}, err
	}

	var model models.SequenceCounterModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND purpose = ?", tenantID, purpose).
		Take(&model).Error; err != nil {
		return sequence.Range{}, err
	}

	counter := model.ToDomain()
	rng, err := counter.Advance(count)
	if err != nil {
		return sequence.Range{}, err
	}
	if err := tx.Model(&models.SequenceCounterModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{"count": counter.Count, "updated_at": now}).Error; err != nil {
		return sequence.Range{}, err
	}
	return rng, nil
}

var _ sequence.Reserver = (*GormSequenceRepository)(nil)
