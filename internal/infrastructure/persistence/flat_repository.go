package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/domain/shared"
	"github.com/societyledger/backend/internal/infrastructure/persistence/models"
)

// GormFlatRepository implements member.Repository using GORM
type GormFlatRepository struct {
	db *gorm.DB
}

// NewGormFlatRepository creates a new GormFlatRepository
func NewGormFlatRepository(db *gorm.DB) *GormFlatRepository {
	return &GormFlatRepository{db: db}
}

// Save inserts or updates a flat by ID
func (r *GormFlatRepository) Save(ctx context.Context, flat *member.Flat) error {
	model := &models.FlatModel{}
	model.FromDomain(flat)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByKey finds one flat by its exact key
func (r *GormFlatRepository) FindByKey(ctx context.Context, tenantID uuid.UUID, key member.FlatKey) (*member.Flat, error) {
	var model models.FlatModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND wing = ? AND floor = ? AND flat_no = ?", tenantID, key.Wing, key.Floor, key.Flat).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "flat "+key.String()+" not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByKeys loads many flats with one query. Keys that do not exist are
// absent from the result.
func (r *GormFlatRepository) FindByKeys(ctx context.Context, tenantID uuid.UUID, keys []member.FlatKey) ([]member.Flat, error) {
	if len(keys) == 0 {
		return []member.Flat{}, nil
	}
	tuples := make([][]any, len(keys))
	for i, k := range keys {
		tuples[i] = []any{k.Wing, k.Floor, k.Flat}
	}

	var rows []models.FlatModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("(wing, floor, flat_no) IN ?", tuples).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return flatsToDomain(rows), nil
}

// ListMatching expands a wing or floor selector
func (r *GormFlatRepository) ListMatching(ctx context.Context, tenantID uuid.UUID, selector member.FlatKey) ([]member.Flat, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ? AND wing = ?", tenantID, selector.Wing)
	if selector.Floor != "" {
		query = query.Where("floor = ?", selector.Floor)
	}
	if selector.Flat != "" {
		query = query.Where("flat_no = ?", selector.Flat)
	}
	var rows []models.FlatModel
	if err := query.Order("wing ASC, floor ASC, flat_no ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return flatsToDomain(rows), nil
}

// List returns a page of a tenant's flats
func (r *GormFlatRepository) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]member.Flat, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.FlatModel{}).
		Where("tenant_id = ?", tenantID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).
		Order(sortClause(filter, FlatSortFields, "wing ASC, floor ASC, flat_no ASC"))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	var rows []models.FlatModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return flatsToDomain(rows), total, nil
}

func flatsToDomain(rows []models.FlatModel) []member.Flat {
	out := make([]member.Flat, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ member.Repository = (*GormFlatRepository)(nil)
