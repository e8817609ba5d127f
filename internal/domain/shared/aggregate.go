package shared

import (
	"github.com/google/uuid"
)

// TenantAggregateRoot is the base for tenant-scoped aggregates that are
// updated with optimistic locking.
type TenantAggregateRoot struct {
	BaseEntity
	TenantID uuid.UUID
	Version  int
}

// GetVersion returns the aggregate version for optimistic locking
func (a *TenantAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *TenantAggregateRoot) IncrementVersion() {
	a.Version++
}

// NewTenantAggregateRoot creates a new tenant-scoped aggregate root
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseEntity: NewBaseEntity(),
		TenantID:   tenantID,
		Version:    1,
	}
}
