package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/societyledger/backend/internal/domain/sequence"
)

// SequenceCounterModel holds the last number handed out for (tenant, purpose)
type SequenceCounterModel struct {
	ID        uuid.UUID        `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_sequence_counters_purpose,priority:1"`
	Purpose   sequence.Purpose `gorm:"type:varchar(20);not null;uniqueIndex:idx_sequence_counters_purpose,priority:2"`
	Count     int64            `gorm:"not null;default:0"`
	UpdatedAt time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceCounterModel) TableName() string {
	return "sequence_counters"
}

// ToDomain converts the persistence model to a domain Counter
func (m *SequenceCounterModel) ToDomain() *sequence.Counter {
	return &sequence.Counter{
		TenantID: m.TenantID,
		Purpose:  m.Purpose,
		Count:    m.Count,
	}
}
