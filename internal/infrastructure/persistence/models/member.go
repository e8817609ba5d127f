package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/member"
)

// FlatModel is the persistence model for a directory flat
type FlatModel struct {
	BaseModel
	TenantID       uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_flats_key,priority:1"`
	Wing           string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_flats_key,priority:2"`
	Floor          string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_flats_key,priority:3"`
	FlatNo         string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_flats_key,priority:4"`
	Classification member.Classification `gorm:"type:varchar(20);not null;index"`
	MemberName     string                `gorm:"type:varchar(200)"`
	Email          string                `gorm:"type:varchar(200)"`
	Phone          string                `gorm:"type:varchar(50)"`
	WalletBalance  decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (FlatModel) TableName() string {
	return "flats"
}

// ToDomain converts the persistence model to a domain Flat
func (m *FlatModel) ToDomain() *member.Flat {
	return &member.Flat{
		BaseEntity:     m.BaseModel.ToDomain(),
		TenantID:       m.TenantID,
		Key:            member.FlatKey{Wing: m.Wing, Floor: m.Floor, Flat: m.FlatNo},
		Classification: m.Classification,
		MemberName:     m.MemberName,
		Email:          m.Email,
		Phone:          m.Phone,
		WalletBalance:  m.WalletBalance,
	}
}

// FromDomain populates the persistence model from a domain Flat
func (m *FlatModel) FromDomain(f *member.Flat) {
	m.FromDomainBaseEntity(f.BaseEntity)
	m.TenantID = f.TenantID
	m.Wing = f.Key.Wing
	m.Floor = f.Key.Floor
	m.FlatNo = f.Key.Flat
	m.Classification = f.Classification
	m.MemberName = f.MemberName
	m.Email = f.Email
	m.Phone = f.Phone
	m.WalletBalance = f.WalletBalance
}

// WalletDailyDeltaModel is the net wallet movement of a flat on one day
type WalletDailyDeltaModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	FlatID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_wallet_daily_deltas_day,priority:1"`
	PostingDay string          `gorm:"type:varchar(10);not null;uniqueIndex:idx_wallet_daily_deltas_day,priority:2"`
	Change     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreatedAt  time.Time       `gorm:"not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WalletDailyDeltaModel) TableName() string {
	return "wallet_daily_deltas"
}
