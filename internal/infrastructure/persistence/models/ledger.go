package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/ledger"
)

// LedgerAccountModel is the running balance row of one ledger account
type LedgerAccountModel struct {
	BaseModel
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_accounts_key,priority:1"`
	LedgerGroup    string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_ledger_accounts_key,priority:2"`
	LedgerAccount  string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_ledger_accounts_key,priority:3"`
	TotalBalance   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastUpdatedDay string          `gorm:"type:varchar(10)"`
}

// TableName returns the table name for GORM
func (LedgerAccountModel) TableName() string {
	return "ledger_accounts"
}

// ToDomain converts the persistence model to a domain Account
func (m *LedgerAccountModel) ToDomain() *ledger.Account {
	a := &ledger.Account{
		BaseEntity:   m.BaseModel.ToDomain(),
		TenantID:     m.TenantID,
		Key:          ledger.AccountKey{Group: m.LedgerGroup, Account: m.LedgerAccount},
		TotalBalance: m.TotalBalance,
	}
	if m.LastUpdatedDay != "" {
		if t, err := ledger.ParseDay(m.LastUpdatedDay); err == nil {
			a.LastUpdatedDate = &t
		}
	}
	return a
}

// FromDomain populates the persistence model from a domain Account
func (m *LedgerAccountModel) FromDomain(a *ledger.Account) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.TenantID = a.TenantID
	m.LedgerGroup = a.Key.Group
	m.LedgerAccount = a.Key.Account
	m.TotalBalance = a.TotalBalance
	m.LastUpdatedDay = ""
	if a.LastUpdatedDate != nil {
		m.LastUpdatedDay = a.LastUpdatedDate.Format(ledger.DayLayout)
	}
}

// LedgerDailyDeltaModel is the net change of one account on one day
type LedgerDailyDeltaModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_daily_deltas_day,priority:1"`
	PostingDay string          `gorm:"type:varchar(10);not null;uniqueIndex:idx_ledger_daily_deltas_day,priority:2"`
	Change     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreatedAt  time.Time       `gorm:"not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerDailyDeltaModel) TableName() string {
	return "ledger_daily_deltas"
}

// ToDomain converts the persistence model to a domain DailyDelta
func (m *LedgerDailyDeltaModel) ToDomain() ledger.DailyDelta {
	day, _ := ledger.ParseDay(m.PostingDay)
	return ledger.DailyDelta{
		AccountID: m.AccountID,
		Date:      day,
		Change:    m.Change,
	}
}
