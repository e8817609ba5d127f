package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/member"
)

// MasterBillModel is the persistence model for the MasterBill aggregate root
type MasterBillModel struct {
	TenantAggregateModel
	Name            string    `gorm:"type:varchar(200);not null"`
	Note            string    `gorm:"type:text"`
	InvoiceDate     time.Time `gorm:"not null;index"`
	DueDate         time.Time `gorm:"not null"`
	StartDate       *time.Time
	EndDate         *time.Time
	Items           JSON[[]bill.Item]      `gorm:"type:jsonb;not null"`
	Recipients      JSON[[]member.FlatKey] `gorm:"type:jsonb;not null"`
	BillNumbers     JSON[[]string]         `gorm:"type:jsonb;not null"`
	TotalBillAmount decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	TotalPaidAmount decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	PaidRecorded    bool                   `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (MasterBillModel) TableName() string {
	return "master_bills"
}

// ToDomain converts the persistence model to a domain MasterBill
func (m *MasterBillModel) ToDomain() *bill.MasterBill {
	mb := &bill.MasterBill{
		Name:            m.Name,
		Note:            m.Note,
		InvoiceDate:     m.InvoiceDate,
		DueDate:         m.DueDate,
		Items:           m.Items.Data,
		Recipients:      m.Recipients.Data,
		BillNumbers:     m.BillNumbers.Data,
		TotalBillAmount: m.TotalBillAmount,
		TotalPaidAmount: m.TotalPaidAmount,
		PaidRecorded:    m.PaidRecorded,
	}
	m.PopulateTenantAggregateRoot(&mb.TenantAggregateRoot)
	if m.StartDate != nil {
		mb.StartDate = *m.StartDate
	}
	if m.EndDate != nil {
		mb.EndDate = *m.EndDate
	}
	return mb
}

// FromDomain populates the persistence model from a domain MasterBill
func (m *MasterBillModel) FromDomain(mb *bill.MasterBill) {
	m.FromDomainTenantAggregateRoot(mb.TenantAggregateRoot)
	m.Name = mb.Name
	m.Note = mb.Note
	m.InvoiceDate = mb.InvoiceDate
	m.DueDate = mb.DueDate
	m.StartDate = optionalTime(mb.StartDate)
	m.EndDate = optionalTime(mb.EndDate)
	m.Items = NewJSON(mb.Items)
	m.Recipients = NewJSON(mb.Recipients)
	m.BillNumbers = NewJSON(mb.BillNumbers)
	m.TotalBillAmount = mb.TotalBillAmount
	m.TotalPaidAmount = mb.TotalPaidAmount
	m.PaidRecorded = mb.PaidRecorded
}

// RecipientBillModel is one flat's bill row
type RecipientBillModel struct {
	BaseModel
	TenantID       uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex:idx_recipient_bills_number,priority:1"`
	MasterBillID   uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex:idx_recipient_bills_flat,priority:1"`
	Wing           string                       `gorm:"type:varchar(50);not null;uniqueIndex:idx_recipient_bills_flat,priority:2"`
	Floor          string                       `gorm:"type:varchar(50);not null;uniqueIndex:idx_recipient_bills_flat,priority:3"`
	FlatNo         string                       `gorm:"type:varchar(50);not null;uniqueIndex:idx_recipient_bills_flat,priority:4"`
	BillNumber     string                       `gorm:"type:varchar(50);not null;uniqueIndex:idx_recipient_bills_number,priority:2"`
	Status         bill.Status                  `gorm:"type:varchar(20);not null;index"`
	Amount         decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	OriginalAmount decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	DueDate        time.Time                    `gorm:"not null"`
	BillItemTotals JSON[[]bill.AllocationEntry] `gorm:"type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (RecipientBillModel) TableName() string {
	return "recipient_bills"
}

// ToDomain converts the persistence model to a domain RecipientBill
func (m *RecipientBillModel) ToDomain() *bill.RecipientBill {
	return &bill.RecipientBill{
		BaseEntity:     m.BaseModel.ToDomain(),
		TenantID:       m.TenantID,
		MasterBillID:   m.MasterBillID,
		FlatKey:        member.FlatKey{Wing: m.Wing, Floor: m.Floor, Flat: m.FlatNo},
		BillNumber:     m.BillNumber,
		Status:         m.Status,
		Amount:         m.Amount,
		OriginalAmount: m.OriginalAmount,
		DueDate:        m.DueDate,
		BillItemTotals: bill.AllocationFromEntries(m.BillItemTotals.Data),
	}
}

// FromDomain populates the persistence model from a domain RecipientBill
func (m *RecipientBillModel) FromDomain(rb *bill.RecipientBill) {
	m.FromDomainBaseEntity(rb.BaseEntity)
	m.TenantID = rb.TenantID
	m.MasterBillID = rb.MasterBillID
	m.Wing = rb.FlatKey.Wing
	m.Floor = rb.FlatKey.Floor
	m.FlatNo = rb.FlatKey.Flat
	m.BillNumber = rb.BillNumber
	m.Status = rb.Status
	m.Amount = rb.Amount
	m.OriginalAmount = rb.OriginalAmount
	m.DueDate = rb.DueDate
	m.BillItemTotals = NewJSON(rb.BillItemTotals.Entries())
}

// SettlementRecordModel is a cleared wallet payment
type SettlementRecordModel struct {
	BaseModel
	TenantID      uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_settlement_records_txn,priority:1"`
	MasterBillID  uuid.UUID             `gorm:"type:uuid;not null;index"`
	Wing          string                `gorm:"type:varchar(50);not null"`
	Floor         string                `gorm:"type:varchar(50);not null"`
	FlatNo        string                `gorm:"type:varchar(50);not null"`
	TransactionID string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_settlement_records_txn,priority:2"`
	VoucherNumber string                `gorm:"type:varchar(50);not null"`
	Amount        decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Status        bill.SettlementStatus `gorm:"type:varchar(20);not null"`
	BillNumbers   JSON[[]string]        `gorm:"type:jsonb;not null"`
	SettlementDay string                `gorm:"type:varchar(10);not null;index"`
}

// TableName returns the table name for GORM
func (SettlementRecordModel) TableName() string {
	return "settlement_records"
}

// ToDomain converts the persistence model to a domain SettlementRecord
func (m *SettlementRecordModel) ToDomain() *bill.SettlementRecord {
	day, _ := time.ParseInLocation("2006-01-02", m.SettlementDay, time.UTC)
	return &bill.SettlementRecord{
		BaseEntity:    m.BaseModel.ToDomain(),
		TenantID:      m.TenantID,
		MasterBillID:  m.MasterBillID,
		FlatKey:       member.FlatKey{Wing: m.Wing, Floor: m.Floor, Flat: m.FlatNo},
		TransactionID: m.TransactionID,
		VoucherNumber: m.VoucherNumber,
		Amount:        m.Amount,
		Status:        m.Status,
		BillNumbers:   m.BillNumbers.Data,
		Date:          day,
	}
}

// FromDomain populates the persistence model from a domain SettlementRecord
func (m *SettlementRecordModel) FromDomain(s *bill.SettlementRecord) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.TenantID = s.TenantID
	m.MasterBillID = s.MasterBillID
	m.Wing = s.FlatKey.Wing
	m.Floor = s.FlatKey.Floor
	m.FlatNo = s.FlatKey.Flat
	m.TransactionID = s.TransactionID
	m.VoucherNumber = s.VoucherNumber
	m.Amount = s.Amount
	m.Status = s.Status
	m.BillNumbers = NewJSON(s.BillNumbers)
	m.SettlementDay = s.Date.Format("2006-01-02")
}

// PendingJobListModel is the per-tenant notification queue document
type PendingJobListModel struct {
	TenantID  uuid.UUID               `gorm:"type:uuid;primary_key"`
	Jobs      JSON[[]bill.PendingJob] `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PendingJobListModel) TableName() string {
	return "pending_job_lists"
}

// ToDomain converts the persistence model to a domain PendingJobList
func (m *PendingJobListModel) ToDomain() *bill.PendingJobList {
	jobs := m.Jobs.Data
	if jobs == nil {
		jobs = []bill.PendingJob{}
	}
	return &bill.PendingJobList{TenantID: m.TenantID, Jobs: jobs, UpdatedAt: m.UpdatedAt}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

