package bill

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/domain/shared"
)

// Status of a recipient bill
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
)

// RecipientBill is one flat's copy of a master bill
type RecipientBill struct {
	shared.BaseEntity
	TenantID       uuid.UUID
	MasterBillID   uuid.UUID
	FlatKey        member.FlatKey
	BillNumber     string
	Status         Status
	Amount         decimal.Decimal // remaining
	OriginalAmount decimal.Decimal
	DueDate        time.Time
	BillItemTotals Allocation
}

func newRecipientBill(tenantID, masterBillID uuid.UUID, key member.FlatKey, billNumber string, amount decimal.Decimal, due time.Time, alloc Allocation) *RecipientBill {
	if alloc == nil {
		alloc = make(Allocation)
	}
	return &RecipientBill{
		BaseEntity:     shared.NewBaseEntity(),
		TenantID:       tenantID,
		MasterBillID:   masterBillID,
		FlatKey:        key,
		BillNumber:     billNumber,
		OriginalAmount: amount,
		DueDate:        due,
		BillItemTotals: alloc,
	}
}

// NewUnpaidRecipientBill creates a receivable for the full amount
func NewUnpaidRecipientBill(tenantID, masterBillID uuid.UUID, key member.FlatKey, billNumber string, amount decimal.Decimal, due time.Time, alloc Allocation) *RecipientBill {
	rb := newRecipientBill(tenantID, masterBillID, key, billNumber, amount, due, alloc)
	rb.Status = StatusUnpaid
	rb.Amount = amount
	return rb
}

// NewPaidRecipientBill creates a bill that is already settled
func NewPaidRecipientBill(tenantID, masterBillID uuid.UUID, key member.FlatKey, billNumber string, amount decimal.Decimal, due time.Time, alloc Allocation) *RecipientBill {
	rb := newRecipientBill(tenantID, masterBillID, key, billNumber, amount, due, alloc)
	rb.Status = StatusPaid
	rb.Amount = decimal.Zero
	return rb
}
