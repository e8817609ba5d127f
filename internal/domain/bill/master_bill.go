package bill

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/domain/shared"
)

// Spec is the caller's description of a bulk-bill campaign
type Spec struct {
	Name           string
	Note           string
	InvoiceDate    time.Time
	DueDate        time.Time
	StartDate      time.Time
	EndDate        time.Time
	Items          []Item
	Recipients     []member.FlatKey
	IdempotencyKey string
}

// Validate rejects a spec before anything is written
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return shared.NewValidationError("bill name is required")
	}
	if s.InvoiceDate.IsZero() {
		return shared.NewValidationError("invoice date is required")
	}
	if s.DueDate.IsZero() {
		return shared.NewValidationError("due date is required")
	}
	if s.DueDate.Before(s.InvoiceDate) {
		return shared.NewValidationError("due date cannot be before invoice date")
	}
	if !s.StartDate.IsZero() && !s.EndDate.IsZero() && s.EndDate.Before(s.StartDate) {
		return shared.NewValidationError("billing period end is before its start")
	}
	if len(s.Items) == 0 {
		return shared.NewValidationError("at least one bill item is required")
	}
	for _, it := range s.Items {
		if err := it.validate(); err != nil {
			return err
		}
	}
	if len(s.Recipients) == 0 {
		return shared.NewValidationError("at least one recipient is required")
	}
	for _, r := range s.Recipients {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MasterBill describes one bulk-bill campaign. Items, recipients and bill
// numbers are fixed at creation; only the paid total moves afterwards.
type MasterBill struct {
	shared.TenantAggregateRoot
	Name            string
	Note            string
	InvoiceDate     time.Time
	DueDate         time.Time
	StartDate       time.Time
	EndDate         time.Time
	Items           []Item
	Recipients      []member.FlatKey
	BillNumbers     []string
	TotalBillAmount decimal.Decimal
	TotalPaidAmount decimal.Decimal
	PaidRecorded    bool
}

// NewMasterBill creates the master record. recipients and billNumbers are
// index-aligned.
func NewMasterBill(tenantID uuid.UUID, spec Spec, recipients []member.FlatKey, billNumbers []string, total decimal.Decimal) (*MasterBill, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("tenant id is required")
	}
	if len(recipients) != len(billNumbers) {
		return nil, shared.NewValidationError("%d recipients but %d bill numbers", len(recipients), len(billNumbers))
	}
	if total.IsNegative() {
		return nil, shared.NewValidationError("total bill amount cannot be negative")
	}
	return &MasterBill{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                strings.TrimSpace(spec.Name),
		Note:                spec.Note,
		InvoiceDate:         spec.InvoiceDate,
		DueDate:             spec.DueDate,
		StartDate:           spec.StartDate,
		EndDate:             spec.EndDate,
		Items:               spec.Items,
		Recipients:          recipients,
		BillNumbers:         billNumbers,
		TotalBillAmount:     total,
		TotalPaidAmount:     decimal.Zero,
	}, nil
}

// RecordPaid sets the amount settled from wallets. It may be recorded once.
func (m *MasterBill) RecordPaid(total decimal.Decimal) error {
	if m.PaidRecorded {
		return shared.NewDomainError(shared.CodeInvalidState, "paid total already recorded")
	}
	if total.IsNegative() || total.GreaterThan(m.TotalBillAmount) {
		return shared.NewValidationError("paid total %s outside [0, %s]", total.String(), m.TotalBillAmount.String())
	}
	m.TotalPaidAmount = total
	m.PaidRecorded = true
	m.IncrementVersion()
	m.Touch()
	return nil
}

// BillNumberFor returns the number assigned to a recipient
func (m *MasterBill) BillNumberFor(key member.FlatKey) (string, bool) {
	for i, r := range m.Recipients {
		if r == key {
			return m.BillNumbers[i], true
		}
	}
	return "", false
}
