package bulkbill

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/member"
)

// FlatKeyDTO is a recipient selector. Leaving Flat (and optionally Floor)
// empty selects every flat under the wing or floor.
type FlatKeyDTO struct {
	Wing  string `json:"wing" binding:"required"`
	Floor string `json:"floor"`
	Flat  string `json:"flat"`
}

func (k FlatKeyDTO) toDomain() member.FlatKey {
	return member.NewFlatKey(k.Wing, k.Floor, k.Flat)
}

func toFlatKeyDTO(k member.FlatKey) FlatKeyDTO {
	return FlatKeyDTO{Wing: k.Wing, Floor: k.Floor, Flat: k.Flat}
}

// ItemDTO is one bill line
type ItemDTO struct {
	Name          string          `json:"name" binding:"required,max=120"`
	LedgerGroup   string          `json:"ledger_group" binding:"required,max=120"`
	LedgerAccount string          `json:"ledger_account" binding:"required,max=120"`
	OwnerAmount   decimal.Decimal `json:"owner_amount" binding:"gte=0"`
	RenterAmount  decimal.Decimal `json:"renter_amount" binding:"gte=0"`
	ClosedAmount  decimal.Decimal `json:"closed_amount" binding:"gte=0"`
}

// GenerateBulkBillRequest is the body of POST /bulk-bills
type GenerateBulkBillRequest struct {
	Name           string       `json:"name" binding:"required,max=200"`
	Note           string       `json:"note" binding:"max=2000"`
	InvoiceDate    time.Time    `json:"invoice_date" binding:"required"`
	DueDate        time.Time    `json:"due_date" binding:"required"`
	StartDate      time.Time    `json:"start_date"`
	EndDate        time.Time    `json:"end_date"`
	Items          []ItemDTO    `json:"items" binding:"required,min=1,dive"`
	Recipients     []FlatKeyDTO `json:"recipients" binding:"required,min=1,dive"`
	IdempotencyKey string       `json:"idempotency_key" binding:"max=128"`
}

// ToSpec converts the request into a bill spec
func (r GenerateBulkBillRequest) ToSpec() bill.Spec {
	items := make([]bill.Item, len(r.Items))
	for i, it := range r.Items {
		items[i] = bill.Item{
			Name:          it.Name,
			LedgerGroup:   it.LedgerGroup,
			LedgerAccount: it.LedgerAccount,
			OwnerAmount:   it.OwnerAmount,
			RenterAmount:  it.RenterAmount,
			ClosedAmount:  it.ClosedAmount,
		}
	}
	recipients := make([]member.FlatKey, len(r.Recipients))
	for i, k := range r.Recipients {
		recipients[i] = k.toDomain()
	}
	return bill.Spec{
		Name:           r.Name,
		Note:           r.Note,
		InvoiceDate:    r.InvoiceDate,
		DueDate:        r.DueDate,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		Items:          items,
		Recipients:     recipients,
		IdempotencyKey: r.IdempotencyKey,
	}
}

// MasterBillResponse is the API view of a master bill
type MasterBillResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Note            string          `json:"note,omitempty"`
	InvoiceDate     time.Time       `json:"invoice_date"`
	DueDate         time.Time       `json:"due_date"`
	StartDate       *time.Time      `json:"start_date,omitempty"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	Items           []bill.Item     `json:"items"`
	Recipients      []FlatKeyDTO    `json:"recipients"`
	BillNumbers     []string        `json:"bill_numbers"`
	TotalBillAmount decimal.Decimal `json:"total_bill_amount"`
	TotalPaidAmount decimal.Decimal `json:"total_paid_amount"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ToMasterBillResponse converts a domain master bill
func ToMasterBillResponse(m *bill.MasterBill) MasterBillResponse {
	recipients := make([]FlatKeyDTO, len(m.Recipients))
	for i, k := range m.Recipients {
		recipients[i] = toFlatKeyDTO(k)
	}
	resp := MasterBillResponse{
		ID:              m.ID,
		Name:            m.Name,
		Note:            m.Note,
		InvoiceDate:     m.InvoiceDate,
		DueDate:         m.DueDate,
		Items:           m.Items,
		Recipients:      recipients,
		BillNumbers:     m.BillNumbers,
		TotalBillAmount: m.TotalBillAmount,
		TotalPaidAmount: m.TotalPaidAmount,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if !m.StartDate.IsZero() {
		resp.StartDate = &m.StartDate
	}
	if !m.EndDate.IsZero() {
		resp.EndDate = &m.EndDate
	}
	return resp
}

// RecipientBillResponse is the API view of a recipient bill
type RecipientBillResponse struct {
	ID             uuid.UUID              `json:"id"`
	MasterBillID   uuid.UUID              `json:"master_bill_id"`
	Flat           FlatKeyDTO             `json:"flat"`
	BillNumber     string                 `json:"bill_number"`
	Status         bill.Status            `json:"status"`
	Amount         decimal.Decimal        `json:"amount"`
	OriginalAmount decimal.Decimal        `json:"original_amount"`
	DueDate        time.Time              `json:"due_date"`
	BillItemTotals []bill.AllocationEntry `json:"bill_item_totals"`
	CreatedAt      time.Time              `json:"created_at"`
}

// ToRecipientBillResponse converts a domain recipient bill
func ToRecipientBillResponse(rb *bill.RecipientBill) RecipientBillResponse {
	return RecipientBillResponse{
		ID:             rb.ID,
		MasterBillID:   rb.MasterBillID,
		Flat:           toFlatKeyDTO(rb.FlatKey),
		BillNumber:     rb.BillNumber,
		Status:         rb.Status,
		Amount:         rb.Amount,
		OriginalAmount: rb.OriginalAmount,
		DueDate:        rb.DueDate,
		BillItemTotals: rb.BillItemTotals.Entries(),
		CreatedAt:      rb.CreatedAt,
	}
}
