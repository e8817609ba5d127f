package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/ledger"
)

// UpdateLedgerRequest moves one account balance
type UpdateLedgerRequest struct {
	TenantID      uuid.UUID
	LedgerGroup   string
	LedgerAccount string
	Amount        decimal.Decimal
	Direction     ledger.Direction
	Date          time.Time
}

// AccountResponse is the API view of a ledger account
type AccountResponse struct {
	ID              uuid.UUID       `json:"id"`
	LedgerGroup     string          `json:"ledger_group"`
	LedgerAccount   string          `json:"ledger_account"`
	TotalBalance    decimal.Decimal `json:"total_balance"`
	LastUpdatedDate *string         `json:"last_updated_date,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DailyDeltaResponse is one day's net change
type DailyDeltaResponse struct {
	Date   string          `json:"date"`
	Change decimal.Decimal `json:"change"`
}

// ReconcileResponse compares an account total with its deltas
type ReconcileResponse struct {
	LedgerGroup   string          `json:"ledger_group"`
	LedgerAccount string          `json:"ledger_account"`
	TotalBalance  decimal.Decimal `json:"total_balance"`
	SumOfDeltas   decimal.Decimal `json:"sum_of_deltas"`
	Difference    decimal.Decimal `json:"difference"`
	Days          int             `json:"days"`
	Balanced      bool            `json:"balanced"`
}

// ToAccountResponse converts a domain account
func ToAccountResponse(a *ledger.Account) AccountResponse {
	resp := AccountResponse{
		ID:            a.ID,
		LedgerGroup:   a.Key.Group,
		LedgerAccount: a.Key.Account,
		TotalBalance:  a.TotalBalance,
		UpdatedAt:     a.UpdatedAt,
	}
	if a.LastUpdatedDate != nil {
		day := a.LastUpdatedDate.Format(ledger.DayLayout)
		resp.LastUpdatedDate = &day
	}
	return resp
}

func toReconcileResponse(d ledger.Drift) ReconcileResponse {
	return ReconcileResponse{
		LedgerGroup:   d.Key.Group,
		LedgerAccount: d.Key.Account,
		TotalBalance:  d.TotalBalance,
		SumOfDeltas:   d.SumOfDeltas,
		Difference:    d.Difference,
		Days:          d.Days,
		Balanced:      d.Balanced(),
	}
}
