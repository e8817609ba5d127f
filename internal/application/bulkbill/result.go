package bulkbill

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stages an entry in Result.Errors can come from
const (
	StagePreload      = "preload"
	StageSettlement   = "settlement"
	StageWrite        = "write"
	StageAggregation  = "aggregation"
	StageFinalize     = "finalize"
	StageNotification = "notification"
)

// BatchError is one problem met while running a bulk bill. Recipient names
// the flat for per-recipient stages; Bucket names the ledger account for
// aggregation.
type BatchError struct {
	Stage     string `json:"stage"`
	Recipient string `json:"recipient,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	Message   string `json:"message"`
}

// Result is what GenerateBulkBill reports back. Success is false only when a
// step after the per-recipient writes failed (aggregation or finalize); per
// recipient problems are listed in Errors without clearing it.
type Result struct {
	Success         bool            `json:"success"`
	MasterBillID    uuid.UUID       `json:"master_bill_id"`
	ProcessedCount  int             `json:"processed_count"`
	SkippedCount    int             `json:"skipped_count"`
	PaidCount       int             `json:"paid_count"`
	UnpaidCount     int             `json:"unpaid_count"`
	FailedCount     int             `json:"failed_count"`
	TotalBillAmount decimal.Decimal `json:"total_bill_amount"`
	TotalPaidAmount decimal.Decimal `json:"total_paid_amount"`
	Errors          []BatchError    `json:"errors"`
}

func (r *Result) addError(e BatchError) {
	r.Errors = append(r.Errors, e)
}

// hasStage reports whether any error came from stage
func (r *Result) hasStage(stage string) bool {
	for _, e := range r.Errors {
		if e.Stage == stage {
			return true
		}
	}
	return false
}
