package bill

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/domain/shared"
)

// SettlementStatus of a settlement record
type SettlementStatus string

const SettlementCleared SettlementStatus = "cleared"

// SettlementRecord is a cleared payment of one or more recipient bills
type SettlementRecord struct {
	shared.BaseEntity
	TenantID      uuid.UUID
	MasterBillID  uuid.UUID
	FlatKey       member.FlatKey
	TransactionID string
	VoucherNumber string
	Amount        decimal.Decimal
	Status        SettlementStatus
	BillNumbers   []string
	Date          time.Time
}

// SettlementOutcome is the business result of a wallet settlement attempt.
// Insufficient balance is an outcome, never an error.
type SettlementOutcome string

const (
	OutcomePaid                SettlementOutcome = "paid"
	OutcomeInsufficientBalance SettlementOutcome = "insufficient_balance"
)

// WalletSettlementCommand asks to pay one recipient bill from the flat's wallet
type WalletSettlementCommand struct {
	TenantID     uuid.UUID
	MasterBillID uuid.UUID
	FlatKey      member.FlatKey
	BillNumber   string
	Amount       decimal.Decimal
	DueDate      time.Time
	Date         time.Time
	Allocation   Allocation
}

// WalletSettlementResult reports what the settlement transaction did
type WalletSettlementResult struct {
	Outcome         SettlementOutcome
	TransactionID   string
	VoucherNumber   string
	BalanceAfter    decimal.Decimal
	RecipientBillID uuid.UUID
	// Replayed is set when the bill number was already paid by an earlier
	// attempt whose commit the caller never saw
	Replayed bool
}
