package bill

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/shared"
)

// MasterBillRepository persists master bills
type MasterBillRepository interface {
	Create(ctx context.Context, m *MasterBill) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*MasterBill, error)
	// UpdatePaidTotal saves TotalPaidAmount guarded by the aggregate version
	UpdatePaidTotal(ctx context.Context, m *MasterBill) error
}

// RecipientBillRepository persists recipient bills
type RecipientBillRepository interface {
	CreateBatch(ctx context.Context, bills []*RecipientBill) error
	ListByMasterBill(ctx context.Context, tenantID, masterBillID uuid.UUID, filter shared.Filter) ([]RecipientBill, int64, error)
	SumOriginalAmount(ctx context.Context, tenantID, masterBillID uuid.UUID) (decimal.Decimal, error)
}

// WalletSettler pays a recipient bill from the flat's wallet in one atomic
// transaction. Settling a bill number the same master bill already paid
// returns the paid result with Replayed set and writes nothing.
type WalletSettler interface {
	SettleFromWallet(ctx context.Context, cmd WalletSettlementCommand) (WalletSettlementResult, error)
}

// NotificationQueue hands a job to the asynchronous delivery worker
type NotificationQueue interface {
	Enqueue(ctx context.Context, tenantID uuid.UUID, job PendingJob) error
}

// PendingJobRepository is the durable per-tenant job list
type PendingJobRepository interface {
	NotificationQueue
	List(ctx context.Context, tenantID uuid.UUID) (*PendingJobList, error)
	Ack(ctx context.Context, tenantID, masterBillID uuid.UUID) error
}
