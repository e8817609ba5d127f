package bulkbill

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/ledger"
	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/domain/sequence"
	"github.com/societyledger/backend/internal/domain/shared"
)

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) FindByKeys(ctx context.Context, tenantID uuid.UUID, keys []member.FlatKey) ([]member.Flat, error) {
	args := m.Called(ctx, tenantID, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]member.Flat), args.Error(1)
}

func (m *MockDirectory) ListMatching(ctx context.Context, tenantID uuid.UUID, selector member.FlatKey) ([]member.Flat, error) {
	args := m.Called(ctx, tenantID, selector)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]member.Flat), args.Error(1)
}

type MockNumbers struct {
	mock.Mock
}

func (m *MockNumbers) ReserveFormatted(ctx context.Context, tenantID uuid.UUID, purpose sequence.Purpose, count int, at time.Time) ([]string, error) {
	args := m.Called(ctx, tenantID, purpose, count, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockMasterBills struct {
	mock.Mock
}

func (m *MockMasterBills) Create(ctx context.Context, mb *bill.MasterBill) error {
	return m.Called(ctx, mb).Error(0)
}

func (m *MockMasterBills) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*bill.MasterBill, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bill.MasterBill), args.Error(1)
}

func (m *MockMasterBills) UpdatePaidTotal(ctx context.Context, mb *bill.MasterBill) error {
	return m.Called(ctx, mb).Error(0)
}

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) SettleFromWallet(ctx context.Context, cmd bill.WalletSettlementCommand) (bill.WalletSettlementResult, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(bill.WalletSettlementResult), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Apply(ctx context.Context, p ledger.Posting) (*ledger.Account, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, tenantID uuid.UUID, job bill.PendingJob) error {
	return m.Called(ctx, tenantID, job).Error(0)
}

type MockIdempotency struct {
	mock.Mock
}

func (m *MockIdempotency) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotency) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotency) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockIdempotency) Close() error { return nil }

// memRecipientBills is an in-memory recipient bill store. Bills whose number
// is in reject fail every write.
type memRecipientBills struct {
	mu      sync.Mutex
	bills   []*bill.RecipientBill
	batches []int
	reject  map[string]bool
}

func newMemRecipientBills(reject ...string) *memRecipientBills {
	r := &memRecipientBills{reject: make(map[string]bool)}
	for _, n := range reject {
		r.reject[n] = true
	}
	return r
}

func (r *memRecipientBills) CreateBatch(_ context.Context, bills []*bill.RecipientBill) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, len(bills))
	for _, rb := range bills {
		if r.reject[rb.BillNumber] {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	r.bills = append(r.bills, bills...)
	return nil
}

func (r *memRecipientBills) ListByMasterBill(_ context.Context, _, masterBillID uuid.UUID, _ shared.Filter) ([]bill.RecipientBill, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bill.RecipientBill
	for _, rb := range r.bills {
		if rb.MasterBillID == masterBillID {
			out = append(out, *rb)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memRecipientBills) SumOriginalAmount(_ context.Context, _, masterBillID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, rb := range r.bills {
		if rb.MasterBillID == masterBillID {
			sum = sum.Add(rb.OriginalAmount)
		}
	}
	return sum, nil
}

func (r *memRecipientBills) byNumber(number string) *bill.RecipientBill {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rb := range r.bills {
		if rb.BillNumber == number {
			return rb
		}
	}
	return nil
}

var (
	tenantID    = uuid.MustParse("7c0a5e51-3f7b-4c1e-9a55-2f4f0c5a9b10")
	masterID    = uuid.MustParse("0b8f3d2e-5a61-4f0c-8d7e-1c2b3a4d5e6f")
	invoiceDate = time.Date(2026, time.June, 1, 9, 30, 0, 0, time.UTC)
	dueDate     = time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func testConfig() Config {
	return Config{
		Concurrency:           2,
		PreloadChunkSize:      2,
		MaxSettlementAttempts: 3,
		WriterBatchSize:       2,
		WriterQueueSize:       4,
	}
}

func testFlat(wing, floor, flat string, class member.Classification, wallet int64) member.Flat {
	return member.Flat{
		BaseEntity:     shared.NewBaseEntity(),
		TenantID:       tenantID,
		Key:            member.NewFlatKey(wing, floor, flat),
		Classification: class,
		MemberName:     "Member " + flat,
		WalletBalance:  d(wallet),
	}
}

func maintenanceItems() []bill.Item {
	return []bill.Item{{
		Name:          "Maintenance",
		LedgerGroup:   "Income",
		LedgerAccount: "Maintenance",
		OwnerAmount:   d(100),
		RenterAmount:  d(200),
		ClosedAmount:  d(50),
	}}
}

func billNumbers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = sequence.DefaultFormatter().Format(sequence.PurposeBill, invoiceDate, int64(i+1))
	}
	return out
}
