package bulkbill

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/ledger"
	"github.com/societyledger/backend/internal/domain/member"
)

type settleFixture struct {
	svc     *Service
	settler *MockSettler
	repo    *memRecipientBills
	writer  *recipientWriter
	acc     *accumulator
}

func newSettleFixture() *settleFixture {
	settler := new(MockSettler)
	repo := newMemRecipientBills()
	return &settleFixture{
		svc:     NewService(Dependencies{Settler: settler}, testConfig()),
		settler: settler,
		repo:    repo,
		writer:  newRecipientWriter(context.Background(), repo, 10, 10),
		acc:     newAccumulator(),
	}
}

func (f *settleFixture) settle(rec recipient) settlementOutcome {
	return f.settleWith(context.Background(), rec)
}

func (f *settleFixture) settleWith(ctx context.Context, rec recipient) settlementOutcome {
	return f.svc.settle(ctx, settlementRun{writer: f.writer, acc: f.acc}, settlementTask{
		TenantID:     tenantID,
		MasterBillID: masterID,
		BillNumber:   "BILL/2026-27/000001",
		DueDate:      dueDate,
		Date:         ledger.Day(invoiceDate),
		Recipient:    rec,
	})
}

func priced(class member.Classification, wallet int64) recipient {
	flat := testFlat("A", "1", "101", class, wallet)
	amount, alloc := bill.Allocate(maintenanceItems(), class)
	return recipient{Flat: flat, Amount: amount, Allocation: alloc}
}

var (
	maintenanceKey = ledger.NewAccountKey("Income", "Maintenance")
	receivableMKey = ledger.NewAccountKey(ledger.GroupAccountReceivable, "Maintenance")
)

func TestSettle_PaidFromWallet(t *testing.T) {
	f := newSettleFixture()
	f.settler.On("SettleFromWallet", mock.Anything, mock.MatchedBy(func(cmd bill.WalletSettlementCommand) bool {
		return cmd.Amount.Equal(d(100)) && cmd.BillNumber == "BILL/2026-27/000001" && cmd.Date.Equal(ledger.Day(invoiceDate))
	})).Return(bill.WalletSettlementResult{Outcome: bill.OutcomePaid}, nil).Once()

	out := f.settle(priced(member.ClassificationOwner, 150))
	written, _ := f.writer.Close()

	assert.Equal(t, statePaid, out.State)
	assert.Equal(t, 1, out.Attempts)
	assert.True(t, out.Paid.Equal(d(100)))
	assert.Zero(t, written)

	totals := f.acc.totals()
	assert.True(t, totals.Paid.Equal(d(100)))
	assert.Empty(t, totals.Items)
	assert.Empty(t, totals.Receivables)
	f.settler.AssertExpectations(t)
}

func TestSettle_InsufficientBalanceBecomesUnpaid(t *testing.T) {
	f := newSettleFixture()
	f.settler.On("SettleFromWallet", mock.Anything, mock.Anything).
		Return(bill.WalletSettlementResult{Outcome: bill.OutcomeInsufficientBalance}, nil).Once()

	out := f.settle(priced(member.ClassificationRenter, 0))
	f.writer.Close()

	assert.Equal(t, stateUnpaid, out.State)
	assert.False(t, out.Failed)
	assert.Equal(t, 1, out.Attempts)

	rb := f.repo.byNumber("BILL/2026-27/000001")
	require.NotNil(t, rb)
	assert.Equal(t, bill.StatusUnpaid, rb.Status)
	assert.True(t, rb.Amount.Equal(d(200)))
	assert.True(t, rb.OriginalAmount.Equal(d(200)))

	totals := f.acc.totals()
	assert.True(t, totals.Items[maintenanceKey].Equal(d(200)))
	assert.True(t, totals.Receivables[receivableMKey].Equal(d(200)))
	assert.True(t, totals.Paid.IsZero())
}

func TestSettle_RetriesTransientErrors(t *testing.T) {
	f := newSettleFixture()
	f.settler.On("SettleFromWallet", mock.Anything, mock.Anything).
		Return(bill.WalletSettlementResult{}, errors.New("deadlock detected")).Once()
	f.settler.On("SettleFromWallet", mock.Anything, mock.Anything).
		Return(bill.WalletSettlementResult{Outcome: bill.OutcomePaid}, nil).Once()

	out := f.settle(priced(member.ClassificationOwner, 100))
	f.writer.Close()

	assert.Equal(t, statePaid, out.State)
	assert.Equal(t, 2, out.Attempts)
	assert.False(t, out.Failed)
	f.settler.AssertExpectations(t)
}

func TestSettle_ExhaustedAttemptsFallBackToUnpaid(t *testing.T) {
	f := newSettleFixture()
	f.settler.On("SettleFromWallet", mock.Anything, mock.Anything).
		Return(bill.WalletSettlementResult{}, errors.New("connection refused")).Times(3)

	out := f.settle(priced(member.ClassificationClosed, 500))
	f.writer.Close()

	assert.Equal(t, stateUnpaid, out.State)
	assert.True(t, out.Failed)
	assert.Equal(t, 3, out.Attempts)
	assert.ErrorContains(t, out.Err, "connection refused")

	rb := f.repo.byNumber("BILL/2026-27/000001")
	require.NotNil(t, rb)
	assert.Equal(t, bill.StatusUnpaid, rb.Status)
	assert.True(t, f.acc.totals().Items[maintenanceKey].Equal(d(50)))
	f.settler.AssertExpectations(t)
}

func TestSettle_ZeroAmountWritesPaidBill(t *testing.T) {
	f := newSettleFixture()
	zero := recipient{Flat: testFlat("A", "1", "101", member.ClassificationOwner, 0), Amount: d(0), Allocation: bill.Allocation{}}

	out := f.settle(zero)
	f.writer.Close()

	assert.Equal(t, statePaid, out.State)
	assert.Zero(t, out.Attempts)
	rb := f.repo.byNumber("BILL/2026-27/000001")
	require.NotNil(t, rb)
	assert.Equal(t, bill.StatusPaid, rb.Status)
	assert.True(t, rb.OriginalAmount.IsZero())
	f.settler.AssertNotCalled(t, "SettleFromWallet", mock.Anything, mock.Anything)
}

func TestSettlementState_String(t *testing.T) {
	tests := []struct {
		state settlementState
		want  string
	}{
		{statePreloaded, "preloaded"},
		{stateAttempting, "attempting"},
		{statePaid, "paid"},
		{stateInsufficientBalance, "insufficient_balance"},
		{stateFailed, "failed"},
		{stateUnpaid, "unpaid"},
		{settlementState(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestAccumulator_DropUnpaidReverses(t *testing.T) {
	acc := newAccumulator()
	alloc := bill.Allocation{maintenanceKey: d(120)}
	acc.addUnpaid(alloc)
	acc.addUnpaid(alloc)
	acc.dropUnpaid(alloc)

	totals := acc.totals()
	assert.True(t, totals.Items[maintenanceKey].Equal(d(120)))
	assert.True(t, totals.Receivables[receivableMKey].Equal(d(120)))

	// the snapshot is a copy
	totals.Items[maintenanceKey] = d(0)
	assert.True(t, acc.totals().Items[maintenanceKey].Equal(d(120)))
}

func TestSettle_CancelledCallerIsBilledUnpaid(t *testing.T) {
	f := newSettleFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := priced(member.ClassificationOwner, 1000)
	out := f.settleWith(ctx, rec)
	f.writer.Close()

	assert.Equal(t, stateUnpaid, out.State)
	assert.True(t, out.Failed)
	assert.Zero(t, out.Attempts)
	assert.ErrorIs(t, out.Err, context.Canceled)
	f.settler.AssertNotCalled(t, "SettleFromWallet", mock.Anything, mock.Anything)

	rb := f.repo.byNumber("BILL/2026-27/000001")
	require.NotNil(t, rb)
	assert.Equal(t, bill.StatusUnpaid, rb.Status)
	assert.True(t, rb.OriginalAmount.Equal(rec.Amount))
	assert.True(t, f.acc.totals().Receivables[receivableMKey].Equal(rec.Amount))
}

func TestSettle_StartedAttemptOutlivesCaller(t *testing.T) {
	f := newSettleFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attemptErr error
	f.settler.On("SettleFromWallet", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			cancel()
			attemptErr = args.Get(0).(context.Context).Err()
		}).
		Return(bill.WalletSettlementResult{Outcome: bill.OutcomePaid}, nil).Once()

	rec := priced(member.ClassificationOwner, 1000)
	out := f.settleWith(ctx, rec)
	f.writer.Close()

	assert.NoError(t, attemptErr)
	assert.Equal(t, statePaid, out.State)
	assert.True(t, f.acc.totals().Paid.Equal(rec.Amount))
}

func TestSettle_ReplayedCommitCountsAsPaid(t *testing.T) {
	f := newSettleFixture()
	f.settler.On("SettleFromWallet", mock.Anything, mock.Anything).
		Return(bill.WalletSettlementResult{}, errors.New("connection reset by peer")).Once()
	f.settler.On("SettleFromWallet", mock.Anything, mock.Anything).
		Return(bill.WalletSettlementResult{Outcome: bill.OutcomePaid, Replayed: true}, nil).Once()

	rec := priced(member.ClassificationOwner, 1000)
	out := f.settle(rec)
	f.writer.Close()

	assert.Equal(t, statePaid, out.State)
	assert.False(t, out.Failed)
	totals := f.acc.totals()
	assert.True(t, totals.Paid.Equal(rec.Amount))
	assert.Empty(t, totals.Receivables)
	assert.Nil(t, f.repo.byNumber("BILL/2026-27/000001"))
}
