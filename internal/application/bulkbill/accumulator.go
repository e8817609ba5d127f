package bulkbill

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/domain/ledger"
)

// accumulator collects what the settlement tasks of one run owe the ledger.
// Tasks write concurrently; it is read once, after every task has returned.
type accumulator struct {
	mu          sync.Mutex
	items       bill.Allocation
	receivables bill.Allocation
	paid        decimal.Decimal
}

func newAccumulator() *accumulator {
	return &accumulator{
		items:       make(bill.Allocation),
		receivables: make(bill.Allocation),
		paid:        decimal.Zero,
	}
}

// addUnpaid books an unpaid recipient's allocation against both the item
// accounts and the matching receivable accounts
func (a *accumulator) addUnpaid(alloc bill.Allocation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, amount := range alloc {
		a.items.Add(key, amount)
		a.receivables.Add(receivableKey(key), amount)
	}
}

// dropUnpaid reverses addUnpaid for a bill that never reached storage
func (a *accumulator) dropUnpaid(alloc bill.Allocation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, amount := range alloc {
		a.items.Add(key, amount.Neg())
		a.receivables.Add(receivableKey(key), amount.Neg())
	}
}

// addPaid books an amount settled from a wallet
func (a *accumulator) addPaid(amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paid = a.paid.Add(amount)
}

type ledgerTotals struct {
	Items       bill.Allocation
	Receivables bill.Allocation
	Paid        decimal.Decimal
}

func (a *accumulator) totals() ledgerTotals {
	a.mu.Lock()
	defer a.mu.Unlock()
	items := make(bill.Allocation, len(a.items))
	items.Merge(a.items)
	receivables := make(bill.Allocation, len(a.receivables))
	receivables.Merge(a.receivables)
	return ledgerTotals{Items: items, Receivables: receivables, Paid: a.paid}
}

// receivableKey is the Account Receivable bucket for an item account
func receivableKey(item ledger.AccountKey) ledger.AccountKey {
	return ledger.NewAccountKey(ledger.GroupAccountReceivable, item.Account)
}
