package bill

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/ledger"
	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/domain/shared"
)

// Item is one line of a master bill with per-classification amounts
type Item struct {
	Name          string          `json:"name"`
	LedgerGroup   string          `json:"ledger_group"`
	LedgerAccount string          `json:"ledger_account"`
	OwnerAmount   decimal.Decimal `json:"owner_amount"`
	RenterAmount  decimal.Decimal `json:"renter_amount"`
	ClosedAmount  decimal.Decimal `json:"closed_amount"`
}

// Key returns the ledger account the item posts to
func (i Item) Key() ledger.AccountKey {
	return ledger.NewAccountKey(i.LedgerGroup, i.LedgerAccount)
}

// AmountFor returns the amount charged to a flat of the given classification
func (i Item) AmountFor(c member.Classification) decimal.Decimal {
	switch c {
	case member.ClassificationOwner:
		return i.OwnerAmount
	case member.ClassificationRenter:
		return i.RenterAmount
	case member.ClassificationClosed:
		return i.ClosedAmount
	default:
		return decimal.Zero
	}
}

func (i Item) validate() error {
	if i.Name == "" {
		return shared.NewValidationError("item name is required")
	}
	if i.Key().Group == "" || i.Key().Account == "" {
		return shared.NewValidationError("item %q needs a ledger group and account", i.Name)
	}
	for _, amt := range []decimal.Decimal{i.OwnerAmount, i.RenterAmount, i.ClosedAmount} {
		if amt.IsNegative() {
			return shared.NewValidationError("item %q has a negative amount", i.Name)
		}
	}
	return nil
}

// Allocation sums bill amounts per ledger account
type Allocation map[ledger.AccountKey]decimal.Decimal

// Add merges amount into key
func (a Allocation) Add(key ledger.AccountKey, amount decimal.Decimal) {
	if cur, ok := a[key]; ok {
		a[key] = cur.Add(amount)
		return
	}
	a[key] = amount
}

// Merge folds other into a
func (a Allocation) Merge(other Allocation) {
	for k, v := range other {
		a.Add(k, v)
	}
}

// Total sums every bucket
func (a Allocation) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range a {
		total = total.Add(v)
	}
	return total
}

// Keys returns bucket keys in a stable order
func (a Allocation) Keys() []ledger.AccountKey {
	keys := make([]ledger.AccountKey, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Entries flattens the allocation for storage and transport
func (a Allocation) Entries() []AllocationEntry {
	out := make([]AllocationEntry, 0, len(a))
	for _, k := range a.Keys() {
		out = append(out, AllocationEntry{LedgerGroup: k.Group, LedgerAccount: k.Account, Amount: a[k]})
	}
	return out
}

// AllocationFromEntries rebuilds an allocation
func AllocationFromEntries(entries []AllocationEntry) Allocation {
	a := make(Allocation, len(entries))
	for _, e := range entries {
		a.Add(ledger.NewAccountKey(e.LedgerGroup, e.LedgerAccount), e.Amount)
	}
	return a
}

// AllocationEntry is one ledger bucket of an allocation
type AllocationEntry struct {
	LedgerGroup   string          `json:"ledger_group"`
	LedgerAccount string          `json:"ledger_account"`
	Amount        decimal.Decimal `json:"amount"`
}

// Allocate computes what a flat of class owes for items and how it splits
// across ledger accounts. Zero-amount items contribute nothing.
func Allocate(items []Item, class member.Classification) (decimal.Decimal, Allocation) {
	alloc := make(Allocation)
	total := decimal.Zero
	for _, it := range items {
		amt := it.AmountFor(class)
		if amt.IsZero() {
			continue
		}
		alloc.Add(it.Key(), amt)
		total = total.Add(amt)
	}
	return total, alloc
}

// ItemPosting is the ledger posting one item makes for a classification
type ItemPosting struct {
	ItemName      string          `json:"item_name"`
	LedgerGroup   string          `json:"ledger_group"`
	LedgerAccount string          `json:"ledger_account"`
	Amount        decimal.Decimal `json:"amount"`
}

// ItemsLedger lists the per-item postings of a bill for a classification.
// Used by payment acceptance when an unpaid recipient bill is settled later.
func ItemsLedger(items []Item, class member.Classification) ([]ItemPosting, error) {
	if !class.IsValid() {
		return nil, shared.NewValidationError("unknown classification %q", string(class))
	}
	if !class.Billable() {
		return nil, shared.NewValidationError("classification %q is never billed", string(class))
	}
	out := make([]ItemPosting, 0, len(items))
	for _, it := range items {
		amt := it.AmountFor(class)
		if amt.IsZero() {
			continue
		}
		out = append(out, ItemPosting{
			ItemName:      it.Name,
			LedgerGroup:   it.LedgerGroup,
			LedgerAccount: it.LedgerAccount,
			Amount:        amt,
		})
	}
	return out, nil
}
