package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/societyledger/backend/internal/domain/shared"
)

// Well-known ledger groups and accounts used by bulk billing.
const (
	GroupAccountReceivable  = "Account Receivable"
	GroupCurrentLiabilities = "Current Liabilities"
	AccountMembersAdvanced  = "Members Advanced"
)

// DayLayout is the storage key format for posting dates
const DayLayout = "2006-01-02"

// Direction is the sign of a posting
type Direction string

const (
	DirectionAdd      Direction = "add"
	DirectionSubtract Direction = "subtract"
)

// IsValid returns true if the direction is known
func (d Direction) IsValid() bool {
	return d == DirectionAdd || d == DirectionSubtract
}

// AccountKey identifies a ledger account within a tenant
type AccountKey struct {
	Group   string `json:"ledger_group"`
	Account string `json:"ledger_account"`
}

// NewAccountKey trims both parts of the key
func NewAccountKey(group, account string) AccountKey {
	return AccountKey{Group: strings.TrimSpace(group), Account: strings.TrimSpace(account)}
}

// String renders the key as "group / account"
func (k AccountKey) String() string {
	return k.Group + " / " + k.Account
}

// Less orders keys by group then account
func (k AccountKey) Less(o AccountKey) bool {
	if k.Group != o.Group {
		return k.Group < o.Group
	}
	return k.Account < o.Account
}

// Account is the running balance of one ledger account
type Account struct {
	shared.BaseEntity
	TenantID        uuid.UUID
	Key             AccountKey
	TotalBalance    decimal.Decimal
	LastUpdatedDate *time.Time
}

// DailyDelta is the net change posted to an account on one day
type DailyDelta struct {
	AccountID uuid.UUID
	Date      time.Time
	Change    decimal.Decimal
}

// Posting is one request to move an account balance
type Posting struct {
	TenantID  uuid.UUID
	Key       AccountKey
	Amount    decimal.Decimal
	Direction Direction
	Date      time.Time
}

// NewPosting builds a validated posting with the date truncated to the day
func NewPosting(tenantID uuid.UUID, group, account string, amount decimal.Decimal, dir Direction, date time.Time) (Posting, error) {
	p := Posting{
		TenantID:  tenantID,
		Key:       NewAccountKey(group, account),
		Amount:    amount,
		Direction: dir,
		Date:      Day(date),
	}
	if err := p.Validate(); err != nil {
		return Posting{}, err
	}
	return p, nil
}

// Validate checks the posting before any write happens
func (p Posting) Validate() error {
	if p.TenantID == uuid.Nil {
		return shared.NewValidationError("tenant id is required")
	}
	if p.Key.Group == "" {
		return shared.NewValidationError("ledger group is required")
	}
	if p.Key.Account == "" {
		return shared.NewValidationError("ledger account is required")
	}
	if !p.Amount.IsPositive() {
		return shared.NewValidationError("amount must be positive, got %s", p.Amount.String())
	}
	if !p.Direction.IsValid() {
		return shared.NewValidationError("unknown direction %q", string(p.Direction))
	}
	if p.Date.IsZero() {
		return shared.NewValidationError("posting date is required")
	}
	return nil
}

// Signed returns the amount with the direction applied
func (p Posting) Signed() decimal.Decimal {
	if p.Direction == DirectionSubtract {
		return p.Amount.Neg()
	}
	return p.Amount
}

// DayKey returns the storage key for the posting date
func (p Posting) DayKey() string {
	return p.Date.Format(DayLayout)
}

// Apply folds the posting into the account and the day's delta, returning the
// new delta. The total moves by exactly the same signed amount as the delta.
func (a *Account) Apply(p Posting, oldDelta decimal.Decimal) decimal.Decimal {
	signed := p.Signed()
	newDelta := oldDelta.Add(signed)
	a.TotalBalance = a.TotalBalance.Add(newDelta.Sub(oldDelta))
	if a.LastUpdatedDate == nil || p.Date.After(*a.LastUpdatedDate) {
		d := p.Date
		a.LastUpdatedDate = &d
	}
	a.Touch()
	return newDelta
}

// Day truncates t to midnight UTC
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD key
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

// Drift is the result of reconciling an account against its daily deltas
type Drift struct {
	Key          AccountKey      `json:"key"`
	TotalBalance decimal.Decimal `json:"total_balance"`
	SumOfDeltas  decimal.Decimal `json:"sum_of_deltas"`
	Difference   decimal.Decimal `json:"difference"`
	Days         int             `json:"days"`
}

// Balanced is true when the total equals the sum of deltas
func (d Drift) Balanced() bool {
	return d.Difference.IsZero()
}
