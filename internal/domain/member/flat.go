// Package member holds the flat directory: structured flat keys, occupancy
// classification, contact details and the per-flat wallet balance.
package member

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/shared"
)

// Classification drives which bill item amount applies to a flat
type Classification string

const (
	ClassificationOwner  Classification = "owner"
	ClassificationRenter Classification = "renter"
	ClassificationClosed Classification = "closed"
	ClassificationDead   Classification = "dead"
)

// IsValid returns true for known classifications
func (c Classification) IsValid() bool {
	switch c {
	case ClassificationOwner, ClassificationRenter, ClassificationClosed, ClassificationDead:
		return true
	}
	return false
}

// Billable is false for flats that must never receive a bill
func (c Classification) Billable() bool {
	return c != ClassificationDead
}

// FlatKey addresses a flat within a tenant.
// A key with an empty Floor or Flat is a selector for everything beneath it.
type FlatKey struct {
	Wing  string `json:"wing"`
	Floor string `json:"floor"`
	Flat  string `json:"flat"`
}

// NewFlatKey trims every part
func NewFlatKey(wing, floor, flat string) FlatKey {
	return FlatKey{
		Wing:  strings.TrimSpace(wing),
		Floor: strings.TrimSpace(floor),
		Flat:  strings.TrimSpace(flat),
	}
}

// IsExact reports whether the key names a single flat
func (k FlatKey) IsExact() bool {
	return k.Wing != "" && k.Floor != "" && k.Flat != ""
}

// Validate checks the key is a usable selector
func (k FlatKey) Validate() error {
	if k.Wing == "" {
		return shared.NewValidationError("wing is required")
	}
	if k.Floor == "" && k.Flat != "" {
		return shared.NewValidationError("flat %q given without floor", k.Flat)
	}
	return nil
}

// Matches reports whether the selector covers the exact key other
func (k FlatKey) Matches(other FlatKey) bool {
	if k.Wing != other.Wing {
		return false
	}
	if k.Floor != "" && k.Floor != other.Floor {
		return false
	}
	if k.Flat != "" && k.Flat != other.Flat {
		return false
	}
	return true
}

// String is for display and logging only
func (k FlatKey) String() string {
	parts := []string{k.Wing}
	if k.Floor != "" {
		parts = append(parts, k.Floor)
	}
	if k.Flat != "" {
		parts = append(parts, k.Flat)
	}
	return strings.Join(parts, "-")
}

// Flat is one member unit in the directory
type Flat struct {
	shared.BaseEntity
	TenantID       uuid.UUID
	Key            FlatKey
	Classification Classification
	MemberName     string
	Email          string
	Phone          string
	WalletBalance  decimal.Decimal
}

// NewFlat creates a flat with an empty wallet
func NewFlat(tenantID uuid.UUID, key FlatKey, class Classification, memberName string) (*Flat, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("tenant id is required")
	}
	if !key.IsExact() {
		return nil, shared.NewValidationError("flat key %q must name wing, floor and flat", key.String())
	}
	if !class.IsValid() {
		return nil, shared.NewValidationError("unknown classification %q", string(class))
	}
	return &Flat{
		BaseEntity:     shared.NewBaseEntity(),
		TenantID:       tenantID,
		Key:            key,
		Classification: class,
		MemberName:     strings.TrimSpace(memberName),
		WalletBalance:  decimal.Zero,
	}, nil
}

// CanCover reports whether the wallet holds at least amount
func (f *Flat) CanCover(amount decimal.Decimal) bool {
	return f.WalletBalance.GreaterThanOrEqual(amount)
}

// Debit removes amount from the wallet
func (f *Flat) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("debit amount must be positive")
	}
	if !f.CanCover(amount) {
		return shared.ErrInsufficientBalance
	}
	f.WalletBalance = f.WalletBalance.Sub(amount)
	f.Touch()
	return nil
}

// WalletDelta is the net wallet movement of one flat on one day
type WalletDelta struct {
	TenantID uuid.UUID
	FlatKey  FlatKey
	Date     time.Time
	Change   decimal.Decimal
}

// Directory is the recipient directory owned by membership management
type Directory interface {
	// FindByKeys returns the flats found for exact keys; missing keys are simply absent
	FindByKeys(ctx context.Context, tenantID uuid.UUID, keys []FlatKey) ([]Flat, error)
	// ListMatching expands a partial selector to the flats beneath it
	ListMatching(ctx context.Context, tenantID uuid.UUID, selector FlatKey) ([]Flat, error)
}

// Repository is the writable side of the directory
type Repository interface {
	Directory
	Save(ctx context.Context, flat *Flat) error
	FindByKey(ctx context.Context, tenantID uuid.UUID, key FlatKey) (*Flat, error)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Flat, int64, error)
}
