package member

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/societyledger/backend/internal/domain/member"
)

// RegisterFlatRequest creates a flat or updates its member details.
// OpeningWallet only applies when the flat is new.
type RegisterFlatRequest struct {
	Wing           string           `json:"wing" binding:"required,max=32"`
	Floor          string           `json:"floor" binding:"required,max=32"`
	Flat           string           `json:"flat" binding:"required,max=32"`
	Classification string           `json:"classification" binding:"required,oneof=owner renter closed dead"`
	MemberName     string           `json:"member_name" binding:"max=200"`
	Email          string           `json:"email" binding:"omitempty,email,max=200"`
	Phone          string           `json:"phone" binding:"max=32"`
	OpeningWallet  *decimal.Decimal `json:"opening_wallet"`
}

// FlatResponse is the API view of a flat
type FlatResponse struct {
	ID             uuid.UUID       `json:"id"`
	Wing           string          `json:"wing"`
	Floor          string          `json:"floor"`
	Flat           string          `json:"flat"`
	Classification string          `json:"classification"`
	MemberName     string          `json:"member_name"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	WalletBalance  decimal.Decimal `json:"wallet_balance"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ToFlatResponse converts a domain flat
func ToFlatResponse(f *member.Flat) FlatResponse {
	return FlatResponse{
		ID:             f.ID,
		Wing:           f.Key.Wing,
		Floor:          f.Key.Floor,
		Flat:           f.Key.Flat,
		Classification: string(f.Classification),
		MemberName:     f.MemberName,
		Email:          f.Email,
		Phone:          f.Phone,
		WalletBalance:  f.WalletBalance,
		UpdatedAt:      f.UpdatedAt,
	}
}
