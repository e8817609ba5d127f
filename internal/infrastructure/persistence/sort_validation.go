package persistence

import (
	"strings"

	"github.com/societyledger/backend/internal/domain/shared"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC.
// Anything other than asc (any case) is DESC.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, else defaultField
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// sortClause builds an ORDER BY clause from filter. fallback is used as is
// when the filter names no field or an unknown one.
func sortClause(filter shared.Filter, allowedFields map[string]bool, fallback string) string {
	field := ValidateSortField(filter.OrderBy, allowedFields, "")
	if field == "" {
		return fallback
	}
	return field + " " + ValidateSortOrder(filter.OrderDir)
}

// RecipientBillSortFields contains allowed sort fields for recipient bills
var RecipientBillSortFields = map[string]bool{
	"id":              true,
	"created_at":      true,
	"updated_at":      true,
	"bill_number":     true,
	"status":          true,
	"amount":          true,
	"original_amount": true,
	"due_date":        true,
}

// FlatSortFields contains allowed sort fields for flats
var FlatSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"classification": true,
	"member_name":    true,
	"wallet_balance": true,
}
