package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes a sort direction to ASC or DESC, defaulting
// to DESC for anything unrecognized
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField checks a requested sort column against a whitelist,
// falling back to defaultField. Order-by fragments are concatenated into
// SQL, so only whitelisted column names may pass through.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed != "" && allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// BalanceSortFields contains allowed sort fields for stock balances
var BalanceSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"product_id":       true,
	"warehouse_id":     true,
	"current_stock":    true,
	"reserved_stock":   true,
	"last_movement_at": true,
}

// TransactionSortFields contains allowed sort fields for ledger headers
var TransactionSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"occurred_at":   true,
	"movement_type": true,
}
