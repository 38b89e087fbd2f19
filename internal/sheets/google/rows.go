package google

import (
	"fmt"
	"strconv"
	"strings"

	"moneymate/internal/core"
)

func headerRow() []any {
	return []any{"ID", "Date", "Type", "Category", "Description", "Amount"}
}

// rowValues lays out a transaction as ID | Date | Type | Category |
// Description | Amount. The amount is in base currency units.
func rowValues(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.Date.String(),
		tx.Type.String(),
		tx.Category,
		tx.Description,
		tx.Amount.Decimal().StringFixed(2),
	}
}

// rowOf scans column A values and returns the 1-based row number holding
// id, or 0. Non-numeric cells such as the header are skipped.
func rowOf(values [][]any, id int64) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		v, ok := cellID(row[0])
		if ok && v == id {
			return i + 1
		}
	}
	return 0
}

func cellID(cell any) (int64, bool) {
	switch v := cell.(type) {
	case float64:
		return int64(v), v == float64(int64(v))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		n, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(v)), 10, 64)
		return n, err == nil
	}
}
