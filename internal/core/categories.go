package core

var (
	expenseCategories = []string{
		"Food", "Transport", "Shopping", "Bills", "Entertainment", "Health", "Education", "Other",
	}
	incomeCategories = []string{
		"Salary", "Bonus", "Investment", "Gift", "Other",
	}
)

// DefaultCategories returns the suggested categories for a transaction type.
// Categories are free text; this list only seeds client pickers.
func DefaultCategories(t TransactionType) []string {
	var src []string
	switch t {
	case Income:
		src = incomeCategories
	case Expense:
		src = expenseCategories
	default:
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
