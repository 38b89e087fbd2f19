package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name    string
	Amount  Money
	Percent float64 // share of the month's expense total, 0-100
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Income     Money
	Expense    Money
	Total      Money // Income - Expense
	ByCategory []CategoryAmount
}

// Balance aggregates every live transaction.
type Balance struct {
	Income  Money
	Expense Money
	Balance Money
	Count   int
}

// NewBalance derives the balance from the income and expense sums.
func NewBalance(income, expense Money, count int) Balance {
	return Balance{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
		Count:   count,
	}
}

// NewMonthOverview builds an overview from per-category expense sums. Rows are
// sorted by amount descending, then by name.
func NewMonthOverview(year, month int, income, expense Money, byCategory []CategoryAmount) MonthOverview {
	rows := make([]CategoryAmount, len(byCategory))
	copy(rows, byCategory)

	var total int64
	for _, r := range rows {
		total += r.Amount.Cents
	}
	for i := range rows {
		rows[i].Percent = Percent(rows[i].Amount.Cents, total)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Amount.Cents != rows[j].Amount.Cents {
			return rows[i].Amount.Cents > rows[j].Amount.Cents
		}
		return rows[i].Name < rows[j].Name
	})

	return MonthOverview{
		Year:       year,
		Month:      month,
		Income:     income,
		Expense:    expense,
		Total:      income.Sub(expense),
		ByCategory: rows,
	}
}

// Percent returns part/total*100 rounded to one decimal place. A zero total
// yields zero.
func Percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	p := decimal.NewFromInt(part).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(total)).Round(1)
	f, _ := p.Float64()
	return f
}
