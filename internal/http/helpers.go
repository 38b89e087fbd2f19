package http

import (
	"time"

	"github.com/shopspring/decimal"

	"moneymate/internal/core"
	"moneymate/internal/currency"
	"moneymate/internal/services"
)

type transactionDTO struct {
	ID          int64     `json:"id"`
	Amount      string    `json:"amount"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Formatted   string    `json:"formatted"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTransactionDTO(tx core.Transaction, base string) transactionDTO {
	amount := tx.Amount.Decimal()
	return transactionDTO{
		ID:          tx.ID,
		Amount:      amount.StringFixed(2),
		AmountCents: tx.Amount.Cents,
		Currency:    base,
		Formatted:   currency.Format(amount, base),
		Description: tx.Description,
		Type:        tx.Type.String(),
		Category:    tx.Category,
		Date:        tx.Date.String(),
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
}

type transactionListDTO struct {
	Count        int              `json:"count"`
	Year         int              `json:"year,omitempty"`
	Month        int              `json:"month,omitempty"`
	Transactions []transactionDTO `json:"transactions"`
}

type amountDTO struct {
	Value     string `json:"value"`
	Currency  string `json:"currency"`
	Formatted string `json:"formatted"`
}

func toAmountDTO(a services.Amount) amountDTO {
	return amountDTO{
		Value:     a.Value.Round(8).String(),
		Currency:  a.Currency,
		Formatted: a.Formatted,
	}
}

type balanceDTO struct {
	Count            int       `json:"count"`
	Currency         string    `json:"currency"`
	Income           amountDTO `json:"income"`
	Expense          amountDTO `json:"expense"`
	Balance          amountDTO `json:"balance"`
	ConversionFailed bool      `json:"conversion_failed,omitempty"`
}

func toBalanceDTO(b services.BalanceReport) balanceDTO {
	return balanceDTO{
		Count:            b.Count,
		Currency:         b.Currency,
		Income:           toAmountDTO(b.Income),
		Expense:          toAmountDTO(b.Expense),
		Balance:          toAmountDTO(b.Balance),
		ConversionFailed: b.ConversionFailed,
	}
}

type categoryShareDTO struct {
	Name    string    `json:"name"`
	Amount  amountDTO `json:"amount"`
	Percent float64   `json:"percent"`
}

type monthlyReportDTO struct {
	Year             int                `json:"year"`
	Month            int                `json:"month"`
	Currency         string             `json:"currency"`
	Income           amountDTO          `json:"income"`
	Expense          amountDTO          `json:"expense"`
	Total            amountDTO          `json:"total"`
	Categories       []categoryShareDTO `json:"categories"`
	ConversionFailed bool               `json:"conversion_failed,omitempty"`
}

func toMonthlyReportDTO(m services.MonthlyReport) monthlyReportDTO {
	out := monthlyReportDTO{
		Year:             m.Year,
		Month:            m.Month,
		Currency:         m.Currency,
		Income:           toAmountDTO(m.Income),
		Expense:          toAmountDTO(m.Expense),
		Total:            toAmountDTO(m.Total),
		Categories:       make([]categoryShareDTO, 0, len(m.Categories)),
		ConversionFailed: m.ConversionFailed,
	}
	for _, c := range m.Categories {
		out.Categories = append(out.Categories, categoryShareDTO{
			Name:    c.Name,
			Amount:  toAmountDTO(c.Amount),
			Percent: c.Percent,
		})
	}
	return out
}

type ratesDTO struct {
	Base      string            `json:"base"`
	Source    string            `json:"source"`
	Offline   bool              `json:"offline"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
	Rates     map[string]string `json:"rates"`
	Warning   string            `json:"warning,omitempty"`
}

func toRatesDTO(snap currency.Snapshot) ratesDTO {
	out := ratesDTO{
		Base:    snap.Base,
		Source:  string(snap.Source),
		Offline: snap.Offline,
		Rates:   make(map[string]string, len(snap.Rates)),
	}
	if !snap.UpdatedAt.IsZero() {
		at := snap.UpdatedAt
		out.UpdatedAt = &at
	}
	for code, v := range snap.Rates {
		out.Rates[code] = v.String()
	}
	if snap.Err != nil {
		out.Warning = snap.Err.Error()
	}
	return out
}

type conversionDTO struct {
	Amount    string `json:"amount"`
	From      string `json:"from"`
	To        string `json:"to"`
	Rate      string `json:"rate"`
	Result    string `json:"result"`
	Formatted string `json:"formatted"`
	Source    string `json:"source"`
}

func newConversionDTO(amount, rate, result decimal.Decimal, from, to string, source currency.Source) conversionDTO {
	return conversionDTO{
		Amount:    amount.String(),
		From:      from,
		To:        to,
		Rate:      rate.Round(8).String(),
		Result:    result.Round(8).String(),
		Formatted: currency.Format(result, to),
		Source:    string(source),
	}
}
