package currency

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var smallThreshold = decimal.New(1, -2)

// Format renders amount with thousands grouping followed by the currency
// code. Amounts below 0.01 keep up to eight decimals, zero-decimal
// currencies are shown as whole units, everything else with two decimals.
func Format(amount decimal.Decimal, code string) string {
	code = Normalize(code)
	var num string
	switch {
	case amount.Abs().LessThan(smallThreshold):
		num = formatSmall(amount)
	case IsZeroDecimal(code):
		num = group(amount, 0)
	default:
		num = group(amount, 2)
	}
	return num + " " + code
}

// group rounds to places and puts thousands separators on the integer part.
// It stays exact for amounts far beyond float64 precision.
func group(amount decimal.Decimal, places int32) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	rounded := amount.Round(places)
	out := sign + humanize.BigComma(rounded.BigInt())
	if _, frac, ok := strings.Cut(rounded.StringFixed(places), "."); ok {
		out += "." + frac
	}
	return out
}

// formatSmall prints between two and eight decimals.
func formatSmall(amount decimal.Decimal) string {
	s := amount.Round(8).String()
	if s == "-0" {
		s = "0"
	}
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s + ".00"
	}
	if decimals := len(s) - dot - 1; decimals < 2 {
		s += strings.Repeat("0", 2-decimals)
	}
	return s
}

// ParseAmount validates user input for a conversion.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}
