package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents caps a single transaction at 10^13 base units. Thousands of
// maximal rows still sum inside int64, so balance queries cannot overflow.
const MaxAmountCents int64 = 1_000_000_000_000_000

var maxCents = decimal.NewFromInt(MaxAmountCents)

// ParseDecimalToCents reads a user-entered positive amount into cents.
// Dot and comma both work as the decimal separator; digits past the second
// decimal are rounded half up, so "12.345" is 1235. Signs, exponents and
// amounts that round to zero are rejected with ErrInvalidAmount.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && (r < '0' || r > '9') {
			return 0, ErrInvalidAmount
		}
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2)
	if !cents.IsPositive() || cents.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// MoneyFromDecimal rounds d half away from zero to two places. Values whose
// magnitude exceeds MaxAmountCents are rejected instead of wrapping.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Shift(2)
	if cents.Abs().GreaterThan(maxCents) {
		return Money{}, fmt.Errorf("%w: %s exceeds the maximum of %s", ErrInvalidAmount, d.StringFixed(2), maxCents.Shift(-2).StringFixed(2))
	}
	return Money{Cents: cents.IntPart()}, nil
}
