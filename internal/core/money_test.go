package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{".5", 50, true},
		{"17000", 1700000, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyDecimalRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"12.34", 1234},
		{"0.005", 1},
		{"0.004", 0},
		{"-0.005", -1},
		{"158.8235294117647", 15882},
	}
	for _, tc := range cases {
		got, err := MoneyFromDecimal(decimal.RequireFromString(tc.in))
		if err != nil || got.Cents != tc.want {
			t.Fatalf("MoneyFromDecimal(%s) = %d, %v, want %d", tc.in, got.Cents, err, tc.want)
		}
	}

	m := Money{Cents: 1705}
	if s := m.Decimal().String(); s != "17.05" {
		t.Fatalf("Decimal() = %s, want 17.05", s)
	}
}

func TestMoneyFromDecimalRejectsOverflow(t *testing.T) {
	limit := decimal.New(MaxAmountCents, -2)
	got, err := MoneyFromDecimal(limit)
	if err != nil || got.Cents != MaxAmountCents {
		t.Fatalf("MoneyFromDecimal(limit) = %d, %v", got.Cents, err)
	}

	for _, in := range []string{"10000000000000.01", "184467440737095517.16", "-99999999999999999999"} {
		if _, err := MoneyFromDecimal(decimal.RequireFromString(in)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("MoneyFromDecimal(%s) error = %v, want ErrInvalidAmount", in, err)
		}
	}
	if _, err := ParseDecimalToCents("10000000000000.01"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("ParseDecimalToCents above the limit = %v, want ErrInvalidAmount", err)
	}
}
