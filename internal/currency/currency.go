// Package currency converts amounts between currencies using exchange rates
// fetched from a public feed, persisted for an hour and backed by a built-in
// table when neither the feed nor a cached copy is available.
package currency

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// APIBase is the currency every rate is quoted against.
	APIBase = "EUR"
	// BaseCurrency is the currency stored amounts are expressed in.
	BaseCurrency = "IDR"
	// DefaultTTL is how long fetched rates stay fresh.
	DefaultTTL = time.Hour
	// DefaultRefreshTimeout bounds a single refresh.
	DefaultRefreshTimeout = 30 * time.Second

	PrefRates      = "exchange_rates"
	PrefLastUpdate = "last_update"
)

type Source string

const (
	SourceLive     Source = "live"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrOffline             = errors.New("network unavailable")
	ErrEmptyAmount         = errors.New("amount is required")
	ErrInvalidAmount       = errors.New("amount is not a number")
	ErrNegativeAmount      = errors.New("amount must not be negative")
)

// Rates maps a currency code to its value for one unit of APIBase.
type Rates map[string]decimal.Decimal

func (r Rates) Clone() Rates {
	out := make(Rates, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type Currency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var currencyNames = map[string]string{
	"USD": "US Dollar",
	"EUR": "Euro",
	"GBP": "British Pound",
	"JPY": "Japanese Yen",
	"AUD": "Australian Dollar",
	"CAD": "Canadian Dollar",
	"CHF": "Swiss Franc",
	"CNY": "Chinese Yuan",
	"SGD": "Singapore Dollar",
	"KRW": "South Korean Won",
	"THB": "Thai Baht",
	"MYR": "Malaysian Ringgit",
	"PHP": "Philippine Peso",
	"VND": "Vietnamese Dong",
	"IDR": "Indonesian Rupiah",
	"INR": "Indian Rupee",
	"HKD": "Hong Kong Dollar",
	"NZD": "New Zealand Dollar",
	"SEK": "Swedish Krona",
	"NOK": "Norwegian Krone",
}

var zeroDecimal = map[string]bool{
	"JPY": true,
	"KRW": true,
	"IDR": true,
	"VND": true,
}

// DefaultRates is used when no rate was ever fetched or persisted.
func DefaultRates() Rates {
	return Rates{
		"USD": decimal.RequireFromString("1.08"),
		"EUR": decimal.NewFromInt(1),
		"GBP": decimal.RequireFromString("0.86"),
		"JPY": decimal.NewFromInt(162),
		"IDR": decimal.NewFromInt(17000),
		"AUD": decimal.RequireFromString("1.63"),
		"CAD": decimal.RequireFromString("1.47"),
		"CHF": decimal.RequireFromString("0.97"),
		"CNY": decimal.RequireFromString("7.75"),
		"SGD": decimal.RequireFromString("1.45"),
	}
}

// SupportedCurrencies returns the selectable currencies sorted by code.
func SupportedCurrencies() []Currency {
	out := make([]Currency, 0, len(currencyNames))
	for code, name := range currencyNames {
		out = append(out, Currency{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func IsSupported(code string) bool {
	_, ok := currencyNames[Normalize(code)]
	return ok
}

// Name returns the English name of code, or code itself when unknown.
func Name(code string) string {
	code = Normalize(code)
	if n, ok := currencyNames[code]; ok {
		return n
	}
	return code
}

// IsZeroDecimal reports whether amounts in code are shown without decimals.
func IsZeroDecimal(code string) bool {
	return zeroDecimal[Normalize(code)]
}

func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
