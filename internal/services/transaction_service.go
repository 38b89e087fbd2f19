package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"moneymate/internal/cache"
	"moneymate/internal/core"
	"moneymate/internal/currency"
	"moneymate/internal/storage"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = storage.ErrNotFound
)

// Repository is the transaction store used by the service. Both the SQLite
// repository and the in-memory store satisfy it.
type Repository interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	ListTransactionsForMonth(ctx context.Context, year, month int) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction) (bool, error)
	DeleteTransaction(ctx context.Context, id int64) (bool, error)
	CountTransactions(ctx context.Context) (int, error)
	GetBalance(ctx context.Context) (core.Balance, error)
	GetCategorySpending(ctx context.Context, year, month int) ([]core.CategoryAmount, error)
	ReadMonthOverview(ctx context.Context, year, month int) (core.MonthOverview, error)
}

// Converter converts decimal amounts between currency codes.
type Converter interface {
	Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// EventPublisher announces changes so the exporter can pick them up.
type EventPublisher interface {
	PublishTransactionSync(ctx context.Context, id int64) error
	PublishTransactionDelete(ctx context.Context, id int64) error
}

// TransactionInput is the raw user input for a create or update. Amount is
// expressed in Currency and converted to the base currency before storing.
type TransactionInput struct {
	Amount      string
	Currency    string
	Description string
	Type        string
	Category    string
	Date        string
}

// Amount is a converted value ready for display.
type Amount struct {
	Value     decimal.Decimal
	Currency  string
	Formatted string
}

type BalanceReport struct {
	Count    int
	Currency string
	Income   Amount
	Expense  Amount
	Balance  Amount
	// ConversionFailed is set when the requested currency could not be used
	// and the amounts are shown in the base currency instead.
	ConversionFailed bool
}

type CategoryShare struct {
	Name    string
	Amount  Amount
	Percent float64
}

type MonthlyReport struct {
	Year             int
	Month            int
	Currency         string
	Income           Amount
	Expense          Amount
	Total            Amount
	Categories       []CategoryShare
	ConversionFailed bool
}

type TransactionService struct {
	repo          Repository
	rates         Converter
	publisher     EventPublisher
	baseCurrency  string
	allowNegative bool
	overviews     *cache.LRUCache[core.MonthOverview]

	// serialises balance checks with the writes that depend on them
	writeMu sync.Mutex

	// genMu guards gens, bumped per month on every invalidation so a read
	// that raced a write never repopulates the cache with stale totals.
	genMu sync.Mutex
	gens  map[string]uint64
}

type TransactionOption func(*TransactionService)

// WithNegativeBalance disables the insufficient-balance check on expenses.
func WithNegativeBalance(allow bool) TransactionOption {
	return func(s *TransactionService) { s.allowNegative = allow }
}

// WithOverviewCache caches month overviews until a write touches the month.
func WithOverviewCache(c *cache.LRUCache[core.MonthOverview]) TransactionOption {
	return func(s *TransactionService) { s.overviews = c }
}

// NewTransactionService wires a repository, a rate converter and an optional
// event publisher (nil disables publishing).
func NewTransactionService(repo Repository, rates Converter, publisher EventPublisher, opts ...TransactionOption) *TransactionService {
	s := &TransactionService{
		repo:         repo,
		rates:        rates,
		publisher:    publisher,
		baseCurrency: currency.BaseCurrency,
		gens:         make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TransactionService) BaseCurrency() string { return s.baseCurrency }

// Create validates the input, converts the amount into the base currency and
// stores it. Expenses larger than the current balance are rejected.
func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	tx, err := s.buildTransaction(ctx, in)
	if err != nil {
		return core.Transaction{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.checkBalance(ctx, tx, core.Money{}); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.invalidate(created.Date)

	slog.InfoContext(ctx, "Transaction created",
		"id", created.ID,
		"type", created.Type,
		"category", created.Category,
		"amount_cents", created.Amount.Cents,
		"input_currency", currency.Normalize(in.Currency))

	s.publishSync(ctx, created.ID)
	return created, nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// List returns every transaction, or only those of year/month when month is
// non-zero. Newest first.
func (s *TransactionService) List(ctx context.Context, year, month int) ([]core.Transaction, error) {
	if month == 0 {
		items, err := s.repo.ListTransactions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		return items, nil
	}
	items, err := s.repo.ListTransactionsForMonth(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("list transactions for month: %w", err)
	}
	return items, nil
}

// Update replaces every field of transaction id. An expense may not exceed
// the balance that remains once the old version is taken out.
func (s *TransactionService) Update(ctx context.Context, id int64, in TransactionInput) (core.Transaction, error) {
	tx, err := s.buildTransaction(ctx, in)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = id

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	old, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if err := s.checkBalance(ctx, tx, old.Signed()); err != nil {
		return core.Transaction{}, err
	}

	ok, err := s.repo.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if !ok {
		return core.Transaction{}, ErrNotFound
	}
	s.invalidate(old.Date)
	s.invalidate(tx.Date)

	updated, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("reload transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id, "amount_cents", updated.Amount.Cents)
	s.publishSync(ctx, id)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	old, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	ok, err := s.repo.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	s.invalidate(old.Date)

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	s.publishDelete(ctx, id)
	return nil
}

func (s *TransactionService) Count(ctx context.Context) (int, error) {
	n, err := s.repo.CountTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// Balance reports totals converted into display. When the conversion is not
// possible the totals stay in the base currency.
func (s *TransactionService) Balance(ctx context.Context, display string) (BalanceReport, error) {
	bal, err := s.repo.GetBalance(ctx)
	if err != nil {
		return BalanceReport{}, fmt.Errorf("get balance: %w", err)
	}
	conv, code, failed := s.displayConverter(ctx, display)
	return BalanceReport{
		Count:            bal.Count,
		Currency:         code,
		Income:           conv(bal.Income),
		Expense:          conv(bal.Expense),
		Balance:          conv(bal.Balance),
		ConversionFailed: failed,
	}, nil
}

// Overview returns the month overview in the base currency, cached until a
// write touches the month.
func (s *TransactionService) Overview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	key := overviewKey(year, month)
	if s.overviews != nil {
		if ov, ok := s.overviews.Get(key); ok {
			slog.DebugContext(ctx, "Overview cache hit", "year", year, "month", month)
			return ov, nil
		}
	}
	gen := s.generation(key)
	ov, err := s.repo.ReadMonthOverview(ctx, year, month)
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("read month overview (year=%d, month=%d): %w", year, month, err)
	}
	if s.overviews != nil {
		s.genMu.Lock()
		if s.gens[key] == gen {
			s.overviews.Set(key, ov)
		}
		s.genMu.Unlock()
	}
	return ov, nil
}

// MonthlyReport is the expense breakdown by category for one month with
// amounts converted into display.
func (s *TransactionService) MonthlyReport(ctx context.Context, year, month int, display string) (MonthlyReport, error) {
	ov, err := s.Overview(ctx, year, month)
	if err != nil {
		return MonthlyReport{}, err
	}
	conv, code, failed := s.displayConverter(ctx, display)
	report := MonthlyReport{
		Year:             ov.Year,
		Month:            ov.Month,
		Currency:         code,
		Income:           conv(ov.Income),
		Expense:          conv(ov.Expense),
		Total:            conv(ov.Total),
		Categories:       make([]CategoryShare, 0, len(ov.ByCategory)),
		ConversionFailed: failed,
	}
	for _, c := range ov.ByCategory {
		report.Categories = append(report.Categories, CategoryShare{
			Name:    c.Name,
			Amount:  conv(c.Amount),
			Percent: c.Percent,
		})
	}
	return report, nil
}

func (s *TransactionService) buildTransaction(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return core.Transaction{}, core.ErrEmptyDescription
	}
	raw, err := currency.ParseAmount(strings.ReplaceAll(in.Amount, ",", "."))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %v", core.ErrInvalidAmount, err)
	}
	if !raw.IsPositive() {
		return core.Transaction{}, core.ErrInvalidAmount
	}

	typ, err := core.ParseTransactionType(in.Type)
	if err != nil {
		return core.Transaction{}, err
	}

	date := core.Today()
	if strings.TrimSpace(in.Date) != "" {
		date, err = core.ParseDate(in.Date)
		if err != nil {
			return core.Transaction{}, err
		}
	}

	from := currency.Normalize(in.Currency)
	if from == "" {
		from = s.baseCurrency
	}
	base := raw
	if from != s.baseCurrency && s.rates != nil {
		converted, err := s.rates.Convert(raw, from, s.baseCurrency)
		if err != nil {
			slog.WarnContext(ctx, "Currency conversion failed, storing the amount as entered",
				"from", from,
				"to", s.baseCurrency,
				"error", err)
		} else {
			base = converted
		}
	}

	amount, err := core.MoneyFromDecimal(base)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		Amount:      amount,
		Description: desc,
		Type:        typ,
		Category:    strings.TrimSpace(in.Category),
		Date:        date,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// checkBalance rejects an expense larger than the balance left after undoing
// previous, the signed amount of the version being replaced.
func (s *TransactionService) checkBalance(ctx context.Context, tx core.Transaction, previous core.Money) error {
	if s.allowNegative || tx.Type != core.Expense {
		return nil
	}
	bal, err := s.repo.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	available := bal.Balance.Sub(previous)
	if tx.Amount.Cents > available.Cents {
		slog.InfoContext(ctx, "Expense rejected, insufficient balance",
			"amount_cents", tx.Amount.Cents,
			"available_cents", available.Cents)
		return fmt.Errorf("%w: need %s, available %s", ErrInsufficientBalance,
			currency.Format(tx.Amount.Decimal(), s.baseCurrency),
			currency.Format(available.Decimal(), s.baseCurrency))
	}
	return nil
}

// displayConverter returns a function rendering base amounts in display, the
// currency actually used and whether it had to fall back to the base.
func (s *TransactionService) displayConverter(ctx context.Context, display string) (func(core.Money) Amount, string, bool) {
	code := currency.Normalize(display)
	if code == "" {
		code = s.baseCurrency
	}
	inBase := func(m core.Money) Amount {
		v := m.Decimal()
		return Amount{Value: v, Currency: s.baseCurrency, Formatted: currency.Format(v, s.baseCurrency)}
	}
	if code == s.baseCurrency || s.rates == nil {
		return inBase, s.baseCurrency, code != s.baseCurrency
	}

	rate, err := s.rates.Convert(decimal.NewFromInt(1), s.baseCurrency, code)
	if err != nil {
		slog.WarnContext(ctx, "Display conversion unavailable, using base currency",
			"currency", code,
			"error", err)
		return inBase, s.baseCurrency, true
	}
	return func(m core.Money) Amount {
		v := m.Decimal().Mul(rate)
		return Amount{Value: v, Currency: code, Formatted: currency.Format(v, code)}
	}, code, false
}

func (s *TransactionService) invalidate(d core.Date) {
	if s.overviews == nil || d.IsZero() {
		return
	}
	key := overviewKey(d.Year(), d.Month())
	s.genMu.Lock()
	s.gens[key]++
	s.overviews.Delete(key)
	s.genMu.Unlock()
}

func (s *TransactionService) generation(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[key]
}

func (s *TransactionService) publishSync(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishTransactionSync(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}
}

func (s *TransactionService) publishDelete(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishTransactionDelete(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message", "id", id, "error", err)
	}
}

func overviewKey(year, month int) string {
	return strconv.Itoa(year) + "-" + strconv.Itoa(month)
}
