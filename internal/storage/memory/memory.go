// Package memory is an in-process transaction and preference store used by
// the memory data backend and by tests.
package memory

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"moneymate/internal/core"
	"moneymate/internal/storage"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]core.Transaction
	prefs  map[string]string
	now    func() time.Time
}

func New() *Store {
	return &Store{
		nextID: 1,
		items:  make(map[int64]core.Transaction),
		prefs:  make(map[string]string),
		now:    time.Now,
	}
}

// NewFromFile seeds the store from a semicolon separated file with lines of
// the form "date;type;category;amount;description". Blank lines, comments
// and malformed lines are skipped; a missing file yields an empty store.
func NewFromFile(path string) *Store {
	s := New()
	for _, line := range readLines(path) {
		tx, ok := parseSeedLine(line)
		if !ok {
			continue
		}
		_, _ = s.CreateTransaction(context.Background(), tx)
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC().Truncate(time.Second)
	tx.ID = s.nextID
	tx.CreatedAt = now
	tx.UpdatedAt = now
	s.nextID++
	s.items[tx.ID] = tx
	return tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.items[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(core.Transaction) bool { return true }), nil
}

func (s *Store) ListTransactionsForMonth(_ context.Context, year, month int) ([]core.Transaction, error) {
	first, last, err := core.MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(inRange(first, last)), nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.items[tx.ID]
	if !ok {
		return false, nil
	}
	tx.CreatedAt = old.CreatedAt
	tx.UpdatedAt = s.now().UTC().Truncate(time.Second)
	s.items[tx.ID] = tx
	return true, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *Store) CountTransactions(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

func (s *Store) GetBalance(_ context.Context) (core.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var income, expense core.Money
	for _, tx := range s.items {
		if tx.Type == core.Income {
			income = income.Add(tx.Amount)
		} else {
			expense = expense.Add(tx.Amount)
		}
	}
	return core.NewBalance(income, expense, len(s.items)), nil
}

func (s *Store) GetCategorySpending(_ context.Context, year, month int) ([]core.CategoryAmount, error) {
	first, last, err := core.MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categorySums(first, last), nil
}

func (s *Store) ReadMonthOverview(_ context.Context, year, month int) (core.MonthOverview, error) {
	first, last, err := core.MonthRange(year, month)
	if err != nil {
		return core.MonthOverview{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var income, expense core.Money
	for _, tx := range s.sorted(inRange(first, last)) {
		if tx.Type == core.Income {
			income = income.Add(tx.Amount)
		} else {
			expense = expense.Add(tx.Amount)
		}
	}
	return core.NewMonthOverview(year, month, income, expense, s.categorySums(first, last)), nil
}

func (s *Store) GetPreference(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.prefs[key]
	return v, ok, nil
}

func (s *Store) SetPreferences(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.prefs[k] = v
	}
	return nil
}

// sorted returns matching items ordered by date then ID, newest first.
// Callers hold s.mu.
func (s *Store) sorted(keep func(core.Transaction) bool) []core.Transaction {
	out := make([]core.Transaction, 0, len(s.items))
	for _, tx := range s.items {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) categorySums(first, last core.Date) []core.CategoryAmount {
	sums := map[string]int64{}
	for _, tx := range s.items {
		if tx.Type != core.Expense || !inRange(first, last)(tx) {
			continue
		}
		sums[tx.Category] += tx.Amount.Cents
	}
	out := make([]core.CategoryAmount, 0, len(sums))
	for name, cents := range sums {
		out = append(out, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func inRange(first, last core.Date) func(core.Transaction) bool {
	return func(tx core.Transaction) bool {
		return !tx.Date.Before(first.Time) && !tx.Date.After(last.Time)
	}
}

func parseSeedLine(line string) (core.Transaction, bool) {
	parts := strings.SplitN(line, ";", 5)
	if len(parts) != 5 {
		return core.Transaction{}, false
	}
	date, err := core.ParseDate(parts[0])
	if err != nil {
		return core.Transaction{}, false
	}
	typ, err := core.ParseTransactionType(parts[1])
	if err != nil {
		return core.Transaction{}, false
	}
	cents, err := core.ParseDecimalToCents(parts[3])
	if err != nil {
		return core.Transaction{}, false
	}
	return core.Transaction{
		Date:        date,
		Type:        typ,
		Category:    strings.TrimSpace(parts[2]),
		Amount:      core.Money{Cents: cents},
		Description: strings.TrimSpace(parts[4]),
	}, true
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
