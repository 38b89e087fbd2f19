package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymate/internal/cache"
	"moneymate/internal/core"
	"moneymate/internal/currency"
	"moneymate/internal/storage/memory"
)

// fakeRates holds units per one IDR.
type fakeRates map[string]decimal.Decimal

func (r fakeRates) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	f, ok1 := r[from]
	t, ok2 := r[to]
	if !ok1 || !ok2 {
		return amount, currency.ErrUnsupportedCurrency
	}
	return amount.Div(f).Mul(t), nil
}

func testRates() fakeRates {
	return fakeRates{
		"IDR": decimal.NewFromInt(1),
		"USD": decimal.RequireFromString("0.0000625"),
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	synced  []int64
	deleted []int64
	err     error
}

func (p *recordingPublisher) PublishTransactionSync(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synced = append(p.synced, id)
	return p.err
}

func (p *recordingPublisher) PublishTransactionDelete(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	return p.err
}

func income(amount string) TransactionInput {
	return TransactionInput{Amount: amount, Currency: "IDR", Description: "Salary", Type: "income", Category: "Salary", Date: "2024-03-01"}
}

func expense(amount string) TransactionInput {
	return TransactionInput{Amount: amount, Currency: "IDR", Description: "Lunch", Type: "expense", Category: "Food", Date: "2024-03-05"}
}

func TestCreate_ConvertsToBaseCurrency(t *testing.T) {
	ctx := context.Background()
	svc := NewTransactionService(memory.New(), testRates(), nil)

	in := income("10")
	in.Currency = "usd"
	tx, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(16000000), tx.Amount.Cents, "10 USD is stored as 160000 IDR")
	assert.Equal(t, core.Income, tx.Type)
	assert.Equal(t, "2024-03-01", tx.Date.String())
}

func TestCreate_UnknownCurrencyStoresAmountAsEntered(t *testing.T) {
	svc := NewTransactionService(memory.New(), testRates(), nil)
	in := income("250")
	in.Currency = "CHF"
	tx, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), tx.Amount.Cents)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewTransactionService(memory.New(), testRates(), nil)
	ctx := context.Background()

	cases := []struct {
		name string
		edit func(*TransactionInput)
		want error
	}{
		{"empty description", func(in *TransactionInput) { in.Description = "  " }, core.ErrEmptyDescription},
		{"zero amount", func(in *TransactionInput) { in.Amount = "0" }, core.ErrInvalidAmount},
		{"negative amount", func(in *TransactionInput) { in.Amount = "-5" }, core.ErrInvalidAmount},
		{"garbage amount", func(in *TransactionInput) { in.Amount = "ten" }, core.ErrInvalidAmount},
		{"bad type", func(in *TransactionInput) { in.Type = "transfer" }, core.ErrInvalidType},
		{"bad date", func(in *TransactionInput) { in.Date = "2024-02-30" }, core.ErrInvalidDate},
		{"empty category", func(in *TransactionInput) { in.Category = "" }, core.ErrEmptyCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := income("100")
			tc.edit(&in)
			_, err := svc.Create(ctx, in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreate_RejectsAmountsAboveLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewTransactionService(store, testRates(), nil)

	for _, amount := range []string{"184467440737095517.16", "10000000000000.01"} {
		_, err := svc.Create(ctx, income(amount))
		assert.ErrorIs(t, err, core.ErrInvalidAmount, amount)
	}

	// Checked after conversion: 1e9 USD is 1.6e13 IDR.
	in := income("1000000000")
	in.Currency = "USD"
	_, err := svc.Create(ctx, in)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	tx, err := svc.Create(ctx, income("10000000000000"))
	require.NoError(t, err)
	assert.Equal(t, core.MaxAmountCents, tx.Amount.Cents)

	_, err = svc.Update(ctx, tx.ID, income("10000000000000.01"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreate_DefaultsDateToToday(t *testing.T) {
	svc := NewTransactionService(memory.New(), testRates(), nil)
	in := income("100")
	in.Date = ""
	tx, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, core.Today().String(), tx.Date.String())
}

func TestCreate_CommaDecimalSeparator(t *testing.T) {
	svc := NewTransactionService(memory.New(), testRates(), nil)
	tx, err := svc.Create(context.Background(), income("12,50"))
	require.NoError(t, err)
	assert.Equal(t, int64(1250), tx.Amount.Cents)
}

func TestCreate_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	svc := NewTransactionService(memory.New(), testRates(), nil)

	_, err := svc.Create(ctx, expense("1"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = svc.Create(ctx, income("1000"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, expense("1000"))
	require.NoError(t, err, "spending the whole balance is allowed")
	_, err = svc.Create(ctx, expense("0.01"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	permissive := NewTransactionService(memory.New(), testRates(), nil, WithNegativeBalance(true))
	_, err = permissive.Create(ctx, expense("50"))
	assert.NoError(t, err)
}

func TestUpdate_BalanceExcludesOldVersion(t *testing.T) {
	ctx := context.Background()
	svc := NewTransactionService(memory.New(), testRates(), nil)

	_, err := svc.Create(ctx, income("100000"))
	require.NoError(t, err)
	lunch, err := svc.Create(ctx, expense("60000"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, lunch.ID, expense("100000"))
	require.NoError(t, err)
	assert.Equal(t, int64(10000000), updated.Amount.Cents)

	_, err = svc.Update(ctx, lunch.ID, expense("100000.01"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = svc.Update(ctx, 999, expense("1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewTransactionService(memory.New(), testRates(), pub)

	tx, err := svc.Create(ctx, income("100"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, tx.ID))

	_, err = svc.Get(ctx, tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, tx.ID), ErrNotFound)

	assert.Equal(t, []int64{tx.ID}, pub.synced)
	assert.Equal(t, []int64{tx.ID}, pub.deleted)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewTransactionService(memory.New(), testRates(), pub)
	_, err := svc.Create(context.Background(), income("100"))
	assert.NoError(t, err)
	assert.Len(t, pub.synced, 1)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc := NewTransactionService(memory.New(), testRates(), nil)

	march := income("100")
	april := income("200")
	april.Date = "2024-04-02"
	_, err := svc.Create(ctx, march)
	require.NoError(t, err)
	_, err = svc.Create(ctx, april)
	require.NoError(t, err)

	all, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2024-04-02", all[0].Date.String(), "newest first")

	onlyMarch, err := svc.List(ctx, 2024, 3)
	require.NoError(t, err)
	require.Len(t, onlyMarch, 1)
	assert.Equal(t, "2024-03-01", onlyMarch[0].Date.String())

	_, err = svc.List(ctx, 2024, 13)
	assert.Error(t, err)
}

func TestBalance_DisplayCurrency(t *testing.T) {
	ctx := context.Background()
	svc := NewTransactionService(memory.New(), testRates(), nil)
	_, err := svc.Create(ctx, income("200000"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, expense("40000"))
	require.NoError(t, err)

	rep, err := svc.Balance(ctx, "usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", rep.Currency)
	assert.False(t, rep.ConversionFailed)
	assert.Equal(t, 2, rep.Count)
	assert.True(t, rep.Balance.Value.Equal(decimal.NewFromInt(10)), "got %s", rep.Balance.Value)
	assert.Equal(t, "10.00 USD", rep.Balance.Formatted)
	assert.Equal(t, "12.50 USD", rep.Income.Formatted)

	rep, err = svc.Balance(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "IDR", rep.Currency)
	assert.Equal(t, "160,000 IDR", rep.Balance.Formatted)

	rep, err = svc.Balance(ctx, "GBP")
	require.NoError(t, err)
	assert.True(t, rep.ConversionFailed)
	assert.Equal(t, "IDR", rep.Currency)
}

func TestMonthlyReport_CacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	overviews := cache.NewLRUCache[core.MonthOverview](10, time.Minute)
	svc := NewTransactionService(memory.New(), testRates(), nil, WithOverviewCache(overviews))

	_, err := svc.Create(ctx, income("100000"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, expense("30000"))
	require.NoError(t, err)

	rep, err := svc.MonthlyReport(ctx, 2024, 3, "IDR")
	require.NoError(t, err)
	require.Len(t, rep.Categories, 1)
	assert.Equal(t, "Food", rep.Categories[0].Name)
	assert.Equal(t, 100.0, rep.Categories[0].Percent)
	assert.Equal(t, 1, overviews.Size())

	bus := expense("10000")
	bus.Category = "Transport"
	_, err = svc.Create(ctx, bus)
	require.NoError(t, err)
	assert.Zero(t, overviews.Size(), "write drops the cached month")

	rep, err = svc.MonthlyReport(ctx, 2024, 3, "IDR")
	require.NoError(t, err)
	require.Len(t, rep.Categories, 2)
	assert.Equal(t, "Food", rep.Categories[0].Name)
	assert.Equal(t, 75.0, rep.Categories[0].Percent)
	assert.Equal(t, "40,000 IDR", rep.Expense.Formatted)
}

// pausingStore holds the first overview read after it has hit the store, so a
// write can land between the read and the cache fill.
type pausingStore struct {
	*memory.Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (p *pausingStore) ReadMonthOverview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	ov, err := p.Store.ReadMonthOverview(ctx, year, month)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return ov, err
}

func TestOverview_WriteDuringReadIsNotCachedStale(t *testing.T) {
	ctx := context.Background()
	store := &pausingStore{Store: memory.New(), read: make(chan struct{}), release: make(chan struct{})}
	overviews := cache.NewLRUCache[core.MonthOverview](10, time.Minute)
	svc := NewTransactionService(store, testRates(), nil, WithOverviewCache(overviews))

	done := make(chan core.MonthOverview, 1)
	go func() {
		ov, err := svc.Overview(ctx, 2024, 3)
		assert.NoError(t, err)
		done <- ov
	}()

	<-store.read
	_, err := svc.Create(ctx, income("100"))
	require.NoError(t, err)
	close(store.release)

	stale := <-done
	assert.Zero(t, stale.Income.Cents, "the racing read saw the month before the write")
	assert.Zero(t, overviews.Size(), "a read older than the last invalidation is not cached")

	ov, err := svc.Overview(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), ov.Income.Cents)
	assert.Equal(t, 1, overviews.Size())
}

func TestCreate_ConcurrentExpensesNeverOverspend(t *testing.T) {
	ctx := context.Background()
	svc := NewTransactionService(memory.New(), testRates(), nil)
	_, err := svc.Create(ctx, income("100"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Create(ctx, expense("10"))
		}()
	}
	wg.Wait()

	rep, err := svc.Balance(ctx, "IDR")
	require.NoError(t, err)
	assert.True(t, rep.Balance.Value.IsZero(), "got %s", rep.Balance.Value)
	assert.Equal(t, 11, rep.Count)
}
