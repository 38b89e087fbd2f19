package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"moneymate/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a transaction does not exist or was deleted.
var ErrNotFound = errors.New("transaction not found")

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// SyncRecord is a transaction as seen by the export worker, including
// soft-deleted rows that still have to be removed downstream.
type SyncRecord struct {
	Transaction core.Transaction
	Deleted     bool
	Version     int64
	// Failed is set once the row was flagged after too many export attempts.
	// Any later write puts it back to pending.
	Failed bool
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection. The server and the
	// worker share the file, so readers must not block the writer.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		AmountCents: tx.Amount.Cents,
		Description: tx.Description,
		Type:        string(tx.Type),
		Category:    tx.Category,
		Date:        tx.Date.String(),
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", row.ID,
		"type", row.Type,
		"amount_cents", row.AmountCents,
		"date", row.Date)

	return toCore(row)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return toCore(row)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return toCoreSlice(rows)
}

func (r *SQLiteRepository) ListTransactionsForMonth(ctx context.Context, year, month int) ([]core.Transaction, error) {
	span, err := monthParams(year, month)
	if err != nil {
		return nil, err
	}
	rows, err := r.queries.ListTransactionsBetween(ctx, span)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %d-%02d: %w", year, month, err)
	}
	return toCoreSlice(rows)
}

// UpdateTransaction reports false when no live row has the given ID.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, err
	}
	n, err := r.queries.UpdateTransaction(ctx, UpdateTransactionParams{
		ID:          tx.ID,
		AmountCents: tx.Amount.Cents,
		Description: tx.Description,
		Type:        string(tx.Type),
		Category:    tx.Category,
		Date:        tx.Date.String(),
	})
	if err != nil {
		return false, fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	return n > 0, nil
}

// DeleteTransaction soft-deletes the row so the exporter can propagate the
// removal; it reports false when no live row has the given ID.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) (bool, error) {
	n, err := r.queries.SoftDeleteTransaction(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) CountTransactions(ctx context.Context) (int, error) {
	n, err := r.queries.CountTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) GetBalance(ctx context.Context) (core.Balance, error) {
	totals, err := r.queries.GetTotals(ctx)
	if err != nil {
		return core.Balance{}, fmt.Errorf("get totals: %w", err)
	}
	count, err := r.CountTransactions(ctx)
	if err != nil {
		return core.Balance{}, err
	}
	return core.NewBalance(core.Money{Cents: totals.IncomeCents}, core.Money{Cents: totals.ExpenseCents}, count), nil
}

func (r *SQLiteRepository) GetCategorySpending(ctx context.Context, year, month int) ([]core.CategoryAmount, error) {
	span, err := monthParams(year, month)
	if err != nil {
		return nil, err
	}
	sums, err := r.queries.GetCategorySpending(ctx, span)
	if err != nil {
		return nil, fmt.Errorf("get category spending: %w", err)
	}
	out := make([]core.CategoryAmount, 0, len(sums))
	for _, s := range sums {
		out = append(out, core.CategoryAmount{Name: s.Category, Amount: core.Money{Cents: s.TotalCents}})
	}
	return out, nil
}

func (r *SQLiteRepository) ReadMonthOverview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	span, err := monthParams(year, month)
	if err != nil {
		return core.MonthOverview{}, err
	}
	totals, err := r.queries.GetTotalsBetween(ctx, span)
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("get month totals: %w", err)
	}
	byCategory, err := r.GetCategorySpending(ctx, year, month)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return core.NewMonthOverview(year, month,
		core.Money{Cents: totals.IncomeCents},
		core.Money{Cents: totals.ExpenseCents},
		byCategory), nil
}

// GetPreference returns the stored value and whether the key exists.
func (r *SQLiteRepository) GetPreference(ctx context.Context, key string) (string, bool, error) {
	v, err := r.queries.GetPreference(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %q: %w", key, err)
	}
	return v, true, nil
}

// SetPreferences writes all values in one transaction.
func (r *SQLiteRepository) SetPreferences(ctx context.Context, values map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := r.queries.WithTx(tx)
	for _, k := range keys {
		if err := q.UpsertPreference(ctx, Preference{Key: k, Value: values[k]}); err != nil {
			return fmt.Errorf("set preference %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit preferences: %w", err)
	}
	return nil
}

// GetPendingSync returns rows waiting to be exported, deleted ones included.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]SyncRecord, error) {
	rows, err := r.queries.GetPendingSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	out := make([]SyncRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toSyncRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *SQLiteRepository) GetSyncRecord(ctx context.Context, id int64) (SyncRecord, error) {
	row, err := r.queries.GetTransactionForSync(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncRecord{}, ErrNotFound
	}
	if err != nil {
		return SyncRecord{}, fmt.Errorf("get sync record %d: %w", id, err)
	}
	return toSyncRecord(row)
}

// MarkSynced records a successful export of the given version. Deleted rows
// are purged once their removal has been exported. A newer version left in
// the table stays pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, rec SyncRecord) error {
	id := rec.Transaction.ID
	if rec.Deleted {
		if _, err := r.queries.PurgeDeleted(ctx, id, rec.Version); err != nil {
			return fmt.Errorf("purge deleted transaction %d: %w", id, err)
		}
		return nil
	}
	n, err := r.queries.MarkSynced(ctx, id, rec.Version)
	if err != nil {
		return fmt.Errorf("mark transaction %d synced: %w", id, err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Transaction changed during sync, keeping pending", "id", id, "version", rec.Version)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.queries.MarkSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark transaction %d sync error: %w", id, err)
	}
	return nil
}

func monthParams(year, month int) (DateRangeParams, error) {
	first, last, err := core.MonthRange(year, month)
	if err != nil {
		return DateRangeParams{}, err
	}
	return DateRangeParams{From: first.String(), To: last.String()}, nil
}

func toCore(row Transaction) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", row.ID, err)
	}
	tx := core.Transaction{
		ID:          row.ID,
		Amount:      core.Money{Cents: row.AmountCents},
		Description: row.Description,
		Type:        core.TransactionType(row.Type),
		Category:    row.Category,
		Date:        date,
	}
	tx.CreatedAt, _ = time.Parse(time.RFC3339, row.CreatedAt)
	tx.UpdatedAt, _ = time.Parse(time.RFC3339, row.UpdatedAt)
	return tx, nil
}

func toCoreSlice(rows []Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := toCore(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func toSyncRecord(row Transaction) (SyncRecord, error) {
	tx, err := toCore(row)
	if err != nil {
		return SyncRecord{}, err
	}
	return SyncRecord{
		Transaction: tx,
		Deleted:     row.Deleted,
		Version:     row.Version,
		Failed:      row.SyncStatus == "error",
	}, nil
}
