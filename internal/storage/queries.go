package storage

import "context"

const transactionColumns = `id, amount_cents, description, type, category, date,
    strftime('%Y-%m-%dT%H:%M:%SZ', created_at) AS created_at,
    strftime('%Y-%m-%dT%H:%M:%SZ', updated_at) AS updated_at,
    deleted_at IS NOT NULL AS deleted,
    sync_status, version`

func scanTransaction(row interface{ Scan(...interface{}) error }) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID,
		&t.AmountCents,
		&t.Description,
		&t.Type,
		&t.Category,
		&t.Date,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Deleted,
		&t.SyncStatus,
		&t.Version,
	)
	return t, err
}

func (q *Queries) scanTransactions(ctx context.Context, query string, args ...interface{}) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTransaction = `INSERT INTO transactions (amount_cents, description, type, category, date)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
	AmountCents int64
	Description string
	Type        string
	Category    string
	Date        string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.AmountCents,
		arg.Description,
		arg.Type,
		arg.Category,
		arg.Date,
	)
	return scanTransaction(row)
}

const getTransaction = `SELECT ` + transactionColumns + `
FROM transactions
WHERE id = ? AND deleted_at IS NULL`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

// GetTransactionForSync also returns soft-deleted rows.
const getTransactionForSync = `SELECT ` + transactionColumns + `
FROM transactions
WHERE id = ?`

func (q *Queries) GetTransactionForSync(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransactionForSync, id))
}

const listTransactions = `SELECT ` + transactionColumns + `
FROM transactions
WHERE deleted_at IS NULL
ORDER BY date DESC, id DESC`

func (q *Queries) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return q.scanTransactions(ctx, listTransactions)
}

const listTransactionsBetween = `SELECT ` + transactionColumns + `
FROM transactions
WHERE deleted_at IS NULL AND date BETWEEN ? AND ?
ORDER BY date DESC, id DESC`

type DateRangeParams struct {
	From string
	To   string
}

func (q *Queries) ListTransactionsBetween(ctx context.Context, arg DateRangeParams) ([]Transaction, error) {
	return q.scanTransactions(ctx, listTransactionsBetween, arg.From, arg.To)
}

const updateTransaction = `UPDATE transactions
SET amount_cents = ?,
    description = ?,
    type = ?,
    category = ?,
    date = ?,
    updated_at = CURRENT_TIMESTAMP,
    sync_status = 'pending',
    version = version + 1
WHERE id = ? AND deleted_at IS NULL`

type UpdateTransactionParams struct {
	ID          int64
	AmountCents int64
	Description string
	Type        string
	Category    string
	Date        string
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTransaction,
		arg.AmountCents,
		arg.Description,
		arg.Type,
		arg.Category,
		arg.Date,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const softDeleteTransaction = `UPDATE transactions
SET deleted_at = CURRENT_TIMESTAMP,
    updated_at = CURRENT_TIMESTAMP,
    sync_status = 'pending',
    version = version + 1
WHERE id = ? AND deleted_at IS NULL`

func (q *Queries) SoftDeleteTransaction(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, softDeleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countTransactions = `SELECT COUNT(*) FROM transactions WHERE deleted_at IS NULL`

func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countTransactions).Scan(&count)
	return count, err
}

const getTotals = `SELECT
    COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0) AS income_cents,
    COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0) AS expense_cents
FROM transactions
WHERE deleted_at IS NULL`

func (q *Queries) GetTotals(ctx context.Context) (TypeTotals, error) {
	var t TypeTotals
	err := q.db.QueryRowContext(ctx, getTotals).Scan(&t.IncomeCents, &t.ExpenseCents)
	return t, err
}

const getTotalsBetween = `SELECT
    COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0) AS income_cents,
    COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0) AS expense_cents
FROM transactions
WHERE deleted_at IS NULL AND date BETWEEN ? AND ?`

func (q *Queries) GetTotalsBetween(ctx context.Context, arg DateRangeParams) (TypeTotals, error) {
	var t TypeTotals
	err := q.db.QueryRowContext(ctx, getTotalsBetween, arg.From, arg.To).Scan(&t.IncomeCents, &t.ExpenseCents)
	return t, err
}

const getCategorySpending = `SELECT category, SUM(amount_cents) AS total_cents
FROM transactions
WHERE deleted_at IS NULL AND type = 'expense' AND date BETWEEN ? AND ?
GROUP BY category
ORDER BY total_cents DESC, category`

func (q *Queries) GetCategorySpending(ctx context.Context, arg DateRangeParams) ([]CategorySum, error) {
	rows, err := q.db.QueryContext(ctx, getCategorySpending, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategorySum
	for rows.Next() {
		var i CategorySum
		if err := rows.Scan(&i.Category, &i.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPendingSync = `SELECT ` + transactionColumns + `
FROM transactions
WHERE sync_status = 'pending'
ORDER BY updated_at, id
LIMIT ?`

func (q *Queries) GetPendingSync(ctx context.Context, limit int64) ([]Transaction, error) {
	return q.scanTransactions(ctx, getPendingSync, limit)
}

const markSynced = `UPDATE transactions
SET sync_status = 'synced'
WHERE id = ? AND version = ?`

// MarkSynced only succeeds when the row was not modified since it was read.
func (q *Queries) MarkSynced(ctx context.Context, id, version int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, markSynced, id, version)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markSyncError = `UPDATE transactions SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkSyncError(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markSyncError, id)
	return err
}

const purgeDeleted = `DELETE FROM transactions
WHERE id = ? AND version = ? AND deleted_at IS NOT NULL`

func (q *Queries) PurgeDeleted(ctx context.Context, id, version int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, purgeDeleted, id, version)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getPreference = `SELECT value FROM preferences WHERE key = ?`

func (q *Queries) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, getPreference, key).Scan(&value)
	return value, err
}

const upsertPreference = `INSERT INTO preferences (key, value, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

func (q *Queries) UpsertPreference(ctx context.Context, arg Preference) error {
	_, err := q.db.ExecContext(ctx, upsertPreference, arg.Key, arg.Value)
	return err
}
