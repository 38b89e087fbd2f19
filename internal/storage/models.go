package storage

// Transaction is a row of the transactions table. Timestamps are RFC 3339
// strings produced by strftime in the queries.
type Transaction struct {
	ID          int64
	AmountCents int64
	Description string
	Type        string
	Category    string
	Date        string
	CreatedAt   string
	UpdatedAt   string
	Deleted     bool
	SyncStatus  string
	Version     int64
}

type CategorySum struct {
	Category   string
	TotalCents int64
}

type TypeTotals struct {
	IncomeCents  int64
	ExpenseCents int64
}

type Preference struct {
	Key   string
	Value string
}
