package sheets

import (
	"context"

	"moneymate/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter mirrors the ledger into an external sheet. Rows are
	// keyed by transaction ID so Upsert is idempotent.
	TransactionExporter interface {
		Upsert(ctx context.Context, tx core.Transaction) error
		Delete(ctx context.Context, id int64) error
	}
)
