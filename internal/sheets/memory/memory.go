// Package memory is a sheet exporter kept in process. The worker uses it when
// no spreadsheet is configured so the sync pipeline still runs end to end.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"moneymate/internal/core"
	ports "moneymate/internal/sheets"
)

type Exporter struct {
	mu   sync.Mutex
	rows map[int64]core.Transaction
}

var _ ports.TransactionExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: make(map[int64]core.Transaction)}
}

func (e *Exporter) Upsert(_ context.Context, tx core.Transaction) error {
	if tx.ID <= 0 {
		return fmt.Errorf("invalid transaction id %d", tx.ID)
	}
	if err := tx.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows[tx.ID] = tx
	return nil
}

func (e *Exporter) Delete(_ context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rows, id)
	return nil
}

// Rows returns the exported transactions ordered by ID.
func (e *Exporter) Rows() []core.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Transaction, 0, len(e.rows))
	for _, tx := range e.rows {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
