package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"moneymate/internal/sheets"
	"moneymate/internal/storage"
)

// SyncStore exposes the export bookkeeping of the SQLite repository.
type SyncStore interface {
	GetPendingSync(ctx context.Context, limit int) ([]storage.SyncRecord, error)
	GetSyncRecord(ctx context.Context, id int64) (storage.SyncRecord, error)
	MarkSynced(ctx context.Context, rec storage.SyncRecord) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending rows (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of rows exported per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of failed attempts before a row is flagged
	// as errored (default: 3)
	MaxRetries int
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

// SyncProcessor exports pending transactions to the sheet. It is driven both
// by queue messages (SyncOne) and by a polling loop that catches anything a
// lost message left behind.
type SyncProcessor struct {
	store    SyncStore
	exporter sheets.TransactionExporter
	config   SyncProcessorConfig

	attemptsMu sync.Mutex
	attempts   map[int64]int

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(store SyncStore, exporter sheets.TransactionExporter, config SyncProcessorConfig) *SyncProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultSyncProcessorConfig().MaxRetries
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	return &SyncProcessor{
		store:    store,
		exporter: exporter,
		config:   config,
		attempts: make(map[int64]int),
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Drain whatever piled up while we were down.
	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

func (p *SyncProcessor) processBatch(ctx context.Context) {
	n, err := p.ProcessPending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to process pending sync batch", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Processed pending sync batch", "count", n)
	}
}

// ProcessPending exports one batch of pending rows and returns how many were
// exported successfully. Per-row failures are counted, not returned.
func (p *SyncProcessor) ProcessPending(ctx context.Context) (int, error) {
	records, err := p.store.GetPendingSync(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending sync: %w", err)
	}
	done := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if err := p.export(ctx, rec); err != nil {
			p.handleFailure(ctx, rec.Transaction.ID, err)
			continue
		}
		done++
	}
	return done, nil
}

// SyncOne exports the current state of transaction id. A row that no longer
// exists was already exported and purged, so it counts as done. So does a
// row flagged as failed: the error is returned only while retries remain,
// which keeps a permanently failing sheet from requeueing the event forever.
func (p *SyncProcessor) SyncOne(ctx context.Context, id int64) error {
	rec, err := p.store.GetSyncRecord(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		slog.DebugContext(ctx, "Transaction already purged, nothing to sync", "id", id)
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Failed {
		slog.WarnContext(ctx, "Skipping transaction flagged as sync error", "id", id, "version", rec.Version)
		return nil
	}
	if err := p.export(ctx, rec); err != nil {
		if p.handleFailure(ctx, id, err) {
			return nil
		}
		return err
	}
	return nil
}

func (p *SyncProcessor) export(ctx context.Context, rec storage.SyncRecord) error {
	id := rec.Transaction.ID
	if rec.Deleted {
		if err := p.exporter.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete row %d from sheet: %w", id, err)
		}
	} else {
		if err := p.exporter.Upsert(ctx, rec.Transaction); err != nil {
			return fmt.Errorf("upsert row %d to sheet: %w", id, err)
		}
	}
	if err := p.store.MarkSynced(ctx, rec); err != nil {
		// The sheet is up to date; the next poll re-exports idempotently.
		slog.WarnContext(ctx, "Failed to mark transaction as synced", "id", id, "error", err)
	}
	p.resetAttempts(id)
	slog.InfoContext(ctx, "Exported transaction to sheet",
		"id", id,
		"version", rec.Version,
		"deleted", rec.Deleted)
	return nil
}

// handleFailure counts a failed attempt and reports whether the row was
// flagged as permanently failed.
func (p *SyncProcessor) handleFailure(ctx context.Context, id int64, cause error) bool {
	p.attemptsMu.Lock()
	p.attempts[id]++
	attempt := p.attempts[id]
	if attempt >= p.config.MaxRetries {
		delete(p.attempts, id)
	}
	p.attemptsMu.Unlock()

	slog.WarnContext(ctx, "Sync failed",
		"id", id,
		"attempt", attempt,
		"error", cause)

	if attempt < p.config.MaxRetries {
		return false
	}
	if err := p.store.MarkSyncError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark transaction sync error", "id", id, "error", err)
		return false
	}
	slog.ErrorContext(ctx, "Transaction sync failed permanently after max retries",
		"id", id,
		"attempts", attempt)
	return true
}

func (p *SyncProcessor) resetAttempts(id int64) {
	p.attemptsMu.Lock()
	delete(p.attempts, id)
	p.attemptsMu.Unlock()
}
