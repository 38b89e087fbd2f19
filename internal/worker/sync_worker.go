package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"moneymate/internal/amqp"
)

// Syncer exports transactions to the sheet. Implemented by
// services.SyncProcessor.
type Syncer interface {
	SyncOne(ctx context.Context, id int64) error
	ProcessPending(ctx context.Context) (int, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// EventSource delivers transaction events until ctx is done.
type EventSource interface {
	ConsumeTransactionEvents(ctx context.Context, handler func(context.Context, *amqp.TransactionEvent) error) error
}

// SyncWorker keeps the sheet in step with the database. Queue events give
// low latency; the pending poller covers events lost while the broker or the
// worker was down.
type SyncWorker struct {
	syncer         Syncer
	startupBatches int
	stopTimeout    time.Duration
}

func NewSyncWorker(syncer Syncer) *SyncWorker {
	return &SyncWorker{
		syncer:         syncer,
		startupBatches: 5,
		stopTimeout:    10 * time.Second,
	}
}

// HandleEvent processes one queue event. Sync and delete share a path since
// the database row says which one applies.
func (w *SyncWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"action", msg.Action,
		"id", msg.ID,
		"published_at", msg.Timestamp)

	if err := w.syncer.SyncOne(ctx, msg.ID); err != nil {
		return fmt.Errorf("sync transaction %d: %w", msg.ID, err)
	}
	return nil
}

// StartupSyncCheck drains rows left pending while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	total := 0
	for i := 0; i < w.startupBatches; i++ {
		n, err := w.syncer.ProcessPending(ctx)
		if err != nil {
			return fmt.Errorf("startup sync: %w", err)
		}
		total += n
		if n == 0 {
			break
		}
	}
	if total == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", total)
	return nil
}

// Run blocks until ctx is cancelled or the consumer fails. events may be nil,
// in which case only the pending poller runs.
func (w *SyncWorker) Run(ctx context.Context, events EventSource) error {
	if err := w.StartupSyncCheck(ctx); err != nil {
		slog.WarnContext(ctx, "Startup sync check failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := w.syncer.Start(gctx); err != nil {
		return fmt.Errorf("start sync poller: %w", err)
	}

	if events != nil {
		g.Go(func() error {
			return events.ConsumeTransactionEvents(gctx, w.HandleEvent)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), w.stopTimeout)
		defer cancel()
		return w.syncer.Stop(stopCtx)
	})

	err := g.Wait()
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}
	return err
}
