package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"moneymate/internal/currency"
)

// RateSource refreshes the exchange rate table.
type RateSource interface {
	Refresh(ctx context.Context) currency.Snapshot
}

// RateRefresher periodically refreshes exchange rates in the background.
type RateRefresher struct {
	rates    RateSource
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRateRefresher(rates RateSource, interval time.Duration) *RateRefresher {
	if interval <= 0 {
		interval = currency.DefaultTTL
	}
	return &RateRefresher{rates: rates, interval: interval}
}

func (r *RateRefresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("rate refresher is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)

	slog.InfoContext(ctx, "Rate refresher started", "interval", r.interval)
	return nil
}

func (r *RateRefresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	close(r.stopCh)

	select {
	case <-r.doneCh:
		slog.InfoContext(ctx, "Rate refresher stopped")
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

func (r *RateRefresher) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *RateRefresher) runLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *RateRefresher) refresh(ctx context.Context) {
	snap := r.rates.Refresh(ctx)
	if snap.Err != nil {
		slog.WarnContext(ctx, "Exchange rate refresh failed",
			"source", snap.Source,
			"offline", snap.Offline,
			"error", snap.Err)
		return
	}
	slog.InfoContext(ctx, "Exchange rates refreshed",
		"source", snap.Source,
		"currencies", len(snap.Rates))
}
