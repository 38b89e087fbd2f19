package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymate/internal/currency"
)

type countingRates struct {
	calls atomic.Int32
	err   error
}

func (c *countingRates) Refresh(context.Context) currency.Snapshot {
	c.calls.Add(1)
	return currency.Snapshot{Source: currency.SourceLive, Err: c.err}
}

func TestRateRefresher_TicksUntilStopped(t *testing.T) {
	rates := &countingRates{}
	r := NewRateRefresher(rates, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx))
	assert.Error(t, r.Start(ctx))

	assert.Eventually(t, func() bool { return rates.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, r.Stop(context.Background()))
	assert.False(t, r.IsRunning())
	after := rates.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, rates.calls.Load())
}

func TestRateRefresher_ErrorsKeepLoopAlive(t *testing.T) {
	rates := &countingRates{err: errors.New("offline")}
	r := NewRateRefresher(rates, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	assert.Eventually(t, func() bool { return rates.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, r.Stop(context.Background()))
}

func TestNewRateRefresher_DefaultInterval(t *testing.T) {
	r := NewRateRefresher(&countingRates{}, 0)
	assert.Equal(t, currency.DefaultTTL, r.interval)
}
