package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Store persists small key-value settings such as the rate cache.
type Store interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreferences(ctx context.Context, values map[string]string) error
}

// Snapshot describes the rate table after a refresh.
type Snapshot struct {
	Base      string
	Rates     Rates
	Source    Source
	Offline   bool
	UpdatedAt time.Time
	Err       error
}

type Service struct {
	provider RateProvider
	prober   Prober
	store    Store
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	rates     Rates
	source    Source
	updatedAt time.Time

	group singleflight.Group
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithRefreshTimeout bounds one shared refresh, probe and fetch included.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a rate service and restores persisted rates when they
// are younger than the TTL.
func NewService(ctx context.Context, provider RateProvider, prober Prober, store Store, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		prober:   prober,
		store:    store,
		ttl:      DefaultTTL,
		timeout:  DefaultRefreshTimeout,
		now:      time.Now,
		rates:    Rates{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.prober == nil {
		s.prober = StaticProber(true)
	}
	s.loadCached(ctx)
	return s
}

func (s *Service) loadCached(ctx context.Context) {
	if s.store == nil {
		return
	}
	raw, ok, err := s.store.GetPreference(ctx, PrefLastUpdate)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read cached rate timestamp", "error", err)
		return
	}
	if !ok {
		return
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		slog.WarnContext(ctx, "Ignoring malformed cached rate timestamp", "value", raw)
		return
	}
	updated := time.UnixMilli(ms)
	if s.now().Sub(updated) >= s.ttl {
		slog.InfoContext(ctx, "Cached exchange rates expired", "last_update", updated.UTC().Format(time.RFC3339))
		return
	}

	data, ok, err := s.store.GetPreference(ctx, PrefRates)
	if err != nil || !ok {
		return
	}
	var rates Rates
	if err := json.Unmarshal([]byte(data), &rates); err != nil {
		slog.WarnContext(ctx, "Ignoring malformed cached rates", "error", err)
		return
	}
	if len(rates) == 0 {
		return
	}

	s.mu.Lock()
	s.rates = rates
	s.source = SourceCache
	s.updatedAt = updated
	s.mu.Unlock()

	slog.InfoContext(ctx, "Loaded cached exchange rates",
		"count", len(rates),
		"last_update", updated.UTC().Format(time.RFC3339))
}

func (s *Service) persist(ctx context.Context, rates Rates, at time.Time) {
	if s.store == nil {
		return
	}
	data, err := json.Marshal(rates)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode exchange rates", "error", err)
		return
	}
	err = s.store.SetPreferences(ctx, map[string]string{
		PrefRates:      string(data),
		PrefLastUpdate: strconv.FormatInt(at.UnixMilli(), 10),
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to persist exchange rates", "error", err)
	}
}

// Refresh fetches fresh rates and falls back to cached or built-in rates when
// the feed cannot be used. It never leaves the service without rates.
// Concurrent callers share a single fetch. The fetch is detached from the
// caller that started it, so one cancelled request cannot fail the others;
// a cancelled caller gets the current table with its context error.
func (s *Service) Refresh(ctx context.Context) Snapshot {
	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.refresh(fctx), nil
	})
	select {
	case res := <-ch:
		return res.Val.(Snapshot)
	case <-ctx.Done():
		return s.snapshot(false, ctx.Err())
	}
}

func (s *Service) refresh(ctx context.Context) Snapshot {
	if !s.prober.Online(ctx) {
		slog.WarnContext(ctx, "Rate feed unreachable, using local rates", "has_rates", s.HasRates())
		s.fallback()
		return s.snapshot(true, ErrOffline)
	}

	resp, err := s.provider.Latest(ctx, APIBase)
	if err != nil {
		hadRates := s.HasRates()
		slog.WarnContext(ctx, "Failed to fetch exchange rates", "error", err, "has_rates", hadRates)
		if hadRates {
			s.fallback()
			return s.snapshot(false, err)
		}
		offline := !s.prober.Online(ctx)
		s.fallback()
		return s.snapshot(offline, err)
	}

	rates := make(Rates, len(resp.Rates)+1)
	for code, v := range resp.Rates {
		rates[Normalize(code)] = decimal.NewFromFloat(v)
	}
	rates[APIBase] = decimal.NewFromInt(1)

	at := s.now()
	s.mu.Lock()
	s.rates = rates
	s.source = SourceLive
	s.updatedAt = at
	s.mu.Unlock()

	s.persist(ctx, rates, at)

	slog.InfoContext(ctx, "Exchange rates updated", "count", len(rates), "date", resp.Date)
	return s.snapshot(false, nil)
}

// fallback keeps current rates, demoting live ones to cached, or installs the
// defaults when the table is empty.
func (s *Service) fallback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rates) == 0 {
		s.rates = DefaultRates()
		s.source = SourceFallback
		s.updatedAt = time.Time{}
		return
	}
	if s.source == SourceLive {
		s.source = SourceCache
	}
}

// EnsureRates returns the current table while it is fresh and refreshes
// otherwise.
func (s *Service) EnsureRates(ctx context.Context) Snapshot {
	s.mu.RLock()
	fresh := len(s.rates) > 0 && s.source != SourceFallback && s.now().Sub(s.updatedAt) < s.ttl
	s.mu.RUnlock()
	if fresh {
		return s.snapshot(false, nil)
	}
	return s.Refresh(ctx)
}

func (s *Service) snapshot(offline bool, err error) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Base:      APIBase,
		Rates:     s.rates.Clone(),
		Source:    s.source,
		Offline:   offline,
		UpdatedAt: s.updatedAt,
		Err:       err,
	}
}

// Convert converts amount from one currency to another through APIBase.
// Identical codes return the amount untouched. When no rates are loaded the
// defaults are installed first. Unknown codes yield ErrUnsupportedCurrency.
func (s *Service) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = Normalize(from), Normalize(to)
	if from == to {
		return amount, nil
	}

	s.mu.Lock()
	if len(s.rates) == 0 {
		s.rates = DefaultRates()
		s.source = SourceFallback
	}
	fromRate, okFrom := s.rates[from]
	toRate, okTo := s.rates[to]
	s.mu.Unlock()

	if !okFrom || fromRate.Sign() <= 0 {
		return amount, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, from)
	}
	if !okTo || toRate.Sign() <= 0 {
		return amount, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, to)
	}
	return amount.Div(fromRate).Mul(toRate), nil
}

// Rate returns the value of one unit of from expressed in to.
func (s *Service) Rate(from, to string) (decimal.Decimal, error) {
	return s.Convert(decimal.NewFromInt(1), from, to)
}

// Rates returns a copy of the current table.
func (s *Service) Rates() Rates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rates.Clone()
}

func (s *Service) HasRates() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rates) > 0
}

func (s *Service) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Service) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
