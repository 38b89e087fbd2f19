package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"moneymate/internal/cache"
	"moneymate/internal/core"
	"moneymate/internal/currency"
	"moneymate/internal/log"
	"moneymate/internal/middleware/ratelimit"
	"moneymate/internal/middleware/security"
	"moneymate/internal/middleware/trace"
	"moneymate/internal/services"
)

const (
	defaultMaxBodyBytes = 64 << 10
	defaultReadyTimeout = 2 * time.Second
)

// TransactionService is what the API needs from services.TransactionService.
type TransactionService interface {
	Create(ctx context.Context, in services.TransactionInput) (core.Transaction, error)
	Get(ctx context.Context, id int64) (core.Transaction, error)
	List(ctx context.Context, year, month int) ([]core.Transaction, error)
	Update(ctx context.Context, id int64, in services.TransactionInput) (core.Transaction, error)
	Delete(ctx context.Context, id int64) error
	Balance(ctx context.Context, display string) (services.BalanceReport, error)
	MonthlyReport(ctx context.Context, year, month int, display string) (services.MonthlyReport, error)
	BaseCurrency() string
}

// RateService is what the API needs from currency.Service.
type RateService interface {
	EnsureRates(ctx context.Context) currency.Snapshot
	Refresh(ctx context.Context) currency.Snapshot
	Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
	Source() currency.Source
	LastUpdate() time.Time
	HasRates() bool
}

// HealthChecker reports whether the data store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr               string
	DisplayCurrency    string
	RateLimitPerMinute int
	MaxBodyBytes       int64
	ReadyTimeout       time.Duration
}

// Deps are the collaborators behind the routes. Caches and Logger are
// optional.
type Deps struct {
	Transactions TransactionService
	Rates        RateService
	Health       HealthChecker
	Caches       *cache.Manager
	Logger       *log.Logger
}

type Server struct {
	http.Server

	cfg      Config
	txs      TransactionService
	rates    RateService
	health   HealthChecker
	caches   *cache.Manager
	logger   *log.Logger
	events   *log.StructuredLogger
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires the middleware chain and routes, returning a ready-to-run
// server.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.DisplayCurrency == "" {
		cfg.DisplayCurrency = deps.Transactions.BaseCurrency()
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentHTTP)
	}

	s := &Server{
		cfg:      cfg,
		txs:      deps.Transactions,
		rates:    deps.Rates,
		health:   deps.Health,
		caches:   deps.Caches,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector: security.NewDetector(),
		now:      time.Now,
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(log.Middleware(s.logger, trace.GetRequestID))
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Get("/{id}", s.handleGetTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})
		r.Get("/balance", s.handleBalance)
		r.Get("/reports/monthly", s.handleMonthlyReport)
		r.Get("/categories", handleCategories)
		r.Get("/currencies", s.handleCurrencies)
		r.Get("/rates", s.handleRates)
		r.Post("/rates/refresh", s.handleRefreshRates)
		r.Get("/convert", s.handleConvert)
	})
	return r
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// displayCurrency picks the ?currency= parameter or the configured default.
func (s *Server) displayCurrency(r *http.Request) string {
	if c := currency.Normalize(r.URL.Query().Get("currency")); c != "" {
		return c
	}
	return s.cfg.DisplayCurrency
}
