// Package cli provides common CLI initialization utilities shared by
// cmd/moneymate and cmd/moneymate-worker.
package cli

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"moneymate/internal/backend"
	"moneymate/internal/config"
	"moneymate/internal/currency"
)

// ParseLevel maps LOG_LEVEL values onto slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger initializes structured logging at the given level and sets it
// as the default logger.
func SetupLogger(level string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Exits the process on failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend creates the configured data backend.
// Exits the process on failure.
func InitBackend(ctx context.Context, logger *slog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return res
}

// NewRateService wires the rate provider, the connectivity probe and the
// persisted cache. Cached rates are loaded eagerly when still fresh.
func NewRateService(ctx context.Context, logger *slog.Logger, cfg *config.Config, store currency.Store) *currency.Service {
	client, err := currency.NewFrankfurterClient(cfg.CurrencyAPIURL, cfg.CurrencyHTTPTimeout)
	if err != nil {
		logger.Error("Invalid currency API URL", "error", err, "url", cfg.CurrencyAPIURL)
		os.Exit(1)
	}

	const probeTimeout = 3 * time.Second
	var prober currency.Prober = currency.DialProber{
		Address: client.Host(),
		Timeout: probeTimeout,
	}
	if online, ok := cfg.AssumeOnline(); ok {
		prober = currency.StaticProber(online)
	}

	// A refresh may probe twice around the fetch.
	svc := currency.NewService(ctx, client, prober, store,
		currency.WithTTL(cfg.CurrencyCacheTTL),
		currency.WithRefreshTimeout(cfg.CurrencyHTTPTimeout+2*probeTimeout))
	logger.InfoContext(ctx, "Currency service ready",
		"api", cfg.CurrencyAPIURL,
		"cached_rates", svc.HasRates(),
		"display_currency", cfg.DisplayCurrency)
	return svc
}

// ListenAddr returns the HTTP listen address for port.
func ListenAddr(port string) string {
	return net.JoinHostPort("", port)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
