package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneymate/internal/cache"
	"moneymate/internal/cli"
	"moneymate/internal/core"
	apphttp "moneymate/internal/http"
	"moneymate/internal/log"
	"moneymate/internal/services"
)

func main() {
	cli.LoadEnvFile()

	// Bootstrap logger until LOG_LEVEL is known
	logger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	startCtx := context.Background()
	res := cli.InitBackend(startCtx, logger, cfg)
	rates := cli.NewRateService(startCtx, logger, cfg, res.Store)

	caches := cache.NewManager()
	overviews := cache.NewNamedLRUCache[core.MonthOverview]("overviews", 100, 5*time.Minute)
	caches.Register(overviews)
	caches.StartCleanup(10 * time.Minute)

	txs := services.NewTransactionService(res.Store, rates, res.Publisher,
		services.WithNegativeBalance(cfg.AllowNegativeBalance),
		services.WithOverviewCache(overviews))

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               cli.ListenAddr(cfg.Port),
		DisplayCurrency:    cfg.DisplayCurrency,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, apphttp.Deps{
		Transactions: txs,
		Rates:        rates,
		Health:       res.Store,
		Caches:       caches,
		Logger:       log.Wrap(logger, log.ComponentHTTP),
	})

	refresher := services.NewRateRefresher(rates, cfg.RateRefreshInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := refresher.Stop(shutdownCtx); err != nil {
			logger.Error("Rate refresher shutdown error", "error", err)
		}
		caches.Stop()
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	if err := refresher.Start(ctx); err != nil {
		logger.Error("Failed to start rate refresher", "error", err)
	}

	logger.Info("Starting moneymate server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"display_currency", cfg.DisplayCurrency,
		"publishing", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
