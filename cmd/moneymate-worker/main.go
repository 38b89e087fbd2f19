package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"moneymate/internal/cli"
	"moneymate/internal/config"
	"moneymate/internal/services"
	"moneymate/internal/sheets"
	gsheet "moneymate/internal/sheets/google"
	memsheet "moneymate/internal/sheets/memory"
	"moneymate/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting moneymate-worker")

	startCtx := context.Background()
	res := cli.InitBackend(startCtx, logger, cfg)
	if res.Sync == nil {
		logger.Error("The worker requires the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	exporter, err := newExporter(startCtx, cfg)
	if err != nil {
		logger.Error("Failed to initialize sheet exporter", "error", err)
		os.Exit(1)
	}

	// The worker consumes on the same client the factory built for publishing.
	var events worker.EventSource
	if src, ok := res.Publisher.(worker.EventSource); ok {
		events = src
	} else {
		logger.Info("AMQP disabled - relying on the pending poller only")
	}

	rates := cli.NewRateService(startCtx, logger, cfg, res.Store)
	refresher := services.NewRateRefresher(rates, cfg.RateRefreshInterval)

	proc := services.NewSyncProcessor(res.Sync, exporter, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
		MaxRetries:   cfg.SyncMaxRetries,
	})
	syncWorker := worker.NewSyncWorker(proc)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := refresher.Stop(stopCtx); err != nil {
			logger.Error("Rate refresher shutdown error", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return syncWorker.Run(gctx, events)
	})
	g.Go(func() error {
		// Keeps the persisted rate cache warm for the API instances.
		return refresher.Start(gctx)
	})

	exitCode := 0
	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		exitCode = 1
	}

	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
	}
	if res.Cleanup != nil {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}

	logger.Info("Worker stopped")
	os.Exit(exitCode)
}

// newExporter returns the Google Sheets client when a spreadsheet is
// configured and an in-memory exporter otherwise, so the sync bookkeeping
// still advances in local setups.
func newExporter(ctx context.Context, cfg *config.Config) (sheets.TransactionExporter, error) {
	if !cfg.SheetsEnabled() {
		return memsheet.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	if err := client.EnsureHeader(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
