package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/sheets"
	gsheet "budget/internal/sheets/google"
	mem "budget/internal/sheets/memory"
	"budget/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting budget-worker",
		"export_backend", cfg.ExportBackend,
		"backfill_interval", cfg.BackfillInterval)

	st := cli.OpenStore(logger, cfg.SQLiteDBPath)
	defer st.Close()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err, "backend", cfg.ExportBackend)
		os.Exit(1)
	}
	w := worker.NewLedgerWorker(st, ledger)

	// Catch up on anything written while the worker was down.
	if n, err := w.Backfill(ctx); err != nil {
		logger.Warn("Initial backfill incomplete", "error", err, "appended", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.RunBackfill(gctx, cfg.BackfillInterval)
	})

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumeChanges(gctx, w.HandleChange)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		logger.Info("Consuming change messages", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - relying on periodic backfill only")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

func openLedger(ctx context.Context, cfg *config.Config) (sheets.Ledger, error) {
	if cfg.ExportBackend != "sheets" {
		return mem.New(), nil
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
