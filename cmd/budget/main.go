package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/auth"
	"budget/internal/cache"
	"budget/internal/cli"
	apphttp "budget/internal/http"
	applog "budget/internal/log"
	"budget/internal/prefs"
	"budget/internal/report"
	"budget/internal/repository"
)

const cacheCleanupInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting budget server", "port", cfg.Port, "db", cfg.SQLiteDBPath)

	st := cli.OpenStore(logger, cfg.SQLiteDBPath)

	var repoOpts []repository.Option
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, changes will not be published", "error", err)
		} else {
			amqpClient = c
			repoOpts = append(repoOpts, repository.WithEventPublisher(c))
			logger.Info("AMQP change feed enabled", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - ledger export will only run through backfill")
	}

	repo := repository.NewLocal(st, prefs.New(st, cfg.DefaultLanguage), repoOpts...)
	reports := report.NewService(repo, st.Notifier(), cfg.ReportCacheSize, cfg.ReportCacheTTL)
	caches := cache.NewManager()
	caches.Register(reports.Cache())

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Repo:    repo,
		Auth:    auth.NewService(repo, auth.WithMinPasswordLength(cfg.MinPasswordLength)),
		Reports: reports,
		Store:   st,
		Logger:  applog.ForComponent(applog.ComponentHTTP),
	})

	// No write timeout: the dashboard event stream stays open.
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return caches.Run(gctx, cacheCleanupInterval)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err := g.Wait()
	if err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
	} else {
		cli.WaitForShutdown(ctx, done)
	}

	reports.Close()
	if amqpClient != nil {
		if cerr := amqpClient.Close(); cerr != nil {
			logger.Warn("AMQP close error", "error", cerr)
		}
	}
	if cerr := st.Close(); cerr != nil {
		logger.Warn("Database close error", "error", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
