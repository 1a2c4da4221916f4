package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hamed0406/chainwatch/internal/catalog"
	"github.com/hamed0406/chainwatch/internal/config"
	"github.com/hamed0406/chainwatch/internal/logging"
	"github.com/hamed0406/chainwatch/internal/probe"
	"github.com/hamed0406/chainwatch/internal/repo"
	"github.com/hamed0406/chainwatch/internal/repo/memory"
	"github.com/hamed0406/chainwatch/internal/repo/postgres"
	"github.com/hamed0406/chainwatch/internal/scheduler"
	"github.com/hamed0406/chainwatch/internal/status"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		cat repo.CatalogStore
		cs  repo.CheckStore
		ss  repo.StatusStore
	)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("postgres_connect", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal("postgres_schema", zap.Error(err))
		}
		cat, cs, ss = pg, pg, pg
	} else {
		logger.Warn("no DATABASE_URL, using in-memory store")
		mem := memory.New()
		cat, cs, ss = mem, mem, mem
	}

	file, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		logger.Fatal("catalog_load", zap.String("path", cfg.CatalogFile), zap.Error(err))
	}
	if err := catalog.Sync(ctx, cat, logger, file); err != nil {
		logger.Fatal("catalog_sync", zap.Error(err))
	}

	agg := status.NewAggregator(ss, logger,
		cfg.StaleAfter, cfg.MaxBlockLag, cfg.PersistRetries, cfg.PersistBackoff)

	runner := scheduler.NewRunner(
		logger, cat, cs, ss, agg,
		probe.NewHTTPChecker(cfg.RequestTimeout),
		cfg.CheckInterval, cfg.RequestTimeout,
		cfg.Concurrency, cfg.BatchLimit,
	)
	runner.Retries = cfg.PersistRetries
	runner.Backoff = cfg.PersistBackoff

	logger.Info("worker_started",
		zap.Duration("interval", cfg.CheckInterval),
		zap.Duration("timeout", cfg.RequestTimeout),
		zap.Int("batch_limit", cfg.BatchLimit),
		zap.Int("concurrency", cfg.Concurrency),
	)
	runner.Run(ctx)
}
