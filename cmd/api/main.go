package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/hamed0406/chainwatch/internal/config"
	"github.com/hamed0406/chainwatch/internal/httpapi"
	"github.com/hamed0406/chainwatch/internal/logging"
	"github.com/hamed0406/chainwatch/internal/repo"
	"github.com/hamed0406/chainwatch/internal/repo/memory"
	"github.com/hamed0406/chainwatch/internal/repo/postgres"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()

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
		cat, cs, ss = pg, pg, pg
	} else {
		// in-memory only makes sense when worker and api share a process;
		// standalone this serves an empty catalog
		logger.Warn("no DATABASE_URL, using in-memory store")
		mem := memory.New()
		cat, cs, ss = mem, mem, mem
	}

	api := httpapi.NewServer(logger, cat, cs, ss)

	logger.Info("api_listen", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, api.Router()); err != nil {
		log.Fatal(err)
	}
}
