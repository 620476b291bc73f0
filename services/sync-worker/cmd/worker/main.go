package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	httpx "gawulo-platform/services/sync-worker/internal/http"
	"gawulo-platform/services/sync-worker/internal/syncer"
	"gawulo-platform/shared/pkg/cache"
	"gawulo-platform/shared/pkg/config"
	"gawulo-platform/shared/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New("sync-worker", cfg.Common.LogLevel)

	ctxDB, cancelDB := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDB()
	db, err := pgxpool.New(ctxDB, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("pg connect failed")
	}
	defer db.Close()

	rc := cache.New(cfg.Redis.Addr)
	defer rc.Close()

	runner := &syncer.Runner{
		Log:          log,
		DB:           db,
		Applier:      &syncer.Applier{VATRate: cfg.Orders.VATRate, Menus: rc},
		PollInterval: cfg.Sync.PollInterval,
		BatchSize:    cfg.Sync.BatchSize,
		BackoffMax:   cfg.Sync.BackoffMax,
		Strategy:     cfg.Sync.Strategy,
	}

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(appCtx)

	httpSrv := &http.Server{
		Addr:              cfg.Sync.HTTPAddr,
		Handler:           (&httpx.Server{DB: db}).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("http started")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http failed")
		}
	}()

	log.Info().Msg("sync-worker started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutdown...")
	cancel()
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = httpSrv.Shutdown(shCtx)
}
