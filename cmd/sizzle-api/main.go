package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sizzle/internal/api"
	"sizzle/internal/catalog"
	"sizzle/internal/config"
	"sizzle/internal/db"
	"sizzle/internal/engine"
	"sizzle/internal/leaderboard"
	"sizzle/internal/ledger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := ledger.NewPGStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			logger.Error("load catalog failed", "path", cfg.CatalogPath, "err", err)
			os.Exit(1)
		}
		logger.Info("catalog loaded", "path", cfg.CatalogPath)
	}

	eng := engine.New(store, cat, leaderboard.NewIndex(), logger, engine.Config{
		OfflineCap:            cfg.OfflineCap,
		MaxAttempts:           cfg.MaxAttempts,
		RetryBackoff:          cfg.RetryBackoff,
		StarterBalanceMicros:  cfg.StarterBalanceMicros,
		BaseRatePerHourMicros: cfg.BaseRatePerHour,
		BaseGuestsPerHour:     cfg.BaseGuestsPerHour,
	})

	count, err := eng.RebuildLeaderboard(ctx)
	if err != nil {
		logger.Error("leaderboard rebuild failed", "err", err)
		os.Exit(1)
	}
	logger.Info("leaderboard rebuilt", "players", count)

	server := api.New(cfg, logger, eng)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("sizzle api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
