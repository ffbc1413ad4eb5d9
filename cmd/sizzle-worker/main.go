package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

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
	}

	eng := engine.New(store, cat, leaderboard.NewIndex(), logger, engine.Config{
		OfflineCap:            cfg.OfflineCap,
		MaxAttempts:           cfg.MaxAttempts,
		RetryBackoff:          cfg.RetryBackoff,
		StarterBalanceMicros:  cfg.StarterBalanceMicros,
		BaseRatePerHourMicros: cfg.BaseRatePerHour,
		BaseGuestsPerHour:     cfg.BaseGuestsPerHour,
	})

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("SIZZLE_WORKER_RUN_ONCE")), "true")
	if runOnce {
		if err := sweep(ctx, logger, eng); err != nil {
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.SweepEvery)
	defer ticker.Stop()

	logger.Info("worker started", "sweep_every", cfg.SweepEvery.String(), "offline_cap", cfg.OfflineCap.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if err := sweep(ctx, logger, eng); err != nil {
				continue
			}
		}
	}
}

// sweep settles every player and rebuilds the leaderboard from the fresh
// ledger so restarts and missed updates converge.
func sweep(ctx context.Context, logger *slog.Logger, eng *engine.Engine) error {
	start := time.Now()
	settled, err := eng.SettleAll(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("settle sweep failed", "err", err)
		return err
	}
	ranked, err := eng.RebuildLeaderboard(ctx)
	if err != nil {
		logger.Error("leaderboard rebuild failed", "err", err)
		return err
	}
	logger.Info("sweep complete", "settled", settled, "ranked", ranked, "took", time.Since(start).String())
	return nil
}
