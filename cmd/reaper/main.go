// Package main provides the reaper application entry point.
// The reaper periodically reclaims jobs whose worker-held lock has expired,
// so a crashed worker never strands a job permanently RUNNING.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wholesalehub/orderbackbone/internal/adapter/observability"
	"github.com/wholesalehub/orderbackbone/internal/adapter/postgres"
	"github.com/wholesalehub/orderbackbone/internal/config"
	"github.com/wholesalehub/orderbackbone/internal/pipeline"
	"github.com/wholesalehub/orderbackbone/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	slog.Info("starting reaper", slog.String("env", cfg.AppEnv), slog.Duration("interval", cfg.ReaperInterval))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	queueRepo := postgres.NewQueueRepo(pool, cfg.DefaultQueue.BaseBackoff, cfg.DefaultQueue.CapBackoff)

	queue.RunReaper(ctx, queueRepo, cfg.ReaperInterval, []string{pipeline.QueueName})
	slog.Info("reaper stopped")
}
