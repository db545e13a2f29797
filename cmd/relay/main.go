// Package main provides the outbox relay application entry point.
// The relay dispatches transactional outbox rows (written by the pipeline's
// broadcast stage) to Kafka, marking each row dispatched only after a
// confirmed publish.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wholesalehub/orderbackbone/internal/adapter/notifier"
	"github.com/wholesalehub/orderbackbone/internal/adapter/observability"
	"github.com/wholesalehub/orderbackbone/internal/adapter/postgres"
	"github.com/wholesalehub/orderbackbone/internal/config"
	"github.com/wholesalehub/orderbackbone/internal/domain"
	"github.com/wholesalehub/orderbackbone/internal/outbox"
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

	slog.Info("starting outbox relay", slog.String("env", cfg.AppEnv))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	outboxRepo := postgres.NewOutboxRepo(pool)

	kafkaNotifier, err := notifier.NewKafkaNotifier(cfg.KafkaBrokers, cfg.NotifierTopic)
	if err != nil {
		slog.Error("kafka notifier init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := kafkaNotifier.Close(); err != nil {
			slog.Error("failed to close kafka notifier", slog.Any("error", err))
		}
	}()

	notifiers := map[string]domain.Notifier{
		"vendor-notify": kafkaNotifier,
	}

	relay := outbox.NewRelay(outboxRepo, notifiers, cfg.RelayBatchSize, cfg.RelayInterval)

	slog.Info("outbox relay started successfully, waiting for shutdown signal")
	relay.Run(ctx)
	slog.Info("outbox relay stopped")
}
