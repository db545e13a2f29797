// Package main provides the worker application entry point.
// The worker claims ingestion-pipeline jobs from the durable Postgres queue
// and drives each UploadedArtifact through OCR, extraction, normalization,
// vendor broadcast, and finalization.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wholesalehub/orderbackbone/internal/adapter/blobstore"
	"github.com/wholesalehub/orderbackbone/internal/adapter/extractor"
	"github.com/wholesalehub/orderbackbone/internal/adapter/observability"
	"github.com/wholesalehub/orderbackbone/internal/adapter/ocr"
	"github.com/wholesalehub/orderbackbone/internal/adapter/postgres"
	"github.com/wholesalehub/orderbackbone/internal/adapter/redisrate"
	"github.com/wholesalehub/orderbackbone/internal/config"
	"github.com/wholesalehub/orderbackbone/internal/pipeline"
	"github.com/wholesalehub/orderbackbone/internal/queue"
	"github.com/wholesalehub/orderbackbone/internal/selector"
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
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid redis url", slog.Any("error", err))
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
	}

	artifactRepo := postgres.NewArtifactRepo(pool)
	processingLogRepo := postgres.NewProcessingLogRepo(pool)
	catalogRepo := postgres.NewCatalogRepo(pool)
	vendorRepo := postgres.NewVendorRepo(pool)
	broadcastRepo := postgres.NewBroadcastRepo(pool)
	outboxRepo := postgres.NewOutboxRepo(pool)
	queueRepo := postgres.NewQueueRepo(pool, cfg.DefaultQueue.BaseBackoff, cfg.DefaultQueue.CapBackoff)

	luaLimiter := redisrate.NewRedisLuaLimiter(redisClient, pool, map[string]redisrate.BucketConfig{
		"ocr":       redisrate.NewBucketConfigFromPerMinute(int(cfg.ProviderRateLimitPerSec * 60)),
		"extractor": redisrate.NewBucketConfigFromPerMinute(int(cfg.ProviderRateLimitPerSec * 60)),
	})
	if luaLimiter != nil {
		if err := luaLimiter.WarmFromPostgres(ctx); err != nil {
			slog.Warn("failed to warm rate limiter from postgres", slog.Any("error", err))
		}
	}

	blobs := blobstore.NewFSStore(cfg.BlobBaseDir)

	tika := ocr.NewTikaClient(cfg.OCRProviderURL, cfg.ProviderTimeout)
	pdfFallback := ocr.PDFExtractor{}
	ocrBreaker := ocr.NewBreakerProvider("ocr", tika, pdfFallback, uint32(cfg.CircuitBreakerMaxFailures), cfg.CircuitBreakerOpenTimeout)
	ocrGated := redisrate.OCRProvider{
		Next: ocrBreaker,
		Gate: redisrate.NewGate(luaLimiter, "ocr", cfg.ProviderRateLimitPerSec, cfg.ProviderRateBurst),
	}

	itemExtractor := extractor.NewHTTPExtractor(cfg.ExtractorProviderURL, cfg.ProviderTimeout)
	extractorBreaker := extractor.NewBreakerExtractor("extractor", itemExtractor, uint32(cfg.CircuitBreakerMaxFailures), cfg.CircuitBreakerOpenTimeout)
	extractorGated := redisrate.ItemExtractor{
		Next: extractorBreaker,
		Gate: redisrate.NewGate(luaLimiter, "extractor", cfg.ProviderRateLimitPerSec, cfg.ProviderRateBurst),
	}

	sel := selector.New(vendorRepo, cfg.SelectorWeights, cfg.MinReliability, cfg.SeedSamples, cfg.TopKVendors)

	pl := &pipeline.Pipeline{
		Artifacts:     artifactRepo,
		ProcessingLog: processingLogRepo,
		Catalog:       catalogRepo,
		Blobs:         blobs,
		OCRProvider:   ocrGated,
		Extractor:     extractorGated,
		Selector:      sel,
		Broadcasts:    broadcastRepo,
		Outbox:        outboxRepo,
		Queue:         queueRepo,
		Cfg: pipeline.Config{
			MatchThreshold:          cfg.MatchThreshold,
			ReviewFractionThreshold: cfg.ReviewFractionThreshold,
			MaxQuantity:             cfg.MaxQuantity,
			TopKVendors:             cfg.TopKVendors,
		},
	}

	workerID := "worker-" + hostnameOrFallback()
	workerPool := queue.NewPool(queueRepo, workerID)
	workerPool.RegisterProcessor(pipeline.QueueName, pl.Process, cfg.DefaultQueue.Concurrency, cfg.DefaultQueue.JobTimeout)

	slog.Info("worker started successfully, waiting for shutdown signal", slog.String("worker_id", workerID))
	workerPool.Run(ctx)
	slog.Info("worker stopped")
}

func hostnameOrFallback() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "local"
	}
	return h
}
