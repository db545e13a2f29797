// Command server starts the HTTP surface for the inbound ingest() and
// report_event() operations (SPEC_FULL.md §6).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wholesalehub/orderbackbone/internal/adapter/httpserver"
	"github.com/wholesalehub/orderbackbone/internal/adapter/observability"
	"github.com/wholesalehub/orderbackbone/internal/adapter/postgres"
	"github.com/wholesalehub/orderbackbone/internal/config"
	"github.com/wholesalehub/orderbackbone/internal/usecase"
	"github.com/wholesalehub/orderbackbone/internal/vendormetrics"
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

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	artifactRepo := postgres.NewArtifactRepo(pool)
	queueRepo := postgres.NewQueueRepo(pool, cfg.DefaultQueue.BaseBackoff, cfg.DefaultQueue.CapBackoff)
	vendorMetricsRepo := postgres.NewVendorMetricsRepo(pool, cfg.MetricsWeights, cfg.SeedSamples, cfg.NeutralPrior)

	ingestSvc := usecase.NewIngestService(artifactRepo, queueRepo)
	metricsSvc := vendormetrics.NewService(vendorMetricsRepo)

	dbCheck := func(ctx context.Context) error {
		_, err := pool.Exec(ctx, "SELECT 1")
		return err
	}

	srv := httpserver.NewServer(cfg, ingestSvc, metricsSvc, dbCheck)
	handler := otelhttp.NewHandler(httpserver.BuildRouter(cfg, srv), "orderbackbone-server")

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("starting server", slog.String("addr", cfg.HTTPAddr), slog.String("env", cfg.AppEnv))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("signal received, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", slog.Any("error", err))
	}
	slog.Info("server stopped")
}
