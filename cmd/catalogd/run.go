package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"

	"github.com/okozhin/catalogd/internal/app"
	"github.com/okozhin/catalogd/internal/auth"
	"github.com/okozhin/catalogd/internal/cache"
	"github.com/okozhin/catalogd/internal/cms"
	"github.com/okozhin/catalogd/internal/config"
	"github.com/okozhin/catalogd/internal/ratelimit"
	"github.com/okozhin/catalogd/internal/server"
	"github.com/okozhin/catalogd/internal/storage/sqlite"
	"github.com/okozhin/catalogd/internal/telemetry"
	"github.com/okozhin/catalogd/internal/worker"
)

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting catalogd", "version", version, "addr", cfg.Server.Addr)

	ctx := context.Background()

	// Tracing
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	// Metrics
	var (
		metrics        *telemetry.Metrics
		metricsHandler http.Handler
	)
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics = telemetry.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	// Open database
	store, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	// Pagination cache
	mem, err := cache.NewMemory(cfg.Cache.MaxSize, cfg.Cache.DefaultTTL)
	if err != nil {
		return err
	}
	pages := cache.NewPages(mem, cfg.Cache.DefaultTTL)

	// Wire services
	var stats app.CacheStats
	if metrics != nil {
		stats = app.NewCacheStats(metrics)
	}
	catalogSvc := app.NewCatalogService(store, pages, stats)

	// Sync worker
	var syncer *worker.Syncer
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	workersDone := make(chan struct{})
	close(workersDone)
	if cfg.Sync.Enabled {
		resolver := &dnscache.Resolver{}
		client := cms.New(cms.Config{
			Space:       cfg.Sync.Space,
			Environment: cfg.Sync.Environment,
			AccessToken: cfg.Sync.AccessToken,
			ContentType: cfg.Sync.ContentType,
			BaseURL:     cfg.Sync.BaseURL,
			Timeout:     cfg.Sync.Timeout,
			PageSize:    cfg.Sync.PageSize,
		}, resolver)

		syncer = worker.NewSyncer(client, store, catalogSvc, metrics, cfg.Sync.Interval)

		runner := worker.NewRunner(syncer)
		workersDone = make(chan struct{})
		go func() {
			defer close(workersDone)
			if err := runner.Run(workerCtx); err != nil {
				slog.Error("worker runner stopped", "error", err)
			}
		}()
	}

	// Create HTTP server
	deps := server.Deps{
		Auth:           auth.NewBearer(),
		Catalog:        catalogSvc,
		ReadyCheck:     store.Ping,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
	}
	if cfg.Server.RateLimitRPM > 0 {
		deps.RateLimiter = ratelimit.NewRegistry(cfg.Server.RateLimitRPM)
	}
	if syncer != nil {
		deps.Syncer = syncer
	}
	handler := server.New(deps)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("catalogd ready", "addr", cfg.Server.Addr)

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop the workers and wait for the runner to return before tearing
	// down the store they write to.
	stopWorkers()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		slog.Warn("sync worker did not stop within the shutdown timeout")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("catalogd stopped")
	return nil
}
