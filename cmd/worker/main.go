package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridian-retail/meridian-retail/internal/app"
	"github.com/meridian-retail/meridian-retail/internal/catalog"
	jobmetrics "github.com/meridian-retail/meridian-retail/internal/jobs"
	"github.com/meridian-retail/meridian-retail/internal/kits"
	"github.com/meridian-retail/meridian-retail/internal/platform/cache"
	"github.com/meridian-retail/meridian-retail/internal/platform/db"
	"github.com/meridian-retail/meridian-retail/internal/shared"
	"github.com/meridian-retail/meridian-retail/internal/stock"
	"github.com/meridian-retail/meridian-retail/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalogRepo := catalog.NewRepository(pool)
	stockRepo := stock.NewRepository(pool)
	kitCache := kits.NewCache(redisClient)
	kitsService := kits.NewService(catalogRepo, stockRepo, kitCache, logger)

	idempotencyStore := shared.NewIdempotencyStore(pool)

	refreshAllTask, err := jobs.NewAvailabilityRefreshTask(jobs.AvailabilityRefreshPayload{})
	if err != nil {
		logger.Error("build refresh task", slog.Any("error", err))
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Metrics:   metrics,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAvailabilityRefresh, Handler: jobs.NewAvailabilityRefreshHandler(kitsService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AvailabilityRefreshCron, Task: refreshAllTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	obsRouter := chi.NewRouter()
	obsRouter.Route("/jobs", jobs.NewHandler(inspector, logger).MountRoutes)
	obsRouter.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	obsServer := &http.Server{Addr: cfg.WorkerAddr, Handler: obsRouter}
	go func() {
		logger.Info("starting worker observability server", slog.String("addr", cfg.WorkerAddr))
		if err := obsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("observability server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("observability shutdown", slog.Any("error", err))
		}
	}()

	// Opportunistic cleanup of expired receipt keys alongside the worker.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := idempotencyStore.Cleanup(ctx, cfg.IdempotencyRetention); err != nil {
					logger.Warn("idempotency cleanup", slog.Any("error", err))
				}
			}
		}
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
