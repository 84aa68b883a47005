package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Palpita209/Palpita209-sub001/internal/app"
	"github.com/Palpita209/Palpita209-sub001/internal/documents"
	jobmetrics "github.com/Palpita209/Palpita209-sub001/internal/jobs"
	"github.com/Palpita209/Palpita209-sub001/internal/observability"
	"github.com/Palpita209/Palpita209-sub001/internal/platform/cache"
	"github.com/Palpita209/Palpita209-sub001/internal/platform/db"
	"github.com/Palpita209/Palpita209-sub001/internal/shared"
	"github.com/Palpita209/Palpita209-sub001/jobs"
)

func main() {
	once := flag.Bool("once", false, "run one totals reconciliation and exit")
	enqueue := flag.Bool("enqueue", false, "enqueue one totals reconciliation and exit")
	flag.Parse()

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	if *enqueue {
		client, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer client.Close()
		info, err := client.EnqueueReconcileTotals(ctx, "manual")
		if err != nil {
			logger.Error("enqueue reconcile", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("reconcile enqueued", slog.String("task_id", info.ID), slog.String("queue", info.Queue))
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
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

	metrics := observability.NewMetrics()
	documentsService := documents.NewService(
		documents.NewRepository(pool),
		documents.NewNormalizer(cfg.Location()),
		cache.NewCache(redisClient, "assettrack", cfg.CacheTTL),
		shared.NewAuditLogger(pool),
		metrics,
		logger,
	)
	reconcileJob := jobs.NewReconcileTotalsJob(documentsService, logger, jobmetrics.NewMetrics(metrics.Registerer()))

	if *once {
		if err := reconcileJob.Run(ctx, jobs.ReconcileTotalsPayload{Trigger: "cli"}); err != nil {
			logger.Error("reconcile totals", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	reconcileTask, err := jobs.NewReconcileTotalsTask("cron")
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Location:  cfg.Location(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReconcileTotals, Handler: reconcileJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReconcileCron, Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := app.NewMetricsServer(cfg.WorkerMetricsAddr, metrics)
		go func() {
			logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("worker metrics shutdown", slog.Any("error", err))
			}
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
