package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/Palpita209/Palpita209-sub001/internal/app"
	"github.com/Palpita209/Palpita209-sub001/internal/documents"
	"github.com/Palpita209/Palpita209-sub001/internal/forecast"
	"github.com/Palpita209/Palpita209-sub001/internal/observability"
	"github.com/Palpita209/Palpita209-sub001/internal/platform/cache"
	"github.com/Palpita209/Palpita209-sub001/internal/platform/db"
	"github.com/Palpita209/Palpita209-sub001/internal/shared"
	"github.com/Palpita209/Palpita209-sub001/jobs"
	"github.com/Palpita209/Palpita209-sub001/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	documentCache := cache.NewCache(redisClient, "assettrack", cfg.CacheTTL)

	documentsRepo := documents.NewRepository(dbpool)
	documentsService := documents.NewService(
		documentsRepo,
		documents.NewNormalizer(cfg.Location()),
		documentCache,
		auditLogger,
		metrics,
		logger,
	)
	documentsHandler := documents.NewHandler(logger, documentsService, cfg.ExposeErrors())
	forecastHandler := forecast.NewHandler(forecast.Noop{}, logger)

	forms, err := report.NewForms(cfg.Location())
	if err != nil {
		logger.Error("parse report templates", slog.Any("error", err))
		os.Exit(1)
	}
	reportHandler := report.NewHandler(documentsService, forms, report.NewClient(cfg.GotenbergURL), logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		DocumentsHandler: documentsHandler,
		ForecastHandler:  forecastHandler,
		ReportHandler:    reportHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
