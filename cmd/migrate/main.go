package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Palpita209/Palpita209-sub001/internal/app"
	"github.com/Palpita209/Palpita209-sub001/internal/platform/db"
	"github.com/Palpita209/Palpita209-sub001/internal/platform/migrate"
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

	migrations, err := migrate.Embedded()
	if err != nil {
		logger.Error("load migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN, 2)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	applied, err := migrate.New(pool, logger).Up(ctx, migrations)
	if err != nil {
		logger.Error("apply migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations complete", slog.Int("applied", len(applied)), slog.Int("known", len(migrations)))
}
