package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/crewdeck-hr/crewdeck-hr/internal/app"
	"github.com/crewdeck-hr/crewdeck-hr/internal/tenant"
	"github.com/crewdeck-hr/crewdeck-hr/jobs"
)

func main() {
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

	registry := tenant.NewRegistry(cfg.PGDSN, logger)

	sweepTask, err := jobs.NewTenantSweepTask(jobs.TenantSweepPayload{})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTenantSweep, Handler: jobs.NewTenantSweepHandler(registry, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.TenantSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownCtx := context.Background()
	if err := registry.CloseAll(shutdownCtx); err != nil {
		logger.Error("close tenant connections", slog.Any("error", err))
	}
}
