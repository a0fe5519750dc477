package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crewdeck-hr/crewdeck-hr/internal/app"
	"github.com/crewdeck-hr/crewdeck-hr/internal/authz"
	"github.com/crewdeck-hr/crewdeck-hr/internal/platform/cache"
	"github.com/crewdeck-hr/crewdeck-hr/internal/projects"
	projectshttp "github.com/crewdeck-hr/crewdeck-hr/internal/projects/http"
	"github.com/crewdeck-hr/crewdeck-hr/internal/tenant"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	// The scope filter degrades to uncached resolution without redis.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, scope caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	registry := tenant.NewRegistry(cfg.PGDSN, logger)

	stores := func(h *tenant.Handle) authz.Store {
		return projects.NewRepository(h)
	}
	resolver := authz.NewAccessResolver(stores, logger)
	teams := authz.NewTeamResolver(stores, logger)
	filter := authz.NewScopeFilter(resolver, redisClient, cfg.AccessCacheTTL, logger)
	guard := authz.NewGuard(registry, resolver, stores, logger)

	projectsHandler := projectshttp.NewHandler(registry, resolver, teams, filter, guard, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Registry:        registry,
		ProjectsHandler: projectsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
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
		logger.Error("server shutdown", slog.Any("error", err))
	}
	if err := registry.CloseAll(shutdownCtx); err != nil {
		logger.Error("close tenant connections", slog.Any("error", err))
	}
}
