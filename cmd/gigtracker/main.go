package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"gigtracker/internal/backend"
	"gigtracker/internal/cli"
	apphttp "gigtracker/internal/http"
	applog "gigtracker/internal/log"
	"gigtracker/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).Create(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", backendConfig.Type)
		os.Exit(1)
	}

	gigs := services.NewGigService(result.Store, result.Publisher, cfg.FetchConcurrency)
	srv := apphttp.NewServer(gigs, apphttp.Options{
		Addr:      ":" + cfg.Port,
		Logger:    logger.WithComponent(applog.ComponentHTTP),
		Pinger:    result.Store,
		CacheTTL:  cfg.CacheTTL,
		CacheSize: cfg.CacheSize,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting gigtracker server",
		"port", cfg.Port,
		"backend", backendConfig.Type,
		"events", result.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
