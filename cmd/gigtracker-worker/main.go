package main

import (
	"context"
	"os"
	"time"

	"gigtracker/internal/amqp"
	"gigtracker/internal/backend"
	"gigtracker/internal/cli"
	applog "gigtracker/internal/log"
	"gigtracker/internal/services"
	gsheet "gigtracker/internal/sheets/google"
	"gigtracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting gigtracker-worker")

	if !cfg.SheetsEnabled() {
		logger.Error("Google Sheets is not configured, nothing to export",
			"hint", "set GOOGLE_SPREADSHEET_ID and service account credentials")
		os.Exit(1)
	}

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	// The worker only consumes events.
	backendConfig.AMQPURL = ""
	result, err := backend.NewFactory(logger.Logger).Create(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", backendConfig.Type)
		os.Exit(1)
	}

	writer, err := gsheet.NewEarningsWriter(context.Background(), gsheet.Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	gigs := services.NewGigService(result.Store, nil, cfg.FetchConcurrency)
	processor := services.NewSyncProcessor(gigs, writer, services.SyncProcessorConfig{
		PollInterval: cfg.SyncPollInterval,
	})

	var consumer worker.Consumer
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		consumer = amqpClient
	} else {
		logger.Info("AMQP disabled, exports run on schedule only")
	}

	syncWorker, err := worker.NewSyncWorker(processor, consumer, cfg.SyncCron, logger)
	if err != nil {
		logger.Error("Failed to create sync worker", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Sync processor stop error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Performing startup export...")
	if err := syncWorker.StartupSync(ctx); err != nil {
		logger.Error("Startup export failed", "error", err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	if err := syncWorker.Run(ctx); err != nil {
		logger.Error("Sync worker stopped with error", "error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
