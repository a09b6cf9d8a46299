package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"immo/internal/amqp"
	"immo/internal/cli"
	"immo/internal/log"
	"immo/internal/services"
	gsheet "immo/internal/sheets/google"
	"immo/internal/storage"
	"immo/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	if err != nil {
		slog.Error("Invalid log level", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting immo-worker")

	if cfg.DataBackend != "sqlite" {
		logger.Error("The sync worker needs the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if !cfg.SheetsEnabled() {
		logger.Error("Google Sheets disabled - set GOOGLE_SPREADSHEET_ID to run the sync worker")
		os.Exit(1)
	}

	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(sqliteRepo, sheetsClient, cfg.SyncBatchSize)
	processor := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Sync processor stop", log.FieldError, err)
		}
	})

	// A failed read of the current sheet is not fatal; the sheet is
	// created on the first upsert.
	if rows, err := sheetsClient.ListStatementRows(ctx, time.Now().Year()-1); err != nil {
		logger.Warn("Could not read statement sheet", log.FieldError, err)
	} else {
		logger.Info("Statement sheet reachable", "rows", len(rows))
	}

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		if err := amqpClient.ConsumeStatementSync(ctx, syncWorker.HandleSyncMessage); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()

	<-ctx.Done()
	<-done
	logger.Info("Worker stopped")
}
