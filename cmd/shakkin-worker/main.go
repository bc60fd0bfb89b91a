package main

import (
	"os"
	"time"

	"shakkin/internal/backend"
	"shakkin/internal/cli"
	"shakkin/internal/export/sheets"
	"shakkin/internal/services"
	"shakkin/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.MustLoadConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	var exporter worker.ScheduleExporter
	if cfg.SheetsEnabled() {
		client, err := sheets.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Warn("Failed to initialize Google Sheets client, continuing without export", "error", err)
		} else {
			exporter = client
			logger.Info("Initialized Google Sheets export", "sheet", cfg.GoogleSheetName)
		}
	}

	var events worker.EventSource
	if result.Publisher != nil {
		events = result.Publisher
	} else if cfg.AMQPURL != "" {
		logger.Warn("AMQP broker unreachable, snapshots run on the interval only")
	}

	w := worker.NewSnapshotWorker(services.NewPortfolioService(result.Backend), result.Backend, exporter, logger)

	logger.Info("Starting shakkin worker",
		"backend", cfg.DataBackend,
		"snapshot_interval", cfg.SnapshotInterval,
		"amqp", events != nil,
		"sheets", exporter != nil)

	runErr := w.Run(ctx, events, cfg.SnapshotInterval)
	if runErr != nil {
		logger.Error("Worker stopped with error", "error", runErr)
	}

	cli.RunCleanup(logger, 10*time.Second, result.Cleanup)
	if runErr != nil {
		os.Exit(1)
	}
}
