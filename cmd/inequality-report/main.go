package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ineqpanel/internal/config"
	"ineqpanel/internal/infrastructure"
	"ineqpanel/internal/pipeline"
	"ineqpanel/internal/regression"
	"ineqpanel/internal/worldbank"
	"ineqpanel/pkg/contracts"
)

func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		return 1
	}
	defer infrastructure.CloseLogFile()

	logger.Info("Starting inequality report", "version", contracts.GetFullVersionString())

	// Paths
	paths, err := config.NewRunPaths(cfg.Output.Root, start)
	if err != nil {
		logger.Error("Failed to initialize paths", "error", err)
		return 1
	}
	if err := paths.EnsureDirectories(); err != nil {
		logger.Error("Failed to create run directory", "error", err)
		return 1
	}
	paths.LogPathResolution(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := infrastructure.GenerateTraceID()
	tel, err := infrastructure.InitializeTelemetry(ctx,
		infrastructure.NewTelemetryOptions(cfg.Telemetry, paths, runID), logger)
	if err != nil {
		logger.Error("Failed to initialize telemetry", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	client := worldbank.NewClientFromConfig(cfg.Source,
		worldbank.WithLogger(logger),
		worldbank.WithObserver(tel.Metrics))
	estimator := regression.NewEstimator(regression.DefaultOptions(), logger)

	runner := pipeline.NewRunner(pipeline.DefaultSteps(pipeline.Dependencies{
		Source:    client,
		Estimator: estimator,
		Paths:     paths,
		Report:    pipeline.NewReportOptions(cfg),
		Console:   os.Stdout,
		Metrics:   tel.Metrics,
		Logger:    logger,
	}), tel, logger)

	state := pipeline.NewRunState(runID, worldbank.DefaultRequest())
	runErr := runner.Run(ctx, state)

	stats := infrastructure.CollectRuntimeStats(start)
	if err := infrastructure.RecordRuntimeStats(ctx, tel.Meter, stats); err != nil {
		logger.Warn("Failed to record runtime stats", "error", err)
	}

	if runErr != nil {
		logger.Error("Inequality report failed",
			"run_id", runID,
			"error", runErr,
			"runtime", stats)
		return 1
	}

	logger.Info("Inequality report generated successfully",
		"run_id", runID,
		"run_dir", paths.RunDir,
		"artifacts", len(state.Artifacts),
		"runtime", stats)
	return 0
}
