package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"scheduler/internal/app"
	"scheduler/internal/config"
)

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitIncomplete = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("SCHEDULER_CONFIG_PATH"), "path to config.yaml")
	dryRun := flag.Bool("dry-run", false, "write the workbook only; skip database, cache and notifications")
	quiet := flag.Bool("quiet", false, "do not print the week to stdout")
	flag.Parse()

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load config")
		return exitError
	}
	logger = logger.Level(cfg.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{DryRun: *dryRun}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return exitError
	}
	defer a.Close()

	out, err := a.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("scheduling failed")
		return exitError
	}

	if !*quiet {
		fmt.Print(out.Result.Week)
	}

	logger.Info().
		Str("run_id", out.RunID).
		Str("workbook", out.Workbook).
		Int("placed", len(out.Result.Placements)).
		Int("failed", len(out.Result.Failures)).
		Bool("row_errors", out.RowErrors != nil).
		Msg("run complete")

	if !out.OK() {
		return exitIncomplete
	}
	return exitOK
}
