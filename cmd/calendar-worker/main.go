// Command calendar-worker runs one interactive calendar extraction for the
// listing URL given as its only argument. It writes exactly one JSON object
// to stdout and logs to stderr.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/hotelpricesync/config"
	"sjsage522/hotelpricesync/internal/calendar"
	"sjsage522/hotelpricesync/logger"

	"github.com/joho/godotenv"
)

type usageError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func main() {
	godotenv.Load()

	// stdout carries the result only
	logger.InitWithWriter(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, os.Args[1:], os.Stdout, func(cfg config.Config) calendar.Extractor {
		return calendar.NewEngine(calendar.NewDriver(cfg), calendar.TriggerFromConfig(cfg))
	})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer, newEngine func(config.Config) calendar.Extractor) int {
	log := logger.ForCalendar()

	if len(args) != 1 {
		log.Error().Int("args", len(args)).Msg("Usage: calendar-worker <listing-url>")
		writeJSON(stdout, usageError{Success: false, Error: "URL argument required"})
		return 1
	}

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		writeJSON(stdout, usageError{Success: false, Error: err.Error()})
		return 1
	}

	result := newEngine(cfg).Run(ctx, args[0])
	writeJSON(stdout, result)
	if !result.Success {
		log.Error().Str("url", args[0]).Str("error", result.Error).Msg("Calendar extraction failed")
		return 1
	}
	return 0
}

func writeJSON(w io.Writer, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.LogError("calendar-worker", err, "failed to write result")
	}
}
