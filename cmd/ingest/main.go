// Command ingest runs one ingestion pass and prints the summary as JSON, for
// external schedulers that prefer a process over the HTTP trigger.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/baxromumarov/job-aggregator/internal/bootstrap"
	"github.com/baxromumarov/job-aggregator/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	// stdout carries the summary
	logger := bootstrap.NewLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Setup(ctx, cfg, logger)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	summary, err := svc.Ingestion.Run(ctx)
	if err != nil {
		slog.Error("ingestion failed", "error", err)
		svc.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		slog.Error("failed to write summary", "error", err)
		svc.Close()
		os.Exit(1)
	}
}
