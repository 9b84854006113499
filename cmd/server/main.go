package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/api"
	"github.com/baxromumarov/job-aggregator/internal/bootstrap"
	"github.com/baxromumarov/job-aggregator/internal/config"
	"github.com/baxromumarov/job-aggregator/internal/core"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := bootstrap.NewLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Setup(ctx, cfg, logger)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Without INGEST_CRON an external scheduler is expected to call
	// POST /internal/ingest.
	if cfg.IngestCron != "" {
		sched, err := core.NewScheduler(cfg.IngestCron, svc.Ingestion, logger)
		if err != nil {
			slog.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start(ctx)
		defer sched.Stop()
		slog.Info("in-process ingestion scheduled", "spec", cfg.IngestCron)
	}
	if cfg.IngestSecret == "" {
		slog.Warn("INGEST_SECRET not set, /internal/ingest is disabled")
	}

	srv := api.NewServer(svc.Store, svc.Aggregator, svc.Ingestion, svc.Career, api.Config{
		DefaultCountry: cfg.DefaultCountry,
		IngestSecret:   cfg.IngestSecret,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// ingestion runs inside the request, bounded by its own budget
		WriteTimeout: cfg.Ingest.Budget + 30*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
