// Package bootstrap wires configuration into the concrete store, providers
// and services shared by the server and the one-shot ingest command.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/ai"
	"github.com/baxromumarov/job-aggregator/internal/cache"
	"github.com/baxromumarov/job-aggregator/internal/config"
	"github.com/baxromumarov/job-aggregator/internal/core"
	"github.com/baxromumarov/job-aggregator/internal/httpx"
	"github.com/baxromumarov/job-aggregator/internal/scraper"
	"github.com/baxromumarov/job-aggregator/internal/store"
)

// NewLogger installs a JSON slog handler on w as the default logger.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// Services holds everything a process needs after startup. Close releases
// the database and cache connections.
type Services struct {
	Store      *store.Store
	Aggregator *core.Aggregator
	Ingestion  *core.IngestionService
	Career     *core.CareerService

	closers []io.Closer
}

func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

// Setup connects to postgres, applies the schema and builds the aggregator,
// ingestion and career services.
func Setup(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Services, error) {
	db, err := store.NewStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}
	if err := db.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	svc := &Services{Store: db, closers: []io.Closer{db}}

	responseCache, closer := NewCache(ctx, cfg.RedisURL, logger)
	if closer != nil {
		svc.closers = append(svc.closers, closer)
	}

	svc.Aggregator = core.NewAggregator(
		Providers(cfg, responseCache, logger),
		core.WithProviderTimeout(cfg.ProviderTimeout),
		core.WithLogger(logger),
	)
	svc.Ingestion = core.NewIngestionService(svc.Aggregator, db, db, core.IngestionConfig{
		QueryTerms:      cfg.Ingest.QueryTerms,
		Country:         cfg.Ingest.Country,
		Location:        cfg.Ingest.Location,
		ColdStartDays:   cfg.Ingest.ColdStartDays,
		OverlapHours:    cfg.Ingest.OverlapHours,
		RetentionMonths: cfg.Ingest.RetentionMonths,
		Budget:          cfg.Ingest.Budget,
	}, logger)

	completer := ai.NewClient(ai.Config{
		Provider:     cfg.AIProvider,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
	}, logger)
	svc.Career = core.NewCareerService(completer, core.NewMatcher())

	return svc, nil
}

// NewCache returns a Redis-backed response cache when redisURL is set and
// reachable, otherwise an in-process one. The closer is nil for memory.
func NewCache(ctx context.Context, redisURL string, logger *slog.Logger) (cache.Cache, io.Closer) {
	if redisURL == "" {
		return cache.NewMemory(), nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	r, err := cache.NewRedis(pingCtx, redisURL)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory response cache", "error", err)
		return cache.NewMemory(), nil
	}
	logger.Info("using redis response cache")
	return r, r
}

// Providers builds every adapter that is not listed in DISABLED_PROVIDERS.
// Adapters without credentials are still registered; they report themselves
// disabled and the aggregator skips them.
func Providers(cfg config.Config, responseCache cache.Cache, logger *slog.Logger) []scraper.Provider {
	client := httpx.NewClient(cfg.UserAgent,
		httpx.WithCache(responseCache, cfg.ProviderCacheTTL),
	)
	fetcher := httpx.NewCollyFetcher(cfg.UserAgent, cfg.ProviderTimeout)

	all := []scraper.Provider{
		scraper.NewAdzunaScraper(scraper.AdzunaConfig{AppID: cfg.Adzuna.AppID, AppKey: cfg.Adzuna.AppKey}, client),
		scraper.NewJSearchScraper(scraper.JSearchConfig{APIKey: cfg.JSearch.APIKey, APIHost: cfg.JSearch.APIHost}, client),
		scraper.NewJoobleScraper(scraper.JoobleConfig{APIKey: cfg.JoobleAPIKey}, client),
		scraper.NewRemoteOKScraper(client, ""),
		scraper.NewWWRScraper(fetcher, ""),
	}

	var providers []scraper.Provider
	for _, p := range all {
		if cfg.DisabledProviders[p.Source()] {
			logger.Info("provider disabled by configuration", "source", p.Source())
			continue
		}
		if !p.Enabled() {
			logger.Warn("provider missing credentials, skipping its queries", "source", p.Source())
		}
		providers = append(providers, p)
	}
	return providers
}
