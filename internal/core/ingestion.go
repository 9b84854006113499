package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baxromumarov/job-aggregator/internal/observability"
	"github.com/baxromumarov/job-aggregator/internal/scraper"
	"github.com/baxromumarov/job-aggregator/internal/store"
)

var ErrRunInProgress = errors.New("ingestion run already in progress")

// DefaultQueryTerms are the broad role categories every source is scraped for.
var DefaultQueryTerms = []string{
	"software engineer",
	"backend developer",
	"frontend developer",
	"data analyst",
	"devops engineer",
	"product manager",
	"internship",
}

type SourceRegistry interface {
	ListSources(ctx context.Context) ([]store.Source, error)
	UpsertDefaultSources(ctx context.Context, defaults []store.Source) error
	MarkSourceScraped(ctx context.Context, id string, at time.Time) error
}

type PostingStore interface {
	// UpsertPosting writes p keyed by (source, external id) and reports
	// whether a new row was created.
	UpsertPosting(ctx context.Context, p scraper.Posting) (bool, error)
	DeletePostingsPostedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type IngestionConfig struct {
	QueryTerms      []string
	Country         string
	Location        string
	ColdStartDays   int
	OverlapHours    int
	RetentionMonths int
	// Budget bounds the wall-clock time of one run. Zero means unbounded.
	Budget time.Duration
}

func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		QueryTerms:      DefaultQueryTerms,
		Country:         "in",
		ColdStartDays:   30,
		OverlapHours:    12,
		RetentionMonths: 6,
		Budget:          4 * time.Minute,
	}
}

type Summary struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Sources    []SourceReport  `json:"sources"`
	Retention  RetentionReport `json:"retention"`
	Error      string          `json:"error,omitempty"`
}

type SourceReport struct {
	Source             string    `json:"source"`
	Name               string    `json:"name"`
	WindowStart        time.Time `json:"window_start"`
	DaysLookback       int       `json:"days_lookback"`
	Fetched            int       `json:"fetched"`
	Inserted           int       `json:"inserted"`
	Updated            int       `json:"updated"`
	Failed             int       `json:"failed"`
	CheckpointAdvanced bool      `json:"checkpoint_advanced"`
	Error              string    `json:"error,omitempty"`
}

type RetentionReport struct {
	Cutoff  time.Time `json:"cutoff"`
	Deleted int64     `json:"deleted"`
	Error   string    `json:"error,omitempty"`
}

// IngestionService pulls fresh postings for every active source into the
// store and sweeps postings past the retention horizon.
type IngestionService struct {
	search   Searcher
	registry SourceRegistry
	postings PostingStore
	cfg      IngestionConfig
	now      func() time.Time
	logger   *slog.Logger

	running sync.Mutex
}

func NewIngestionService(search Searcher, registry SourceRegistry, postings PostingStore, cfg IngestionConfig, logger *slog.Logger) *IngestionService {
	def := DefaultIngestionConfig()
	if len(cfg.QueryTerms) == 0 {
		cfg.QueryTerms = def.QueryTerms
	}
	if cfg.ColdStartDays <= 0 {
		cfg.ColdStartDays = def.ColdStartDays
	}
	if cfg.OverlapHours < 0 {
		cfg.OverlapHours = def.OverlapHours
	}
	if cfg.RetentionMonths <= 0 {
		cfg.RetentionMonths = def.RetentionMonths
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionService{
		search:   search,
		registry: registry,
		postings: postings,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With("component", "ingestion"),
	}
}

// Run performs one ingestion pass. Per-source and retention failures are
// reported in the Summary; the only error returned is ErrRunInProgress.
func (s *IngestionService) Run(ctx context.Context) (Summary, error) {
	if !s.running.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer s.running.Unlock()

	if s.cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Budget)
		defer cancel()
	}

	start := s.now()
	summary := Summary{
		RunID:     uuid.NewString(),
		StartedAt: start,
		Sources:   []SourceReport{},
	}
	logger := s.logger.With("run_id", summary.RunID)
	logger.Info("ingestion started")

	if err := s.registry.UpsertDefaultSources(ctx, defaultSources()); err != nil {
		logger.Warn("seed sources failed", "error", err)
	}

	sources, err := s.registry.ListSources(ctx)
	if err != nil {
		summary.Error = fmt.Sprintf("list sources: %v", err)
		logger.Error("list sources failed", "error", err)
	}

	for _, src := range sources {
		if !src.Active {
			logger.Debug("skipping inactive source", "source", src.ID)
			continue
		}
		report := s.ingestSource(ctx, src, start)
		summary.Sources = append(summary.Sources, report)

		attrs := []any{
			"source", report.Source,
			"window_start", report.WindowStart,
			"fetched", report.Fetched,
			"inserted", report.Inserted,
			"updated", report.Updated,
			"failed", report.Failed,
			"checkpoint_advanced", report.CheckpointAdvanced,
		}
		if report.Error != "" {
			logger.Warn("source ingestion failed", append(attrs, "error", report.Error)...)
		} else {
			logger.Info("source ingested", attrs...)
		}
	}

	summary.Retention = s.sweep(ctx, start)
	summary.FinishedAt = s.now()

	outcome := "ok"
	if summary.Error != "" {
		outcome = "error"
	}
	observability.IncIngestRun(outcome)
	logger.Info("ingestion finished",
		"sources", len(summary.Sources),
		"retention_deleted", summary.Retention.Deleted,
		"duration", summary.FinishedAt.Sub(start),
	)
	return summary, nil
}

func (s *IngestionService) ingestSource(ctx context.Context, src store.Source, start time.Time) SourceReport {
	windowStart := WindowStart(src.LastScrapedAt, start, s.cfg.ColdStartDays, s.cfg.OverlapHours)
	source := scraper.Source(src.ID)
	report := SourceReport{
		Source:       src.ID,
		Name:         src.Name,
		WindowStart:  windowStart,
		DaysLookback: DaysLookback(start, windowStart),
	}

	var (
		failedTerms int
		lastErr     string
	)
	seen := make(map[string]struct{})
	for _, term := range s.cfg.QueryTerms {
		if err := ctx.Err(); err != nil {
			failedTerms++
			lastErr = err.Error()
			continue
		}

		res := s.search.Search(ctx, SearchParams{
			Query:      term,
			Location:   s.cfg.Location,
			Country:    s.cfg.Country,
			MaxAgeDays: report.DaysLookback,
			Sources:    []scraper.Source{source},
		})
		if f, failed := failureFor(res.Failures, source); failed {
			failedTerms++
			lastErr = f.Error
			continue
		}

		for _, p := range res.Postings {
			// The aggregator cutoff is day-granular; enforce the exact window here.
			if p.Source != source || p.PostedAt == nil || !p.PostedAt.After(windowStart) {
				continue
			}
			if _, dup := seen[p.ExternalID]; dup {
				continue
			}
			seen[p.ExternalID] = struct{}{}
			report.Fetched++

			inserted, err := s.postings.UpsertPosting(ctx, p)
			switch {
			case err != nil:
				report.Failed++
				observability.IncUpsert(src.ID, "failed")
				s.logger.Debug("upsert failed", "source", src.ID, "external_id", p.ExternalID, "error", err)
			case inserted:
				report.Inserted++
				observability.IncUpsert(src.ID, "inserted")
			default:
				report.Updated++
				observability.IncUpsert(src.ID, "updated")
			}
		}
	}

	if n := len(s.cfg.QueryTerms); n > 0 && failedTerms == n {
		report.Error = fmt.Sprintf("all %d query terms failed: %s", n, lastErr)
	}

	// A zero-insert run may be an outage; keep the checkpoint so the
	// overlap re-covers the window next time.
	if report.Inserted > 0 {
		if err := s.registry.MarkSourceScraped(ctx, src.ID, start); err != nil {
			if report.Error == "" {
				report.Error = fmt.Sprintf("mark scraped: %v", err)
			}
		} else {
			report.CheckpointAdvanced = true
			observability.IncCheckpointAdvance(src.ID)
		}
	}
	return report
}

func (s *IngestionService) sweep(ctx context.Context, start time.Time) RetentionReport {
	cutoff := start.AddDate(0, -s.cfg.RetentionMonths, 0)
	rep := RetentionReport{Cutoff: cutoff}
	deleted, err := s.postings.DeletePostingsPostedBefore(ctx, cutoff)
	if err != nil {
		rep.Error = err.Error()
		s.logger.Warn("retention sweep failed", "error", err)
		return rep
	}
	rep.Deleted = deleted
	observability.AddRetentionDeleted(deleted)
	return rep
}

// WindowStart is where an incremental scrape begins: coldStartDays back for a
// never-scraped source, otherwise the last checkpoint minus the overlap.
func WindowStart(lastScrapedAt *time.Time, now time.Time, coldStartDays, overlapHours int) time.Time {
	if lastScrapedAt == nil {
		return now.Add(-time.Duration(coldStartDays) * 24 * time.Hour)
	}
	return lastScrapedAt.Add(-time.Duration(overlapHours) * time.Hour)
}

// DaysLookback rounds the window up to whole days, never below one.
func DaysLookback(now, windowStart time.Time) int {
	days := int(math.Ceil(now.Sub(windowStart).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

func defaultSources() []store.Source {
	known := scraper.KnownSources()
	out := make([]store.Source, 0, len(known))
	for _, s := range known {
		out = append(out, store.Source{ID: string(s), Name: s.Name(), Active: true})
	}
	return out
}

func failureFor(failures []ProviderFailure, src scraper.Source) (ProviderFailure, bool) {
	for _, f := range failures {
		if f.Source == src {
			return f, true
		}
	}
	return ProviderFailure{}, false
}
