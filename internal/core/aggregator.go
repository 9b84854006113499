package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/observability"
	"github.com/baxromumarov/job-aggregator/internal/scraper"
	"github.com/baxromumarov/job-aggregator/internal/urlutil"
)

const (
	DefaultProviderTimeout = 8 * time.Second
	// MaxAgeDaysLimit caps the freshness window at the retention horizon.
	MaxAgeDaysLimit = 183
)

type SearchParams struct {
	Query      string
	Location   string
	Country    string
	WorkMode   scraper.WorkMode
	MaxAgeDays int
	// Sources restricts the fan-out. Empty means every registered provider.
	Sources []scraper.Source
}

type ProviderFailure struct {
	Source    scraper.Source `json:"source"`
	ErrorType string         `json:"error_type"`
	Error     string         `json:"error"`
}

type SearchResult struct {
	Postings  []scraper.Posting `json:"postings"`
	Failures  []ProviderFailure `json:"failures,omitempty"`
	Providers int               `json:"providers"`
}

// Searcher is the read side of the aggregator used by ingestion and the API.
type Searcher interface {
	Search(ctx context.Context, p SearchParams) SearchResult
}

// Aggregator fans a query out to every provider and merges the answers into
// one fresh, deduplicated list.
type Aggregator struct {
	providers []scraper.Provider
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

type AggregatorOption func(*Aggregator)

func WithProviderTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewAggregator(providers []scraper.Provider, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		providers: providers,
		timeout:   DefaultProviderTimeout,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "aggregator")
	return a
}

// Sources lists the registered providers in fan-out order.
func (a *Aggregator) Sources() []scraper.Source {
	out := make([]scraper.Source, 0, len(a.providers))
	for _, p := range a.providers {
		out = append(out, p.Source())
	}
	return out
}

type providerBatch struct {
	postings      []scraper.Posting
	remoteChecked bool
}

// Search never fails as a whole. A provider error is logged and reported in
// Failures, and that provider contributes nothing.
func (a *Aggregator) Search(ctx context.Context, p SearchParams) SearchResult {
	p.MaxAgeDays = clampMaxAgeDays(p.MaxAgeDays)
	q := scraper.Query{
		Keywords:   p.Query,
		Location:   p.Location,
		Country:    p.Country,
		WorkMode:   p.WorkMode,
		MaxAgeDays: p.MaxAgeDays,
	}

	selected := a.selectProviders(p.Sources)
	tasks := make([]func(context.Context) (providerBatch, error), 0, len(selected))
	for _, prov := range selected {
		prov := prov
		tasks = append(tasks, func(ctx context.Context) (providerBatch, error) {
			start := time.Now()
			postings, err := prov.Fetch(ctx, q)
			observability.ObserveProviderFetch(string(prov.Source()), time.Since(start), err)
			if err != nil {
				return providerBatch{}, err
			}
			batch := providerBatch{postings: postings}
			if rf, ok := prov.(scraper.RemoteFilterer); ok {
				batch.remoteChecked = rf.FiltersRemote(q)
			}
			return batch, nil
		})
	}

	outcomes := SettleAll(ctx, a.timeout, tasks)

	result := SearchResult{Providers: len(selected)}
	var batches []providerBatch
	for i, out := range outcomes {
		src := selected[i].Source()
		if out.Err != nil {
			errType := observability.ClassifyFetchError(out.Err)
			a.logger.Warn("provider failed",
				"source", src,
				"error_type", errType,
				"error", out.Err,
			)
			result.Failures = append(result.Failures, ProviderFailure{
				Source:    src,
				ErrorType: errType,
				Error:     out.Err.Error(),
			})
			continue
		}
		batches = append(batches, out.Value)
	}

	result.Postings = a.merge(batches, p)
	observability.ObserveSearchResults(len(result.Postings))
	return result
}

func (a *Aggregator) selectProviders(only []scraper.Source) []scraper.Provider {
	var allowed map[scraper.Source]bool
	if len(only) > 0 {
		allowed = make(map[scraper.Source]bool, len(only))
		for _, s := range only {
			allowed[s] = true
		}
	}
	out := make([]scraper.Provider, 0, len(a.providers))
	for _, prov := range a.providers {
		if allowed != nil && !allowed[prov.Source()] {
			continue
		}
		if !prov.Enabled() {
			continue
		}
		out = append(out, prov)
	}
	return out
}

// merge concatenates batches in provider order, then applies the freshness
// filter, the remote post-filter and URL dedup.
func (a *Aggregator) merge(batches []providerBatch, p SearchParams) []scraper.Posting {
	now := a.now()
	cutoff := now.Add(-time.Duration(p.MaxAgeDays) * 24 * time.Hour)
	upper := now.Add(24 * time.Hour)

	var invalid, stale, notRemote, dupes int
	seen := make(map[string]struct{})
	out := make([]scraper.Posting, 0)
	for _, batch := range batches {
		for _, posting := range batch.postings {
			if !scraper.IsKnown(posting.Source) || posting.URL == "" {
				invalid++
				continue
			}
			if !IsFresh(posting, cutoff, upper) {
				stale++
				continue
			}
			if p.WorkMode == scraper.WorkModeRemote && !batch.remoteChecked && !looksRemote(posting) {
				notRemote++
				continue
			}
			key := urlutil.Canonical(posting.URL)
			if _, dup := seen[key]; dup {
				dupes++
				continue
			}
			seen[key] = struct{}{}
			out = append(out, posting)
		}
	}

	observability.AddSearchDropped("invalid", invalid)
	observability.AddSearchDropped("stale", stale)
	observability.AddSearchDropped("not_remote", notRemote)
	observability.AddSearchDropped("duplicate", dupes)
	return out
}

// IsFresh reports whether a posting's date lies in [cutoff, upper]. Postings
// without a date pass; a date the provider sent but we could not parse does
// not.
func IsFresh(p scraper.Posting, cutoff, upper time.Time) bool {
	if p.PostedAt == nil {
		return p.RawPostedAt == ""
	}
	return !p.PostedAt.Before(cutoff) && !p.PostedAt.After(upper)
}

func looksRemote(p scraper.Posting) bool {
	return p.WorkMode == scraper.WorkModeRemote ||
		scraper.HasRemoteIndicator(p.Location) ||
		scraper.HasRemoteIndicator(p.Description)
}

func clampMaxAgeDays(d int) int {
	switch {
	case d <= 0:
		return 1
	case d > MaxAgeDaysLimit:
		return MaxAgeDaysLimit
	default:
		return d
	}
}
