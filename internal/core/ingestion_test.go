package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/job-aggregator/internal/scraper"
	"github.com/baxromumarov/job-aggregator/internal/store"
)

func newTestIngestion(registry *fakeRegistry, postings *fakePostingStore, terms []string, providers ...scraper.Provider) *IngestionService {
	agg := newTestAggregator(providers...)
	svc := NewIngestionService(agg, registry, postings, IngestionConfig{
		QueryTerms:      terms,
		Country:         "in",
		ColdStartDays:   30,
		OverlapHours:    12,
		RetentionMonths: 6,
		Budget:          5 * time.Second,
	}, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func reportFor(t *testing.T, s Summary, src scraper.Source) SourceReport {
	t.Helper()
	for _, r := range s.Sources {
		if r.Source == string(src) {
			return r
		}
	}
	t.Fatalf("no report for %s", src)
	return SourceReport{}
}

func TestWindowStart(t *testing.T) {
	// Never scraped: cold-start backfill.
	got := WindowStart(nil, fixedNow, 30, 12)
	assert.Equal(t, fixedNow.Add(-30*24*time.Hour), got)
	assert.Equal(t, 30, DaysLookback(fixedNow, got))

	last := fixedNow.Add(-24 * time.Hour)
	got = WindowStart(&last, fixedNow, 30, 12)
	assert.Equal(t, fixedNow.Add(-36*time.Hour), got)
	assert.Equal(t, 2, DaysLookback(fixedNow, got))

	assert.Equal(t, 1, DaysLookback(fixedNow, fixedNow))
	assert.Equal(t, 1, DaysLookback(fixedNow, fixedNow.Add(-time.Minute)))
}

func TestIngestion_ColdStartInsertsAndAdvancesCheckpoint(t *testing.T) {
	registry := newFakeRegistry()
	postings := newFakePostingStore(func() time.Time { return fixedNow })

	undated := posting(scraper.SourceAdzuna, "undated", "https://jobs.example/undated", nil)
	adzuna := &fakeProvider{source: scraper.SourceAdzuna, postings: []scraper.Posting{
		posting(scraper.SourceAdzuna, "fresh", "https://jobs.example/fresh", timePtr(fixedNow.Add(-5*24*time.Hour))),
		posting(scraper.SourceAdzuna, "old", "https://jobs.example/old", timePtr(fixedNow.Add(-40*24*time.Hour))),
		undated,
	}}

	svc := newTestIngestion(registry, postings, []string{"software engineer"}, adzuna)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Len(t, summary.Sources, len(scraper.KnownSources()), "defaults are seeded")

	rep := reportFor(t, summary, scraper.SourceAdzuna)
	assert.Equal(t, fixedNow.Add(-30*24*time.Hour), rep.WindowStart)
	assert.Equal(t, 30, rep.DaysLookback)
	assert.Equal(t, 1, rep.Fetched)
	assert.Equal(t, 1, rep.Inserted)
	assert.True(t, rep.CheckpointAdvanced)
	assert.Empty(t, rep.Error)

	calls := adzuna.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 30, calls[0].MaxAgeDays)
	assert.Equal(t, "software engineer", calls[0].Keywords)

	src := registry.get(string(scraper.SourceAdzuna))
	require.NotNil(t, src.LastScrapedAt)
	assert.Equal(t, fixedNow, *src.LastScrapedAt)
	assert.Equal(t, 1, postings.len())
}

func TestIngestion_PostingAtWindowStartIsSkipped(t *testing.T) {
	registry := newFakeRegistry()
	postings := newFakePostingStore(func() time.Time { return fixedNow })

	windowStart := WindowStart(nil, fixedNow, 30, 12)
	adzuna := &fakeProvider{source: scraper.SourceAdzuna, postings: []scraper.Posting{
		posting(scraper.SourceAdzuna, "edge", "https://jobs.example/edge", timePtr(windowStart)),
		posting(scraper.SourceAdzuna, "inside", "https://jobs.example/inside", timePtr(windowStart.Add(time.Second))),
	}}

	svc := newTestIngestion(registry, postings, []string{"software engineer"}, adzuna)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	rep := reportFor(t, summary, scraper.SourceAdzuna)
	assert.Equal(t, windowStart, rep.WindowStart)
	assert.Equal(t, 1, rep.Fetched)
	assert.Equal(t, 1, rep.Inserted)
	assert.Equal(t, 1, postings.len())
	_, stored := postings.rows["adzuna|inside"]
	assert.True(t, stored)
	_, stored = postings.rows["adzuna|edge"]
	assert.False(t, stored, "window start is exclusive")
}

func TestIngestion_NoNewRecordsKeepsCheckpoint(t *testing.T) {
	last := fixedNow.Add(-2 * time.Hour)
	registry := newFakeRegistry(store.Source{ID: "remoteok", Name: "Remote OK", Active: true, LastScrapedAt: timePtr(last)})
	postings := newFakePostingStore(func() time.Time { return fixedNow })

	// Inside the aggregator's one-day cutoff but before the 14h window.
	remoteok := &fakeProvider{source: scraper.SourceRemoteOK, postings: []scraper.Posting{
		posting(scraper.SourceRemoteOK, "1", "https://remoteok.com/remote-jobs/1", timePtr(fixedNow.Add(-20*time.Hour))),
	}}

	summary, err := newTestIngestion(registry, postings, []string{"go"}, remoteok).Run(context.Background())
	require.NoError(t, err)

	rep := reportFor(t, summary, scraper.SourceRemoteOK)
	assert.Equal(t, 0, rep.Inserted)
	assert.False(t, rep.CheckpointAdvanced)
	assert.Equal(t, last, *registry.get("remoteok").LastScrapedAt)
	assert.Zero(t, postings.len())
}

func TestIngestion_IdempotentUpsertAndMonotonicCheckpoint(t *testing.T) {
	registry := newFakeRegistry()
	postings := newFakePostingStore(func() time.Time { return fixedNow })

	p := posting(scraper.SourceJooble, "42", "https://in.jooble.org/desc/42", timePtr(fixedNow.Add(-time.Hour)))
	jooble := &fakeProvider{source: scraper.SourceJooble, postings: []scraper.Posting{p}}

	svc := newTestIngestion(registry, postings, []string{"developer", "engineer"}, jooble)
	first, err := svc.Run(context.Background())
	require.NoError(t, err)
	rep := reportFor(t, first, scraper.SourceJooble)
	assert.Equal(t, 1, rep.Inserted, "the same posting from two terms is written once")
	assert.Equal(t, 0, rep.Updated)

	checkpoint := *registry.get("jooble").LastScrapedAt

	// Provider resends an edited copy; the clock has moved on.
	updated := p
	updated.Title = "Senior Engineer 42"
	jooble.postings = []scraper.Posting{updated}
	later := fixedNow.Add(time.Hour)
	svc.now = func() time.Time { return later }

	second, err := svc.Run(context.Background())
	require.NoError(t, err)
	rep = reportFor(t, second, scraper.SourceJooble)
	assert.Equal(t, 0, rep.Inserted)
	assert.Equal(t, 1, rep.Updated)
	assert.False(t, rep.CheckpointAdvanced)

	assert.Equal(t, 1, postings.len())
	assert.Equal(t, "Senior Engineer 42", postings.rows["jooble|42"].posting.Title)
	assert.Equal(t, checkpoint, *registry.get("jooble").LastScrapedAt)
}

func TestIngestion_SourceFailureIsIsolated(t *testing.T) {
	registry := newFakeRegistry()
	postings := newFakePostingStore(func() time.Time { return fixedNow })

	adzuna := &fakeProvider{source: scraper.SourceAdzuna, err: errors.New("adzuna fetch failed: status 500")}
	remoteok := &fakeProvider{source: scraper.SourceRemoteOK, postings: []scraper.Posting{
		posting(scraper.SourceRemoteOK, "1", "https://remoteok.com/remote-jobs/1", timePtr(fixedNow.Add(-time.Hour))),
	}}

	summary, err := newTestIngestion(registry, postings, []string{"a", "b"}, adzuna, remoteok).Run(context.Background())
	require.NoError(t, err)

	bad := reportFor(t, summary, scraper.SourceAdzuna)
	assert.Contains(t, bad.Error, "all 2 query terms failed")
	assert.Nil(t, registry.get("adzuna").LastScrapedAt)

	good := reportFor(t, summary, scraper.SourceRemoteOK)
	assert.Empty(t, good.Error)
	assert.Equal(t, 1, good.Inserted)
}

func TestIngestion_UpsertFailuresAreCounted(t *testing.T) {
	registry := newFakeRegistry()
	postings := newFakePostingStore(func() time.Time { return fixedNow })
	postings.failIDs["bad"] = true

	adzuna := &fakeProvider{source: scraper.SourceAdzuna, postings: []scraper.Posting{
		posting(scraper.SourceAdzuna, "bad", "https://jobs.example/bad", timePtr(fixedNow.Add(-time.Hour))),
		posting(scraper.SourceAdzuna, "good", "https://jobs.example/good", timePtr(fixedNow.Add(-time.Hour))),
	}}

	summary, err := newTestIngestion(registry, postings, []string{"go"}, adzuna).Run(context.Background())
	require.NoError(t, err)

	rep := reportFor(t, summary, scraper.SourceAdzuna)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Inserted)
	assert.True(t, rep.CheckpointAdvanced)
}

func TestIngestion_InactiveSourceSkipped(t *testing.T) {
	registry := newFakeRegistry(store.Source{ID: "adzuna", Name: "Adzuna", Active: false})
	postings := newFakePostingStore(func() time.Time { return fixedNow })
	adzuna := &fakeProvider{source: scraper.SourceAdzuna}

	summary, err := newTestIngestion(registry, postings, []string{"go"}, adzuna).Run(context.Background())
	require.NoError(t, err)

	for _, r := range summary.Sources {
		assert.NotEqual(t, "adzuna", r.Source)
	}
	assert.Empty(t, adzuna.calls())
	assert.False(t, registry.get("adzuna").Active, "ingestion never reactivates a source")
}

func TestIngestion_RetentionSweep(t *testing.T) {
	registry := newFakeRegistry()
	postings := newFakePostingStore(func() time.Time { return fixedNow })
	ctx := context.Background()

	_, _ = postings.UpsertPosting(ctx, posting(scraper.SourceAdzuna, "seven", "https://jobs.example/7", timePtr(fixedNow.AddDate(0, -7, 0))))
	_, _ = postings.UpsertPosting(ctx, posting(scraper.SourceAdzuna, "three", "https://jobs.example/3", timePtr(fixedNow.AddDate(0, -3, 0))))

	summary, err := newTestIngestion(registry, postings, []string{"go"}).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Retention.Deleted)
	assert.Equal(t, fixedNow.AddDate(0, -6, 0), summary.Retention.Cutoff)
	assert.Empty(t, summary.Retention.Error)
	_, kept := postings.rows["adzuna|three"]
	assert.True(t, kept)
}

func TestIngestion_ListSourcesFailureStillSweeps(t *testing.T) {
	registry := newFakeRegistry()
	registry.listErr = errors.New("connection refused")
	postings := newFakePostingStore(func() time.Time { return fixedNow })

	summary, err := newTestIngestion(registry, postings, []string{"go"}).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, summary.Error, "list sources")
	assert.Empty(t, summary.Sources)
	assert.Empty(t, summary.Retention.Error)
}

func TestIngestion_ConcurrentRunRejected(t *testing.T) {
	svc := newTestIngestion(newFakeRegistry(), newFakePostingStore(time.Now), []string{"go"})
	svc.running.Lock()
	defer svc.running.Unlock()

	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
}
