package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/scraper"
	"github.com/baxromumarov/job-aggregator/internal/store"
)

type fakeProvider struct {
	source   scraper.Source
	postings []scraper.Posting
	err      error
	// block makes Fetch ignore ctx and sleep, like a hung provider.
	block    time.Duration
	panicMsg string
	disabled bool

	mu      sync.Mutex
	queries []scraper.Query
}

func (f *fakeProvider) Source() scraper.Source { return f.source }

func (f *fakeProvider) Enabled() bool { return !f.disabled }

func (f *fakeProvider) Fetch(ctx context.Context, q scraper.Query) ([]scraper.Posting, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.block > 0 {
		time.Sleep(f.block)
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]scraper.Posting(nil), f.postings...), nil
}

func (f *fakeProvider) calls() []scraper.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scraper.Query(nil), f.queries...)
}

// remoteProvider is a fakeProvider that guarantees remote results.
type remoteProvider struct {
	*fakeProvider
}

func (r remoteProvider) FiltersRemote(q scraper.Query) bool {
	return q.WorkMode == scraper.WorkModeRemote
}

type fakeRegistry struct {
	mu      sync.Mutex
	sources map[string]*store.Source
	order   []string
	marks   []time.Time
	listErr error
	markErr error
}

func newFakeRegistry(existing ...store.Source) *fakeRegistry {
	r := &fakeRegistry{sources: map[string]*store.Source{}}
	for _, s := range existing {
		s := s
		r.sources[s.ID] = &s
		r.order = append(r.order, s.ID)
	}
	return r
}

func (r *fakeRegistry) ListSources(context.Context) ([]store.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]store.Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.sources[id])
	}
	return out, nil
}

func (r *fakeRegistry) UpsertDefaultSources(_ context.Context, defaults []store.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range defaults {
		if _, ok := r.sources[s.ID]; ok {
			continue
		}
		s := s
		r.sources[s.ID] = &s
		r.order = append(r.order, s.ID)
	}
	return nil
}

func (r *fakeRegistry) MarkSourceScraped(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	s, ok := r.sources[id]
	if !ok {
		return errors.New("unknown source")
	}
	if s.LastScrapedAt == nil || s.LastScrapedAt.Before(at) {
		t := at
		s.LastScrapedAt = &t
	}
	r.marks = append(r.marks, at)
	return nil
}

func (r *fakeRegistry) get(id string) store.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.sources[id]
}

type storedPosting struct {
	posting   scraper.Posting
	createdAt time.Time
}

type fakePostingStore struct {
	mu      sync.Mutex
	rows    map[string]storedPosting
	failIDs map[string]bool
	now     func() time.Time
}

func newFakePostingStore(now func() time.Time) *fakePostingStore {
	return &fakePostingStore{rows: map[string]storedPosting{}, failIDs: map[string]bool{}, now: now}
}

func (s *fakePostingStore) UpsertPosting(_ context.Context, p scraper.Posting) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[p.ExternalID] {
		return false, errors.New("constraint violation")
	}
	key := string(p.Source) + "|" + p.ExternalID
	existing, ok := s.rows[key]
	if ok {
		existing.posting = p
		s.rows[key] = existing
		return false, nil
	}
	s.rows[key] = storedPosting{posting: p, createdAt: s.now()}
	return true, nil
}

func (s *fakePostingStore) DeletePostingsPostedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, row := range s.rows {
		at := row.createdAt
		if row.posting.PostedAt != nil {
			at = *row.posting.PostedAt
		}
		if at.Before(cutoff) {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

func (s *fakePostingStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func timePtr(t time.Time) *time.Time { return &t }

func posting(src scraper.Source, id, url string, postedAt *time.Time) scraper.Posting {
	return scraper.Posting{
		ExternalID: id,
		Source:     src,
		Title:      "Engineer " + id,
		URL:        url,
		PostedAt:   postedAt,
		Kind:       scraper.KindJob,
		WorkMode:   scraper.WorkModeOnsite,
	}
}
