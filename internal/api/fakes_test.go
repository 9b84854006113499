package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/core"
	"github.com/baxromumarov/job-aggregator/internal/scraper"
	"github.com/baxromumarov/job-aggregator/internal/store"
)

type fakeStore struct {
	mu sync.Mutex

	pingErr      error
	postings     map[int64]store.Posting
	lastFilter   store.PostingFilter
	profiles     map[string]store.Profile
	applications []store.Application
	sources      map[string]store.Source
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		postings: map[int64]store.Posting{},
		profiles: map[string]store.Profile{},
		sources:  map[string]store.Source{},
	}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) ListPostings(_ context.Context, filter store.PostingFilter) ([]store.Posting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	var out []store.Posting
	for _, p := range f.postings {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) GetPosting(_ context.Context, id int64) (store.Posting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.postings[id]
	if !ok {
		return store.Posting{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) GetProfile(_ context.Context, userID string) (store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return store.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) SaveProfile(_ context.Context, p store.Profile) (store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.UpdatedAt = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f.profiles[p.UserID] = p
	return p, nil
}

func (f *fakeStore) MarkApplied(_ context.Context, userID string, postingID int64) (store.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.postings[postingID]
	if !ok {
		return store.Application{}, store.ErrNotFound
	}
	for _, a := range f.applications {
		if a.UserID == userID && a.PostingID != nil && *a.PostingID == postingID {
			return a, nil
		}
	}
	id := postingID
	app := store.Application{
		ID:        int64(len(f.applications) + 1),
		UserID:    userID,
		PostingID: &id,
		Title:     p.Title,
		Company:   p.Company,
		URL:       p.URL,
		Status:    "applied",
	}
	f.applications = append(f.applications, app)
	return app, nil
}

func (f *fakeStore) ListApplications(_ context.Context, userID string, _, _ int) ([]store.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Application
	for _, a := range f.applications {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSources(context.Context) ([]store.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Source
	for _, id := range []string{"adzuna", "jooble"} {
		if s, ok := f.sources[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) SetSourceActive(_ context.Context, id string, active bool) (store.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[id]
	if !ok {
		return store.Source{}, store.ErrNotFound
	}
	s.Active = active
	f.sources[id] = s
	return s, nil
}

type fakeSearcher struct {
	result core.SearchResult
	last   core.SearchParams
	calls  int
}

func (f *fakeSearcher) Search(_ context.Context, p core.SearchParams) core.SearchResult {
	f.last = p
	f.calls++
	return f.result
}

type fakeIngester struct {
	summary core.Summary
	err     error
	calls   int
}

func (f *fakeIngester) Run(context.Context) (core.Summary, error) {
	f.calls++
	return f.summary, f.err
}

type fakeCareer struct {
	err        error
	lastSkills []string
}

func (f *fakeCareer) CoverLetter(_ context.Context, p scraper.Posting, skills []string) (string, error) {
	f.lastSkills = skills
	if f.err != nil {
		return "", f.err
	}
	return "Dear " + p.Company, nil
}

func (f *fakeCareer) InterviewQuestions(_ context.Context, _ scraper.Posting, skills []string) ([]string, error) {
	f.lastSkills = skills
	if f.err != nil {
		return nil, f.err
	}
	return []string{"Why Go?"}, nil
}

var errUpstream = errors.New("upstream unavailable")
