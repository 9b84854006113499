package scraper

import (
	"context"
	"strings"
	"time"
)

type Source string

const (
	SourceAdzuna         Source = "adzuna"
	SourceJSearch        Source = "jsearch"
	SourceJooble         Source = "jooble"
	SourceRemoteOK       Source = "remoteok"
	SourceWeWorkRemotely Source = "weworkremotely"
)

var sourceNames = map[Source]string{
	SourceAdzuna:         "Adzuna",
	SourceJSearch:        "JSearch",
	SourceJooble:         "Jooble",
	SourceRemoteOK:       "Remote OK",
	SourceWeWorkRemotely: "We Work Remotely",
}

// KnownSources returns every registered provider in a stable order.
func KnownSources() []Source {
	return []Source{
		SourceAdzuna,
		SourceJSearch,
		SourceJooble,
		SourceRemoteOK,
		SourceWeWorkRemotely,
	}
}

func IsKnown(s Source) bool {
	_, ok := sourceNames[s]
	return ok
}

// Name returns the display name of a source, or the raw id when unknown.
func (s Source) Name() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return string(s)
}

type Kind string

const (
	KindJob        Kind = "job"
	KindInternship Kind = "internship"
)

type WorkMode string

const (
	WorkModeRemote WorkMode = "remote"
	WorkModeOnsite WorkMode = "onsite"
	WorkModeHybrid WorkMode = "hybrid"
)

// ParseWorkMode accepts remote, onsite or hybrid in any case. An empty value
// means "any" and is valid.
func ParseWorkMode(v string) (WorkMode, bool) {
	mode := WorkMode(strings.ToLower(strings.TrimSpace(v)))
	switch mode {
	case "", WorkModeRemote, WorkModeOnsite, WorkModeHybrid:
		return mode, true
	}
	return "", false
}

// Posting is the normalized job/internship record every provider maps into.
type Posting struct {
	ExternalID  string     `json:"external_id"`
	Source      Source     `json:"source"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	SalaryMin   *float64   `json:"salary_min,omitempty"`
	SalaryMax   *float64   `json:"salary_max,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	Kind        Kind       `json:"kind"`
	WorkMode    WorkMode   `json:"work_mode"`

	// RawPostedAt keeps the provider's date text. A non-empty value with a nil
	// PostedAt means the provider sent a date we could not parse.
	RawPostedAt string `json:"-"`
}

// Query is the normalized input every provider translates into its own request.
type Query struct {
	Keywords   string
	Location   string
	Country    string
	WorkMode   WorkMode
	MaxAgeDays int
}

// Provider fetches postings from one external job-search API.
//
// Fetch returns an empty slice, not an error, when the provider has nothing
// for the query or does not cover the requested country. Disabled providers
// (missing credentials) return nil without doing any I/O.
type Provider interface {
	Source() Source
	Enabled() bool
	Fetch(ctx context.Context, q Query) ([]Posting, error)
}

// RemoteFilterer is implemented by providers whose output is already limited
// to remote postings for the given query.
type RemoteFilterer interface {
	FiltersRemote(q Query) bool
}

type Normalizer interface {
	Normalize(htmlContent string) (string, error)
}
