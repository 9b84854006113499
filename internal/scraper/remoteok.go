package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/httpx"
)

const remoteOKURL = "https://remoteok.com/api"

// RemoteOK API returns a JSON array; the first element is a legal notice.
type remoteOKJob struct {
	ID          json.Number `json:"id"`
	Slug        string      `json:"slug"`
	Epoch       int64       `json:"epoch"`
	Date        string      `json:"date"`
	Company     string      `json:"company"`
	Position    string      `json:"position"`
	Tags        []string    `json:"tags"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	SalaryMin   float64     `json:"salary_min"`
	SalaryMax   float64     `json:"salary_max"`
	URL         string      `json:"url"`
	ApplyURL    string      `json:"apply_url"`
}

// RemoteOKScraper reads the public Remote OK feed. It needs no credentials
// and only lists remote roles.
type RemoteOKScraper struct {
	client     *httpx.Client
	feedURL    string
	normalizer Normalizer
}

func NewRemoteOKScraper(client *httpx.Client, feedURL string) *RemoteOKScraper {
	if feedURL == "" {
		feedURL = remoteOKURL
	}
	return &RemoteOKScraper{
		client:     client,
		feedURL:    feedURL,
		normalizer: NewSimpleNormalizer(),
	}
}

func (r *RemoteOKScraper) Source() Source { return SourceRemoteOK }

func (r *RemoteOKScraper) Enabled() bool { return true }

func (r *RemoteOKScraper) FiltersRemote(Query) bool { return true }

func (r *RemoteOKScraper) Fetch(ctx context.Context, q Query) ([]Posting, error) {
	if q.WorkMode == WorkModeOnsite || q.WorkMode == WorkModeHybrid {
		return []Posting{}, nil
	}

	body, err := r.client.Fetch(ctx, httpx.Request{URL: r.feedURL})
	if err != nil {
		return nil, fmt.Errorf("remoteok fetch failed: %w", err)
	}

	var data []remoteOKJob
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("remoteok decode failed: %w", err)
	}

	terms := keywordTerms(q.Keywords)
	var postings []Posting
	for _, j := range data {
		if j.Slug == "" || j.URL == "" {
			continue
		}
		haystack := strings.ToLower(j.Position + " " + strings.Join(j.Tags, " ") + " " + j.Company)
		if !matchesAllTerms(haystack, terms) {
			continue
		}
		postings = append(postings, r.mapJob(j))
	}
	if postings == nil {
		postings = []Posting{}
	}
	return postings, nil
}

func (r *RemoteOKScraper) mapJob(j remoteOKJob) Posting {
	postedAt, raw := ParsePostedAt(j.Date, time.RFC3339)
	if postedAt == nil && raw == "" && j.Epoch > 0 {
		t := time.Unix(j.Epoch, 0).UTC()
		postedAt = &t
	}

	p := Posting{
		ExternalID:  j.ID.String(),
		Source:      SourceRemoteOK,
		Title:       strings.TrimSpace(j.Position),
		Company:     strings.TrimSpace(j.Company),
		Location:    firstNonEmpty(j.Location, "Remote"),
		Description: cleanDescription(r.normalizer, j.Description),
		URL:         j.URL,
		PostedAt:    postedAt,
		RawPostedAt: raw,
		SalaryMin:   floatPtr(j.SalaryMin),
		SalaryMax:   floatPtr(j.SalaryMax),
		Kind:        InferKind(j.Position, strings.Join(j.Tags, " ")),
		WorkMode:    WorkModeRemote,
	}
	if p.SalaryMin != nil || p.SalaryMax != nil {
		p.Currency = "USD"
	}
	if p.ExternalID == "" {
		p.ExternalID = firstNonEmpty(j.Slug, DeriveExternalID(p.URL))
	}
	return p
}

func keywordTerms(keywords string) []string {
	return strings.Fields(strings.ToLower(keywords))
}

func matchesAllTerms(haystack string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(haystack, t) {
			return false
		}
	}
	return true
}
