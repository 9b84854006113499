package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/httpx"
)

// Jooble serves each country from its own host.
var joobleHosts = map[string]string{
	"us": "jooble.org",
	"in": "in.jooble.org",
	"gb": "uk.jooble.org",
	"ca": "ca.jooble.org",
	"au": "au.jooble.org",
	"de": "de.jooble.org",
	"fr": "fr.jooble.org",
	"nl": "nl.jooble.org",
	"es": "es.jooble.org",
	"it": "it.jooble.org",
	"pl": "pl.jooble.org",
	"br": "br.jooble.org",
	"mx": "mx.jooble.org",
	"za": "za.jooble.org",
	"sg": "sg.jooble.org",
	"ae": "ae.jooble.org",
}

type JoobleConfig struct {
	APIKey string
	// BaseURL replaces https://<country host>; used by tests.
	BaseURL string
}

type joobleRequest struct {
	Keywords        string `json:"keywords"`
	Location        string `json:"location,omitempty"`
	Page            string `json:"page"`
	DateCreatedFrom string `json:"datecreatedfrom,omitempty"`
}

type joobleResponse struct {
	TotalCount int         `json:"totalCount"`
	Jobs       []joobleJob `json:"jobs"`
}

type joobleJob struct {
	ID       json.Number `json:"id"`
	Title    string      `json:"title"`
	Location string      `json:"location"`
	Snippet  string      `json:"snippet"`
	Salary   string      `json:"salary"`
	Type     string      `json:"type"`
	Link     string      `json:"link"`
	Company  string      `json:"company"`
	Updated  string      `json:"updated"`
}

type JoobleScraper struct {
	cfg        JoobleConfig
	client     *httpx.Client
	normalizer Normalizer
	now        func() time.Time
}

func NewJoobleScraper(cfg JoobleConfig, client *httpx.Client) *JoobleScraper {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &JoobleScraper{
		cfg:        cfg,
		client:     client,
		normalizer: NewSimpleNormalizer(),
		now:        time.Now,
	}
}

func (j *JoobleScraper) Source() Source { return SourceJooble }

func (j *JoobleScraper) Enabled() bool { return j.cfg.APIKey != "" }

func (j *JoobleScraper) Fetch(ctx context.Context, q Query) ([]Posting, error) {
	if !j.Enabled() {
		return nil, nil
	}
	host, ok := joobleHosts[strings.ToLower(q.Country)]
	if !ok {
		return []Posting{}, nil
	}
	base := j.cfg.BaseURL
	if base == "" {
		base = "https://" + host
	}

	keywords := strings.TrimSpace(q.Keywords)
	if q.WorkMode == WorkModeRemote || q.WorkMode == WorkModeHybrid {
		keywords = strings.TrimSpace(keywords + " " + string(q.WorkMode))
	}
	reqBody := joobleRequest{
		Keywords: keywords,
		Location: q.Location,
		Page:     "1",
	}
	if q.MaxAgeDays > 0 {
		reqBody.DateCreatedFrom = j.now().AddDate(0, 0, -q.MaxAgeDays).Format("2006-01-02")
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("jooble encode failed: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	body, err := j.client.Fetch(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    base + "/api/" + j.cfg.APIKey,
		Header: header,
		Body:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("jooble fetch failed: %w", err)
	}

	var resp joobleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("jooble decode failed: %w", err)
	}

	postings := make([]Posting, 0, len(resp.Jobs))
	for _, job := range resp.Jobs {
		if job.Link == "" {
			continue
		}
		postings = append(postings, j.mapJob(job))
	}
	return postings, nil
}

func (j *JoobleScraper) mapJob(job joobleJob) Posting {
	desc := cleanDescription(j.normalizer, job.Snippet)
	title := cleanDescription(j.normalizer, job.Title)
	postedAt, raw := ParsePostedAt(job.Updated, time.RFC3339, "2006-01-02T15:04:05.999999999")

	p := Posting{
		ExternalID:  job.ID.String(),
		Source:      SourceJooble,
		Title:       title,
		Company:     strings.TrimSpace(job.Company),
		Location:    strings.TrimSpace(job.Location),
		Description: desc,
		URL:         job.Link,
		PostedAt:    postedAt,
		RawPostedAt: raw,
		Kind:        InferKind(title, job.Type),
		WorkMode:    InferWorkMode(title, job.Location, desc),
	}
	if p.ExternalID == "" {
		p.ExternalID = DeriveExternalID(p.URL)
	}
	return p
}
