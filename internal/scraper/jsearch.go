package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/httpx"
)

const defaultJSearchHost = "jsearch.p.rapidapi.com"

type JSearchConfig struct {
	APIKey  string
	APIHost string
	// BaseURL overrides https://<APIHost>; used by tests.
	BaseURL string
}

type jsearchResponse struct {
	Status string       `json:"status"`
	Data   []jsearchJob `json:"data"`
}

type jsearchJob struct {
	JobID             string   `json:"job_id"`
	Title             string   `json:"job_title"`
	EmployerName      string   `json:"employer_name"`
	City              string   `json:"job_city"`
	State             string   `json:"job_state"`
	Country           string   `json:"job_country"`
	Description       string   `json:"job_description"`
	ApplyLink         string   `json:"job_apply_link"`
	IsRemote          bool     `json:"job_is_remote"`
	EmploymentType    string   `json:"job_employment_type"`
	PostedAtUTC       string   `json:"job_posted_at_datetime_utc"`
	PostedAtTimestamp int64    `json:"job_posted_at_timestamp"`
	MinSalary         *float64 `json:"job_min_salary"`
	MaxSalary         *float64 `json:"job_max_salary"`
	SalaryCurrency    string   `json:"job_salary_currency"`
}

type JSearchScraper struct {
	cfg    JSearchConfig
	client *httpx.Client
}

func NewJSearchScraper(cfg JSearchConfig, client *httpx.Client) *JSearchScraper {
	if cfg.APIHost == "" {
		cfg.APIHost = defaultJSearchHost
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.APIHost
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &JSearchScraper{cfg: cfg, client: client}
}

func (j *JSearchScraper) Source() Source { return SourceJSearch }

func (j *JSearchScraper) Enabled() bool {
	return j.cfg.APIKey != "" && j.cfg.APIHost != ""
}

// FiltersRemote is true because remote_jobs_only is sent for remote queries.
func (j *JSearchScraper) FiltersRemote(q Query) bool {
	return q.WorkMode == WorkModeRemote
}

func (j *JSearchScraper) Fetch(ctx context.Context, q Query) ([]Posting, error) {
	if !j.Enabled() {
		return nil, nil
	}

	header := http.Header{}
	header.Set("X-RapidAPI-Key", j.cfg.APIKey)
	header.Set("X-RapidAPI-Host", j.cfg.APIHost)

	body, err := j.client.Fetch(ctx, httpx.Request{URL: j.buildSearchURL(q), Header: header})
	if err != nil {
		return nil, fmt.Errorf("jsearch fetch failed: %w", err)
	}

	var payload jsearchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("jsearch decode failed: %w", err)
	}

	postings := make([]Posting, 0, len(payload.Data))
	for _, job := range payload.Data {
		if job.ApplyLink == "" {
			continue
		}
		postings = append(postings, mapJSearchJob(job))
	}
	return postings, nil
}

func (j *JSearchScraper) buildSearchURL(q Query) string {
	query := strings.TrimSpace(q.Keywords)
	if q.Location != "" {
		query += " in " + q.Location
	}

	values := url.Values{}
	values.Set("query", query)
	values.Set("page", "1")
	values.Set("num_pages", "1")
	values.Set("date_posted", jsearchDatePosted(q.MaxAgeDays))
	if q.Country != "" {
		values.Set("country", strings.ToLower(q.Country))
	}
	if q.WorkMode == WorkModeRemote {
		values.Set("remote_jobs_only", "true")
	}
	return j.cfg.BaseURL + "/search?" + values.Encode()
}

func jsearchDatePosted(maxAgeDays int) string {
	switch {
	case maxAgeDays <= 0:
		return "all"
	case maxAgeDays <= 1:
		return "today"
	case maxAgeDays <= 3:
		return "3days"
	case maxAgeDays <= 7:
		return "week"
	case maxAgeDays <= 30:
		return "month"
	default:
		return "all"
	}
}

func mapJSearchJob(job jsearchJob) Posting {
	postedAt, raw := ParsePostedAt(job.PostedAtUTC, time.RFC3339, "2006-01-02T15:04:05.000Z")
	if postedAt == nil && raw == "" && job.PostedAtTimestamp > 0 {
		t := time.Unix(job.PostedAtTimestamp, 0).UTC()
		postedAt = &t
	}

	location := joinParts(job.City, job.State, job.Country)
	mode := InferWorkMode(job.Title, location, job.Description)
	if job.IsRemote {
		mode = WorkModeRemote
	}

	p := Posting{
		ExternalID:  job.JobID,
		Source:      SourceJSearch,
		Title:       strings.TrimSpace(job.Title),
		Company:     strings.TrimSpace(job.EmployerName),
		Location:    location,
		Description: strings.TrimSpace(job.Description),
		URL:         job.ApplyLink,
		PostedAt:    postedAt,
		RawPostedAt: raw,
		Kind:        InferKind(job.Title, job.EmploymentType),
		WorkMode:    mode,
	}
	if job.MinSalary != nil && *job.MinSalary > 0 {
		p.SalaryMin = job.MinSalary
	}
	if job.MaxSalary != nil && *job.MaxSalary > 0 {
		p.SalaryMax = job.MaxSalary
	}
	if p.SalaryMin != nil || p.SalaryMax != nil {
		p.Currency = job.SalaryCurrency
	}
	if p.ExternalID == "" {
		p.ExternalID = DeriveExternalID(p.URL)
	}
	return p
}
