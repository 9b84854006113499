package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/httpx"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com"
	adzunaPageSize = 50
)

// Countries served by the Adzuna search API, with the currency salaries are
// quoted in.
var adzunaCountries = map[string]string{
	"at": "EUR", "au": "AUD", "be": "EUR", "br": "BRL", "ca": "CAD",
	"ch": "CHF", "de": "EUR", "es": "EUR", "fr": "EUR", "gb": "GBP",
	"in": "INR", "it": "EUR", "mx": "MXN", "nl": "EUR", "nz": "NZD",
	"pl": "PLN", "sg": "SGD", "us": "USD", "za": "ZAR",
}

type AdzunaConfig struct {
	AppID   string
	AppKey  string
	BaseURL string
}

type adzunaResponse struct {
	Count   int            `json:"count"`
	Results []adzunaResult `json:"results"`
}

type adzunaResult struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Created     string  `json:"created"`
	RedirectURL string  `json:"redirect_url"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	Contract    string  `json:"contract_time"`
	Category    struct {
		Label string `json:"label"`
	} `json:"category"`
	Company struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

type AdzunaScraper struct {
	cfg        AdzunaConfig
	client     *httpx.Client
	normalizer Normalizer
}

func NewAdzunaScraper(cfg AdzunaConfig, client *httpx.Client) *AdzunaScraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = adzunaBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &AdzunaScraper{
		cfg:        cfg,
		client:     client,
		normalizer: NewSimpleNormalizer(),
	}
}

func (a *AdzunaScraper) Source() Source { return SourceAdzuna }

func (a *AdzunaScraper) Enabled() bool {
	return a.cfg.AppID != "" && a.cfg.AppKey != ""
}

func (a *AdzunaScraper) Fetch(ctx context.Context, q Query) ([]Posting, error) {
	if !a.Enabled() {
		return nil, nil
	}
	country := strings.ToLower(q.Country)
	currency, ok := adzunaCountries[country]
	if !ok {
		return []Posting{}, nil
	}

	reqURL, err := a.buildSearchURL(country, q)
	if err != nil {
		return nil, err
	}

	body, err := a.client.Fetch(ctx, httpx.Request{URL: reqURL})
	if err != nil {
		return nil, fmt.Errorf("adzuna fetch failed: %w", err)
	}

	var payload adzunaResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("adzuna decode failed: %w", err)
	}

	postings := make([]Posting, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.RedirectURL == "" {
			continue
		}
		postings = append(postings, a.mapResult(r, currency))
	}
	return postings, nil
}

func (a *AdzunaScraper) buildSearchURL(country string, q Query) (string, error) {
	u, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("adzuna parse base url: %w", err)
	}
	u.Path = path.Join(u.Path, "v1", "api", "jobs", country, "search", "1")

	what := strings.TrimSpace(q.Keywords)
	if q.WorkMode == WorkModeRemote || q.WorkMode == WorkModeHybrid {
		what = strings.TrimSpace(what + " " + string(q.WorkMode))
	}

	values := url.Values{}
	values.Set("app_id", a.cfg.AppID)
	values.Set("app_key", a.cfg.AppKey)
	values.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	values.Set("what", what)
	values.Set("sort_by", "date")
	values.Set("content-type", "application/json")
	if q.Location != "" {
		values.Set("where", q.Location)
	}
	if q.MaxAgeDays > 0 {
		values.Set("max_days_old", strconv.Itoa(q.MaxAgeDays))
	}

	u.RawQuery = values.Encode()
	return u.String(), nil
}

func (a *AdzunaScraper) mapResult(r adzunaResult, currency string) Posting {
	desc := cleanDescription(a.normalizer, r.Description)
	postedAt, raw := ParsePostedAt(r.Created, time.RFC3339, "2006-01-02T15:04:05")

	p := Posting{
		ExternalID:  r.ID,
		Source:      SourceAdzuna,
		Title:       strings.TrimSpace(r.Title),
		Company:     strings.TrimSpace(r.Company.DisplayName),
		Location:    strings.TrimSpace(r.Location.DisplayName),
		Description: desc,
		URL:         r.RedirectURL,
		PostedAt:    postedAt,
		RawPostedAt: raw,
		SalaryMin:   floatPtr(r.SalaryMin),
		SalaryMax:   floatPtr(r.SalaryMax),
		Kind:        InferKind(r.Title, r.Contract+" "+r.Category.Label),
		WorkMode:    InferWorkMode(r.Title, r.Location.DisplayName, desc),
	}
	if p.SalaryMin != nil || p.SalaryMax != nil {
		p.Currency = currency
	}
	if p.ExternalID == "" {
		p.ExternalID = DeriveExternalID(p.URL)
	}
	return p
}
