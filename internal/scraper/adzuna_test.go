package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adzunaFixture = `{
  "count": 2,
  "results": [
    {
      "id": "4404153196",
      "title": "Backend Engineer (Remote)",
      "description": "<p>Build <b>Go</b> services.</p><p>Work from home.</p>",
      "created": "2026-03-01T09:30:00Z",
      "redirect_url": "https://www.adzuna.in/details/4404153196",
      "salary_min": 1200000,
      "salary_max": 1800000,
      "contract_time": "full_time",
      "company": {"display_name": "Acme"},
      "location": {"display_name": "Bengaluru, Karnataka"}
    },
    {
      "id": "4404153197",
      "title": "Software Engineering Intern",
      "description": "Summer role",
      "created": "garbage",
      "redirect_url": "https://www.adzuna.in/details/4404153197",
      "company": {"display_name": "Beta"},
      "location": {"display_name": "Pune"}
    },
    {
      "id": "4404153198",
      "title": "No link",
      "redirect_url": ""
    }
  ]
}`

func TestAdzunaScraper_Fetch(t *testing.T) {
	var got *http.Request
	srv, _ := newFixtureServer(t, "application/json", adzunaFixture, func(r *http.Request) { got = r })

	a := NewAdzunaScraper(AdzunaConfig{AppID: "id", AppKey: "key", BaseURL: srv.URL}, newTestClient())
	postings, err := a.Fetch(context.Background(), Query{
		Keywords:   "backend",
		Location:   "Bengaluru",
		Country:    "IN",
		WorkMode:   WorkModeRemote,
		MaxAgeDays: 3,
	})
	require.NoError(t, err)
	require.Len(t, postings, 2)

	require.NotNil(t, got)
	assert.Equal(t, "/v1/api/jobs/in/search/1", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "id", q.Get("app_id"))
	assert.Equal(t, "key", q.Get("app_key"))
	assert.Equal(t, "backend remote", q.Get("what"))
	assert.Equal(t, "Bengaluru", q.Get("where"))
	assert.Equal(t, "3", q.Get("max_days_old"))

	first := postings[0]
	assert.Equal(t, "4404153196", first.ExternalID)
	assert.Equal(t, SourceAdzuna, first.Source)
	assert.Equal(t, "Acme", first.Company)
	assert.Equal(t, "Build Go services. Work from home.", first.Description)
	assert.Equal(t, WorkModeRemote, first.WorkMode)
	assert.Equal(t, KindJob, first.Kind)
	require.NotNil(t, first.PostedAt)
	assert.Equal(t, "2026-03-01T09:30:00Z", first.PostedAt.Format("2006-01-02T15:04:05Z07:00"))
	require.NotNil(t, first.SalaryMin)
	assert.InDelta(t, 1200000, *first.SalaryMin, 0.001)
	assert.Equal(t, "INR", first.Currency)

	second := postings[1]
	assert.Equal(t, KindInternship, second.Kind)
	assert.Nil(t, second.PostedAt)
	assert.Equal(t, "garbage", second.RawPostedAt)
	assert.Nil(t, second.SalaryMin)
	assert.Empty(t, second.Currency)
}

func TestAdzunaScraper_UnsupportedCountryIsEmpty(t *testing.T) {
	srv, calls := newFixtureServer(t, "application/json", adzunaFixture, nil)

	a := NewAdzunaScraper(AdzunaConfig{AppID: "id", AppKey: "key", BaseURL: srv.URL}, newTestClient())
	postings, err := a.Fetch(context.Background(), Query{Keywords: "go", Country: "jp"})
	require.NoError(t, err)
	assert.Empty(t, postings)
	assert.Zero(t, *calls)
}

func TestAdzunaScraper_DisabledWithoutCredentials(t *testing.T) {
	srv, calls := newFixtureServer(t, "application/json", adzunaFixture, nil)

	a := NewAdzunaScraper(AdzunaConfig{AppID: "id", BaseURL: srv.URL}, newTestClient())
	assert.False(t, a.Enabled())

	postings, err := a.Fetch(context.Background(), Query{Keywords: "go", Country: "in"})
	require.NoError(t, err)
	assert.Empty(t, postings)
	assert.Zero(t, *calls)
}

func TestAdzunaScraper_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := NewAdzunaScraper(AdzunaConfig{AppID: "id", AppKey: "key", BaseURL: srv.URL}, newTestClient())
	_, err := a.Fetch(context.Background(), Query{Keywords: "go", Country: "in"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestAdzunaScraper_EmptyResults(t *testing.T) {
	srv, _ := newFixtureServer(t, "application/json", `{"count":0,"results":[]}`, nil)

	a := NewAdzunaScraper(AdzunaConfig{AppID: "id", AppKey: "key", BaseURL: srv.URL}, newTestClient())
	postings, err := a.Fetch(context.Background(), Query{Keywords: "go", Country: "gb"})
	require.NoError(t, err)
	assert.NotNil(t, postings)
	assert.Empty(t, postings)
}
