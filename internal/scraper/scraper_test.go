package scraper

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/httpx"
)

func newTestClient() *httpx.Client {
	return httpx.NewClient("test-agent", httpx.WithRetry(1, 0), httpx.WithRateLimit(time.Millisecond, 100))
}

// newFixtureServer serves body for every request and records how many calls
// it received.
func newFixtureServer(t *testing.T, contentType, body string, inspect func(*http.Request)) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		calls++
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}
