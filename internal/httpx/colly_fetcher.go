package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// CollyFetcher wraps Colly for feed and page scraping. Robots.txt is honored
// and each host gets its own limiter plus a backoff window after 429/5xx.
type CollyFetcher struct {
	userAgent string
	timeout   time.Duration
	perHost   rate.Limit
	burst     int

	mu    sync.Mutex
	hosts map[string]*hostPolicy
}

type hostPolicy struct {
	limiter     *rate.Limiter
	mu          sync.Mutex
	nextAllowed time.Time
}

func NewCollyFetcher(userAgent string, timeout time.Duration) *CollyFetcher {
	if userAgent == "" {
		userAgent = "job-aggregator/1.0"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CollyFetcher{
		userAgent: userAgent,
		timeout:   timeout,
		perHost:   rate.Every(time.Second),
		burst:     2,
		hosts:     make(map[string]*hostPolicy),
	}
}

// Fetch GETs rawURL and lets register attach OnHTML/OnXML callbacks before the
// request is sent. Throttled and 5xx responses are retried up to three times.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string, register func(*colly.Collector)) error {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return err
	}
	policy := f.policy(hostKey(target))

	var (
		lastErr error
		status  int
	)
	for attempt := 0; attempt < 3; attempt++ {
		if err := policy.wait(ctx); err != nil {
			return err
		}
		status, lastErr = f.fetchOnce(ctx, target, register)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !shouldBackoff(status) {
			break
		}
		policy.backoff(attempt)
	}

	if lastErr == nil {
		lastErr = errors.New("colly fetch failed")
	}
	return &FetchError{Status: status, Err: lastErr}
}

func (f *CollyFetcher) fetchOnce(ctx context.Context, target string, register func(*colly.Collector)) (int, error) {
	c := colly.NewCollector(colly.UserAgent(f.userAgent))
	c.IgnoreRobotsTxt = false
	c.SetRequestTimeout(f.timeout)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	if register != nil {
		register(c)
	}

	var (
		status int
		reqErr error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		reqErr = err
	})

	if err := c.Request(http.MethodGet, target, nil, colly.NewContext(), nil); err != nil {
		return status, err
	}
	if reqErr != nil {
		return status, reqErr
	}
	if status >= 400 {
		return status, fmt.Errorf("status %d", status)
	}
	return status, nil
}

func (f *CollyFetcher) policy(host string) *hostPolicy {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.hosts[host]; ok {
		return p
	}
	p := &hostPolicy{limiter: rate.NewLimiter(f.perHost, f.burst)}
	f.hosts[host] = p
	return p
}

func (p *hostPolicy) wait(ctx context.Context) error {
	p.mu.Lock()
	next := p.nextAllowed
	p.mu.Unlock()
	if d := time.Until(next); d > 0 {
		if err := sleepWithContext(ctx, d); err != nil {
			return err
		}
	}
	return p.limiter.Wait(ctx)
}

func (p *hostPolicy) backoff(attempt int) {
	delay := time.Duration(500*(1<<attempt)) * time.Millisecond
	p.mu.Lock()
	if next := time.Now().Add(delay); next.After(p.nextAllowed) {
		p.nextAllowed = next
	}
	p.mu.Unlock()
}

func normalizeURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String(), nil
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "default"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func shouldBackoff(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
