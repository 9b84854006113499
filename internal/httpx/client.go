package httpx

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/baxromumarov/job-aggregator/internal/cache"
)

const maxBodyBytes = 10 << 20

type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch error (status %d)", e.Status)
	}
	return fmt.Sprintf("fetch error (status %d): %v", e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Request describes one outbound API call. Body is kept as bytes so retries
// can resend it.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Client is the shared outbound client for provider APIs. It enforces a
// per-host rate limit, retries throttled and 5xx responses with backoff, and
// caches successful response bodies.
type Client struct {
	client      *http.Client
	ua          string
	cache       cache.Cache
	cacheTTL    time.Duration
	ratePer     time.Duration
	rateBurst   int
	maxAttempts int
	backoff     time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

func WithRateLimit(per time.Duration, burst int) Option {
	return func(c *Client) {
		if per > 0 && burst > 0 {
			c.ratePer = per
			c.rateBurst = burst
		}
	}
}

func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			c.backoff = backoff
		}
	}
}

func NewClient(userAgent string, opts ...Option) *Client {
	if userAgent == "" {
		userAgent = "job-aggregator/1.0"
	}
	c := &Client{
		client:      &http.Client{Timeout: 15 * time.Second},
		ua:          userAgent,
		ratePer:     200 * time.Millisecond,
		rateBurst:   5,
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
		limiters:    map[string]*rate.Limiter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(c.ratePer), c.rateBurst)
	c.limiters[host] = l
	return l
}

// Fetch executes the request and returns the body of a 2xx response.
// Non-2xx responses come back as *FetchError.
func (c *Client) Fetch(ctx context.Context, r Request) ([]byte, error) {
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	target := u.String()

	key := cacheKey(r.Method, target, r.Body)
	if c.cache != nil {
		// Cache failures degrade to a live request.
		if body, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			return body, nil
		}
	}

	limiter := c.limiterFor(u.Hostname())

	var (
		lastErr    error
		lastStatus int
	)
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, c.backoff*time.Duration(1<<(attempt-1))); err != nil {
				return nil, err
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, status, err := c.do(ctx, r, target)
		if err == nil {
			if c.cache != nil {
				_ = c.cache.Set(ctx, key, body, c.cacheTTL)
			}
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr, lastStatus = err, status
		if status != 0 && !shouldBackoff(status) {
			break
		}
	}

	if lastErr == nil {
		lastErr = errors.New("request failed without error")
	}
	return nil, &FetchError{Status: lastStatus, Err: lastErr}
}

func (c *Client) do(ctx context.Context, r Request, target string) ([]byte, int, error) {
	var reqBody io.Reader
	if len(r.Body) > 0 {
		reqBody = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target, reqBody)
	if err != nil {
		return nil, 0, err
	}
	for k, vals := range r.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.ua)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, resp.StatusCode, nil
}

func cacheKey(method, target string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{' '})
	h.Write([]byte(target))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
