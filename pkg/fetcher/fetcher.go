// Package fetcher retrieves documents over HTTP with user-agent rotation, polite randomized
// delays and a retry policy with exponential backoff, jitter and 429 cooldown.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/net/publicsuffix"

	"github.com/umputun/eventscope/pkg/domain"
)

// Accept kinds for Options.Accept
const (
	AcceptHTML = "html"
	AcceptFeed = "feed"
	AcceptJSON = "json"
)

// Config holds fetcher settings
type Config struct {
	Timeout      time.Duration // per request
	UserAgents   []string
	MinDelay     time.Duration // randomized delay between requests to the same host
	MaxDelay     time.Duration
	MaxBodyBytes int64
	Retry        RetryPolicy
}

// Options tune a single fetch
type Options struct {
	Accept  string        // one of AcceptHTML (default), AcceptFeed, AcceptJSON
	Timeout time.Duration // overrides Config.Timeout if set
	Referer string
}

// Document is a retrieved response body with its metadata
type Document struct {
	URL         string // requested url
	FinalURL    string // url after redirects
	StatusCode  int
	ContentType string
	Body        []byte
	Attempts    int
	FetchedAt   time.Time
}

// IsJSON reports whether the document looks like json
func (d *Document) IsJSON() bool {
	if strings.Contains(strings.ToLower(d.ContentType), "json") {
		return true
	}
	trimmed := strings.TrimSpace(string(d.Body))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// Fetcher performs resilient HTTP retrieval
type Fetcher struct {
	client *http.Client
	cfg    Config
	clock  Clock

	mu      sync.Mutex
	rnd     *rand.Rand
	lastReq map[string]time.Time // host -> last request time
}

// Option customizes Fetcher
type Option func(f *Fetcher)

// WithClock sets clock used for delays and backoff
func WithClock(c Clock) Option {
	return func(f *Fetcher) { f.clock = c }
}

// WithRand sets the source of randomness for jitter, delays and header rotation
func WithRand(r *rand.Rand) Option {
	return func(f *Fetcher) { f.rnd = r }
}

// New makes a Fetcher with a cookie jar shared across requests of the instance
func New(cfg Config, opts ...Option) (*Fetcher, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("make cookie jar: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = defaultUserAgents
	}

	f := &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Jar: jar,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		clock:   SystemClock{},
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // non-cryptographic randomness is fine
		lastReq: map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch retrieves the url, retrying transient failures per the retry policy.
// The returned error is a *domain.FetchError unless the context was canceled.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("invalid url")}
	}

	if err := f.politeDelay(ctx, u.Host); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	for attempt := 1; ; attempt++ {
		doc, retryAfter, err := f.do(ctx, rawURL, opts)
		if err == nil {
			doc.Attempts = attempt
			return doc, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, ctx.Err())
		}
		if !f.cfg.Retry.Retryable(err, attempt) {
			return nil, err
		}

		wait := f.cfg.Retry.Delay(attempt, f.float64)
		var fe *domain.FetchError
		if errors.As(err, &fe) && fe.StatusCode == http.StatusTooManyRequests {
			if cd := f.cfg.Retry.CooldownFor(retryAfter); cd > wait {
				wait = cd
			}
		}
		lgr.Printf("[WARN] attempt %d for %s failed: %v, retry in %v", attempt, rawURL, err, wait)
		if err := f.clock.Sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
	}
}

// do performs a single request
func (f *Fetcher) do(ctx context.Context, rawURL string, opts Options) (*Document, time.Duration, error) {
	timeout := f.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, 0, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	f.mu.Lock()
	req.Header.Set("User-Agent", f.cfg.UserAgents[f.rnd.Intn(len(f.cfg.UserAgents))])
	addBrowserHeaders(req, acceptHeader(opts.Accept), f.rnd)
	f.mu.Unlock()
	if opts.Referer != "" {
		req.Header.Set("Referer", opts.Referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, &domain.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, parseRetryAfter(resp.Header.Get("Retry-After"), f.clock.Now()),
			&domain.FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, 0, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		lgr.Printf("[WARN] body of %s truncated to %d bytes", rawURL, f.cfg.MaxBodyBytes)
		body = body[:f.cfg.MaxBodyBytes]
	}

	return &Document{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   f.clock.Now(),
	}, 0, nil
}

// politeDelay sleeps a random duration between MinDelay and MaxDelay if the host was requested before
func (f *Fetcher) politeDelay(ctx context.Context, host string) error {
	f.mu.Lock()
	_, seen := f.lastReq[host]
	f.lastReq[host] = f.clock.Now()
	var wait time.Duration
	if seen && f.cfg.MaxDelay > 0 {
		wait = f.cfg.MinDelay
		if spread := f.cfg.MaxDelay - f.cfg.MinDelay; spread > 0 {
			wait += time.Duration(f.rnd.Int63n(int64(spread)))
		}
	}
	f.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	return f.clock.Sleep(ctx, wait)
}

func (f *Fetcher) float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rnd.Float64()
}

func acceptHeader(kind string) string {
	switch kind {
	case AcceptFeed:
		return acceptFeed
	case AcceptJSON:
		return acceptJSON
	default:
		return acceptHTML
	}
}

// parseRetryAfter handles both delta-seconds and http-date forms
func parseRetryAfter(val string, now time.Time) time.Duration {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
