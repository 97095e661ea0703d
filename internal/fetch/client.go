// Package fetch retrieves forum pages politely: one request per pacer
// interval across the whole process, bounded retries with backoff, and a
// crawlerr.Fetch error when a page cannot be had.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"forumgraph/internal/crawlerr"
)

const (
	DefaultUserAgent = "forumgraph/1.0 (+https://github.com/forumgraph/forumgraph)"
	DefaultTimeout   = 15 * time.Second
	DefaultRetries   = 3

	maxBodyBytes = 16 << 20
)

// Backoff delays between attempts.
var (
	NetworkBackoff    = 5 * time.Second
	ServerBackoff     = 10 * time.Second
	RateLimitFallback = 60 * time.Second
)

// Options configures a Client.
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int
	Pacer      *Pacer
	Transport  http.RoundTripper
	Logger     *slog.Logger
}

// Client fetches raw page bodies.
type Client struct {
	httpClient *http.Client
	userAgent  string
	maxRetries int
	pacer      *Pacer
	log        *slog.Logger
}

// New creates a client. Zero options take their defaults; without a pacer
// requests are not paced at all.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultRetries
	}
	if opts.Pacer == nil {
		opts.Pacer = NewPacer(0, nil, nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		pacer:      opts.Pacer,
		log:        opts.Logger,
	}
}

// statusError is a non-2xx response.
type statusError struct {
	code       int
	retryAfter string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

// Get returns the body of url, retrying transient failures.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, crawlerr.Fetch(url, err)
		}

		body, err := c.do(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, crawlerr.Fetch(url, ctx.Err())
		}
		lastErr = err

		delay, retry := c.backoff(err, attempt)
		if !retry || attempt == c.maxRetries {
			break
		}
		c.log.Warn("fetch failed, retrying", "url", url, "attempt", attempt, "delay", delay, "error", err)
		if err := c.pacer.sleep(ctx, delay); err != nil {
			return nil, crawlerr.Fetch(url, err)
		}
	}
	return nil, crawlerr.Fetch(url, lastErr)
}

func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/rss+xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode, retryAfter: resp.Header.Get("Retry-After")}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

// backoff decides whether err is worth another attempt and how long to wait.
func (c *Client) backoff(err error, attempt int) (time.Duration, bool) {
	var se *statusError
	if !errors.As(err, &se) {
		return NetworkBackoff * time.Duration(attempt), true
	}
	switch {
	case se.code == http.StatusTooManyRequests:
		if secs, err := strconv.Atoi(strings.TrimSpace(se.retryAfter)); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second, true
		}
		return RateLimitFallback, true
	case se.code >= 500:
		return ServerBackoff * time.Duration(attempt), true
	default:
		return 0, false
	}
}

// StatusCode extracts the HTTP status from a fetch error, or 0.
func StatusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}
