// Package httpfetch implements the sole outbound network primitive (L2) of
// the federation client engine. Every remote call in the system — WebFinger,
// actor fetch, timeline fetch, search, write operations — goes through
// Fetcher.Do. See SPEC_FULL.md §4.1.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/klistr-labs/fedgatewayd/internal/model"
)

// Classification enumerates the response buckets a call can fall into.
type Classification string

const (
	ClassOk          Classification = "ok"          // 2xx
	ClassRedirect    Classification = "redirect"    // 3xx, not auto-followed
	ClassClientError Classification = "client_error" // 4xx (non-429)
	ClassRateLimited Classification = "rate_limited" // 429
	ClassServerError Classification = "server_error" // 5xx
)

// RateLimitHeaders carries the parsed X-RateLimit-* response headers, when
// present.
type RateLimitHeaders struct {
	Present   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// PaginationHeaders carries the parsed Link: rel="next"/"prev" headers.
type PaginationHeaders struct {
	Next string
	Prev string
}

// Result is the output of a single outbound call, returned regardless of
// status so callers can inspect headers even on error classifications.
type Result struct {
	Status       int
	Classification Classification
	Headers      http.Header
	Body         []byte
	WallDuration time.Duration
	RetryAfter   time.Duration // parsed from Retry-After on 429
	RateLimit    RateLimitHeaders
	Pagination   PaginationHeaders
	FinalURL     string
}

// Request describes a single outbound call.
type Request struct {
	Method  string
	URL     string
	Accept  string
	Headers map[string]string
	Body    io.Reader
	// Deadline, if non-zero, bounds this call; otherwise Fetcher.DefaultTimeout applies.
	Deadline time.Duration
}

// Fetcher is the engine's single outbound HTTP primitive.
type Fetcher struct {
	Client         *http.Client
	UserAgent      string
	DefaultTimeout time.Duration

	// global bounds the total number of in-flight outbound calls across the
	// whole engine (SPEC_FULL.md §5: default 16).
	global *semaphore.Weighted

	// perInstance bounds in-flight calls per discovered instance host
	// (SPEC_FULL.md §5: default 4), so one noisy or slow instance can never
	// starve the global budget for every other instance. Keyed by hostname,
	// lazily created on first use. Grounded on klistr's per-origin inbox
	// limiter, adapted from a mutex+counter into a blocking weighted
	// semaphore per host.
	perInstance            sync.Map // string -> *semaphore.Weighted
	perInstanceConcurrency int64
}

// New creates a Fetcher. Redirects are never auto-followed when the origin
// host would change, to preserve SSRF guarantees upstream in the Safety
// Middleware — so the underlying client's CheckRedirect always stops at the
// first hop and hands control back to the caller via ClassRedirect.
func New(userAgent string, defaultTimeout time.Duration, globalConcurrency, perInstanceConcurrency int64) *Fetcher {
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	if perInstanceConcurrency <= 0 {
		perInstanceConcurrency = 4
	}
	return &Fetcher{
		Client:                 client,
		UserAgent:              userAgent,
		DefaultTimeout:         defaultTimeout,
		global:                 semaphore.NewWeighted(globalConcurrency),
		perInstanceConcurrency: perInstanceConcurrency,
	}
}

// instanceSemaphore returns the per-host semaphore for host, creating one on
// first use.
func (f *Fetcher) instanceSemaphore(host string) *semaphore.Weighted {
	if v, ok := f.perInstance.Load(host); ok {
		return v.(*semaphore.Weighted)
	}
	sem := semaphore.NewWeighted(f.perInstanceConcurrency)
	actual, _ := f.perInstance.LoadOrStore(host, sem)
	return actual.(*semaphore.Weighted)
}

// Do performs a single outbound call under the global concurrency cap,
// applies the deadline, and classifies + extracts headers from the
// response regardless of status. It never retries — retry policy belongs
// to the operation layer (L9).
func (f *Fetcher) Do(ctx context.Context, req Request) (*Result, error) {
	if err := f.global.Acquire(ctx, 1); err != nil {
		return nil, &model.CancelledError{Op: "httpfetch: acquire concurrency slot"}
	}
	defer f.global.Release(1)

	var instSem *semaphore.Weighted
	if u, err := url.Parse(req.URL); err == nil && u.Hostname() != "" {
		instSem = f.instanceSemaphore(u.Hostname())
		if err := instSem.Acquire(ctx, 1); err != nil {
			return nil, &model.CancelledError{Op: "httpfetch: acquire per-instance concurrency slot"}
		}
		defer instSem.Release(1)
	}

	deadline := req.Deadline
	if deadline <= 0 {
		deadline = f.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", req.URL, err)
	}
	httpReq.Header.Set("User-Agent", f.UserAgent)
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.Client.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, &model.TimeoutError{URL: req.URL}
		}
		return nil, &model.NetworkError{URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.NetworkError{URL: req.URL, Err: fmt.Errorf("read body: %w", err)}
	}

	result := &Result{
		Status:       resp.StatusCode,
		Headers:      resp.Header,
		Body:         body,
		WallDuration: duration,
		RateLimit:    parseRateLimitHeaders(resp.Header),
		Pagination:   parsePaginationHeaders(resp.Header),
		FinalURL:     req.URL,
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Classification = ClassOk
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		result.Classification = ClassRedirect
	case resp.StatusCode == http.StatusTooManyRequests:
		result.Classification = ClassRateLimited
		result.RetryAfter = parseRetryAfter(resp.Header)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		result.Classification = ClassClientError
	case resp.StatusCode >= 500:
		result.Classification = ClassServerError
	}

	return result, nil
}

var linkHeaderRel = regexp.MustCompile(`<([^>]+)>;\s*rel="?(\w+)"?`)

func parsePaginationHeaders(h http.Header) PaginationHeaders {
	var pg PaginationHeaders
	for _, link := range h.Values("Link") {
		for _, part := range strings.Split(link, ",") {
			m := linkHeaderRel.FindStringSubmatch(strings.TrimSpace(part))
			if m == nil {
				continue
			}
			switch m[2] {
			case "next":
				pg.Next = m[1]
			case "prev":
				pg.Prev = m[1]
			}
		}
	}
	return pg
}

func parseRateLimitHeaders(h http.Header) RateLimitHeaders {
	limitStr := h.Get("X-RateLimit-Limit")
	remainingStr := h.Get("X-RateLimit-Remaining")
	resetStr := h.Get("X-RateLimit-Reset")
	if limitStr == "" && remainingStr == "" && resetStr == "" {
		return RateLimitHeaders{}
	}
	limit, _ := strconv.Atoi(limitStr)
	remaining, _ := strconv.Atoi(remainingStr)
	reset := parseResetTime(resetStr)
	return RateLimitHeaders{Present: true, Limit: limit, Remaining: remaining, Reset: reset}
}

// parseResetTime accepts either an ISO-8601 timestamp (Mastodon-API) or a
// bare unix-epoch integer (some Mastodon-compatible forks).
func parseResetTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0)
	}
	return time.Time{}
}

func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
