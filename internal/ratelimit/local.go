// Package ratelimit implements the two-tier Rate-limit Governor (L4):
// (a) a local sliding-window limiter keyed by caller identifier, and
// (b) an adaptive per-instance limiter driven by observed X-RateLimit-*
// response headers. See SPEC_FULL.md §4.3.
package ratelimit

import (
	"sync"
	"time"

	"github.com/klistr-labs/fedgatewayd/internal/model"
)

type window struct {
	count      int
	windowFrom time.Time
}

// LocalLimiter enforces RATE_LIMIT_MAX admissions per RATE_LIMIT_WINDOW per
// caller identifier, entirely before any network call is attempted.
// Windows reset lazily on next admission (grounded: klistr's inboxLimiter
// per-origin counter map, generalized from a concurrency cap to a sliding
// time window).
type LocalLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	enabled bool
	max     int
	period  time.Duration
	now     func() time.Time
}

// NewLocalLimiter creates a LocalLimiter. enabled mirrors RATE_LIMIT_ENABLED.
func NewLocalLimiter(enabled bool, max int, period time.Duration) *LocalLimiter {
	return &LocalLimiter{
		windows: make(map[string]*window),
		enabled: enabled,
		max:     max,
		period:  period,
		now:     time.Now,
	}
}

// Admit checks and, if permitted, records one admission for caller.
// Returns LocalRateLimitExceededError when the window is full.
func (l *LocalLimiter) Admit(caller string) error {
	if !l.enabled {
		return nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[caller]
	if !ok || now.Sub(w.windowFrom) >= l.period {
		l.windows[caller] = &window{count: 1, windowFrom: now}
		return nil
	}
	if w.count >= l.max {
		retryIn := l.period - now.Sub(w.windowFrom)
		return &model.LocalRateLimitExceededError{Caller: caller, RetryIn: retryIn}
	}
	w.count++
	return nil
}
