package ratelimit

import (
	"context"
	"time"

	"github.com/klistr-labs/fedgatewayd/internal/cache"
	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/model"
)

// lowRemainingFraction is the "< 10% of limit" threshold from §4.3(b) below
// which a non-zero recommended delay is computed.
const lowRemainingFraction = 0.10

// InstanceGovernor is the adaptive per-instance limiter (L4 tier b): a
// passive observer of X-RateLimit-* response headers, backed by an
// in-memory TTL store so stale per-host state self-evicts around its
// observed reset time.
type InstanceGovernor struct {
	store   *cache.Store
	ceiling time.Duration
	now     func() time.Time
}

// NewInstanceGovernor creates an InstanceGovernor. ceiling bounds how long
// a call will be delayed before failing InstanceRateLimitedError (default 5s).
func NewInstanceGovernor(store *cache.Store, ceiling time.Duration) *InstanceGovernor {
	return &InstanceGovernor{store: store, ceiling: ceiling, now: time.Now}
}

// Observe updates the instance's RateLimitState from a response's parsed
// rate-limit headers. A no-op if the response carried none.
func (g *InstanceGovernor) Observe(host string, h httpfetch.RateLimitHeaders) {
	if !h.Present {
		return
	}
	state := model.RateLimitState{
		Limit:     h.Limit,
		Remaining: h.Remaining,
		Reset:     h.Reset,
		UpdatedAt: g.now(),
	}
	ttl := time.Until(h.Reset)
	if ttl <= 0 {
		ttl = time.Minute // keep a short memory of exhausted windows even past reset
	}
	_ = g.store.Set(stateKey(host), state, ttl)
}

// State returns the last observed RateLimitState for host, if any.
func (g *InstanceGovernor) State(host string) (model.RateLimitState, bool) {
	var state model.RateLimitState
	ok, _ := g.store.Get(stateKey(host), &state)
	return state, ok
}

// ShouldBackoff returns the recommended delay before calling host again:
// (reset - now) / max(1, remaining) when remaining is below 10% of limit,
// else zero.
func (g *InstanceGovernor) ShouldBackoff(host string) time.Duration {
	state, ok := g.State(host)
	if !ok || state.Limit <= 0 {
		return 0
	}
	if float64(state.Remaining) >= float64(state.Limit)*lowRemainingFraction {
		return 0
	}
	remaining := state.Remaining
	if remaining < 1 {
		remaining = 1
	}
	delay := time.Until(state.Reset) / time.Duration(remaining)
	if delay < 0 {
		delay = 0
	}
	return delay
}

// IsRateLimited reports whether host is currently fully exhausted:
// remaining == 0 and now < reset.
func (g *InstanceGovernor) IsRateLimited(host string) bool {
	state, ok := g.State(host)
	if !ok {
		return false
	}
	return state.Remaining == 0 && g.now().Before(state.Reset)
}

// Admit applies the adaptive backoff: delays the caller up to the
// configured ceiling, then fails InstanceRateLimitedError if the required
// delay would exceed it. The delay is a suspension point bounded by ctx's
// deadline (SPEC_FULL.md §5).
func (g *InstanceGovernor) Admit(ctx context.Context, host string) error {
	delay := g.ShouldBackoff(host)
	if g.IsRateLimited(host) {
		state, _ := g.State(host)
		retryAfter := time.Until(state.Reset)
		if retryAfter > g.ceiling {
			return &model.InstanceRateLimitedError{Host: host, RetryAfter: retryAfter}
		}
		delay = retryAfter
	}
	if delay > g.ceiling {
		return &model.InstanceRateLimitedError{Host: host, RetryAfter: delay}
	}
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return &model.CancelledError{Op: "ratelimit: adaptive backoff"}
	case <-time.After(delay):
		return nil
	}
}

func stateKey(host string) string { return "ratelimit:" + host }
