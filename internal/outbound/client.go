// Package outbound composes the Rate-limit Governor (L4), Safety
// Middleware (L3), and HTTP Fetcher (L2) into the single call path every
// higher layer (L5 Actor Resolver, L6 Protocol Adapters) uses. Ordering is
// fixed per SPEC_FULL.md §4.3: local caller limiter (a) first, then the
// adaptive per-instance limiter (b), then the Safety Middleware, then the
// Fetcher.
package outbound

import (
	"context"
	"net/url"

	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/ratelimit"
	"github.com/klistr-labs/fedgatewayd/internal/safety"
)

// Client is the fully-governed outbound call path.
type Client struct {
	Local    *ratelimit.LocalLimiter
	Instance *ratelimit.InstanceGovernor
	Guard    *safety.Guard
}

// New creates a Client.
func New(local *ratelimit.LocalLimiter, instance *ratelimit.InstanceGovernor, guard *safety.Guard) *Client {
	return &Client{Local: local, Instance: instance, Guard: guard}
}

// Do admits caller against the local window, admits the target host
// against the adaptive instance limiter, then performs the call through
// the Safety Middleware. On success, the instance governor's state is
// updated from any observed rate-limit headers.
func (c *Client) Do(ctx context.Context, caller string, req httpfetch.Request) (*httpfetch.Result, error) {
	if err := c.Local.Admit(caller); err != nil {
		return nil, err
	}

	host := hostOf(req.URL)
	if host != "" && c.Instance != nil {
		if err := c.Instance.Admit(ctx, host); err != nil {
			return nil, err
		}
	}

	result, err := c.Guard.Do(ctx, req, caller)
	if result != nil && host != "" && c.Instance != nil {
		c.Instance.Observe(host, result.RateLimit)
	}
	return result, err
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
