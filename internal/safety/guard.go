// Package safety implements the Safety Middleware (L3): the decorator
// around the HTTP Fetcher that enforces scheme checks, the instance
// blocklist, the SSRF guard, and audit logging on every outbound call.
// See SPEC_FULL.md §4.2.
package safety

import (
	"context"
	"net/url"
	"time"

	"github.com/klistr-labs/fedgatewayd/internal/audit"
	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/model"
)

// Fetcher is the subset of httpfetch.Fetcher that Guard decorates. Declared
// as an interface so tests can substitute a fake without real sockets.
type Fetcher interface {
	Do(ctx context.Context, req httpfetch.Request) (*httpfetch.Result, error)
}

// Guard wraps a Fetcher, enforcing policy on every call in the order
// specified by §4.2: scheme check, host extraction, blocklist, SSRF guard,
// then audit emit (on every call, allowed or rejected).
type Guard struct {
	Fetcher   Fetcher
	Blocklist *Blocklist
	SSRF      *SSRFGuard
	Audit     *audit.Ring
	AllowHTTP bool // explicit opt-in to plain-http targets
}

// New creates a Guard.
func New(f Fetcher, bl *Blocklist, ssrf *SSRFGuard, ring *audit.Ring, allowHTTP bool) *Guard {
	return &Guard{Fetcher: f, Blocklist: bl, SSRF: ssrf, Audit: ring, AllowHTTP: allowHTTP}
}

// Do enforces policy then delegates to the wrapped Fetcher. caller is the
// audit principal (an actor handle, or "anonymous").
func (g *Guard) Do(ctx context.Context, req httpfetch.Request, caller string) (*httpfetch.Result, error) {
	start := time.Now()
	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" {
		g.emit(model.AuditError, caller, req.URL, "unparseable_url", time.Since(start), req)
		return nil, &model.InvalidInputError{Field: "url", Reason: "unparseable"}
	}

	if u.Scheme != "https" && !(g.AllowHTTP && u.Scheme == "http") {
		g.emit(model.AuditError, caller, u.Host, "scheme_rejected", time.Since(start), req)
		return nil, &model.SchemeRejectedError{URL: req.URL}
	}

	host := u.Hostname()

	if g.Blocklist != nil {
		if blocked, reason := g.Blocklist.Match(host); blocked {
			g.emit(model.AuditBlockedInstance, caller, host, string(reason), time.Since(start), req)
			return nil, &model.InstanceBlockedError{Host: host, Reason: string(reason)}
		}
	}

	if g.SSRF != nil {
		if err := g.SSRF.Check(ctx, host); err != nil {
			g.emit(model.AuditSsrfBlocked, caller, host, err.Error(), time.Since(start), req)
			return nil, &model.SsrfBlockedError{Host: host}
		}
	}

	result, err := g.Fetcher.Do(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = err.Error()
	} else {
		outcome = string(result.Classification)
	}
	g.emit(model.AuditToolInvocation, caller, host, outcome, time.Since(start), req)
	return result, err
}

func (g *Guard) emit(kind model.AuditEventKind, caller, subject, outcome string, d time.Duration, req httpfetch.Request) {
	if g.Audit == nil {
		return
	}
	params := map[string]any{
		"method": req.Method,
		"url":    req.URL,
	}
	for k, v := range req.Headers {
		params[k] = v
	}
	g.Audit.Push(kind, callerOrAnonymous(caller), subject, outcome, d, params)
}

func callerOrAnonymous(caller string) string {
	if caller == "" {
		return "anonymous"
	}
	return caller
}
