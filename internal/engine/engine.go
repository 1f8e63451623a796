// Package engine exposes the single narrow interface the front-end
// depends on (§6), wiring L2-L10 into one facade. See SPEC_FULL.md §6.
package engine

import (
	"context"
	"net/url"
	"strings"

	"github.com/klistr-labs/fedgatewayd/internal/adapters"
	"github.com/klistr-labs/fedgatewayd/internal/health"
	"github.com/klistr-labs/fedgatewayd/internal/model"
	"github.com/klistr-labs/fedgatewayd/internal/ops"
)

// TimelineOptions bundles the timeline kind and pagination bounds a caller
// supplies to FetchTimeline.
type TimelineOptions struct {
	Kind   adapters.TimelineKind
	Bounds adapters.Bounds
}

// SearchOptions bundles search-type and pagination limit.
type SearchOptions struct {
	Type  string
	Limit int
}

// Engine is the §6 external-interfaces contract: the entire engine behind
// one exported interface, consumed by an out-of-scope MCP/stdio front-end.
type Engine interface {
	DiscoverActor(ctx context.Context, caller, identifier string) (*model.Actor, error)
	FetchTimeline(ctx context.Context, caller, identifier string, opt TimelineOptions) (*model.Page[model.Post], error)
	Search(ctx context.Context, caller, host, query string, opt SearchOptions) (*adapters.SearchResult, error)
	PostStatus(ctx context.Context, caller string, draft adapters.StatusDraft, accountID string) (*model.Post, error)
	Follow(ctx context.Context, caller, accountID, targetActorID string, undo bool) error
	VoteOnPoll(ctx context.Context, caller, accountID, pollID string, choices []int) (*model.Poll, error)
	UploadMedia(ctx context.Context, caller, accountID string, m adapters.MediaUpload) (string, error)
	Schedule(ctx context.Context, caller, accountID string, draft adapters.StatusDraft) (*model.Post, error)
	BatchFetchActors(ctx context.Context, caller string, identifiers []string) (ops.BatchResult[*model.Actor], error)
	Export(ctx context.Context, caller, identifier string, format ops.ExportFormat) (string, error)

	GetPostContext(ctx context.Context, caller, host, postID string) (ancestors, descendants *model.Page[model.Post], err error)
	GetRelationships(ctx context.Context, caller, accountID string, actorIDs []string) ([]adapters.Relationship, error)
	GetNotifications(ctx context.Context, caller, accountID string, b adapters.Bounds) (*model.Page[model.Post], error)
	GetBookmarks(ctx context.Context, caller, accountID string, b adapters.Bounds) (*model.Page[model.Post], error)
	GetFavourites(ctx context.Context, caller, accountID string, b adapters.Bounds) (*model.Page[model.Post], error)
	VerifyAccount(ctx context.Context, caller, accountID string) (*model.Actor, error)

	Metrics() health.Metrics
	Health(ctx context.Context) health.Report
}

// Core is the concrete Engine implementation, a thin facade over
// *ops.Operations that resolves bare hosts vs acct/URL identifiers before
// delegating. Grounded on klistr's `internal/server` handlers, which play
// exactly this role — the thinnest possible layer between the wire
// transport and the package-level operation functions.
type Core struct {
	Ops      *ops.Operations
	Recorder *health.Recorder
}

// New builds a Core engine over an already-wired Operations and Recorder.
func New(o *ops.Operations, rec *health.Recorder) *Core {
	return &Core{Ops: o, Recorder: rec}
}

func (c *Core) DiscoverActor(ctx context.Context, caller, identifier string) (*model.Actor, error) {
	return c.Ops.DiscoverActor(ctx, caller, identifier)
}

// resolveHost treats identifier as a bare host if it parses as one (no "@",
// no scheme), else resolves it as an actor identifier and returns its host.
func (c *Core) resolveHost(ctx context.Context, caller, identifier string) (string, error) {
	if !strings.Contains(identifier, "@") && !strings.Contains(identifier, "://") {
		return identifier, nil
	}
	actor, err := c.Ops.DiscoverActor(ctx, caller, identifier)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(actor.ActivityPubURL)
	if err != nil || u.Hostname() == "" {
		return "", &model.InvalidInputError{Field: "identifier", Reason: "actor has no resolvable host"}
	}
	return u.Hostname(), nil
}

func (c *Core) FetchTimeline(ctx context.Context, caller, identifier string, opt TimelineOptions) (*model.Page[model.Post], error) {
	if opt.Kind == adapters.TimelineAccount {
		return c.Ops.FetchAccountStatuses(ctx, caller, identifier, opt.Bounds)
	}
	host, err := c.resolveHost(ctx, caller, identifier)
	if err != nil {
		return nil, err
	}
	return c.Ops.FetchTimeline(ctx, caller, host, opt.Kind, opt.Bounds)
}

func (c *Core) Search(ctx context.Context, caller, host, query string, opt SearchOptions) (*adapters.SearchResult, error) {
	return c.Ops.Search(ctx, caller, host, adapters.SearchQuery{Query: query, Type: opt.Type, Limit: opt.Limit})
}

func (c *Core) PostStatus(ctx context.Context, caller string, draft adapters.StatusDraft, accountID string) (*model.Post, error) {
	return c.Ops.PostStatus(ctx, caller, accountID, draft)
}

func (c *Core) Follow(ctx context.Context, caller, accountID, targetActorID string, undo bool) error {
	return c.Ops.Follow(ctx, caller, accountID, targetActorID, undo)
}

func (c *Core) VoteOnPoll(ctx context.Context, caller, accountID, pollID string, choices []int) (*model.Poll, error) {
	return c.Ops.VoteOnPoll(ctx, caller, accountID, pollID, choices)
}

func (c *Core) UploadMedia(ctx context.Context, caller, accountID string, m adapters.MediaUpload) (string, error) {
	return c.Ops.UploadMedia(ctx, caller, accountID, m)
}

func (c *Core) Schedule(ctx context.Context, caller, accountID string, draft adapters.StatusDraft) (*model.Post, error) {
	return c.Ops.Schedule(ctx, caller, accountID, draft)
}

func (c *Core) BatchFetchActors(ctx context.Context, caller string, identifiers []string) (ops.BatchResult[*model.Actor], error) {
	return c.Ops.BatchFetchActors(ctx, caller, identifiers)
}

func (c *Core) Export(ctx context.Context, caller, identifier string, format ops.ExportFormat) (string, error) {
	return c.Ops.Export(ctx, caller, identifier, format)
}

func (c *Core) GetPostContext(ctx context.Context, caller, host, postID string) (*model.Page[model.Post], *model.Page[model.Post], error) {
	return c.Ops.GetPostContext(ctx, caller, host, postID)
}

func (c *Core) GetRelationships(ctx context.Context, caller, accountID string, actorIDs []string) ([]adapters.Relationship, error) {
	return c.Ops.GetRelationships(ctx, caller, accountID, actorIDs)
}

func (c *Core) GetNotifications(ctx context.Context, caller, accountID string, b adapters.Bounds) (*model.Page[model.Post], error) {
	return c.Ops.GetNotifications(ctx, caller, accountID, b)
}

func (c *Core) GetBookmarks(ctx context.Context, caller, accountID string, b adapters.Bounds) (*model.Page[model.Post], error) {
	return c.Ops.GetBookmarks(ctx, caller, accountID, b)
}

func (c *Core) GetFavourites(ctx context.Context, caller, accountID string, b adapters.Bounds) (*model.Page[model.Post], error) {
	return c.Ops.GetFavourites(ctx, caller, accountID, b)
}

func (c *Core) VerifyAccount(ctx context.Context, caller, accountID string) (*model.Actor, error) {
	return c.Ops.VerifyAccount(ctx, caller, accountID)
}

func (c *Core) Metrics() health.Metrics {
	return c.Recorder.GetMetrics()
}

func (c *Core) Health(ctx context.Context) health.Report {
	return c.Recorder.Check()
}

var _ Engine = (*Core)(nil)
