// Package adapters implements the five Protocol Adapters (L6): Mastodon-API,
// ActivityPub/ActivityStreams, NodeInfo, Misskey, and Lemmy. See
// SPEC_FULL.md §4.6.
//
// Each adapter exposes only the subset of operations its protocol family
// supports through a shared Capabilities function-pointer record — a nil
// field means "not supported", rather than three separate packages with
// implicit capability gaps (grounded: klistr's per-protocol ap/bsky/nostr
// packages, generalized into one explicit capability set per spec §9).
package adapters

import (
	"context"
	"time"

	"github.com/klistr-labs/fedgatewayd/internal/model"
)

// TimelineKind selects which Mastodon-API timeline endpoint to query.
type TimelineKind string

const (
	TimelinePublic   TimelineKind = "public"
	TimelineLocal    TimelineKind = "local"
	TimelineHome     TimelineKind = "home"
	TimelineTag      TimelineKind = "tag"
	TimelineAccount  TimelineKind = "account"
)

// Bounds carries caller-supplied pagination bounds, translated by the
// Pagination Engine (L7) into whichever query shape the adapter's endpoint
// expects.
type Bounds struct {
	Limit     int
	MinID     string
	MaxID     string
	SinceID   string
	Cursor    string // opaque cursor from a previous Page, if any
	Tag       string // for TimelineTag
	AccountID string // instance-local account ID, for TimelineAccount
}

// SearchQuery describes a search request (spec §4.6.1 v2/search).
type SearchQuery struct {
	Query string
	Type  string // "accounts" | "statuses" | "hashtags" | "" (all)
	Limit int
}

// SearchResult bundles the three possible result kinds a search can return.
type SearchResult struct {
	Accounts  []model.Actor
	Statuses  []model.Post
	Hashtags  []string
}

// StatusDraft is the input to PostStatus.
type StatusDraft struct {
	Text        string
	SpoilerText string
	Visibility  model.Visibility
	InReplyTo   string
	MediaIDs    []string
	Language    string
	ScheduledAt *time.Time
}

// MediaUpload is the input to UploadMedia.
type MediaUpload struct {
	FileName    string
	ContentType string
	Data        []byte
	Description string
	FocusX      float64
	FocusY      float64
	HasFocus    bool
}

// Relationship is the normalized projection of a Mastodon-API relationship
// object (v1/accounts/relationships).
type Relationship struct {
	ID         string
	Following  bool
	FollowedBy bool
	Blocking   bool
	Muting     bool
}

// Capabilities is the function-pointer record one adapter instance
// populates for the operations its protocol family supports. Every field is
// nil-safe: callers at L9 check for nil before invoking.
type Capabilities struct {
	Family model.SoftwareFamily

	FetchInstance func(ctx context.Context, caller, host string) (*model.Instance, error)

	Search           func(ctx context.Context, caller, host string, q SearchQuery) (*SearchResult, error)
	FetchTimeline    func(ctx context.Context, caller, host string, kind TimelineKind, b Bounds) (*model.Page[model.Post], error)
	FetchAccountByAcct func(ctx context.Context, caller, host, acct string) (*model.Actor, error)

	PostStatus   func(ctx context.Context, caller, host, token string, draft StatusDraft) (*model.Post, error)
	DeleteStatus func(ctx context.Context, caller, host, token, id string) error
	GetContext   func(ctx context.Context, caller, host, id string) (ancestors, descendants *model.Page[model.Post], err error)

	Reblog     func(ctx context.Context, caller, host, token, id string, undo bool) error
	Favourite  func(ctx context.Context, caller, host, token, id string, undo bool) error
	Bookmark   func(ctx context.Context, caller, host, token, id string, undo bool) error
	FollowAccount func(ctx context.Context, caller, host, token, accountID string, undo bool) error

	Relationships func(ctx context.Context, caller, host, token string, accountIDs []string) ([]Relationship, error)
	Notifications func(ctx context.Context, caller, host, token string, b Bounds) (*model.Page[model.Post], error)
	Bookmarks     func(ctx context.Context, caller, host, token string, b Bounds) (*model.Page[model.Post], error)
	Favourites    func(ctx context.Context, caller, host, token string, b Bounds) (*model.Page[model.Post], error)

	VoteOnPoll  func(ctx context.Context, caller, host, token, pollID string, choices []int) (*model.Poll, error)
	UploadMedia func(ctx context.Context, caller, host, token string, m MediaUpload) (string, error)

	ScheduleStatus func(ctx context.Context, caller, host, token string, draft StatusDraft) (*model.Post, error)
	ListScheduled  func(ctx context.Context, caller, host, token string) ([]model.Post, error)
	DeleteScheduled func(ctx context.Context, caller, host, token, id string) error

	VerifyCredentials func(ctx context.Context, caller, host, token string) (*model.Actor, error)

	// FetchObject resolves an arbitrary ActivityPub object URL (note,
	// article, collection) to its raw decoded JSON form — the
	// ActivityPub adapter's fallback path for cross-family fetches.
	FetchObject func(ctx context.Context, caller, objectURL string) (map[string]any, error)
}
