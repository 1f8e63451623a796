// Package ops implements the Operation Layer (L9): the ten named
// operations and their supplemented siblings, each a thin orchestrator over
// the Actor Resolver, Protocol Adapters, Pagination Engine, and Account
// Registry. See SPEC_FULL.md §4.8.
package ops

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/klistr-labs/fedgatewayd/internal/accounts"
	"github.com/klistr-labs/fedgatewayd/internal/adapters"
	"github.com/klistr-labs/fedgatewayd/internal/health"
	"github.com/klistr-labs/fedgatewayd/internal/model"
	"github.com/klistr-labs/fedgatewayd/internal/resolver"
)

// Operations wires every operation to its dependencies. Grounded on
// klistr's server.go handler functions, each a thin wrapper calling into
// ap/bsky/nostr package functions — generalized here to call through the
// Capabilities records instead of concrete per-protocol packages.
type Operations struct {
	Resolver         *resolver.Resolver
	Mastodon         adapters.Capabilities
	ActivityPub      adapters.Capabilities
	Selector         *adapters.Selector
	Accounts         *accounts.Registry
	Health           *health.Recorder
	BatchConcurrency int
	MaxPostLength    int
	MaxBatchSize     int
}

// New builds an Operations orchestrator. maxPostLength/maxBatchSize are the
// §8 boundary constants (defaults 5000 and 20); a value <= 0 falls back to
// the spec default rather than disabling the check.
func New(r *resolver.Resolver, mastodon, activityPub adapters.Capabilities, sel *adapters.Selector, acc *accounts.Registry, rec *health.Recorder, batchConcurrency, maxPostLength, maxBatchSize int) *Operations {
	if batchConcurrency <= 0 {
		batchConcurrency = 5
	}
	if maxPostLength <= 0 {
		maxPostLength = 5000
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 20
	}
	return &Operations{Resolver: r, Mastodon: mastodon, ActivityPub: activityPub, Selector: sel, Accounts: acc, Health: rec, BatchConcurrency: batchConcurrency, MaxPostLength: maxPostLength, MaxBatchSize: maxBatchSize}
}

// instrument runs fn, recording its duration, success, and error message
// under operation into the Health Recorder.
func (o *Operations) instrument(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	end := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if o.Health != nil {
		o.Health.Record(operation, start, end, err == nil, msg, nil)
	}
	return err
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", &model.InvalidInputError{Field: "url", Reason: "no host"}
	}
	return u.Hostname(), nil
}

// checkPostLength enforces §8's max-post-length boundary before any network
// call is attempted: up to MaxPostLength characters is valid, one over fails.
func (o *Operations) checkPostLength(text string) error {
	if n := len([]rune(text)); n > o.MaxPostLength {
		return &model.InvalidInputError{Field: "status", Reason: fmt.Sprintf("text exceeds max length of %d characters (got %d)", o.MaxPostLength, n)}
	}
	return nil
}

// DiscoverActor resolves an identifier to its normalized Actor. §4.8
// discover-actor.
func (o *Operations) DiscoverActor(ctx context.Context, caller, identifier string) (*model.Actor, error) {
	var actor *model.Actor
	err := o.instrument("discover-actor", func() error {
		var err error
		actor, err = o.Resolver.Resolve(ctx, caller, identifier)
		return err
	})
	return actor, err
}

// FetchTimeline fetches a timeline of the given kind for identifier's host
// (or an arbitrary host for the public/local timelines). §4.8
// fetch-timeline.
func (o *Operations) FetchTimeline(ctx context.Context, caller, host string, kind adapters.TimelineKind, b adapters.Bounds) (*model.Page[model.Post], error) {
	if o.Mastodon.FetchTimeline == nil {
		return nil, fmt.Errorf("fetch-timeline: not supported by this adapter")
	}
	var page *model.Page[model.Post]
	err := o.instrument("fetch-timeline", func() error {
		var err error
		page, err = o.Mastodon.FetchTimeline(ctx, caller, host, kind, b)
		return err
	})
	return page, err
}

// FetchAccountStatuses resolves identifier then fetches its own statuses
// timeline — the identifier-driven variant of fetch-timeline described in
// spec §4.8's pseudocode (`id.outbox or /api/v1/accounts/{id}/statuses`).
// Unlike the other timeline kinds, v1/accounts/{id}/statuses is keyed by the
// instance-local account ID rather than the host alone, so this looks the ID
// up via FetchAccountByAcct before delegating.
func (o *Operations) FetchAccountStatuses(ctx context.Context, caller, identifier string, b adapters.Bounds) (*model.Page[model.Post], error) {
	actor, err := o.DiscoverActor(ctx, caller, identifier)
	if err != nil {
		return nil, err
	}
	host, err := hostOf(actor.ActivityPubURL)
	if err != nil {
		return nil, err
	}
	accountID := actor.LocalID
	if accountID == "" {
		if o.Mastodon.FetchAccountByAcct == nil {
			return nil, fmt.Errorf("fetch-account-statuses: not supported by this adapter")
		}
		localActor, err := o.Mastodon.FetchAccountByAcct(ctx, caller, host, strings.TrimPrefix(actor.Acct, "acct:"))
		if err != nil {
			return nil, err
		}
		accountID = localActor.LocalID
	}
	b.AccountID = accountID
	return o.FetchTimeline(ctx, caller, host, adapters.TimelineAccount, b)
}

// Search performs a search against host. §4.8 search.
func (o *Operations) Search(ctx context.Context, caller, host string, q adapters.SearchQuery) (*adapters.SearchResult, error) {
	if o.Mastodon.Search == nil {
		return nil, fmt.Errorf("search: not supported by this adapter")
	}
	var result *adapters.SearchResult
	err := o.instrument("search", func() error {
		var err error
		result, err = o.Mastodon.Search(ctx, caller, host, q)
		return err
	})
	return result, err
}

// PostStatus posts a new status using accountID's (or the active account's)
// credentials. §4.8 post-status.
func (o *Operations) PostStatus(ctx context.Context, caller, accountID string, draft adapters.StatusDraft) (*model.Post, error) {
	if o.Mastodon.PostStatus == nil {
		return nil, fmt.Errorf("post-status: not supported by this adapter")
	}
	if err := o.checkPostLength(draft.Text); err != nil {
		return nil, err
	}
	acc, err := o.Accounts.Resolve(accountID)
	if err != nil {
		return nil, err
	}
	var post *model.Post
	err = o.instrument("post-status", func() error {
		var err error
		post, err = o.Mastodon.PostStatus(ctx, caller, acc.Instance, acc.Token, draft)
		return err
	})
	return post, err
}

// Follow follows or unfollows targetActorID using accountID's credentials.
// §4.8 follow.
func (o *Operations) Follow(ctx context.Context, caller, accountID, targetActorID string, undo bool) error {
	if o.Mastodon.FollowAccount == nil {
		return fmt.Errorf("follow: not supported by this adapter")
	}
	acc, err := o.Accounts.Resolve(accountID)
	if err != nil {
		return err
	}
	return o.instrument("follow", func() error {
		return o.Mastodon.FollowAccount(ctx, caller, acc.Instance, acc.Token, targetActorID, undo)
	})
}

// VoteOnPoll votes on a poll using accountID's credentials. §4.8
// vote-on-poll.
func (o *Operations) VoteOnPoll(ctx context.Context, caller, accountID, pollID string, choices []int) (*model.Poll, error) {
	if o.Mastodon.VoteOnPoll == nil {
		return nil, fmt.Errorf("vote-on-poll: not supported by this adapter")
	}
	acc, err := o.Accounts.Resolve(accountID)
	if err != nil {
		return nil, err
	}
	var poll *model.Poll
	err = o.instrument("vote-on-poll", func() error {
		var err error
		poll, err = o.Mastodon.VoteOnPoll(ctx, caller, acc.Instance, acc.Token, pollID, choices)
		return err
	})
	return poll, err
}

// UploadMedia uploads a media attachment using accountID's credentials.
// §4.8 upload-media.
func (o *Operations) UploadMedia(ctx context.Context, caller, accountID string, m adapters.MediaUpload) (string, error) {
	if o.Mastodon.UploadMedia == nil {
		return "", fmt.Errorf("upload-media: not supported by this adapter")
	}
	acc, err := o.Accounts.Resolve(accountID)
	if err != nil {
		return "", err
	}
	var mediaID string
	err = o.instrument("upload-media", func() error {
		var err error
		mediaID, err = o.Mastodon.UploadMedia(ctx, caller, acc.Instance, acc.Token, m)
		return err
	})
	return mediaID, err
}

// Schedule schedules a status for future posting using accountID's
// credentials. §4.8 schedule.
func (o *Operations) Schedule(ctx context.Context, caller, accountID string, draft adapters.StatusDraft) (*model.Post, error) {
	if o.Mastodon.ScheduleStatus == nil {
		return nil, fmt.Errorf("schedule: not supported by this adapter")
	}
	if err := o.checkPostLength(draft.Text); err != nil {
		return nil, err
	}
	acc, err := o.Accounts.Resolve(accountID)
	if err != nil {
		return nil, err
	}
	var post *model.Post
	err = o.instrument("schedule", func() error {
		var err error
		post, err = o.Mastodon.ScheduleStatus(ctx, caller, acc.Instance, acc.Token, draft)
		return err
	})
	return post, err
}

// GetPostContext fetches a thread's ancestors and descendants. [EXPANSION]
// supplemented operation, §4.8 expansion.
func (o *Operations) GetPostContext(ctx context.Context, caller, host, postID string) (ancestors, descendants *model.Page[model.Post], err error) {
	if o.Mastodon.GetContext == nil {
		return nil, nil, fmt.Errorf("get-post-context: not supported by this adapter")
	}
	err = o.instrument("get-post-context", func() error {
		var innerErr error
		ancestors, descendants, innerErr = o.Mastodon.GetContext(ctx, caller, host, postID)
		return innerErr
	})
	return ancestors, descendants, err
}

// GetRelationships batches a relationship lookup. [EXPANSION] supplemented
// operation.
func (o *Operations) GetRelationships(ctx context.Context, caller, accountID string, actorIDs []string) ([]adapters.Relationship, error) {
	if o.Mastodon.Relationships == nil {
		return nil, fmt.Errorf("get-relationships: not supported by this adapter")
	}
	acc, err := o.Accounts.Resolve(accountID)
	if err != nil {
		return nil, err
	}
	var rels []adapters.Relationship
	err = o.instrument("get-relationships", func() error {
		var err error
		rels, err = o.Mastodon.Relationships(ctx, caller, acc.Instance, acc.Token, actorIDs)
		return err
	})
	return rels, err
}

// GetNotifications, GetBookmarks, GetFavourites are thin Pagination-engine
// wrappers, same shape as fetch-timeline. [EXPANSION] supplemented
// operations.
func (o *Operations) GetNotifications(ctx context.Context, caller, accountID string, b adapters.Bounds) (*model.Page[model.Post], error) {
	return o.authenticatedPage(ctx, caller, accountID, "get-notifications", o.Mastodon.Notifications, b)
}

func (o *Operations) GetBookmarks(ctx context.Context, caller, accountID string, b adapters.Bounds) (*model.Page[model.Post], error) {
	return o.authenticatedPage(ctx, caller, accountID, "get-bookmarks", o.Mastodon.Bookmarks, b)
}

func (o *Operations) GetFavourites(ctx context.Context, caller, accountID string, b adapters.Bounds) (*model.Page[model.Post], error) {
	return o.authenticatedPage(ctx, caller, accountID, "get-favourites", o.Mastodon.Favourites, b)
}

type authenticatedPageFn func(ctx context.Context, caller, host, token string, b adapters.Bounds) (*model.Page[model.Post], error)

func (o *Operations) authenticatedPage(ctx context.Context, caller, accountID, opName string, fn authenticatedPageFn, b adapters.Bounds) (*model.Page[model.Post], error) {
	if fn == nil {
		return nil, fmt.Errorf("%s: not supported by this adapter", opName)
	}
	acc, err := o.Accounts.Resolve(accountID)
	if err != nil {
		return nil, err
	}
	var page *model.Page[model.Post]
	err = o.instrument(opName, func() error {
		var err error
		page, err = fn(ctx, caller, acc.Instance, acc.Token, b)
		return err
	})
	return page, err
}

// VerifyAccount verifies accountID's stored token. §4.7 verify(id).
func (o *Operations) VerifyAccount(ctx context.Context, caller, accountID string) (*model.Actor, error) {
	if o.Mastodon.VerifyCredentials == nil {
		return nil, fmt.Errorf("verify: not supported by this adapter")
	}
	acc, err := o.Accounts.Resolve(accountID)
	if err != nil {
		return nil, err
	}
	return o.Accounts.Verify(ctx, caller, acc, o.Mastodon.VerifyCredentials)
}
