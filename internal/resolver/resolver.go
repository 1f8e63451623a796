// Package resolver implements the Actor Resolver (L5): WebFinger discovery
// and acct: <-> ActivityPub URL translation, with a dual cache (JRD +
// Actor). See SPEC_FULL.md §4.4.
//
// Grounded on klppl-klistr's internal/ap/client.go WebFingerResolve/
// FetchActor, generalized from a single-cache sync.Map to the dual
// buntdb-backed TTL cache shared with the rest of the engine, and with
// the negative-cache addition documented as an Open Question decision in
// SPEC_FULL.md §9 (grounded on other_examples' tootik fed-resolve.go
// negative-cache pattern for dead actors).
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/klistr-labs/fedgatewayd/internal/cache"
	"github.com/klistr-labs/fedgatewayd/internal/htmlutil"
	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/model"
	"github.com/klistr-labs/fedgatewayd/internal/outbound"
)

// jrd is the WebFinger JSON Resource Descriptor document shape.
type jrd struct {
	Subject string     `json:"subject"`
	Aliases []string   `json:"aliases,omitempty"`
	Links   []jrdLink  `json:"links"`
}

type jrdLink struct {
	Rel      string `json:"rel"`
	Type     string `json:"type,omitempty"`
	Href     string `json:"href,omitempty"`
	Template string `json:"template,omitempty"`
}

// negativeEntry is stored in the actor cache under a distinguishing prefix
// so a short-TTL "known bad" result doesn't need a second cache. Only the
// two kinds below are ever written — see cacheNegative.
type negativeEntry struct {
	Kind string
}

const (
	negativeKindNotFound    = "not_found"
	negativeKindUnreachable = "unreachable"
)

// Resolver resolves acct:/AP-URL identifiers to normalized Actors.
type Resolver struct {
	client         *outbound.Client
	jrdCache       *cache.Store
	actorCache     *cache.Store
	actorTTL       time.Duration
	negativeTTL    time.Duration
}

// New creates a Resolver.
func New(client *outbound.Client, jrdCache, actorCache *cache.Store, actorTTL, negativeTTL time.Duration) *Resolver {
	return &Resolver{client: client, jrdCache: jrdCache, actorCache: actorCache, actorTTL: actorTTL, negativeTTL: negativeTTL}
}

// Resolve accepts "user@host", "@user@host", or an absolute ActivityPub
// actor URL, and returns the normalized Actor. caller is the audit/rate
// limit principal.
func (r *Resolver) Resolve(ctx context.Context, caller, identifier string) (*model.Actor, error) {
	if strings.HasPrefix(identifier, "https://") || strings.HasPrefix(identifier, "http://") {
		return r.resolveByURL(ctx, caller, identifier)
	}

	acct, user, host, err := normalizeAcct(identifier)
	if err != nil {
		return nil, err
	}

	if cached, cachedErr, ok := r.lookupActorCache(acct); ok {
		if cachedErr != nil {
			return nil, cachedErr
		}
		return cached, nil
	}

	actorURL, err := r.webfingerResolve(ctx, caller, acct, user, host)
	if err != nil {
		r.cacheNegative(acct, err)
		return nil, err
	}

	actor, err := r.fetchActor(ctx, caller, actorURL)
	if err != nil {
		r.cacheNegative(acct, err)
		return nil, err
	}
	actor.Acct = acct
	r.storeActor(acct, actor)
	return actor, nil
}

func (r *Resolver) resolveByURL(ctx context.Context, caller, actorURL string) (*model.Actor, error) {
	if cached, cachedErr, ok := r.lookupActorCache(actorURL); ok {
		if cachedErr != nil {
			return nil, cachedErr
		}
		return cached, nil
	}
	actor, err := r.fetchActor(ctx, caller, actorURL)
	if err != nil {
		r.cacheNegative(actorURL, err)
		return nil, err
	}
	r.storeActor(actorURL, actor)
	return actor, nil
}

// normalizeAcct strips a leading "@" and lowercases the host component,
// per spec step 1. The username is left exactly as given — see SPEC_FULL.md
// §9 Open Question decision 1.
func normalizeAcct(identifier string) (acct, user, host string, err error) {
	s := strings.TrimPrefix(identifier, "@")
	parts := strings.SplitN(s, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", &model.InvalidInputError{Field: "identifier", Reason: "expected user@host or acct URL"}
	}
	user = parts[0]
	host = strings.ToLower(parts[1])
	acct = "acct:" + user + "@" + host
	return acct, user, host, nil
}

func (r *Resolver) webfingerResolve(ctx context.Context, caller, acct, user, host string) (string, error) {
	var doc jrd
	cacheKey := "jrd:" + acct
	if ok, _ := r.jrdCache.Get(cacheKey, &doc); ok {
		return extractActorLink(doc, acct)
	}

	wfURL := fmt.Sprintf("https://%s/.well-known/webfinger?resource=acct:%s@%s", host, user, host)
	result, err := r.client.Do(ctx, caller, httpfetch.Request{
		Method: "GET",
		URL:    wfURL,
		Accept: "application/jrd+json, application/json",
	})
	if err != nil {
		return "", &model.ActorUnreachableError{Identifier: acct, Err: err}
	}
	switch result.Classification {
	case httpfetch.ClassClientError:
		if result.Status == 404 {
			return "", &model.ActorNotFoundError{Identifier: acct}
		}
		return "", &model.ActorUnavailableError{Identifier: acct, Status: result.Status}
	case httpfetch.ClassServerError:
		return "", &model.ActorUnavailableError{Identifier: acct, Status: result.Status}
	case httpfetch.ClassOk:
		// fall through
	default:
		return "", &model.ActorUnavailableError{Identifier: acct, Status: result.Status}
	}

	if err := json.Unmarshal(result.Body, &doc); err != nil || doc.Subject == "" {
		return "", &model.ActorMalformedError{Identifier: acct, Reason: "invalid JRD document"}
	}

	_ = r.jrdCache.Set(cacheKey, doc, r.actorTTL)
	return extractActorLink(doc, acct)
}

func extractActorLink(doc jrd, acct string) (string, error) {
	for _, link := range doc.Links {
		if link.Rel == "self" && isAPMediaType(link.Type) && link.Href != "" {
			return link.Href, nil
		}
	}
	return "", &model.ActorNotDiscoverableError{Identifier: acct}
}

// isAPMediaType reports whether a WebFinger link content-type string
// represents an ActivityPub actor document. MIME types are
// case-insensitive; some servers add whitespace around the profile
// parameter.
func isAPMediaType(ct string) bool {
	lower := strings.ToLower(ct)
	if lower == "application/activity+json" {
		return true
	}
	return strings.HasPrefix(lower, "application/ld+json") &&
		strings.Contains(lower, "https://www.w3.org/ns/activitystreams")
}

type wireActor struct {
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	Name              string          `json:"name"`
	PreferredUsername string          `json:"preferredUsername"`
	Summary           string          `json:"summary"`
	Inbox             string          `json:"inbox"`
	Outbox            string          `json:"outbox"`
	Followers         string          `json:"followers"`
	Following         string          `json:"following"`
	URL               string          `json:"url"`
	Icon              *wireImage      `json:"icon"`
	PublicKey         *wirePublicKey  `json:"publicKey"`
	Endpoints         *wireEndpoints  `json:"endpoints"`
}

type wireImage struct {
	URL string `json:"url"`
}

type wirePublicKey struct {
	PublicKeyPem string `json:"publicKeyPem"`
}

type wireEndpoints struct {
	SharedInbox string `json:"sharedInbox"`
}

func (r *Resolver) fetchActor(ctx context.Context, caller, actorURL string) (*model.Actor, error) {
	result, err := r.client.Do(ctx, caller, httpfetch.Request{
		Method: "GET",
		URL:    actorURL,
		Accept: "application/activity+json",
	})
	if err != nil {
		return nil, &model.ActorUnreachableError{Identifier: actorURL, Err: err}
	}
	switch result.Classification {
	case httpfetch.ClassClientError:
		if result.Status == 404 {
			return nil, &model.ActorNotFoundError{Identifier: actorURL}
		}
		return nil, &model.ActorUnavailableError{Identifier: actorURL, Status: result.Status}
	case httpfetch.ClassServerError:
		return nil, &model.ActorUnavailableError{Identifier: actorURL, Status: result.Status}
	case httpfetch.ClassOk:
	default:
		return nil, &model.ActorUnavailableError{Identifier: actorURL, Status: result.Status}
	}

	var wa wireActor
	if err := json.Unmarshal(result.Body, &wa); err != nil {
		return nil, &model.ActorMalformedError{Identifier: actorURL, Reason: "invalid JSON"}
	}
	if wa.ID == "" || wa.Type == "" || wa.Inbox == "" || wa.Outbox == "" {
		return nil, &model.ActorMalformedError{Identifier: actorURL, Reason: "missing required fields id/type/inbox/outbox"}
	}

	actor := &model.Actor{
		ActivityPubURL:    wa.ID,
		PreferredUsername: wa.PreferredUsername,
		DisplayName:       wa.Name,
		SummaryHTML:       wa.Summary,
		SummaryText:       htmlutil.Strip(wa.Summary),
		InboxURL:          wa.Inbox,
		OutboxURL:         wa.Outbox,
		FollowersURL:      wa.Followers,
		FollowingURL:      wa.Following,
		CachedAt:          time.Now(),
	}
	if wa.Icon != nil {
		actor.AvatarURL = wa.Icon.URL
	}
	if wa.PublicKey != nil {
		actor.PublicKeyPEM = wa.PublicKey.PublicKeyPem
	}
	if wa.Endpoints != nil {
		actor.SharedInboxURL = wa.Endpoints.SharedInbox
	}
	return actor, nil
}

// lookupActorCache reports whether key has a cached outcome. found is false
// on a cache miss. On a negative hit, err is the reconstructed error of the
// original kind (ActorNotFoundError or ActorUnreachableError) and actor is
// nil. On a positive hit, err is nil and actor is set.
func (r *Resolver) lookupActorCache(key string) (actor *model.Actor, err error, found bool) {
	var neg negativeEntry
	if ok, _ := r.actorCache.Get("neg:"+key, &neg); ok {
		switch neg.Kind {
		case negativeKindUnreachable:
			return nil, &model.ActorUnreachableError{Identifier: key, Err: errors.New("cached: previously unreachable")}, true
		default:
			return nil, &model.ActorNotFoundError{Identifier: key}, true
		}
	}
	var a model.Actor
	if ok, _ := r.actorCache.Get("actor:"+key, &a); ok {
		return &a, nil, true
	}
	return nil, nil, false
}

func (r *Resolver) storeActor(key string, actor *model.Actor) {
	_ = r.actorCache.Set("actor:"+key, *actor, r.actorTTL)
}

// cacheNegative records a short-TTL negative cache entry for identifier, but
// only for the two error kinds SPEC_FULL.md §4.4 allows to be dampened:
// ActorNotFoundError and ActorUnreachableError. Every other error
// (malformed documents, non-discoverable actors, 4xx/5xx availability
// failures) is never cached, so a transient or server-side problem doesn't
// get treated as a durable absence.
func (r *Resolver) cacheNegative(key string, err error) {
	if r.negativeTTL <= 0 {
		return
	}
	var notFound *model.ActorNotFoundError
	var unreachable *model.ActorUnreachableError
	switch {
	case errors.As(err, &notFound):
		_ = r.actorCache.Set("neg:"+key, negativeEntry{Kind: negativeKindNotFound}, r.negativeTTL)
	case errors.As(err, &unreachable):
		_ = r.actorCache.Set("neg:"+key, negativeEntry{Kind: negativeKindUnreachable}, r.negativeTTL)
	}
}
