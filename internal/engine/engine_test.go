package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klistr-labs/fedgatewayd/internal/accounts"
	"github.com/klistr-labs/fedgatewayd/internal/adapters"
	"github.com/klistr-labs/fedgatewayd/internal/cache"
	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/ops"
	"github.com/klistr-labs/fedgatewayd/internal/outbound"
	"github.com/klistr-labs/fedgatewayd/internal/ratelimit"
	"github.com/klistr-labs/fedgatewayd/internal/resolver"
	"github.com/klistr-labs/fedgatewayd/internal/safety"
)

type rewriteFetcher struct {
	inner    *httpfetch.Fetcher
	fakeHost string
	tsURL    *url.URL
}

func (f *rewriteFetcher) Do(ctx context.Context, req httpfetch.Request) (*httpfetch.Result, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	if u.Hostname() == f.fakeHost {
		u.Scheme = f.tsURL.Scheme
		u.Host = f.tsURL.Host
		req.URL = u.String()
	}
	return f.inner.Do(ctx, req)
}

func newTestCore(t *testing.T, ts *httptest.Server, fakeHost string) *Core {
	t.Helper()
	tsURL, err := url.Parse(ts.URL)
	require.NoError(t, err)

	fetcher := httpfetch.New("test-agent/1.0", 5*time.Second, 16, 4)
	rw := &rewriteFetcher{inner: fetcher, fakeHost: fakeHost, tsURL: tsURL}
	guard := safety.New(rw, nil, nil, nil, true)
	local := ratelimit.NewLocalLimiter(false, 0, 0)
	client := outbound.New(local, nil, guard)

	jrdCache, err := cache.Open()
	require.NoError(t, err)
	t.Cleanup(func() { jrdCache.Close() })
	actorCache, err := cache.Open()
	require.NoError(t, err)
	t.Cleanup(func() { actorCache.Close() })

	res := resolver.New(client, jrdCache, actorCache, 5*time.Minute, time.Minute)
	mastodon := adapters.NewMastodon(client)
	o := ops.New(res, mastodon, adapters.Capabilities{}, nil, accounts.New(), nil, 5, 5000, 20)
	return New(o, nil)
}

func TestFetchTimeline_BareHostUsesIdentifierDirectly(t *testing.T) {
	const fakeHost = "mastodon.example"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/timelines/public", r.URL.Path)
		fmt.Fprint(w, `[]`)
	}))
	defer ts.Close()

	c := newTestCore(t, ts, fakeHost)
	page, err := c.FetchTimeline(context.Background(), "caller", fakeHost, TimelineOptions{Kind: adapters.TimelinePublic})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestFetchTimeline_AcctIdentifierResolvesHostFirst(t *testing.T) {
	const fakeHost = "mastodon.example"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/webfinger":
			w.Header().Set("Content-Type", "application/jrd+json")
			fmt.Fprintf(w, `{"subject":"acct:alice@%s","links":[{"rel":"self","type":"application/activity+json","href":"https://%s/users/alice"}]}`, fakeHost, fakeHost)
		case "/users/alice":
			w.Header().Set("Content-Type", "application/activity+json")
			fmt.Fprintf(w, `{"id":"https://%s/users/alice","type":"Person","inbox":"https://%s/users/alice/inbox","outbox":"https://%s/users/alice/outbox"}`, fakeHost, fakeHost, fakeHost)
		case "/api/v1/timelines/tag/golang":
			fmt.Fprint(w, `[]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := newTestCore(t, ts, fakeHost)
	page, err := c.FetchTimeline(context.Background(), "caller", "alice@"+fakeHost, TimelineOptions{Kind: adapters.TimelineTag, Bounds: adapters.Bounds{Tag: "golang"}})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestFetchTimeline_AccountKindBypassesHostResolution(t *testing.T) {
	const fakeHost = "mastodon.example"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/webfinger":
			w.Header().Set("Content-Type", "application/jrd+json")
			fmt.Fprintf(w, `{"subject":"acct:alice@%s","links":[{"rel":"self","type":"application/activity+json","href":"https://%s/users/alice"}]}`, fakeHost, fakeHost)
		case "/users/alice":
			w.Header().Set("Content-Type", "application/activity+json")
			fmt.Fprintf(w, `{"id":"https://%s/users/alice","type":"Person","inbox":"https://%s/users/alice/inbox","outbox":"https://%s/users/alice/outbox"}`, fakeHost, fakeHost, fakeHost)
		case "/api/v1/accounts/lookup":
			assert.Equal(t, "alice@"+fakeHost, r.URL.Query().Get("acct"))
			fmt.Fprint(w, `{"id":"42","acct":"alice","username":"alice"}`)
		case "/api/v1/accounts/42/statuses":
			fmt.Fprint(w, `[{"id":"1"}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := newTestCore(t, ts, fakeHost)
	page, err := c.FetchTimeline(context.Background(), "caller", "alice@"+fakeHost, TimelineOptions{Kind: adapters.TimelineAccount})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
}
