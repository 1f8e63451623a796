package ops

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

	"github.com/klistr-labs/fedgatewayd/internal/cache"
	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/model"
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

func newTestResolver(t *testing.T, ts *httptest.Server, fakeHost string) *resolver.Resolver {
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

	return resolver.New(client, jrdCache, actorCache, 5*time.Minute, time.Minute)
}

func TestBatchFetchActors_IsolatesPerItemFailures(t *testing.T) {
	const fakeHost = "mastodon.example"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/.well-known/webfinger" && r.URL.Query().Get("resource") == "acct:good@"+fakeHost:
			w.Header().Set("Content-Type", "application/jrd+json")
			fmt.Fprintf(w, `{"subject":"acct:good@%s","links":[{"rel":"self","type":"application/activity+json","href":"https://%s/users/good"}]}`, fakeHost, fakeHost)
		case r.URL.Path == "/users/good":
			w.Header().Set("Content-Type", "application/activity+json")
			fmt.Fprintf(w, `{"id":"https://%s/users/good","type":"Person","inbox":"https://%s/users/good/inbox","outbox":"https://%s/users/good/outbox"}`, fakeHost, fakeHost, fakeHost)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	r := newTestResolver(t, ts, fakeHost)
	o := &Operations{Resolver: r, BatchConcurrency: 3, MaxBatchSize: 20}

	result, err := o.BatchFetchActors(context.Background(), "caller", []string{
		"good@" + fakeHost,
		"missing@" + fakeHost,
		"good@" + fakeHost,
	})
	require.NoError(t, err)

	require.Len(t, result.OK, 2)
	require.Len(t, result.Errs, 1)
	assert.Equal(t, 1, result.Errs[0].Index)
}

func TestBatchFetchActors_EmptyInputYieldsEmptyResult(t *testing.T) {
	o := &Operations{BatchConcurrency: 5, MaxBatchSize: 20}
	result, err := o.BatchFetchActors(context.Background(), "caller", nil)
	assert.NoError(t, err)
	assert.Empty(t, result.OK)
	assert.Empty(t, result.Errs)
}

func TestBatchFetchActors_RejectsOversizeBatch(t *testing.T) {
	o := &Operations{BatchConcurrency: 5, MaxBatchSize: 20}
	identifiers := make([]string, 21)
	for i := range identifiers {
		identifiers[i] = fmt.Sprintf("user%d@mastodon.example", i)
	}

	result, err := o.BatchFetchActors(context.Background(), "caller", identifiers)
	require.Error(t, err)
	var invalidErr *model.InvalidInputError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, "identifiers", invalidErr.Field)
	assert.Empty(t, result.OK)
}
