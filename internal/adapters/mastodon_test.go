package adapters

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

	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/model"
	"github.com/klistr-labs/fedgatewayd/internal/outbound"
	"github.com/klistr-labs/fedgatewayd/internal/ratelimit"
	"github.com/klistr-labs/fedgatewayd/internal/safety"
)

// rewriteFetcher redirects any request addressed to fakeHost onto a local
// httptest.Server, so adapters can be exercised through their real
// https://<host>/api/... URL-building logic without a real TLS listener.
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

func newTestClient(t *testing.T, ts *httptest.Server, fakeHost string) *outbound.Client {
	t.Helper()
	tsURL, err := url.Parse(ts.URL)
	require.NoError(t, err)

	fetcher := httpfetch.New("test-agent/1.0", 5*time.Second, 16, 4)
	rw := &rewriteFetcher{inner: fetcher, fakeHost: fakeHost, tsURL: tsURL}
	guard := safety.New(rw, nil, nil, nil, true)
	local := ratelimit.NewLocalLimiter(false, 0, 0)
	return outbound.New(local, nil, guard)
}

func TestMastodonFetchInstance_ParsesVersionAndStats(t *testing.T) {
	const fakeHost = "mastodon.example"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/instance", r.URL.Path)
		fmt.Fprint(w, `{"uri":"mastodon.example","version":"4.2.0","description":"test instance","languages":["en"],"registrations":true,"stats":{"user_count":10,"status_count":100,"domain_count":5}}`)
	}))
	defer ts.Close()

	caps := NewMastodon(newTestClient(t, ts, fakeHost))
	inst, err := caps.FetchInstance(context.Background(), "caller", fakeHost)
	require.NoError(t, err)
	assert.Equal(t, fakeHost, inst.Domain)
	assert.Equal(t, "4.2.0", inst.Version)
	assert.Equal(t, 10, inst.UserCount)
	assert.True(t, inst.RegistrationOpen)
}

func TestMastodonFetchInstance_RejectsNonMastodonDocument(t *testing.T) {
	const fakeHost = "mastodon.example"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hello":"world"}`)
	}))
	defer ts.Close()

	caps := NewMastodon(newTestClient(t, ts, fakeHost))
	_, err := caps.FetchInstance(context.Background(), "caller", fakeHost)
	assert.Error(t, err)
}

func TestMastodonSearch_MapsAccountsStatusesHashtags(t *testing.T) {
	const fakeHost = "mastodon.example"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/search", r.URL.Path)
		assert.Equal(t, "hello", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"accounts":[{"id":"1","acct":"alice","username":"alice"}],"statuses":[{"id":"99","content":"<p>hi</p>"}],"hashtags":[{"name":"golang"}]}`)
	}))
	defer ts.Close()

	caps := NewMastodon(newTestClient(t, ts, fakeHost))
	result, err := caps.Search(context.Background(), "caller", fakeHost, SearchQuery{Query: "hello"})
	require.NoError(t, err)
	require.Len(t, result.Accounts, 1)
	assert.Equal(t, "alice@"+fakeHost, result.Accounts[0].Acct)
	require.Len(t, result.Statuses, 1)
	assert.Equal(t, "hi", result.Statuses[0].ContentText)
	assert.Equal(t, []string{"golang"}, result.Hashtags)
}

func TestMastodonFetchTimeline_BuildsPublicLocalQuery(t *testing.T) {
	const fakeHost = "mastodon.example"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/timelines/public", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("local"))
		w.Header().Set("Link", `<https://`+fakeHost+`/api/v1/timelines/public?max_id=1>; rel="next"`)
		fmt.Fprint(w, `[{"id":"2","content":"<p>a</p>"},{"id":"1","content":"<p>b</p>"}]`)
	}))
	defer ts.Close()

	caps := NewMastodon(newTestClient(t, ts, fakeHost))
	page, err := caps.FetchTimeline(context.Background(), "caller", fakeHost, TimelineLocal, Bounds{Limit: 20})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextCursor)
}

func TestMastodonPostStatus_SendsAuthorizedRequest(t *testing.T) {
	const fakeHost = "mastodon.example"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/statuses", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":"55","content":"<p>posted</p>","visibility":"public"}`)
	}))
	defer ts.Close()

	caps := NewMastodon(newTestClient(t, ts, fakeHost))
	post, err := caps.PostStatus(context.Background(), "caller", fakeHost, "tok-123", StatusDraft{Text: "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "55", post.ID)
	assert.Equal(t, "posted", post.ContentText)
}

func TestMastodonVerifyCredentials_UnauthorizedMapsToInvalidCredentials(t *testing.T) {
	const fakeHost = "mastodon.example"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	caps := NewMastodon(newTestClient(t, ts, fakeHost))
	_, err := caps.VerifyCredentials(context.Background(), "caller", fakeHost, "bad-token")
	require.Error(t, err)
	var invalid *model.InvalidCredentialsError
	assert.ErrorAs(t, err, &invalid)
}
