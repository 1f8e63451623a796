package ops

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klistr-labs/fedgatewayd/internal/model"
)

func samplePosts() []model.Post {
	return []model.Post{
		{
			ID:          "1",
			URL:         "https://mastodon.example/@alice/1",
			Author:      model.Actor{Acct: "alice@mastodon.example"},
			ContentText: "hello, world",
			Visibility:  model.VisibilityPublic,
			PublishedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			ID:          "2",
			URL:         "https://mastodon.example/@alice/2",
			Author:      model.Actor{Acct: "alice@mastodon.example"},
			ContentText: "second post, with a comma",
			Visibility:  model.VisibilityUnlisted,
			PublishedAt: time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC),
		},
	}
}

func TestRenderJSON_RoundTripsPostFields(t *testing.T) {
	out, err := renderJSON(samplePosts())
	require.NoError(t, err)
	assert.Contains(t, out, `"ID": "1"`)
	assert.Contains(t, out, "hello, world")
}

func TestRenderMarkdown_IncludesAuthorAndContent(t *testing.T) {
	out := renderMarkdown(samplePosts())
	assert.Contains(t, out, "alice@mastodon.example")
	assert.Contains(t, out, "hello, world")
	assert.Contains(t, out, "2026-01-02 03:04:05")
	assert.Equal(t, 2, strings.Count(out, "---"))
}

func TestRenderCSV_EscapesCommaAndHasHeader(t *testing.T) {
	out, err := renderCSV(samplePosts())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,published,author,visibility,content_text,url", lines[0])
	assert.Contains(t, lines[2], `"second post, with a comma"`)
}

func TestRenderJSON_EmptyInputYieldsEmptyArray(t *testing.T) {
	out, err := renderJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}
