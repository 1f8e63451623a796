package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_NoCursorUsesExplicitBounds(t *testing.T) {
	r, err := Resolve("", "10", "20", "5")
	require.NoError(t, err)
	assert.Equal(t, Resolved{MinID: "10", MaxID: "20", SinceID: "5"}, r)
}

func TestResolve_LinkCursorTakesPriorityOverExplicitBounds(t *testing.T) {
	cursor := FromLinkURL("https://example.social/api/v1/timelines/public?max_id=9")
	r, err := Resolve(cursor, "10", "20", "5")
	require.NoError(t, err)
	assert.Equal(t, "https://example.social/api/v1/timelines/public?max_id=9", r.DirectURL)
}

func TestResolve_ParamsCursorYieldsMinMax(t *testing.T) {
	cursor := FromMastodonBounds("100", "", true)
	r, err := Resolve(cursor, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "100", r.MaxID)
}

func TestResolve_InvalidCursorErrors(t *testing.T) {
	_, err := Resolve("garbage!!", "", "", "")
	assert.Error(t, err)
}

func TestNextCursor_PrefersLinkHeader(t *testing.T) {
	next := NextCursor("https://example.social/next", "1", "100")
	c, err := Decode(next)
	require.NoError(t, err)
	assert.Equal(t, SchemeMastodonLink, c.Scheme)
}

func TestNextCursor_FallsBackToSynthesizedBounds(t *testing.T) {
	next := NextCursor("", "1", "100")
	c, err := Decode(next)
	require.NoError(t, err)
	assert.Equal(t, SchemeMastodonParams, c.Scheme)
	assert.Equal(t, "1", c.MaxID)
}

func TestNextCursor_EmptyWhenNoItems(t *testing.T) {
	assert.Equal(t, "", NextCursor("", "", ""))
}
