package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrips(t *testing.T) {
	c := Cursor{Scheme: SchemeMastodonLink, URL: "https://mastodon.social/api/v1/timelines/public?max_id=42"}
	encoded := Encode(c)
	assert.NotEmpty(t, encoded)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, c.Scheme, decoded.Scheme)
	assert.Equal(t, c.URL, decoded.URL)
	assert.Equal(t, cursorVersion, decoded.V)
}

func TestDecode_RejectsEmptyAndGarbage(t *testing.T) {
	_, err := Decode("")
	assert.Error(t, err)

	_, err = Decode("not-valid-base64!!!")
	assert.Error(t, err)
}

func TestFromLinkURL_EmptyURLYieldsEmptyCursor(t *testing.T) {
	assert.Equal(t, "", FromLinkURL(""))
}

func TestFromMastodonBounds_OlderSetsMaxID(t *testing.T) {
	encoded := FromMastodonBounds("100", "200", true)
	c, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "100", c.MaxID)
	assert.Empty(t, c.MinID)
}

func TestFromMastodonBounds_NewerSetsMinID(t *testing.T) {
	encoded := FromMastodonBounds("100", "200", false)
	c, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "200", c.MinID)
	assert.Empty(t, c.MaxID)
}
