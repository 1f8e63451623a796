// Package pagination implements the Pagination Engine (L7): an opaque
// Cursor abstraction unifying the three wire pagination schemes fediverse
// servers use. See SPEC_FULL.md §4.5.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Scheme tags which wire pagination mechanism produced a Cursor.
type Scheme string

const (
	SchemeActivityPubCollection Scheme = "ap-collection"
	SchemeMastodonLink          Scheme = "mastodon-link"
	SchemeMastodonParams        Scheme = "mastodon-params"
)

// cursorVersion lets a future scheme addition change Cursor's shape without
// breaking already-issued cursors from older builds.
const cursorVersion = 1

// Cursor is the engine-private pagination state. Callers receive only its
// opaque Encode() form; only Decode (internal to this package and its
// callers within the engine) interprets the contents.
type Cursor struct {
	V       int    `json:"v"`
	Scheme  Scheme `json:"scheme"`
	URL     string `json:"url,omitempty"`
	MinID   string `json:"minId,omitempty"`
	MaxID   string `json:"maxId,omitempty"`
	SinceID string `json:"sinceId,omitempty"`
}

// Encode marshals a Cursor into an opaque base64url string.
func Encode(c Cursor) string {
	c.V = cursorVersion
	data, err := json.Marshal(c)
	if err != nil {
		// Cursor has no unsupported field types; a marshal failure here
		// would be a programmer error, not a runtime condition.
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode parses an opaque cursor string produced by Encode.
func Decode(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, fmt.Errorf("empty cursor")
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}
	return c, nil
}

// FromLinkURL builds an opaque next/prev cursor from a verbatim Mastodon
// Link-header URL.
func FromLinkURL(url string) string {
	if url == "" {
		return ""
	}
	return Encode(Cursor{Scheme: SchemeMastodonLink, URL: url})
}

// FromCollectionNext builds an opaque cursor from an ActivityStreams
// Collection's "next" field (string URL or object.id, already resolved to a
// string by the caller).
func FromCollectionNext(next string) string {
	if next == "" {
		return ""
	}
	return Encode(Cursor{Scheme: SchemeActivityPubCollection, URL: next})
}

// FromMastodonBounds synthesizes a cursor from the smallest/largest item id
// in a Mastodon-API array response that carried no Link header, per
// SPEC_FULL.md §4.5's third wire scheme. older carries maxId=minItemId;
// newer carries minId=maxItemId.
func FromMastodonBounds(minItemID, maxItemID string, older bool) string {
	c := Cursor{Scheme: SchemeMastodonParams}
	if older {
		c.MaxID = minItemID
	} else {
		c.MinID = maxItemID
	}
	return Encode(c)
}
