package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/model"
	"github.com/klistr-labs/fedgatewayd/internal/outbound"
)

// apAcceptHeader is the Accept header the fallback/authority adapter
// negotiates with, per §4.6.2.
const apAcceptHeader = `application/activity+json, application/ld+json; profile="https://www.w3.org/ns/activitystreams"`

// activityPubAdapter is the fallback adapter for cross-family object
// fetches (notes, articles, collections) and the authority for actor
// resolution (the Actor Resolver does not call this adapter: it performs
// its own actor fetch, since §4.4 is its own algorithm — this adapter
// dereferences an arbitrary AP object URL, e.g. following a reply chain
// across instances). Grounded on klistr ap/client.go FetchObject.
type activityPubAdapter struct {
	client *outbound.Client
}

// NewActivityPub builds the ActivityPub/ActivityStreams Capabilities record.
func NewActivityPub(client *outbound.Client) Capabilities {
	a := &activityPubAdapter{client: client}
	return Capabilities{
		Family:      model.SoftwareUnknown,
		FetchObject: a.fetchObject,
	}
}

func (a *activityPubAdapter) fetchObject(ctx context.Context, caller, objectURL string) (map[string]any, error) {
	result, err := a.client.Do(ctx, caller, httpfetch.Request{
		Method: "GET",
		URL:    objectURL,
		Accept: apAcceptHeader,
	})
	if err != nil {
		return nil, err
	}
	switch result.Classification {
	case httpfetch.ClassOk:
	case httpfetch.ClassClientError:
		return nil, &model.ClientError{URL: objectURL, Status: result.Status}
	case httpfetch.ClassServerError:
		return nil, &model.ServerError{URL: objectURL, Status: result.Status}
	default:
		return nil, &model.ClientError{URL: objectURL, Status: result.Status}
	}

	var obj map[string]any
	if err := json.Unmarshal(result.Body, &obj); err != nil {
		return nil, fmt.Errorf("decode ap object %s: %w", objectURL, err)
	}
	return obj, nil
}

// CollectionPage is the normalized projection of an ActivityStreams
// Collection/OrderedCollection/CollectionPage/OrderedCollectionPage. The
// Pagination Engine does not use it; its ActivityPub wire scheme
// (pagination.FromCollectionNext) works from the "next" URL alone.
type CollectionPage struct {
	Type       string
	Items      []map[string]any
	Next       string
	TotalItems *int
}

// ParseCollection extracts a CollectionPage from a decoded AP object. It
// recognizes "orderedItems" (OrderedCollection[Page]) and "items"
// (Collection[Page]), and a "next" field that may be a bare string or an
// object carrying "id".
func ParseCollection(obj map[string]any) (*CollectionPage, bool) {
	t, _ := obj["type"].(string)
	switch t {
	case "Collection", "OrderedCollection", "CollectionPage", "OrderedCollectionPage":
	default:
		return nil, false
	}
	page := &CollectionPage{Type: t}
	items, ok := obj["orderedItems"].([]any)
	if !ok {
		items, _ = obj["items"].([]any)
	}
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			page.Items = append(page.Items, m)
		}
	}
	switch next := obj["next"].(type) {
	case string:
		page.Next = next
	case map[string]any:
		if id, ok := next["id"].(string); ok {
			page.Next = id
		}
	}
	if ti, ok := obj["totalItems"].(float64); ok {
		n := int(ti)
		page.TotalItems = &n
	}
	return page, true
}
