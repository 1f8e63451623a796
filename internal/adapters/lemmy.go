package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/model"
	"github.com/klistr-labs/fedgatewayd/internal/outbound"
)

// lemmyAdapter projects Lemmy's /api/v3/site onto the Instance model. See
// SPEC_FULL.md §4.6.5.
type lemmyAdapter struct {
	client *outbound.Client
}

// NewLemmy builds the Lemmy Capabilities record.
func NewLemmy(client *outbound.Client) Capabilities {
	a := &lemmyAdapter{client: client}
	return Capabilities{
		Family:        model.SoftwareLemmy,
		FetchInstance: a.fetchInstance,
	}
}

type lemmySite struct {
	SiteView struct {
		Site struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"site"`
		Counts struct {
			Users int `json:"users"`
			Posts int `json:"posts"`
		} `json:"counts"`
	} `json:"site_view"`
	Version         string `json:"version"`
	DiscussionLanguages []int `json:"discussion_languages"`
}

func (a *lemmyAdapter) fetchInstance(ctx context.Context, caller, host string) (*model.Instance, error) {
	u := fmt.Sprintf("https://%s/api/v3/site", host)
	result, err := a.client.Do(ctx, caller, httpfetch.Request{Method: "GET", URL: u, Accept: "application/json"})
	if err != nil {
		return nil, err
	}
	if result.Classification != httpfetch.ClassOk {
		return nil, &model.ClientError{URL: u, Status: result.Status}
	}
	var site lemmySite
	if err := json.Unmarshal(result.Body, &site); err != nil {
		return nil, fmt.Errorf("decode lemmy site %s: %w", u, err)
	}
	return &model.Instance{
		Domain:      host,
		Software:    model.SoftwareLemmy,
		Version:     site.Version,
		Description: site.SiteView.Site.Description,
		UserCount:   site.SiteView.Counts.Users,
		PostCount:   site.SiteView.Counts.Posts,
		FetchedAt:   time.Now(),
	}, nil
}
