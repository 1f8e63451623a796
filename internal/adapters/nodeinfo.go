package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/model"
	"github.com/klistr-labs/fedgatewayd/internal/outbound"
)

// nodeInfoAdapter discovers instance metadata via the NodeInfo discovery
// document, used when the Mastodon-API adapter is unavailable. See
// SPEC_FULL.md §4.6.3.
type nodeInfoAdapter struct {
	client *outbound.Client
}

// NewNodeInfo builds the NodeInfo Capabilities record.
func NewNodeInfo(client *outbound.Client) Capabilities {
	a := &nodeInfoAdapter{client: client}
	return Capabilities{
		Family:        model.SoftwareUnknown,
		FetchInstance: a.fetchInstance,
	}
}

type wellKnownNodeInfo struct {
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

type nodeInfoDoc struct {
	Software struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"software"`
	Usage struct {
		Users struct {
			Total int `json:"total"`
		} `json:"users"`
	} `json:"usage"`
	Metadata struct {
		NodeName        string `json:"nodeName"`
		NodeDescription string `json:"nodeDescription"`
	} `json:"metadata"`
	OpenRegistrations bool `json:"openRegistrations"`
}

func (a *nodeInfoAdapter) fetchInstance(ctx context.Context, caller, host string) (*model.Instance, error) {
	doc, err := a.fetchDoc(ctx, caller, host)
	if err != nil {
		return nil, err
	}
	return &model.Instance{
		Domain:           host,
		Software:         classifyNodeInfoFamily(doc.Software.Name),
		Version:          doc.Software.Version,
		Description:      doc.Metadata.NodeDescription,
		UserCount:        doc.Usage.Users.Total,
		RegistrationOpen: doc.OpenRegistrations,
		FetchedAt:        time.Now(),
	}, nil
}

// fetchDoc discovers and fetches the NodeInfo document. Its only caller is
// fetchInstance; the Mastodon-API adapter does not consult it.
func (a *nodeInfoAdapter) fetchDoc(ctx context.Context, caller, host string) (*nodeInfoDoc, error) {
	wk := fmt.Sprintf("https://%s/.well-known/nodeinfo", host)
	result, err := a.client.Do(ctx, caller, httpfetch.Request{Method: "GET", URL: wk, Accept: "application/json"})
	if err != nil {
		return nil, err
	}
	if result.Classification != httpfetch.ClassOk {
		return nil, &model.ClientError{URL: wk, Status: result.Status}
	}
	var discovery wellKnownNodeInfo
	if err := json.Unmarshal(result.Body, &discovery); err != nil {
		return nil, fmt.Errorf("decode nodeinfo discovery %s: %w", wk, err)
	}

	docURL := selectNodeInfoLink(discovery)
	if docURL == "" {
		return nil, &model.ActorNotDiscoverableError{Identifier: host}
	}

	docResult, err := a.client.Do(ctx, caller, httpfetch.Request{Method: "GET", URL: docURL, Accept: "application/json"})
	if err != nil {
		return nil, err
	}
	if docResult.Classification != httpfetch.ClassOk {
		return nil, &model.ClientError{URL: docURL, Status: docResult.Status}
	}
	var doc nodeInfoDoc
	if err := json.Unmarshal(docResult.Body, &doc); err != nil {
		return nil, fmt.Errorf("decode nodeinfo document %s: %w", docURL, err)
	}
	return &doc, nil
}

// selectNodeInfoLink prefers 2.1, falling back to 2.0, matching on the rel
// suffix rather than an exact string to tolerate minor schema URL drift.
func selectNodeInfoLink(discovery wellKnownNodeInfo) string {
	var v20 string
	for _, l := range discovery.Links {
		switch {
		case strings.HasSuffix(l.Rel, "/schema/2.1"):
			return l.Href
		case strings.HasSuffix(l.Rel, "/schema/2.0"):
			v20 = l.Href
		}
	}
	return v20
}

func classifyNodeInfoFamily(name string) model.SoftwareFamily {
	switch name {
	case "mastodon":
		return model.SoftwareMastodon
	case "pleroma":
		return model.SoftwarePleroma
	case "akkoma":
		return model.SoftwareAkkoma
	case "pixelfed":
		return model.SoftwarePixelfed
	case "misskey":
		return model.SoftwareMisskey
	case "lemmy":
		return model.SoftwareLemmy
	case "peertube":
		return model.SoftwarePeerTube
	default:
		return model.SoftwareUnknown
	}
}
