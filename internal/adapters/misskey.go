package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/model"
	"github.com/klistr-labs/fedgatewayd/internal/outbound"
)

// misskeyAdapter projects Misskey's /api/meta onto the Instance model. See
// SPEC_FULL.md §4.6.4. Misskey's meta endpoint is a POST with an empty JSON
// body — the one quirk in the selection chain.
type misskeyAdapter struct {
	client *outbound.Client
}

// NewMisskey builds the Misskey Capabilities record.
func NewMisskey(client *outbound.Client) Capabilities {
	a := &misskeyAdapter{client: client}
	return Capabilities{
		Family:        model.SoftwareMisskey,
		FetchInstance: a.fetchInstance,
	}
}

type misskeyMeta struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	Version           string `json:"version"`
	DisableRegistration bool `json:"disableRegistration"`
}

func (a *misskeyAdapter) fetchInstance(ctx context.Context, caller, host string) (*model.Instance, error) {
	u := fmt.Sprintf("https://%s/api/meta", host)
	result, err := a.client.Do(ctx, caller, httpfetch.Request{
		Method: "POST",
		URL:    u,
		Accept: "application/json",
		Body:   bytes.NewReader([]byte("{}")),
		Headers: map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		return nil, err
	}
	if result.Classification != httpfetch.ClassOk {
		return nil, &model.ClientError{URL: u, Status: result.Status}
	}
	var meta misskeyMeta
	if err := json.Unmarshal(result.Body, &meta); err != nil {
		return nil, fmt.Errorf("decode misskey meta %s: %w", u, err)
	}
	return &model.Instance{
		Domain:           host,
		Software:         model.SoftwareMisskey,
		Version:          meta.Version,
		Description:      meta.Description,
		RegistrationOpen: !meta.DisableRegistration,
		FetchedAt:        time.Now(),
	}, nil
}
