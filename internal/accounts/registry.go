// Package accounts implements the Account Registry (L8): loading operator
// credentials from configuration, multi-account selection, and token
// injection at request-prep time. See SPEC_FULL.md §4.7.
package accounts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/klistr-labs/fedgatewayd/internal/model"
)

// Registry holds operator-configured accounts in process memory only —
// never persisted, per the Account invariant in spec §3. Grounded on
// klistr's showSourceLink/autoAcceptFollows atomic.Bool live-toggle
// pattern, generalized from a bool to an account id pointer.
type Registry struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
	active   atomic.Pointer[string]
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{accounts: make(map[string]model.Account)}
}

// LoadSingle registers one account from the single-account env shape
// (DEFAULT_INSTANCE/DEFAULT_TOKEN/DEFAULT_USERNAME) as "default", and makes
// it active.
func (r *Registry) LoadSingle(instance, token, username string) {
	if instance == "" || token == "" {
		return
	}
	r.mu.Lock()
	r.accounts["default"] = model.Account{ID: "default", Instance: instance, Token: token, Username: username}
	r.mu.Unlock()
	id := "default"
	r.active.Store(&id)
}

// LoadMulti parses the ACTIVITYPUB_ACCOUNTS multi-account string: comma-
// separated records of "id:instance:token:username", username optional.
// Grounded on klistr's parseRelays comma/colon split style.
func (r *Registry) LoadMulti(raw string) error {
	if raw == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range strings.Split(raw, ",") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		parts := strings.SplitN(record, ":", 4)
		if len(parts) < 3 {
			return fmt.Errorf("malformed account record %q: expected id:instance:token[:username]", record)
		}
		acc := model.Account{ID: parts[0], Instance: parts[1], Token: parts[2]}
		if len(parts) == 4 {
			acc.Username = parts[3]
		}
		r.accounts[acc.ID] = acc
	}
	return nil
}

// ListAccounts returns a snapshot of all registered accounts, tokens
// included — callers displaying this list are responsible for redaction
// (the audit ring redacts separately; this is the programmatic surface).
func (r *Registry) ListAccounts() []model.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		out = append(out, acc)
	}
	return out
}

// GetActive returns the currently active account, if any.
func (r *Registry) GetActive() (model.Account, bool) {
	id := r.active.Load()
	if id == nil {
		return model.Account{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[*id]
	return acc, ok
}

// SetActive switches the active account. Returns an error if id is
// unregistered.
func (r *Registry) SetActive(id string) error {
	r.mu.RLock()
	_, ok := r.accounts[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("account %q is not registered", id)
	}
	r.active.Store(&id)
	return nil
}

// Resolve returns the account to use for an authenticated operation:
// accountID if non-empty, else the active account. Fails WriteNotEnabled
// if neither is available.
func (r *Registry) Resolve(accountID string) (model.Account, error) {
	if accountID != "" {
		r.mu.RLock()
		acc, ok := r.accounts[accountID]
		r.mu.RUnlock()
		if !ok {
			return model.Account{}, &model.WriteNotEnabledError{}
		}
		return acc, nil
	}
	acc, ok := r.GetActive()
	if !ok {
		return model.Account{}, &model.WriteNotEnabledError{}
	}
	return acc, nil
}

// VerifyFn is the shape of a Mastodon-API adapter's VerifyCredentials
// capability — Verify delegates the actual endpoint call to it so request
// construction lives in one place (the adapter), while the Registry's job
// stays limited to account lookup and error re-tagging with the account id.
type VerifyFn func(ctx context.Context, caller, host, token string) (*model.Actor, error)

// Verify resolves acc and calls verify against its instance with its bearer
// token, per §4.7 — GET /api/v1/accounts/verify_credentials. The token is
// supplied here, at the exact moment the request is prepared, and never
// stored anywhere else in the engine.
func (r *Registry) Verify(ctx context.Context, caller string, acc model.Account, verify VerifyFn) (*model.Actor, error) {
	actor, err := verify(ctx, caller, acc.Instance, acc.Token)
	if err != nil {
		var invalid *model.InvalidCredentialsError
		if asInvalidCredentials(err, &invalid) {
			return nil, &model.InvalidCredentialsError{AccountID: acc.ID}
		}
		var failed *model.VerifyFailedError
		if asVerifyFailed(err, &failed) {
			return nil, &model.VerifyFailedError{AccountID: acc.ID, Status: failed.Status}
		}
		return nil, err
	}
	return actor, nil
}

func asInvalidCredentials(err error, target **model.InvalidCredentialsError) bool {
	e, ok := err.(*model.InvalidCredentialsError)
	if !ok {
		return false
	}
	*target = e
	return true
}

func asVerifyFailed(err error, target **model.VerifyFailedError) bool {
	e, ok := err.(*model.VerifyFailedError)
	if !ok {
		return false
	}
	*target = e
	return true
}
