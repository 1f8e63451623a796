package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klistr-labs/fedgatewayd/internal/model"
)

func TestLoadSingle_RegistersAndActivatesDefault(t *testing.T) {
	r := New()
	r.LoadSingle("https://mastodon.social", "tok123", "alice")

	acc, ok := r.GetActive()
	require.True(t, ok)
	assert.Equal(t, "default", acc.ID)
	assert.Equal(t, "https://mastodon.social", acc.Instance)
}

func TestLoadSingle_EmptyFieldsNoOp(t *testing.T) {
	r := New()
	r.LoadSingle("", "", "")
	_, ok := r.GetActive()
	assert.False(t, ok)
}

func TestLoadMulti_ParsesRecordsAndRejectsMalformed(t *testing.T) {
	r := New()
	err := r.LoadMulti("a:https://a.social:toka,b:https://b.social:tokb:bob")
	require.NoError(t, err)

	accs := r.ListAccounts()
	assert.Len(t, accs, 2)

	err = r.LoadMulti("malformed-record")
	assert.Error(t, err)
}

func TestSetActive_RejectsUnknownID(t *testing.T) {
	r := New()
	r.LoadSingle("https://mastodon.social", "tok", "")
	assert.Error(t, r.SetActive("nope"))
	assert.NoError(t, r.SetActive("default"))
}

func TestResolve_FallsBackToActiveAccount(t *testing.T) {
	r := New()
	r.LoadSingle("https://mastodon.social", "tok", "")

	acc, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "default", acc.ID)

	_, err = r.Resolve("missing")
	var writeErr *model.WriteNotEnabledError
	assert.ErrorAs(t, err, &writeErr)
}

func TestResolve_NoAccountsConfiguredFails(t *testing.T) {
	r := New()
	_, err := r.Resolve("")
	assert.Error(t, err)
}

func TestVerify_RetagsErrorsWithAccountID(t *testing.T) {
	r := New()
	r.LoadSingle("https://mastodon.social", "bad-token", "")
	acc, _ := r.GetActive()

	failingVerify := func(ctx context.Context, caller, host, token string) (*model.Actor, error) {
		return nil, &model.InvalidCredentialsError{}
	}
	_, err := r.Verify(context.Background(), "caller", acc, failingVerify)
	var invalid *model.InvalidCredentialsError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, acc.ID, invalid.AccountID)
}

func TestVerify_SuccessReturnsActor(t *testing.T) {
	r := New()
	r.LoadSingle("https://mastodon.social", "tok", "")
	acc, _ := r.GetActive()

	okVerify := func(ctx context.Context, caller, host, token string) (*model.Actor, error) {
		return &model.Actor{Acct: "alice@mastodon.social"}, nil
	}
	actor, err := r.Verify(context.Background(), "caller", acc, okVerify)
	require.NoError(t, err)
	assert.Equal(t, "alice@mastodon.social", actor.Acct)
}
