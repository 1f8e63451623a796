package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/klistr-labs/fedgatewayd/internal/model"
)

func TestBlocklist_ExactAndWildcardMatch(t *testing.T) {
	bl := NewBlocklist(true, []string{"bad.example", "*.spam.example"})

	matched, reason := bl.Match("BAD.example")
	assert.True(t, matched)
	assert.Equal(t, model.BlockReasonPolicy, reason)

	matched, _ = bl.Match("sub.spam.example")
	assert.True(t, matched)

	matched, _ = bl.Match("spam.example")
	assert.True(t, matched)

	matched, _ = bl.Match("good.example")
	assert.False(t, matched)
}

func TestBlocklist_DisabledNeverMatches(t *testing.T) {
	bl := NewBlocklist(false, []string{"bad.example"})
	assert.False(t, bl.IsBlocked("bad.example"))
}

func TestBlocklist_ExpiredEntryNotInEffect(t *testing.T) {
	bl := NewBlocklist(true, nil)
	past := time.Now().Add(-time.Hour)
	bl.Add(model.InstanceBlock{Pattern: "temp.example", Reason: model.BlockReasonUser, ExpiresAt: &past})
	assert.False(t, bl.IsBlocked("temp.example"))
}

func TestBlocklist_RemoveClearsEntry(t *testing.T) {
	bl := NewBlocklist(true, []string{"bad.example"})
	bl.Remove("bad.example")
	assert.False(t, bl.IsBlocked("bad.example"))
}
