package safety

import (
	"strings"
	"sync"
	"time"

	"github.com/klistr-labs/fedgatewayd/internal/model"
)

// Blocklist holds InstanceBlock entries and answers match queries.
// See SPEC_FULL.md §4.2.1.
type Blocklist struct {
	mu      sync.RWMutex
	entries map[string]*model.InstanceBlock // keyed by normalized pattern
	enabled bool
}

// NewBlocklist creates a Blocklist seeded from the given patterns (loaded
// from BLOCKED_INSTANCES at startup), all tagged with BlockReasonPolicy.
func NewBlocklist(enabled bool, patterns []string) *Blocklist {
	bl := &Blocklist{entries: make(map[string]*model.InstanceBlock), enabled: enabled}
	now := time.Now()
	for _, p := range patterns {
		norm := normalize(p)
		bl.entries[norm] = &model.InstanceBlock{
			Pattern: norm,
			Reason:  model.BlockReasonPolicy,
			AddedAt: now,
		}
	}
	return bl
}

// Add inserts or replaces a blocklist entry.
func (bl *Blocklist) Add(entry model.InstanceBlock) {
	entry.Pattern = normalize(entry.Pattern)
	bl.mu.Lock()
	defer bl.mu.Unlock()
	bl.entries[entry.Pattern] = &entry
}

// Remove deletes the entry for pattern, if present.
func (bl *Blocklist) Remove(pattern string) {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	delete(bl.entries, normalize(pattern))
}

// List returns a snapshot of all entries, including expired ones (deletion
// is operator-driven, not automatic).
func (bl *Blocklist) List() []model.InstanceBlock {
	bl.mu.RLock()
	defer bl.mu.RUnlock()
	out := make([]model.InstanceBlock, 0, len(bl.entries))
	for _, e := range bl.entries {
		out = append(out, *e)
	}
	return out
}

// Match reports whether host matches an in-effect blocklist entry, and if
// so returns its reason. An entry with a past ExpiresAt is treated as
// absent but not auto-deleted.
func (bl *Blocklist) Match(host string) (matched bool, reason model.BlockReason) {
	if !bl.enabled {
		return false, ""
	}
	normHost := normalize(host)
	now := time.Now()

	bl.mu.RLock()
	defer bl.mu.RUnlock()

	// Exact match.
	if e, ok := bl.entries[normHost]; ok && e.InEffect(now) {
		return true, e.Reason
	}

	// Wildcard "*.suffix" match: normHost == suffix or ends with "."+suffix.
	for pattern, e := range bl.entries {
		suffix, isWildcard := strings.CutPrefix(pattern, "*.")
		if !isWildcard {
			continue
		}
		if !e.InEffect(now) {
			continue
		}
		if normHost == suffix || strings.HasSuffix(normHost, "."+suffix) {
			return true, e.Reason
		}
	}
	return false, ""
}

// IsBlocked is a convenience wrapper over Match used by round-trip tests.
func (bl *Blocklist) IsBlocked(host string) bool {
	matched, _ := bl.Match(host)
	return matched
}

// normalize lowercases and trims a host or pattern for case-insensitive
// comparison.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
