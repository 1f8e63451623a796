// Package audit implements the bounded in-memory audit ring buffer
// (SPEC_FULL.md §3 AuditRecord) and the credential-redaction policy
// (§4.2.2) applied before any parameter snapshot is stored.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/klistr-labs/fedgatewayd/internal/model"
)

// Ring is a bounded, concurrency-safe ring buffer of AuditRecord. Oldest
// entries are evicted on push once capacity is reached. Safe for
// concurrent producers.
type Ring struct {
	mu       sync.Mutex
	entries  []model.AuditRecord
	capacity int
	enabled  bool
}

// NewRing creates a Ring with the given capacity. capacity <= 0 disables
// recording entirely (Push becomes a no-op), matching AUDIT_LOG_ENABLED=false.
func NewRing(capacity int) *Ring {
	return &Ring{capacity: capacity, enabled: capacity > 0}
}

// Push appends a record, redacting its Params first, evicting the oldest
// entry if the ring is at capacity.
func (r *Ring) Push(kind model.AuditEventKind, principal, subject, outcome string, duration time.Duration, params map[string]any) model.AuditRecord {
	rec := model.AuditRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Kind:      kind,
		Principal: principal,
		Subject:   subject,
		Outcome:   outcome,
		Duration:  duration,
		Params:    Redact(params),
	}
	if !r.enabled {
		return rec
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, rec)
	if len(r.entries) > r.capacity {
		r.entries = r.entries[len(r.entries)-r.capacity:]
	}
	return rec
}

// Snapshot returns a copy of all currently-retained records, oldest first.
func (r *Ring) Snapshot() []model.AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AuditRecord, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of retained records.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
