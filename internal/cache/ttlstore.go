// Package cache wraps tidwall/buntdb in pure in-memory mode to give every
// TTL-bounded table in the engine (actor cache, WebFinger JRD cache,
// instance-info cache, adaptive rate-limit state) a single, tested
// implementation instead of a hand-rolled sync.Map + sweeper per consumer.
// Opening buntdb with ":memory:" never touches disk, which satisfies the
// "no persistent storage of content" Non-goal while still giving read-through
// TTL semantics via a real library instead of stdlib-only bookkeeping.
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
)

// Store is a TTL-bounded in-memory key/value cache. Values are JSON-encoded
// on write and decoded into the caller-provided pointer on read.
type Store struct {
	db *buntdb.DB
}

// Open creates a new in-memory TTL store. The returned Store owns no disk
// resources; Close is a no-op safety net, not a flush.
func Open() (*Store, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying buntdb handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Set stores value under key with the given TTL. A zero or negative ttl
// means "no expiry".
func (s *Store) Set(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	opts := &buntdb.SetOptions{}
	if ttl > 0 {
		opts.Expires = true
		opts.TTL = ttl
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(data), opts)
		return err
	})
}

// Get reads key into dst. Returns (false, nil) on a cache miss (including
// TTL-expired entries, which buntdb evicts lazily on read), and a non-nil
// error only for a genuine decode failure.
func (s *Store) Get(key string, dst any) (bool, error) {
	var raw string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Delete removes key, if present.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if err != nil && err != buntdb.ErrNotFound {
			return err
		}
		return nil
	})
}
