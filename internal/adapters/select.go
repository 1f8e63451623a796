package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/klistr-labs/fedgatewayd/internal/cache"
	"github.com/klistr-labs/fedgatewayd/internal/model"
)

// negativeInstanceEntry marks a host whose instance-info fetch recently
// failed against every adapter in the chain, so repeat calls within the TTL
// skip straight to failure instead of re-probing a dead host four times.
type negativeInstanceEntry struct {
	FailedAt time.Time
}

// Selector tries the Mastodon-API → NodeInfo → Misskey → Lemmy chain in
// order and returns the first success, per SPEC_FULL.md §4.6 selection
// rule. It also caches successful instance-info lookups and applies the 60s
// negative cache to failed hosts.
type Selector struct {
	chain       []Capabilities
	instanceTTL time.Duration
	negativeTTL time.Duration
	cache       *cache.Store
}

// NewSelector builds the fixed four-adapter chain.
func NewSelector(mastodon, nodeinfo, misskey, lemmy Capabilities, instanceCache *cache.Store, instanceTTL, negativeTTL time.Duration) *Selector {
	return &Selector{
		chain:       []Capabilities{mastodon, nodeinfo, misskey, lemmy},
		instanceTTL: instanceTTL,
		negativeTTL: negativeTTL,
		cache:       instanceCache,
	}
}

// FetchInstance returns the host's normalized Instance, trying each adapter
// in chain order and caching both the success and (briefly) the failure.
func (s *Selector) FetchInstance(ctx context.Context, caller, host string) (*model.Instance, error) {
	var cached model.Instance
	if ok, _ := s.cache.Get(instanceCacheKey(host), &cached); ok {
		return &cached, nil
	}
	var neg negativeInstanceEntry
	if ok, _ := s.cache.Get(negativeCacheKey(host), &neg); ok {
		return nil, &model.ActorUnavailableError{Identifier: host, Status: 0}
	}

	var lastErr error
	for _, adapter := range s.chain {
		if adapter.FetchInstance == nil {
			continue
		}
		inst, err := adapter.FetchInstance(ctx, caller, host)
		if err != nil {
			lastErr = err
			continue
		}
		_ = s.cache.Set(instanceCacheKey(host), *inst, s.instanceTTL)
		return inst, nil
	}

	if s.negativeTTL > 0 {
		_ = s.cache.Set(negativeCacheKey(host), negativeInstanceEntry{FailedAt: time.Now()}, s.negativeTTL)
	}
	if lastErr == nil {
		lastErr = errors.New("no adapter in selection chain could fetch instance info")
	}
	return nil, lastErr
}

func instanceCacheKey(host string) string { return "instance:" + host }
func negativeCacheKey(host string) string { return "instance-neg:" + host }
