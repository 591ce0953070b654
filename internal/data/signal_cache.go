package data

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"Switchyard/internal/conf"
	"Switchyard/internal/model"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultSignalCacheSize = 1024
	defaultSignalCacheTTL  = 60 * time.Second
	signalKeySep           = "|"
)

type signalEntry struct {
	signals   model.ProviderSignals
	expiresAt time.Time
}

// SignalCache holds provider health and metrics snapshots keyed by provider
// and period. Expired entries stay readable as stale snapshots until the LRU
// evicts them. Concurrent Sets for one key resolve last-writer-wins.
type SignalCache struct {
	entries *lru.Cache[string, signalEntry]
	ttl     time.Duration
	size    int
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewSignalCache creates a cache sized and timed from the selector config.
func NewSignalCache(c *conf.Selector) (*SignalCache, error) {
	size, ttl := defaultSignalCacheSize, defaultSignalCacheTTL
	if c != nil {
		if c.CacheSize > 0 {
			size = c.CacheSize
		}
		if c.CacheTTL > 0 {
			ttl = c.CacheTTL
		}
	}

	entries, err := lru.New[string, signalEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create signal cache: %w", err)
	}

	return &SignalCache{
		entries: entries,
		ttl:     ttl,
		size:    size,
		now:     time.Now,
	}, nil
}

func signalKey(providerID string, period model.MetricsPeriod) string {
	return providerID + signalKeySep + string(period)
}

// Get returns a copy of the cached signals and whether they are still fresh.
// A nil result means nothing is cached.
func (c *SignalCache) Get(providerID string, period model.MetricsPeriod) (*model.ProviderSignals, bool) {
	entry, ok := c.entries.Get(signalKey(providerID, period))
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	fresh := c.now().Before(entry.expiresAt)
	if fresh {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}

	signals := entry.signals
	return &signals, fresh
}

// Set stores signals with a fresh expiry.
func (c *SignalCache) Set(providerID string, period model.MetricsPeriod, signals model.ProviderSignals) {
	c.entries.Add(signalKey(providerID, period), signalEntry{
		signals:   signals,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Remove drops every period cached for providerID.
func (c *SignalCache) Remove(providerID string) {
	prefix := providerID + signalKeySep
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Remove(key)
		}
	}
}

// TTL returns the freshness window.
func (c *SignalCache) TTL() time.Duration {
	return c.ttl
}

// Stats returns the current size, capacity, fresh hits and misses (stale reads count as misses).
func (c *SignalCache) Stats() (size, capacity, hits, misses int64) {
	return int64(c.entries.Len()), int64(c.size), c.hits.Load(), c.misses.Load()
}
