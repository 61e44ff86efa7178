// Package cache provides a namespaced, TTL-bounded key/value store
// shared by all pipeline stages. Backends: in-memory, file (survives
// restarts), and Redis (shared across runners).
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Well-known namespaces with independent default TTLs.
const (
	NamespaceGenes     = "genes"
	NamespaceSequences = "sequences"
	NamespaceConsensus = "consensus"
	NamespaceProteins  = "proteins"
)

// Entry is a single cached value with its expiry metadata.
type Entry struct {
	Namespace string        `json:"namespace"`
	Key       string        `json:"key"`
	Value     []byte        `json:"value"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry is past its TTL at the given time.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.CreatedAt.Add(e.TTL))
}

// ExpiresAt returns the entry's expiry instant.
func (e Entry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// Store is the backend contract. Implementations purge expired entries
// lazily on read and must be safe for concurrent use. Concurrent Set
// to the same key is last-write-wins.
type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, namespace, key string) error
	Close() error
}

// Stats holds hit/miss counters for one cache instance.
type Stats struct {
	Hits   int64
	Misses int64
}

// HitRate returns hits / (hits + misses), or 0 with no traffic.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache wraps a Store with per-namespace default TTLs and hit/miss
// accounting. Shared by reference across all workers.
type Cache struct {
	store      Store
	ttls       map[string]time.Duration
	defaultTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache over the given store. ttls maps namespace to its
// default TTL; namespaces not listed use defaultTTL.
func New(store Store, ttls map[string]time.Duration, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &Cache{store: store, ttls: ttls, defaultTTL: defaultTTL}
}

// Get returns the cached value, or ok=false on miss or expiry.
func (c *Cache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	value, ok, err := c.store.Get(ctx, namespace, key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return value, ok, nil
}

// Set stores a value using the namespace's default TTL.
func (c *Cache) Set(ctx context.Context, namespace, key string, value []byte) error {
	return c.SetTTL(ctx, namespace, key, value, 0)
}

// SetTTL stores a value with an explicit TTL; ttl <= 0 falls back to
// the namespace default.
func (c *Cache) SetTTL(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		if nsTTL, ok := c.ttls[namespace]; ok {
			ttl = nsTTL
		} else {
			ttl = c.defaultTTL
		}
	}
	return c.store.Set(ctx, namespace, key, value, ttl)
}

// Invalidate removes an entry.
func (c *Cache) Invalidate(ctx context.Context, namespace, key string) error {
	return c.store.Invalidate(ctx, namespace, key)
}

// GetJSON unmarshals a cached value into out. ok=false on miss.
func (c *Cache) GetJSON(ctx context.Context, namespace, key string, out any) (bool, error) {
	data, ok, err := c.Get(ctx, namespace, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		// A corrupt entry reads as a miss and is dropped.
		_ = c.Invalidate(ctx, namespace, key)
		return false, nil
	}
	return true, nil
}

// SetJSON marshals value and stores it with the namespace default TTL.
func (c *Cache) SetJSON(ctx context.Context, namespace, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.Set(ctx, namespace, key, data)
}

// Stats returns a snapshot of the hit/miss counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.store.Close()
}
