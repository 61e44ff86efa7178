package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a size-bounded in-memory Store. When total value size
// exceeds the bound, soonest-to-expire entries are evicted first.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]Entry
	total    int64
	maxBytes int64
}

// NewMemoryStore creates a memory store. maxBytes <= 0 means unbounded.
func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]Entry),
		maxBytes: maxBytes,
	}
}

func entryKey(namespace, key string) string {
	return namespace + "\x00" + key
}

func (s *MemoryStore) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := entryKey(namespace, key)
	entry, ok := s.entries[k]
	if !ok {
		return nil, false, nil
	}
	if entry.Expired(time.Now()) {
		s.remove(k)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := entryKey(namespace, key)
	if old, ok := s.entries[k]; ok {
		s.total -= int64(len(old.Value))
	}
	s.entries[k] = Entry{
		Namespace: namespace,
		Key:       key,
		Value:     value,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}
	s.total += int64(len(value))
	s.evictOverflow()
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(entryKey(namespace, key))
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Len returns the current entry count.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// remove deletes an entry and adjusts the size total. Caller holds mu.
func (s *MemoryStore) remove(k string) {
	if entry, ok := s.entries[k]; ok {
		s.total -= int64(len(entry.Value))
		delete(s.entries, k)
	}
}

// evictOverflow drops soonest-to-expire entries until the store fits
// its size bound. Caller holds mu.
func (s *MemoryStore) evictOverflow() {
	if s.maxBytes <= 0 || s.total <= s.maxBytes {
		return
	}

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return s.entries[keys[i]].ExpiresAt().Before(s.entries[keys[j]].ExpiresAt())
	})

	for _, k := range keys {
		if s.total <= s.maxBytes {
			break
		}
		s.remove(k)
	}
}
