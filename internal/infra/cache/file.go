package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// FileStore persists entries as one JSON file each under a cache
// directory, so resumed batches keep a warm cache across restarts.
// An in-memory index built at open time tracks expiry and size.
type FileStore struct {
	dir      string
	maxBytes int64

	mu    sync.Mutex
	index map[string]fileMeta
	total int64
}

type fileMeta struct {
	path      string
	expiresAt time.Time
	size      int64
}

// NewFileStore opens (creating if needed) a file-backed store rooted
// at dir. maxBytes <= 0 means unbounded.
func NewFileStore(dir string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	s := &FileStore{
		dir:      dir,
		maxBytes: maxBytes,
		index:    make(map[string]fileMeta),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := entryKey(namespace, key)
	meta, ok := s.index[k]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(meta.expiresAt) {
		s.removeLocked(k, meta)
		return nil, false, nil
	}

	data, err := os.ReadFile(meta.path)
	if err != nil {
		// Index points at a missing or unreadable file; drop it.
		s.removeLocked(k, meta)
		return nil, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.removeLocked(k, meta)
		return nil, false, nil
	}
	if entry.Expired(time.Now()) {
		s.removeLocked(k, meta)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (s *FileStore) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	entry := Entry{
		Namespace: namespace,
		Key:       key,
		Value:     value,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	path := s.entryPath(namespace, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create namespace dir: %w", err)
	}

	// Write-temp-then-rename so readers never see a partial entry.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	k := entryKey(namespace, key)
	if old, ok := s.index[k]; ok {
		s.total -= old.size
	}
	s.index[k] = fileMeta{path: path, expiresAt: entry.ExpiresAt(), size: int64(len(data))}
	s.total += int64(len(data))
	s.evictOverflowLocked()
	return nil
}

func (s *FileStore) Invalidate(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entryKey(namespace, key)
	if meta, ok := s.index[k]; ok {
		s.removeLocked(k, meta)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// Len returns the current indexed entry count.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

func (s *FileStore) entryPath(namespace, key string) string {
	sum := xxhash.Sum64String(key)
	return filepath.Join(s.dir, namespace, strconv.FormatUint(sum, 16)+".json")
}

// loadIndex scans the cache dir, indexing live entries and deleting
// anything expired or unparseable.
func (s *FileStore) loadIndex() error {
	now := time.Now()
	return filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".json" {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil || entry.Expired(now) {
			_ = os.Remove(path)
			return nil
		}

		k := entryKey(entry.Namespace, entry.Key)
		s.index[k] = fileMeta{path: path, expiresAt: entry.ExpiresAt(), size: int64(len(data))}
		s.total += int64(len(data))
		return nil
	})
}

// removeLocked drops an entry from disk and index. Caller holds mu.
func (s *FileStore) removeLocked(k string, meta fileMeta) {
	_ = os.Remove(meta.path)
	s.total -= meta.size
	delete(s.index, k)
}

// evictOverflowLocked drops soonest-to-expire entries until the store
// fits its size bound. Caller holds mu.
func (s *FileStore) evictOverflowLocked() {
	if s.maxBytes <= 0 || s.total <= s.maxBytes {
		return
	}

	type candidate struct {
		key  string
		meta fileMeta
	}
	all := make([]candidate, 0, len(s.index))
	for k, m := range s.index {
		all = append(all, candidate{k, m})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].meta.expiresAt.Before(all[j].meta.expiresAt)
	})

	for _, c := range all {
		if s.total <= s.maxBytes {
			break
		}
		s.removeLocked(c.key, c.meta)
	}
}
