package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Manager handles durable checkpoint storage.
type Manager interface {
	// Snapshot writes a complete, self-consistent checkpoint
	// atomically.
	Snapshot(cp *Checkpoint) error

	// MaybeSnapshot writes only when the cadence (every K completed
	// items or T elapsed, whichever first) is due. Returns whether a
	// write happened.
	MaybeSnapshot(cp *Checkpoint, completed int) (bool, error)

	// Load returns the last valid checkpoint for a batch, or
	// ErrNotFound.
	Load(batchID string) (*Checkpoint, error)

	// Resume validates a loaded checkpoint against the current
	// configuration fingerprint and returns the queries to re-queue.
	// retryFailed re-queues exactly the failed set instead of the
	// pending set's remainder.
	Resume(cp *Checkpoint, fingerprint string, retryFailed bool) ([]PendingItem, error)

	// List summarizes the stored checkpoints, newest first.
	List() ([]Summary, error)

	// Prune removes checkpoints older than the given age.
	Prune(olderThan time.Duration) (int, error)
}

// Summary describes one stored checkpoint.
type Summary struct {
	BatchID   string
	Total     int
	Processed int
	Failed    int
	Pending   int
	UpdatedAt time.Time
}

// FileManager stores one JSON file per batch under a directory, using
// write-temp-then-atomic-rename for every snapshot. It is the single
// logical writer: all snapshot writes serialize on its mutex.
type FileManager struct {
	dir      string
	every    int
	interval time.Duration

	mu            sync.Mutex
	lastSnapshot  time.Time
	sinceSnapshot int
}

// NewFileManager creates a manager rooted at dir. every is the item
// cadence (<=0 disables it), interval the time cadence (<=0 disables).
func NewFileManager(dir string, every int, interval time.Duration) (*FileManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	return &FileManager{
		dir:          dir,
		every:        every,
		interval:     interval,
		lastSnapshot: time.Now(),
	}, nil
}

func (m *FileManager) path(batchID string) string {
	return filepath.Join(m.dir, batchID+".json")
}

// Snapshot writes the checkpoint atomically.
func (m *FileManager) Snapshot(cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(cp)
}

// MaybeSnapshot applies the cadence.
func (m *FileManager) MaybeSnapshot(cp *Checkpoint, completed int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sinceSnapshot += completed
	due := (m.every > 0 && m.sinceSnapshot >= m.every) ||
		(m.interval > 0 && time.Since(m.lastSnapshot) >= m.interval)
	if !due {
		return false, nil
	}
	if err := m.writeLocked(cp); err != nil {
		return false, err
	}
	return true, nil
}

// writeLocked performs the atomic write. Caller holds mu.
func (m *FileManager) writeLocked(cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("refusing to persist inconsistent checkpoint: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	path := m.path(cp.BatchID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	m.sinceSnapshot = 0
	m.lastSnapshot = time.Now()
	slog.Debug("Checkpoint saved", "batch", cp.BatchID,
		"processed", len(cp.Processed), "pending", len(cp.Pending), "failed", len(cp.Failed))
	return nil
}

// Load reads and validates the stored checkpoint for a batch.
func (m *FileManager) Load(batchID string) (*Checkpoint, error) {
	data, err := os.ReadFile(m.path(batchID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Resume fails fast on configuration drift, then returns the queries
// to re-queue. Pending items sort by original index so resumed work
// proceeds in input order.
func (m *FileManager) Resume(cp *Checkpoint, fingerprint string, retryFailed bool) ([]PendingItem, error) {
	if cp.Fingerprint != fingerprint {
		return nil, fmt.Errorf("%w: checkpoint %s, current %s",
			ErrFingerprintMismatch, cp.Fingerprint, fingerprint)
	}

	var requeue []PendingItem
	for _, f := range cp.Failed {
		requeue = append(requeue, PendingItem{Index: f.Index, Symbol: f.Symbol})
	}
	if retryFailed {
		// Only the failed set runs again; untouched pending items
		// stay pending so the partition remains complete.
		cp.Pending = append(cp.Pending, requeue...)
	} else {
		requeue = append(requeue, cp.Pending...)
		cp.Pending = requeue
	}
	cp.Failed = cp.Failed[:0]

	sort.Slice(requeue, func(i, j int) bool { return requeue[i].Index < requeue[j].Index })
	return requeue, nil
}

// List summarizes stored checkpoints, newest first.
func (m *FileManager) List() ([]Summary, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint dir: %w", err)
	}

	var out []Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		cp, err := m.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			// Unreadable files are listed nowhere but left in place.
			continue
		}
		out = append(out, Summary{
			BatchID:   cp.BatchID,
			Total:     cp.Total,
			Processed: len(cp.Processed),
			Failed:    len(cp.Failed),
			Pending:   len(cp.Pending),
			UpdatedAt: cp.UpdatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Prune removes checkpoint files older than the given age.
func (m *FileManager) Prune(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read checkpoint dir: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
