// Package checkpoint persists batch progress durably so interrupted
// runs resume without losing or duplicating work.
package checkpoint

import (
	"errors"
	"fmt"
	"time"

	"genefetch/internal/core/domain"
)

var (
	// ErrNotFound is returned when no checkpoint exists for a batch.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrCorrupt is returned when a checkpoint file fails to parse or
	// violates the partition invariant. Fatal at startup.
	ErrCorrupt = errors.New("checkpoint corrupt")

	// ErrFingerprintMismatch is returned by Resume when the current
	// configuration differs from the one the batch started under.
	ErrFingerprintMismatch = errors.New("configuration fingerprint mismatch")
)

// ProcessedItem is a completed query and its selection result.
type ProcessedItem struct {
	Index  int                    `json:"index"`
	Symbol string                 `json:"symbol"`
	Result domain.SelectionResult `json:"result"`
}

// FailedItem is a permanently failed query with its typed reason.
type FailedItem struct {
	Index    int    `json:"index"`
	Symbol   string `json:"symbol"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
	Escalate bool   `json:"escalate,omitempty"`
}

// PendingItem is a query not yet attempted (or in flight at the last
// snapshot).
type PendingItem struct {
	Index  int    `json:"index"`
	Symbol string `json:"symbol"`
}

// Checkpoint is the durable record of batch progress. At every
// snapshot, processed, pending and failed partition the original
// batch: pairwise disjoint by index, union complete.
type Checkpoint struct {
	BatchID     string          `json:"batch_id"`
	Fingerprint string          `json:"config_fingerprint"`
	Total       int             `json:"total"`
	Processed   []ProcessedItem `json:"processed"`
	Pending     []PendingItem   `json:"pending"`
	Failed      []FailedItem    `json:"failed"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// New builds a fresh checkpoint with every query pending.
func New(batchID, fingerprint string, queries []domain.GeneQuery) *Checkpoint {
	now := time.Now()
	cp := &Checkpoint{
		BatchID:     batchID,
		Fingerprint: fingerprint,
		Total:       len(queries),
		Pending:     make([]PendingItem, 0, len(queries)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, q := range queries {
		cp.Pending = append(cp.Pending, PendingItem{Index: q.Index, Symbol: q.Symbol})
	}
	return cp
}

// Validate checks the partition invariant.
func (cp *Checkpoint) Validate() error {
	seen := make(map[int]string, cp.Total)
	record := func(idx int, set string) error {
		if other, dup := seen[idx]; dup {
			return fmt.Errorf("%w: index %d in both %s and %s", ErrCorrupt, idx, other, set)
		}
		seen[idx] = set
		return nil
	}

	for _, it := range cp.Processed {
		if err := record(it.Index, "processed"); err != nil {
			return err
		}
	}
	for _, it := range cp.Pending {
		if err := record(it.Index, "pending"); err != nil {
			return err
		}
	}
	for _, it := range cp.Failed {
		if err := record(it.Index, "failed"); err != nil {
			return err
		}
	}

	if len(seen) != cp.Total {
		return fmt.Errorf("%w: %d items accounted for, total is %d", ErrCorrupt, len(seen), cp.Total)
	}
	return nil
}

// MarkProcessed moves a pending query into the processed set.
func (cp *Checkpoint) MarkProcessed(index int, symbol string, result domain.SelectionResult) {
	cp.removePending(index)
	cp.Processed = append(cp.Processed, ProcessedItem{Index: index, Symbol: symbol, Result: result})
	cp.UpdatedAt = time.Now()
}

// MarkFailed moves a pending query into the failed set.
func (cp *Checkpoint) MarkFailed(index int, symbol, kind, reason string, escalate bool) {
	cp.removePending(index)
	cp.Failed = append(cp.Failed, FailedItem{
		Index:    index,
		Symbol:   symbol,
		Kind:     kind,
		Reason:   reason,
		Escalate: escalate,
	})
	cp.UpdatedAt = time.Now()
}

func (cp *Checkpoint) removePending(index int) {
	for i, p := range cp.Pending {
		if p.Index == index {
			cp.Pending = append(cp.Pending[:i], cp.Pending[i+1:]...)
			return
		}
	}
}
