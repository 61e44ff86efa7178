package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"genefetch/internal/core/domain"
)

func queries(symbols ...string) []domain.GeneQuery {
	out := make([]domain.GeneQuery, len(symbols))
	for i, s := range symbols {
		out[i] = domain.GeneQuery{Symbol: s, Index: i}
	}
	return out
}

func result(accession string) domain.SelectionResult {
	return domain.SelectionResult{
		Transcript: domain.TranscriptRecord{Accession: accession, Version: 1},
		Method:     domain.MethodConsensusSelect,
		Confidence: 1.0,
	}
}

func TestSnapshotAndLoadRoundTrip(t *testing.T) {
	m, err := NewFileManager(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	cp := New("batch-1", "fp-abc", queries("TP53", "BRCA1", "EGFR"))
	cp.MarkProcessed(0, "TP53", result("NM_000546"))
	cp.MarkFailed(1, "BRCA1", "not_found", "symbol unknown", false)

	if err := m.Snapshot(cp); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	loaded, err := m.Load("batch-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Fingerprint != "fp-abc" || loaded.Total != 3 {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Processed) != 1 || len(loaded.Failed) != 1 || len(loaded.Pending) != 1 {
		t.Errorf("partition = %d/%d/%d, want 1/1/1",
			len(loaded.Processed), len(loaded.Failed), len(loaded.Pending))
	}
	if loaded.Processed[0].Result.Transcript.Accession != "NM_000546" {
		t.Errorf("processed result lost: %+v", loaded.Processed[0])
	}
}

func TestLoadMissingBatch(t *testing.T) {
	m, _ := NewFileManager(t.TempDir(), 0, 0)
	if _, err := m.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	m, _ := NewFileManager(dir, 0, 0)
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load("bad"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestValidateRejectsOverlap(t *testing.T) {
	cp := New("b", "fp", queries("A", "B"))
	cp.Processed = append(cp.Processed, ProcessedItem{Index: 0, Symbol: "A"})
	// Index 0 still pending too: partition violated.
	if err := cp.Validate(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestValidateRejectsMissingItems(t *testing.T) {
	cp := New("b", "fp", queries("A", "B"))
	cp.Pending = cp.Pending[:1] // drop B entirely
	if err := cp.Validate(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestSnapshotRefusesInconsistentState(t *testing.T) {
	m, _ := NewFileManager(t.TempDir(), 0, 0)
	cp := New("b", "fp", queries("A"))
	cp.Pending = nil // A unaccounted for
	if err := m.Snapshot(cp); err == nil {
		t.Error("expected validation failure")
	}
}

func TestResumeFingerprintMismatch(t *testing.T) {
	m, _ := NewFileManager(t.TempDir(), 0, 0)
	cp := New("b", "fp-old", queries("A"))
	if _, err := m.Resume(cp, "fp-new", false); !errors.Is(err, ErrFingerprintMismatch) {
		t.Errorf("err = %v, want ErrFingerprintMismatch", err)
	}
}

func TestResumeRequeuesPendingAndFailed(t *testing.T) {
	m, _ := NewFileManager(t.TempDir(), 0, 0)
	cp := New("b", "fp", queries("A", "B", "C", "D"))
	cp.MarkProcessed(0, "A", result("NM_1"))
	cp.MarkFailed(2, "C", "transient_network", "timeout", false)

	requeue, err := m.Resume(cp, "fp", false)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(requeue) != 3 {
		t.Fatalf("requeue = %v, want B, C, D", requeue)
	}
	// Sorted by original index.
	for i, want := range []int{1, 2, 3} {
		if requeue[i].Index != want {
			t.Errorf("requeue[%d].Index = %d, want %d", i, requeue[i].Index, want)
		}
	}
	if err := cp.Validate(); err != nil {
		t.Errorf("partition broken after resume: %v", err)
	}
}

func TestResumeRetryFailedOnly(t *testing.T) {
	m, _ := NewFileManager(t.TempDir(), 0, 0)
	cp := New("b", "fp", queries("A", "B", "C"))
	cp.MarkProcessed(0, "A", result("NM_1"))
	cp.MarkProcessed(1, "B", result("NM_2"))
	cp.MarkFailed(2, "C", "persistent_service", "500", true)

	requeue, err := m.Resume(cp, "fp", true)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(requeue) != 1 || requeue[0].Symbol != "C" {
		t.Errorf("requeue = %v, want exactly C", requeue)
	}
	if len(cp.Processed) != 2 {
		t.Error("processed results must be untouched")
	}
	if err := cp.Validate(); err != nil {
		t.Errorf("partition broken after retry-failed resume: %v", err)
	}
}

func TestMaybeSnapshotItemCadence(t *testing.T) {
	m, _ := NewFileManager(t.TempDir(), 3, 0)
	cp := New("b", "fp", queries("A", "B", "C", "D"))

	for i := 0; i < 2; i++ {
		wrote, err := m.MaybeSnapshot(cp, 1)
		if err != nil {
			t.Fatalf("maybe: %v", err)
		}
		if wrote {
			t.Fatalf("snapshot after %d items, cadence is 3", i+1)
		}
	}
	wrote, err := m.MaybeSnapshot(cp, 1)
	if err != nil {
		t.Fatalf("maybe: %v", err)
	}
	if !wrote {
		t.Error("expected snapshot at item cadence")
	}

	// Counter resets after a write.
	if wrote, _ := m.MaybeSnapshot(cp, 1); wrote {
		t.Error("cadence counter did not reset")
	}
}

func TestMaybeSnapshotTimeCadence(t *testing.T) {
	m, _ := NewFileManager(t.TempDir(), 0, 20*time.Millisecond)
	cp := New("b", "fp", queries("A"))

	if wrote, _ := m.MaybeSnapshot(cp, 0); wrote {
		t.Error("snapshot before interval elapsed")
	}
	time.Sleep(30 * time.Millisecond)
	if wrote, _ := m.MaybeSnapshot(cp, 0); !wrote {
		t.Error("expected snapshot after interval")
	}
}

func TestListAndPrune(t *testing.T) {
	dir := t.TempDir()
	m, _ := NewFileManager(dir, 0, 0)

	cp1 := New("old-batch", "fp", queries("A"))
	cp2 := New("new-batch", "fp", queries("B"))
	_ = m.Snapshot(cp1)
	_ = m.Snapshot(cp2)

	list, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list = %d entries, want 2", len(list))
	}

	// Age one file past the cutoff.
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "old-batch.json"), past, past); err != nil {
		t.Fatal(err)
	}

	removed, err := m.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := m.Load("new-batch"); err != nil {
		t.Errorf("recent checkpoint pruned: %v", err)
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	m, _ := NewFileManager(dir, 0, 0)
	_ = m.Snapshot(New("b", "fp", queries("A")))

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
