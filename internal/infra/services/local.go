package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"genefetch/internal/core/domain"
)

// Dataset is an offline snapshot of all four collaborators, loaded from
// a single JSON file. Used for air-gapped runs and testing.
type Dataset struct {
	Genes       map[string]domain.ResolvedGene        `json:"genes"`       // keyed by lowercase symbol
	Consensus   map[string]ConsensusRecord            `json:"consensus"`   // keyed by gene id
	Transcripts map[string][]domain.TranscriptRecord  `json:"transcripts"` // keyed by gene id
	Proteins    map[string]domain.TranscriptRecord    `json:"proteins"`    // keyed by gene id
}

// LocalDirectory serves a Dataset through all four collaborator
// interfaces. Read-only after load; safe for concurrent use.
type LocalDirectory struct {
	ds Dataset
}

// LoadLocalDirectory reads a dataset file.
func LoadLocalDirectory(path string) (*LocalDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	return &LocalDirectory{ds: ds}, nil
}

// NewLocalDirectory wraps an in-memory dataset.
func NewLocalDirectory(ds Dataset) *LocalDirectory {
	return &LocalDirectory{ds: ds}
}

// Bundle returns the directory wired as a full collaborator set.
func (d *LocalDirectory) Bundle() Bundle {
	return Bundle{
		Resolver:  d,
		Consensus: d,
		Sequence:  d,
		Protein:   d,
	}
}

func (d *LocalDirectory) Resolve(_ context.Context, symbol string) (*domain.ResolvedGene, error) {
	g, ok := d.ds.Genes[strings.ToLower(symbol)]
	if !ok {
		return nil, fmt.Errorf("symbol %q: %w", symbol, ErrNotFound)
	}
	resolved := g
	resolved.Query = symbol
	return &resolved, nil
}

func (d *LocalDirectory) Lookup(_ context.Context, geneID string) (*ConsensusRecord, error) {
	rec, ok := d.ds.Consensus[geneID]
	if !ok {
		return nil, ErrAbsent
	}
	return &rec, nil
}

func (d *LocalDirectory) FetchCandidates(_ context.Context, geneID string) ([]domain.TranscriptRecord, error) {
	records, ok := d.ds.Transcripts[geneID]
	if !ok {
		return nil, fmt.Errorf("gene %s: %w", geneID, ErrNotFound)
	}
	out := make([]domain.TranscriptRecord, len(records))
	copy(out, records)
	return out, nil
}

func (d *LocalDirectory) MapProteinToTranscript(_ context.Context, geneID string) (*domain.TranscriptRecord, error) {
	rec, ok := d.ds.Proteins[geneID]
	if !ok {
		return nil, ErrAbsent
	}
	return &rec, nil
}
