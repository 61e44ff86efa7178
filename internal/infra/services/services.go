// Package services defines the abstract contracts for the external
// collaborators the pipeline depends on. Concrete network clients live
// behind these interfaces; the core consumes their data as opaque
// records.
package services

import (
	"context"
	"errors"

	"genefetch/internal/core/domain"
)

// Rate-limiter keys, one per collaborator.
const (
	ServiceNomenclature = "nomenclature"
	ServiceConsensus    = "consensus"
	ServiceSequence     = "sequence"
	ServiceProtein      = "protein"
)

var (
	// ErrNotFound is returned when a symbol or identifier is unknown
	// to a collaborator. Never retried.
	ErrNotFound = errors.New("not found")

	// ErrAbsent is returned by optional lookups (consensus directory,
	// protein mapping) when no record exists. Not a failure.
	ErrAbsent = errors.New("no record")
)

// Resolver maps an input gene symbol to a stable identifier.
type Resolver interface {
	Resolve(ctx context.Context, symbol string) (*domain.ResolvedGene, error)
}

// ConsensusRecord lists the expert-agreed transcript accessions for a
// gene: one select accession and zero or more clinical accessions.
type ConsensusRecord struct {
	SelectAccession    string   `json:"select_accession"`
	ClinicalAccessions []string `json:"clinical_accessions,omitempty"`
}

// ConsensusDirectory looks up curated consensus transcripts by gene
// identifier. Returns ErrAbsent when the gene has no consensus entry.
type ConsensusDirectory interface {
	Lookup(ctx context.Context, geneID string) (*ConsensusRecord, error)
}

// SequenceRepository fetches the candidate transcript set for a gene.
type SequenceRepository interface {
	FetchCandidates(ctx context.Context, geneID string) ([]domain.TranscriptRecord, error)
}

// ProteinMapper maps a gene's canonical protein annotation back to a
// transcript. Optional; returns ErrAbsent when no mapping exists.
type ProteinMapper interface {
	MapProteinToTranscript(ctx context.Context, geneID string) (*domain.TranscriptRecord, error)
}

// Bundle groups the collaborator set handed to the orchestrator.
// Protein may be nil (mapping disabled).
type Bundle struct {
	Resolver  Resolver
	Consensus ConsensusDirectory
	Sequence  SequenceRepository
	Protein   ProteinMapper
}
