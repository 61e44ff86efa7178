package domain

import "fmt"

// StartCodonClass categorizes the first codon of a CDS.
type StartCodonClass string

const (
	StartCodonStandard  StartCodonClass = "standard"  // ATG
	StartCodonAlternate StartCodonClass = "alternate" // CTG, GTG, ...
)

// TranscriptRecord is one candidate transcript returned by the sequence
// repository. Immutable; many per gene.
type TranscriptRecord struct {
	Accession         string          `json:"accession"`
	Version           int             `json:"version"`
	Sequence          string          `json:"sequence"`
	Length            int             `json:"length"`
	ConsensusSelect   bool            `json:"consensus_select"`
	ConsensusClinical bool            `json:"consensus_clinical"`
	CuratedSelect     bool            `json:"curated_select"`
	StartCodon        StartCodonClass `json:"start_codon"`
	ProteinID         string          `json:"protein_id,omitempty"`
}

// FullAccession returns the versioned accession (e.g. "NM_000546.6").
func (t TranscriptRecord) FullAccession() string {
	return fmt.Sprintf("%s.%d", t.Accession, t.Version)
}
