// Package selection implements the deterministic, evidence-ranked
// transcript choice. Select is a pure function: identical candidate
// sets produce identical results regardless of input order.
package selection

import (
	"errors"
	"sort"

	"genefetch/internal/core/domain"
)

// ErrNoCandidates is returned for an empty candidate set.
var ErrNoCandidates = errors.New("no candidates")

// DefaultProteinXrefConfidence applies when Options leaves the value
// unset. Accepted range for the tier is 0.75 to 0.90.
const DefaultProteinXrefConfidence = 0.85

// Options supplies the caller-provided signals that parameterize
// selection without breaking purity.
type Options struct {
	// CanonicalProtein is the transcript derived from the canonical
	// protein mapping, when the mapper produced one. Nil disables
	// the protein-xref tier.
	CanonicalProtein *domain.TranscriptRecord

	// ProteinXrefConfidence is the configurable confidence attached
	// to protein-xref selections, clamped to [0.75, 0.90].
	ProteinXrefConfidence float64
}

func (o Options) proteinConfidence() float64 {
	c := o.ProteinXrefConfidence
	if c == 0 {
		c = DefaultProteinXrefConfidence
	}
	if c < 0.75 {
		c = 0.75
	}
	if c > 0.90 {
		c = 0.90
	}
	return c
}

// Select chooses one transcript from the candidate set using the
// decision ladder: consensus-select, consensus-clinical,
// curated-select, protein cross-reference, longest standard-start CDS,
// longest CDS overall. Each tier is first-match-wins over the full
// set.
func Select(candidates []domain.TranscriptRecord, opts Options) (*domain.SelectionResult, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	// Canonical ordering makes every downstream "first match" and
	// "stable tie-break" invariant under permutation of the input.
	ordered := make([]domain.TranscriptRecord, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Accession != ordered[j].Accession {
			return ordered[i].Accession < ordered[j].Accession
		}
		return ordered[i].Version > ordered[j].Version
	})

	alternatives := len(ordered) - 1

	// Tiers 1-3: evidence flags.
	for _, tier := range []struct {
		match      func(domain.TranscriptRecord) bool
		method     domain.SelectionMethod
		confidence float64
	}{
		{func(t domain.TranscriptRecord) bool { return t.ConsensusSelect }, domain.MethodConsensusSelect, 1.00},
		{func(t domain.TranscriptRecord) bool { return t.ConsensusClinical }, domain.MethodConsensusClinical, 0.98},
		{func(t domain.TranscriptRecord) bool { return t.CuratedSelect }, domain.MethodCuratedSelect, 0.95},
	} {
		for _, t := range ordered {
			if tier.match(t) {
				return &domain.SelectionResult{
					Transcript:   t,
					Method:       tier.method,
					Confidence:   tier.confidence,
					Alternatives: alternatives,
				}, nil
			}
		}
	}

	// Tier 4: protein cross-reference.
	if opts.CanonicalProtein != nil {
		for _, t := range ordered {
			if matchesProtein(t, *opts.CanonicalProtein) {
				return &domain.SelectionResult{
					Transcript:   t,
					Method:       domain.MethodProteinXref,
					Confidence:   opts.proteinConfidence(),
					Alternatives: alternatives,
				}, nil
			}
		}
	}

	// Tier 5: longest CDS among standard-start candidates.
	standard := filterStandard(ordered)
	if len(standard) > 0 {
		winner, warnings := pickLongest(standard)
		for _, t := range ordered {
			if t.StartCodon != domain.StartCodonStandard && t.Length >= winner.Length {
				warnings = append(warnings, domain.WarnNonStandardExcluded)
				break
			}
		}
		return &domain.SelectionResult{
			Transcript:   winner,
			Method:       domain.MethodLongestCDS,
			Confidence:   0.70,
			Warnings:     warnings,
			Alternatives: alternatives,
		}, nil
	}

	// Tier 6: no standard start codon anywhere.
	winner, warnings := pickLongest(ordered)
	warnings = append(warnings, domain.WarnNonStandardStart)
	return &domain.SelectionResult{
		Transcript:   winner,
		Method:       domain.MethodLongestAnyStart,
		Confidence:   0.65,
		Warnings:     warnings,
		Alternatives: alternatives,
	}, nil
}

func matchesProtein(t, canonical domain.TranscriptRecord) bool {
	if t.Accession == canonical.Accession {
		return true
	}
	return canonical.ProteinID != "" && t.ProteinID == canonical.ProteinID
}

func filterStandard(ts []domain.TranscriptRecord) []domain.TranscriptRecord {
	var out []domain.TranscriptRecord
	for _, t := range ts {
		if t.StartCodon == domain.StartCodonStandard {
			out = append(out, t)
		}
	}
	return out
}

// pickLongest returns the maximum-length transcript, breaking length
// ties by highest version and then by the (canonical) order of ts.
// A length tie adds the equal-length warning.
func pickLongest(ts []domain.TranscriptRecord) (domain.TranscriptRecord, []string) {
	winner := ts[0]
	tied := 1
	for _, t := range ts[1:] {
		switch {
		case t.Length > winner.Length:
			winner = t
			tied = 1
		case t.Length == winner.Length:
			tied++
			if t.Version > winner.Version {
				winner = t
			}
		}
	}

	var warnings []string
	if tied > 1 {
		warnings = append(warnings, domain.WarnEqualLengthTie)
	}
	return winner, warnings
}
