package selection

import (
	"math/rand/v2"
	"reflect"
	"testing"

	"genefetch/internal/core/domain"
)

func tr(accession string, version, length int, mods ...func(*domain.TranscriptRecord)) domain.TranscriptRecord {
	t := domain.TranscriptRecord{
		Accession:  accession,
		Version:    version,
		Length:     length,
		StartCodon: domain.StartCodonStandard,
	}
	for _, m := range mods {
		m(&t)
	}
	return t
}

func consensusSelect(t *domain.TranscriptRecord)   { t.ConsensusSelect = true }
func consensusClinical(t *domain.TranscriptRecord) { t.ConsensusClinical = true }
func curatedSelect(t *domain.TranscriptRecord)     { t.CuratedSelect = true }
func alternateStart(t *domain.TranscriptRecord)    { t.StartCodon = domain.StartCodonAlternate }

func TestEmptyCandidateSet(t *testing.T) {
	if _, err := Select(nil, Options{}); err != ErrNoCandidates {
		t.Errorf("err = %v, want ErrNoCandidates", err)
	}
}

func TestConsensusSelectBeatsLength(t *testing.T) {
	// Spec example: short consensus-select candidate wins over a
	// longer plain one.
	result, err := Select([]domain.TranscriptRecord{
		tr("NM_A", 1, 700, consensusSelect),
		tr("NM_B", 1, 900),
	}, Options{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if result.Transcript.Accession != "NM_A" {
		t.Errorf("chose %s, want NM_A", result.Transcript.Accession)
	}
	if result.Confidence != 1.00 {
		t.Errorf("confidence = %v, want 1.00", result.Confidence)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", result.Warnings)
	}
	if result.Alternatives != 1 {
		t.Errorf("alternatives = %d, want 1", result.Alternatives)
	}
	if result.Method != domain.MethodConsensusSelect {
		t.Errorf("method = %s", result.Method)
	}
}

func TestTierLadder(t *testing.T) {
	tests := []struct {
		name       string
		candidates []domain.TranscriptRecord
		opts       Options
		wantAcc    string
		wantMethod domain.SelectionMethod
		wantConf   float64
	}{
		{
			name: "clinical when no select",
			candidates: []domain.TranscriptRecord{
				tr("NM_A", 1, 500, consensusClinical),
				tr("NM_B", 1, 900),
			},
			wantAcc: "NM_A", wantMethod: domain.MethodConsensusClinical, wantConf: 0.98,
		},
		{
			name: "curated when no consensus",
			candidates: []domain.TranscriptRecord{
				tr("NM_A", 1, 500, curatedSelect),
				tr("NM_B", 1, 900),
			},
			wantAcc: "NM_A", wantMethod: domain.MethodCuratedSelect, wantConf: 0.95,
		},
		{
			name: "select outranks clinical and curated",
			candidates: []domain.TranscriptRecord{
				tr("NM_A", 1, 500, consensusClinical),
				tr("NM_B", 1, 600, curatedSelect),
				tr("NM_C", 1, 100, consensusSelect),
			},
			wantAcc: "NM_C", wantMethod: domain.MethodConsensusSelect, wantConf: 1.00,
		},
		{
			name: "protein xref when no flags",
			candidates: []domain.TranscriptRecord{
				tr("NM_A", 1, 900),
				tr("NM_B", 1, 500),
			},
			opts: Options{
				CanonicalProtein:      &domain.TranscriptRecord{Accession: "NM_B"},
				ProteinXrefConfidence: 0.80,
			},
			wantAcc: "NM_B", wantMethod: domain.MethodProteinXref, wantConf: 0.80,
		},
		{
			name: "longest standard-start fallback",
			candidates: []domain.TranscriptRecord{
				tr("NM_A", 1, 500),
				tr("NM_B", 1, 900),
				tr("NM_C", 1, 700),
			},
			wantAcc: "NM_B", wantMethod: domain.MethodLongestCDS, wantConf: 0.70,
		},
		{
			name: "longest overall when no standard start",
			candidates: []domain.TranscriptRecord{
				tr("NM_A", 1, 500, alternateStart),
				tr("NM_B", 1, 900, alternateStart),
			},
			wantAcc: "NM_B", wantMethod: domain.MethodLongestAnyStart, wantConf: 0.65,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Select(tt.candidates, tt.opts)
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if result.Transcript.Accession != tt.wantAcc {
				t.Errorf("chose %s, want %s", result.Transcript.Accession, tt.wantAcc)
			}
			if result.Method != tt.wantMethod {
				t.Errorf("method = %s, want %s", result.Method, tt.wantMethod)
			}
			if result.Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", result.Confidence, tt.wantConf)
			}
		})
	}
}

func TestStandardStartPreferredOverEqualLengthAlternate(t *testing.T) {
	// Spec example: C (600, v3, standard) beats D (600, v5, alternate)
	// with a warning for the excluded non-standard peer.
	result, err := Select([]domain.TranscriptRecord{
		tr("NM_C", 3, 600),
		tr("NM_D", 5, 600, alternateStart),
	}, Options{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if result.Transcript.Accession != "NM_C" {
		t.Errorf("chose %s, want NM_C", result.Transcript.Accession)
	}
	if result.Confidence != 0.70 {
		t.Errorf("confidence = %v, want 0.70", result.Confidence)
	}
	if !hasWarning(result, domain.WarnNonStandardExcluded) {
		t.Errorf("warnings = %v, want %q", result.Warnings, domain.WarnNonStandardExcluded)
	}
	if result.Alternatives != 1 {
		t.Errorf("alternatives = %d, want 1", result.Alternatives)
	}
}

func TestEqualLengthTieResolvesByVersion(t *testing.T) {
	result, err := Select([]domain.TranscriptRecord{
		tr("NM_A", 2, 600),
		tr("NM_B", 7, 600),
		tr("NM_C", 4, 600),
	}, Options{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if result.Transcript.Accession != "NM_B" {
		t.Errorf("chose %s, want NM_B (highest version)", result.Transcript.Accession)
	}
	if !hasWarning(result, domain.WarnEqualLengthTie) {
		t.Errorf("warnings = %v, want tie warning", result.Warnings)
	}
}

func TestFullTieResolvesByAccessionOrder(t *testing.T) {
	result, err := Select([]domain.TranscriptRecord{
		tr("NM_B", 3, 600),
		tr("NM_A", 3, 600),
	}, Options{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if result.Transcript.Accession != "NM_A" {
		t.Errorf("chose %s, want NM_A (stable order)", result.Transcript.Accession)
	}
	if !hasWarning(result, domain.WarnEqualLengthTie) {
		t.Errorf("warnings = %v, want tie warning", result.Warnings)
	}
}

func TestPermutationInvariance(t *testing.T) {
	candidates := []domain.TranscriptRecord{
		tr("NM_A", 2, 600),
		tr("NM_B", 7, 600),
		tr("NM_C", 1, 400, alternateStart),
		tr("NM_D", 3, 600),
		tr("NM_E", 9, 150),
	}

	baseline, err := Select(candidates, Options{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	rng := rand.New(rand.NewPCG(7, 13))
	for i := 0; i < 50; i++ {
		shuffled := make([]domain.TranscriptRecord, len(candidates))
		copy(shuffled, candidates)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		result, err := Select(shuffled, Options{})
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if !reflect.DeepEqual(result, baseline) {
			t.Fatalf("permutation %d diverged:\n got %+v\nwant %+v", i, result, baseline)
		}
	}
}

func TestConfidenceAlwaysInRange(t *testing.T) {
	sets := [][]domain.TranscriptRecord{
		{tr("NM_A", 1, 300, consensusSelect)},
		{tr("NM_A", 1, 300, consensusClinical)},
		{tr("NM_A", 1, 300, curatedSelect)},
		{tr("NM_A", 1, 300)},
		{tr("NM_A", 1, 300, alternateStart)},
		{tr("NM_A", 1, 300), tr("NM_B", 2, 300)},
	}
	for i, set := range sets {
		result, err := Select(set, Options{})
		if err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
		if result.Confidence < 0 || result.Confidence > 1 {
			t.Errorf("set %d: confidence %v outside [0,1]", i, result.Confidence)
		}
	}
}

func TestProteinConfidenceClamped(t *testing.T) {
	canonical := &domain.TranscriptRecord{Accession: "NM_A"}
	candidates := []domain.TranscriptRecord{tr("NM_A", 1, 300)}

	low, _ := Select(candidates, Options{CanonicalProtein: canonical, ProteinXrefConfidence: 0.2})
	if low.Confidence != 0.75 {
		t.Errorf("low clamp = %v, want 0.75", low.Confidence)
	}
	high, _ := Select(candidates, Options{CanonicalProtein: canonical, ProteinXrefConfidence: 0.99})
	if high.Confidence != 0.90 {
		t.Errorf("high clamp = %v, want 0.90", high.Confidence)
	}
	unset, _ := Select(candidates, Options{CanonicalProtein: canonical})
	if unset.Confidence != DefaultProteinXrefConfidence {
		t.Errorf("default = %v, want %v", unset.Confidence, DefaultProteinXrefConfidence)
	}
}

func TestProteinXrefMatchesByProteinID(t *testing.T) {
	result, err := Select([]domain.TranscriptRecord{
		tr("NM_A", 1, 900),
		tr("NM_B", 1, 500, func(t *domain.TranscriptRecord) { t.ProteinID = "NP_001" }),
	}, Options{
		CanonicalProtein: &domain.TranscriptRecord{Accession: "XM_OTHER", ProteinID: "NP_001"},
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if result.Transcript.Accession != "NM_B" {
		t.Errorf("chose %s, want NM_B via protein id", result.Transcript.Accession)
	}
	if result.Method != domain.MethodProteinXref {
		t.Errorf("method = %s", result.Method)
	}
}

func hasWarning(r *domain.SelectionResult, warning string) bool {
	for _, w := range r.Warnings {
		if w == warning {
			return true
		}
	}
	return false
}
