package domain

// SelectionMethod identifies which tier of the decision ladder produced
// a selection.
type SelectionMethod string

const (
	MethodConsensusSelect   SelectionMethod = "consensus_select"
	MethodConsensusClinical SelectionMethod = "consensus_clinical"
	MethodCuratedSelect     SelectionMethod = "curated_select"
	MethodProteinXref       SelectionMethod = "protein_xref"
	MethodLongestCDS        SelectionMethod = "longest_cds"
	MethodLongestAnyStart   SelectionMethod = "longest_any_start"
)

// Selection warning tags. Warnings annotate a result, never change it.
const (
	WarnEqualLengthTie      = "multiple equal-length candidates"
	WarnNonStandardStart    = "non-standard start codon"
	WarnNonStandardExcluded = "non-standard start excluded"
	WarnLengthNotTriplet    = "length not divisible by 3"
	WarnMissingStopCodon    = "missing terminal stop codon"
	WarnInternalStopCodon   = "internal stop codon"
	WarnLowResolution       = "low resolution confidence"
)

// SelectionResult is the single chosen transcript for a gene, with the
// method and trust tier that produced it. Exactly one per gene with a
// non-empty candidate set; immutable.
type SelectionResult struct {
	Transcript   TranscriptRecord `json:"transcript"`
	Method       SelectionMethod  `json:"method"`
	Confidence   float64          `json:"confidence"`
	Warnings     []string         `json:"warnings,omitempty"`
	Alternatives int              `json:"alternatives"`
}
