package selection

import (
	"strings"

	"genefetch/internal/core/domain"
)

var stopCodons = map[string]bool{"TAA": true, "TAG": true, "TGA": true}

// ClassifyStartCodon reports whether a CDS begins with the standard
// ATG codon.
func ClassifyStartCodon(seq string) domain.StartCodonClass {
	if len(seq) >= 3 && strings.EqualFold(seq[:3], "ATG") {
		return domain.StartCodonStandard
	}
	return domain.StartCodonAlternate
}

// ValidateCDS runs the structural sequence checks: reading-frame
// length, terminal stop codon, and premature internal stops. The
// returned warnings annotate a selection; they never change it.
func ValidateCDS(seq string) []string {
	var warnings []string
	if seq == "" {
		return warnings
	}
	s := strings.ToUpper(seq)

	if len(s)%3 != 0 {
		warnings = append(warnings, domain.WarnLengthNotTriplet)
	}

	// Codon scan covers only complete triplets.
	codons := len(s) / 3
	if codons == 0 {
		return warnings
	}

	terminal := s[(codons-1)*3 : codons*3]
	if len(s)%3 != 0 || !stopCodons[terminal] {
		warnings = append(warnings, domain.WarnMissingStopCodon)
	}

	// Internal stops: every in-frame codon before the terminal one.
	for i := 0; i < codons-1; i++ {
		if stopCodons[s[i*3:(i+1)*3]] {
			warnings = append(warnings, domain.WarnInternalStopCodon)
			break
		}
	}
	return warnings
}
