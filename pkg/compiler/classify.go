package compiler

import "strings"

const (
	internalErrorMarker   = "internal compiler error"
	expectedFailurePhrase = "tact compilation failed"
)

// LooksLikeBug reports whether compiler output indicates a genuine defect
// rather than an ordinarily rejected snippet. An internal compiler error
// always qualifies; a failed compile qualifies unless the output carries
// the compiler's regular failure banner.
func LooksLikeBug(output string, succeeded bool) bool {
	lower := strings.ToLower(output)
	if strings.Contains(lower, internalErrorMarker) {
		return true
	}
	return !succeeded && !strings.Contains(lower, expectedFailurePhrase)
}
