package phi

import "fmt"

// safeTitleByLOINC is the closed lookup table safe titles are drawn from.
// Titles are derived only from structured codes, never free text (spec
// §4.4): an unrecognized LOINC code gets a generic fallback rather than
// borrowing any text from the document itself.
var safeTitleByLOINC = map[string]string{
	"24606-6": "Mammography Report",
	"18748-4": "Diagnostic Imaging Report",
	"11506-3": "Prep Sheet",
	"68604-8": "Colonoscopy Report",
	"10190-7": "Cervical Cytology Report",
	"30954-2": "Relevant Diagnostic Tests/Laboratory Data",
}

const fallbackSafeTitle = "Clinical Document"

// SafeTitleForLOINC returns the closed-table safe title for a LOINC code,
// or fallbackSafeTitle if the code is not in the table. Never accepts or
// echoes free text from the source document.
func SafeTitleForLOINC(loincCode string) string {
	if title, ok := safeTitleByLOINC[loincCode]; ok {
		return title
	}
	return fallbackSafeTitle
}

// PrepSheetSafeTitle builds the write-back safe title per spec §4.6: only
// a generation timestamp and a compact screening summary, never any PHI
// or document free text. generatedAt is expected pre-formatted by the
// caller (e.g. RFC3339) so this package has no time dependency.
func PrepSheetSafeTitle(generatedAt string, dueCount, overdueCount int) string {
	return fmt.Sprintf("Prep Sheet generated %s (%d due, %d overdue)", generatedAt, dueCount, overdueCount)
}
