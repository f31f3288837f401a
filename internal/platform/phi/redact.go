package phi

import "regexp"

// RedactionType names a kind of identifier the filter found and replaced.
type RedactionType string

const (
	RedactionSSN     RedactionType = "ssn"
	RedactionPhone   RedactionType = "phone"
	RedactionEmail   RedactionType = "email"
	RedactionAddress RedactionType = "street_address"
	RedactionDOB     RedactionType = "date_of_birth"
	RedactionMRN     RedactionType = "mrn"
	RedactionName    RedactionType = "proper_name"
)

// redactionRule pairs a regex with the token it is replaced by and the
// RedactionType counted for it. Order matters: more specific patterns
// (MRN, SSN) run before the looser ones (dates) so a fragment isn't
// double-counted under the wrong type.
type redactionRule struct {
	kind    RedactionType
	pattern *regexp.Regexp
	token   string
}

var redactionRules = []redactionRule{
	{RedactionMRN, regexp.MustCompile(`(?i)\bMRN[-:\s]?\d{5,10}\b`), "[MRN_REDACTED]"},
	{RedactionSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN_REDACTED]"},
	{RedactionEmail, regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`), "[EMAIL_REDACTED]"},
	{RedactionPhone, regexp.MustCompile(`\b(\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`), "[PHONE_REDACTED]"},
	{RedactionDOB, regexp.MustCompile(`\b(0[1-9]|1[0-2])[/-](0[1-9]|[12]\d|3[01])[/-](19|20)\d{2}\b`), "[DOB_REDACTED]"},
	{RedactionAddress, regexp.MustCompile(`(?i)\b\d{1,6}\s+([A-Za-z]+\s){1,4}(Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way)\b\.?`), "[ADDRESS_REDACTED]"},
}

// namePrefixPattern is the configurable proper-name heuristic: a title
// immediately followed by one or two capitalized words, e.g. "Dr. Jane
// Smith" or "Mr. John Doe". It deliberately does not try to catch every
// proper name in free text — spec §4.4 calls this a heuristic, not an
// NER model.
var namePrefixPattern = regexp.MustCompile(`\b(Dr|Mr|Mrs|Ms|Miss)\.?\s+[A-Z][a-z]+(\s+[A-Z][a-z]+)?`)

// RedactionCounts tallies how many spans of each type were redacted, so
// the audit layer can record what kind of PHI was found without
// recording the PHI itself (spec §4.4).
type RedactionCounts map[RedactionType]int

// Redact replaces every PHI span in text with a typed token and returns
// the redacted text plus per-type counts.
func Redact(text string) (string, RedactionCounts) {
	counts := make(RedactionCounts)

	for _, rule := range redactionRules {
		matches := rule.pattern.FindAllString(text, -1)
		if len(matches) > 0 {
			counts[rule.kind] += len(matches)
			text = rule.pattern.ReplaceAllString(text, rule.token)
		}
	}

	nameMatches := namePrefixPattern.FindAllString(text, -1)
	if len(nameMatches) > 0 {
		counts[RedactionName] += len(nameMatches)
		text = namePrefixPattern.ReplaceAllString(text, "[NAME_REDACTED]")
	}

	return text, counts
}

// Total returns the sum of all redaction counts, used to decide whether a
// document required any filtering at all.
func (c RedactionCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}
