package screening

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/domain/screeningtype"
)

// Evidence is the matcher's view of a single piece of clinical evidence,
// projected from either a Document (OCR'd, redacted text) or a
// FHIRDocument (coded resource).
type Evidence struct {
	Kind          EvidenceKind
	EvidenceID    uuid.UUID
	Text          string // redacted OCR text, or a FHIR resource's display text
	LOINCCode     string
	CVXCode       string
	EffectiveDate *time.Time
}

// fuzzyMaxDistance bounds the Levenshtein distance a keyword may differ
// from a word in the evidence text and still count as a fuzzy match —
// enough to catch minor OCR misreads ("colonoscpy") without matching
// unrelated words.
const fuzzyMaxDistance = 2

// MatchResult is a single keyword/code hit against one piece of evidence.
type MatchResult struct {
	Evidence       Evidence
	MatchedKeyword string
	Score          float64
}

// MatchEvidence scores every piece of evidence against a screening type's
// keywords and codes, returning one MatchResult per evidence item that
// matched at all, highest score first. A code match (LOINC/CVX) always
// outscores a text match, since it is unambiguous.
func MatchEvidence(st *screeningtype.ScreeningType, evidence []Evidence) []MatchResult {
	var results []MatchResult

	for _, ev := range evidence {
		if st.IsImmunization {
			if matched, ok := matchesAny(ev.CVXCode, st.CVXCodes); ok {
				results = append(results, MatchResult{Evidence: ev, MatchedKeyword: matched, Score: 1.0})
				continue
			}
			continue
		}

		if matched, ok := matchesAny(ev.LOINCCode, st.LOINCCodes); ok {
			results = append(results, MatchResult{Evidence: ev, MatchedKeyword: matched, Score: 1.0})
			continue
		}

		if keyword, score, ok := bestKeywordMatch(ev.Text, st.Keywords); ok {
			results = append(results, MatchResult{Evidence: ev, MatchedKeyword: keyword, Score: score})
		}
	}

	sortByScoreDesc(results)
	return results
}

func matchesAny(code string, candidates []string) (string, bool) {
	if code == "" {
		return "", false
	}
	for _, c := range candidates {
		if strings.EqualFold(code, c) {
			return c, true
		}
	}
	return "", false
}

// bestKeywordMatch returns the highest-scoring keyword found in text: an
// exact substring match scores 0.9, a fuzzy (near-miss) word match scores
// 0.6 + a small bonus for closeness.
func bestKeywordMatch(text string, keywords []string) (string, float64, bool) {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})

	bestKeyword := ""
	bestScore := 0.0

	for _, kw := range keywords {
		kwLower := strings.ToLower(kw)
		if strings.Contains(lower, kwLower) {
			if 0.9 > bestScore {
				bestKeyword, bestScore = kw, 0.9
			}
			continue
		}
		for _, w := range words {
			d := levenshtein(kwLower, w)
			if d > 0 && d <= fuzzyMaxDistance {
				score := 0.6 + 0.1*float64(fuzzyMaxDistance-d)
				if score > bestScore {
					bestKeyword, bestScore = kw, score
				}
			}
		}
	}

	if bestScore == 0 {
		return "", 0, false
	}
	return bestKeyword, bestScore, true
}

func sortByScoreDesc(results []MatchResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// levenshtein computes the classic edit distance between two short strings.
// HealthPrep only ever calls this on single words against single keywords,
// so the quadratic cost is negligible.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
