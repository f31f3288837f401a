package patient

import (
	"strings"
)

// MatchCandidate is the inbound identity HealthPrep is trying to reconcile
// against an existing Patient row.
type MatchCandidate struct {
	EpicPatientID string
	MRN           string
	FirstName     string
	LastName      string
	BirthDate     string // YYYY-MM-DD
	Sex           string
}

// matchWeights mirrors the teacher's weighted patient-matching scheme:
// a strong identifier match alone is often enough, while demographic
// fields only corroborate a weaker one.
const (
	weightEpicID   = 100
	weightMRN      = 90
	weightLastName = 20
	weightFirstName = 15
	weightBirthDate = 30
	weightSex       = 5

	// MatchThreshold is the minimum score for treating two records as the
	// same patient. An exact Epic ID or MRN match always clears it alone.
	MatchThreshold = 90
)

// Score returns a weighted similarity score between a candidate and an
// existing Patient record. A higher score means a more confident match.
func Score(existing *Patient, candidate MatchCandidate) int {
	score := 0

	if candidate.EpicPatientID != "" && existing.EpicPatientID != "" && candidate.EpicPatientID == existing.EpicPatientID {
		score += weightEpicID
	}
	if candidate.MRN != "" && existing.MRN != "" && strings.EqualFold(candidate.MRN, existing.MRN) {
		score += weightMRN
	}
	if candidate.LastName != "" && strings.EqualFold(candidate.LastName, existing.LastName) {
		score += weightLastName
	}
	if candidate.FirstName != "" && strings.EqualFold(candidate.FirstName, existing.FirstName) {
		score += weightFirstName
	}
	if candidate.BirthDate != "" && existing.BirthDate != nil && candidate.BirthDate == existing.BirthDate.Format("2006-01-02") {
		score += weightBirthDate
	}
	if candidate.Sex != "" && existing.Sex != "" && strings.EqualFold(candidate.Sex, existing.Sex) {
		score += weightSex
	}

	return score
}

// BestMatch returns the highest-scoring candidate in existing that clears
// MatchThreshold, or nil if none does.
func BestMatch(existing []*Patient, candidate MatchCandidate) *Patient {
	var best *Patient
	bestScore := 0
	for _, p := range existing {
		s := Score(p, candidate)
		if s >= MatchThreshold && s > bestScore {
			best, bestScore = p, s
		}
	}
	return best
}
