package patient

import (
	"testing"
	"time"
)

func TestScore_ExactEpicIDClearsThresholdAlone(t *testing.T) {
	existing := &Patient{EpicPatientID: "epic-123", LastName: "Doe"}
	score := Score(existing, MatchCandidate{EpicPatientID: "epic-123"})
	if score < MatchThreshold {
		t.Errorf("expected exact Epic ID match to clear threshold, got %d", score)
	}
}

func TestScore_MRNMatchClearsThresholdAlone(t *testing.T) {
	existing := &Patient{MRN: "MRN-777"}
	score := Score(existing, MatchCandidate{MRN: "mrn-777"})
	if score < MatchThreshold {
		t.Errorf("expected case-insensitive MRN match to clear threshold, got %d", score)
	}
}

func TestScore_NameAloneDoesNotClearThreshold(t *testing.T) {
	existing := &Patient{FirstName: "Jane", LastName: "Doe"}
	score := Score(existing, MatchCandidate{FirstName: "Jane", LastName: "Doe"})
	if score >= MatchThreshold {
		t.Errorf("expected name-only match to stay below threshold, got %d", score)
	}
}

func TestScore_NameDOBAndSexWithoutIdentifierStaysBelowThreshold(t *testing.T) {
	dob := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := &Patient{FirstName: "Jane", LastName: "Doe", BirthDate: &dob, Sex: "female"}
	score := Score(existing, MatchCandidate{FirstName: "Jane", LastName: "Doe", BirthDate: "1980-01-01", Sex: "female"})
	if score >= MatchThreshold {
		t.Errorf("expected name+DOB+sex match without an identifier to stay below threshold, got %d", score)
	}
}

func TestBestMatch_ReturnsNilWhenNoneClearThreshold(t *testing.T) {
	existing := []*Patient{{FirstName: "Jane", LastName: "Doe"}}
	if got := BestMatch(existing, MatchCandidate{FirstName: "John", LastName: "Smith"}); got != nil {
		t.Errorf("expected no match, got %+v", got)
	}
}

func TestBestMatch_PicksHighestScore(t *testing.T) {
	dob := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	weak := &Patient{MRN: "MRN-1", FirstName: "Jane", LastName: "Doe"}
	strong := &Patient{MRN: "MRN-1", FirstName: "Jane", LastName: "Doe", BirthDate: &dob}

	got := BestMatch([]*Patient{weak, strong}, MatchCandidate{MRN: "MRN-1", FirstName: "Jane", LastName: "Doe", BirthDate: "1980-01-01"})
	if got != strong {
		t.Errorf("expected the more corroborated record to win")
	}
}
