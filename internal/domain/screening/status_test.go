package screening

import (
	"testing"
	"time"

	"github.com/healthprep/healthprep/internal/domain/screeningtype"
)

func TestDeriveStatus_NoEvidenceIsDueNotOverdue(t *testing.T) {
	st := &screeningtype.ScreeningType{FrequencyValue: 1, FrequencyUnit: screeningtype.FrequencyYears}
	status, nextDue := DeriveStatus(st, nil, 30, time.Now())
	if status != StatusDue {
		t.Errorf("expected StatusDue with no evidence, got %s", status)
	}
	if nextDue != nil {
		t.Error("expected nil next due date with no evidence")
	}
}

func TestDeriveStatus_RecentCompletionIsComplete(t *testing.T) {
	st := &screeningtype.ScreeningType{FrequencyValue: 1, FrequencyUnit: screeningtype.FrequencyYears}
	completed := time.Now().AddDate(0, -1, 0)
	status, nextDue := DeriveStatus(st, &completed, 30, time.Now())
	if status != StatusComplete {
		t.Errorf("expected StatusComplete, got %s", status)
	}
	if nextDue == nil || !nextDue.After(time.Now()) {
		t.Error("expected next due date in the future")
	}
}

func TestDeriveStatus_WithinDueSoonWindowIsDueSoon(t *testing.T) {
	st := &screeningtype.ScreeningType{FrequencyValue: 1, FrequencyUnit: screeningtype.FrequencyYears}
	// next_due lands 20 days out, inside the 30-day due_soon window.
	completed := time.Now().AddDate(-1, 0, 20)
	status, nextDue := DeriveStatus(st, &completed, 30, time.Now())
	if status != StatusDueSoon {
		t.Errorf("expected StatusDueSoon inside the pre-due window, got %s", status)
	}
	if nextDue == nil || !nextDue.After(time.Now()) {
		t.Error("expected a future next due date")
	}
}

func TestDeriveStatus_JustPastDueIsDue(t *testing.T) {
	st := &screeningtype.ScreeningType{FrequencyValue: 1, FrequencyUnit: screeningtype.FrequencyYears}
	completed := time.Now().AddDate(-1, 0, -5) // 5 days past the 1-year mark
	status, _ := DeriveStatus(st, &completed, 30, time.Now())
	if status != StatusDue {
		t.Errorf("expected StatusDue just past the interval, got %s", status)
	}
}

func TestDeriveStatus_PastThresholdIsOverdue(t *testing.T) {
	st := &screeningtype.ScreeningType{FrequencyValue: 1, FrequencyUnit: screeningtype.FrequencyYears}
	completed := time.Now().AddDate(-1, 0, -45) // 45 days past, threshold is 30
	status, _ := DeriveStatus(st, &completed, 30, time.Now())
	if status != StatusOverdue {
		t.Errorf("expected StatusOverdue past the threshold, got %s", status)
	}
}

func TestStatus_NewEvidenceNeverWorsens(t *testing.T) {
	st := &screeningtype.ScreeningType{FrequencyValue: 1, FrequencyUnit: screeningtype.FrequencyYears, CriteriaSignature: "sig-1"}
	olderCompletion := time.Now().AddDate(0, -1, 0)

	existing := &Screening{
		Status:                   StatusComplete,
		LastCompletedDate:        &olderCompletion,
		MatchedCriteriaSignature: "sig-1",
	}

	// Simulate a reprocess where this round's matches found nothing (e.g.
	// a transient sync gap) — status must not regress below what was
	// already known.
	p := testPatient()
	newScreening, _ := Evaluate(st, p, nil, nil, existing, 30, time.Now())

	if rank(newScreening.Status) < rank(existing.Status) {
		t.Errorf("status regressed from %s to %s", existing.Status, newScreening.Status)
	}
	if newScreening.LastCompletedDate == nil || !newScreening.LastCompletedDate.Equal(olderCompletion) {
		t.Error("expected prior completion date to be preserved")
	}
}
