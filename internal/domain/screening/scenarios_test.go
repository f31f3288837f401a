package screening

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/domain/screeningtype"
)

// A brand-new patient with no documented evidence is "due" with no
// next-due date, regardless of how the screening type is configured.
func TestNewPatientNoEvidenceIsDue(t *testing.T) {
	st := &screeningtype.ScreeningType{
		Keywords:       []string{"colonoscopy"},
		FrequencyValue: 10,
		FrequencyUnit:  screeningtype.FrequencyYears,
		MinAge:         intPtr(45),
		MaxAge:         intPtr(75),
	}
	p := testPatient()

	result, matches := Evaluate(st, p, nil, nil, nil, 30, time.Now())

	if result.Status != StatusDue {
		t.Errorf("expected StatusDue, got %s", result.Status)
	}
	if result.NextDueDate != nil {
		t.Error("expected no next due date with no evidence")
	}
	if len(matches) != 0 {
		t.Error("expected no matches")
	}
}

// A matching document dated within the frequency window resolves the
// screening to "complete" with a next-due date one interval out.
func TestMatchingDocumentResolvesComplete(t *testing.T) {
	st := &screeningtype.ScreeningType{
		Keywords:       []string{"colonoscopy"},
		FrequencyValue: 10,
		FrequencyUnit:  screeningtype.FrequencyYears,
	}
	p := testPatient()
	completedDate := time.Now().AddDate(-1, 0, 0)
	evidence := []Evidence{{EvidenceID: uuid.New(), Text: "screening colonoscopy performed without incident", EffectiveDate: &completedDate}}

	result, matches := Evaluate(st, p, nil, evidence, nil, 30, time.Now())

	if result.Status != StatusComplete {
		t.Errorf("expected StatusComplete, got %s", result.Status)
	}
	if result.NextDueDate == nil || !result.NextDueDate.After(time.Now()) {
		t.Error("expected a future next due date")
	}
	if len(matches) != 1 {
		t.Errorf("expected 1 match, got %d", len(matches))
	}
}

// A completion older than frequency + overdue threshold resolves to
// "overdue".
func TestStaleCompletionResolvesOverdue(t *testing.T) {
	st := &screeningtype.ScreeningType{
		Keywords:       []string{"mammogram"},
		FrequencyValue: 1,
		FrequencyUnit:  screeningtype.FrequencyYears,
	}
	p := testPatient()
	completedDate := time.Now().AddDate(-2, 0, 0)
	evidence := []Evidence{{EvidenceID: uuid.New(), Text: "mammogram completed", EffectiveDate: &completedDate}}

	result, _ := Evaluate(st, p, nil, evidence, nil, 30, time.Now())

	if result.Status != StatusOverdue {
		t.Errorf("expected StatusOverdue, got %s", result.Status)
	}
}

// An ineligible patient is never "due", regardless of evidence.
func TestScenario_IneligiblePatientNeverDue(t *testing.T) {
	st := &screeningtype.ScreeningType{MinAge: intPtr(80)}
	p := testPatient() // age ~55

	result, _ := Evaluate(st, p, nil, nil, nil, 30, time.Now())

	if result.Status == StatusDue || result.Status == StatusOverdue {
		t.Errorf("expected ineligible patient not to be due/overdue, got %s", result.Status)
	}
}

// TestScenario_S1_MammogramBecomesComplete is the exact S1 from the end-to-
// end scenario list: a female patient age 55, a "Mammogram" type
// (sexes={female}, min_age=40, max_age=75, keywords={mammogram,
// mammography}, frequency=1 year), and one document dated 60 days ago
// resolves to complete with last_completed=today-60d, next_due=today+305d.
func TestScenario_S1_MammogramBecomesComplete(t *testing.T) {
	now := time.Now()
	st := &screeningtype.ScreeningType{
		Name:            "Mammogram",
		EligibleGenders: []string{"female"},
		MinAge:          intPtr(40),
		MaxAge:          intPtr(75),
		Keywords:        []string{"mammogram", "mammography"},
		FrequencyValue:  1,
		FrequencyUnit:   screeningtype.FrequencyYears,
	}
	p := testPatient()
	dob := now.AddDate(-55, 0, 0)
	p.BirthDate = &dob
	p.Sex = "female"

	completedDate := now.AddDate(0, 0, -60)
	evidence := []Evidence{{
		EvidenceID:    uuid.New(),
		Text:          "Mammography: bilateral screening, BI-RADS 1",
		EffectiveDate: &completedDate,
	}}

	result, matches := Evaluate(st, p, nil, evidence, nil, 30, now)

	if result.Status != StatusComplete {
		t.Fatalf("expected StatusComplete, got %s", result.Status)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if result.LastCompletedDate == nil || !sameDay(*result.LastCompletedDate, completedDate) {
		t.Fatalf("expected last_completed = today-60d, got %v", result.LastCompletedDate)
	}
	wantNextDue := completedDate.AddDate(1, 0, 0)
	if result.NextDueDate == nil || !sameDay(*result.NextDueDate, wantNextDue) {
		t.Fatalf("expected next_due one year after last_completed, got %v", result.NextDueDate)
	}
}

// TestScenario_S2_CriteriaChangeInvalidatesCache is the exact S2 scenario:
// starting from S1's processed state, editing min_age=50 leaves the
// patient eligible (status unchanged); editing min_age=60 makes the
// patient ineligible, and the new row is not_eligible with last_completed
// preserved.
func TestScenario_S2_CriteriaChangeInvalidatesCache(t *testing.T) {
	now := time.Now()
	completedDate := now.AddDate(0, 0, -60)
	p := testPatient()
	dob := now.AddDate(-55, 0, 0)
	p.BirthDate = &dob
	p.Sex = "female"

	base := &screeningtype.ScreeningType{
		Name:            "Mammogram",
		EligibleGenders: []string{"female"},
		MinAge:          intPtr(40),
		MaxAge:          intPtr(75),
		Keywords:        []string{"mammogram", "mammography"},
		FrequencyValue:  1,
		FrequencyUnit:   screeningtype.FrequencyYears,
	}
	base.CriteriaSignature = screeningtype.ComputeSignature(base)
	evidence := []Evidence{{EvidenceID: uuid.New(), Text: "Mammography screening", EffectiveDate: &completedDate}}

	s1, _ := Evaluate(base, p, nil, evidence, nil, 30, now)
	if s1.Status != StatusComplete {
		t.Fatalf("expected initial state complete, got %s", s1.Status)
	}

	// admin edits min_age=50: criteria_signature changes, patient (age 55)
	// remains eligible, status unchanged.
	minAge50 := *base
	minAge50.MinAge = intPtr(50)
	minAge50.CriteriaSignature = screeningtype.ComputeSignature(&minAge50)
	if minAge50.CriteriaSignature == s1.MatchedCriteriaSignature {
		t.Fatal("expected criteria_signature to change after editing min_age")
	}
	if !NeedsReprocess(s1, &minAge50, false) {
		t.Fatal("expected a signature change to require reprocessing")
	}
	s2, _ := Evaluate(&minAge50, p, nil, evidence, s1, 30, now)
	if s2.Status != StatusComplete {
		t.Fatalf("expected status unchanged after min_age=50, got %s", s2.Status)
	}

	// admin edits min_age=60: patient (age 55) becomes ineligible.
	minAge60 := *base
	minAge60.MinAge = intPtr(60)
	minAge60.CriteriaSignature = screeningtype.ComputeSignature(&minAge60)
	s3, _ := Evaluate(&minAge60, p, nil, evidence, s2, 30, now)
	if s3.Status != StatusNotEligible {
		t.Fatalf("expected StatusNotEligible after min_age=60, got %s", s3.Status)
	}
	if s3.LastCompletedDate == nil || !sameDay(*s3.LastCompletedDate, completedDate) {
		t.Fatalf("expected last_completed preserved, got %v", s3.LastCompletedDate)
	}
}

// TestScenario_S3_ImmunizationNoCodesIsUnknown is the exact S3 scenario:
// "Annual Influenza" marked immunization-based with an empty CVX set
// resolves to unknown with requires_vaccine_codes=true.
func TestScenario_S3_ImmunizationNoCodesIsUnknown(t *testing.T) {
	st := &screeningtype.ScreeningType{
		Name:           "Annual Influenza",
		IsImmunization: true,
		FrequencyValue: 1,
		FrequencyUnit:  screeningtype.FrequencyYears,
	}
	p := testPatient()

	result, matches := Evaluate(st, p, nil, nil, nil, 30, time.Now())

	if result.Status != StatusUnknown {
		t.Fatalf("expected StatusUnknown, got %s", result.Status)
	}
	if !result.RequiresVaccineCodes {
		t.Fatal("expected requires_vaccine_codes = true")
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches attempted, got %d", len(matches))
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
