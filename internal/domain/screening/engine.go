package screening

import (
	"strings"
	"time"

	"github.com/healthprep/healthprep/internal/domain/patient"
	"github.com/healthprep/healthprep/internal/domain/screeningtype"
)

// triggerMatchThreshold is the §4.1.3 acceptance threshold for fuzzy
// trigger-condition matching (distinct from the 0.87 canonical-type
// resolution threshold, which HealthPrep doesn't yet need).
const triggerMatchThreshold = 0.8

// Eligible reports whether a patient qualifies for a screening type: sex
// and age always apply; a conditional or risk-based category additionally
// requires a matching trigger condition (§4.1.1 conditions 3-4). A
// risk_based type that is a variant of a base type is NOT fully described
// by this function alone — see Evaluate, which treats a variant's
// non-match as `superseded` rather than `not_eligible`.
func Eligible(st *screeningtype.ScreeningType, p *patient.Patient, conditions []*patient.Condition, asOf time.Time) bool {
	if !ageSexEligible(st, p, asOf) {
		return false
	}
	switch st.ScreeningCategory {
	case screeningtype.CategoryConditional, screeningtype.CategoryRiskBased:
		return triggerConditionsMatch(st.TriggerConditions, conditions)
	default:
		return true
	}
}

func ageSexEligible(st *screeningtype.ScreeningType, p *patient.Patient, asOf time.Time) bool {
	if len(st.EligibleGenders) > 0 && !genderMatches(st.EligibleGenders, p.Sex) {
		return false
	}
	if p.BirthDate != nil {
		age := ageAt(*p.BirthDate, asOf)
		if st.MinAge != nil && age < *st.MinAge {
			return false
		}
		if st.MaxAge != nil && age > *st.MaxAge {
			return false
		}
	}
	return true
}

func genderMatches(eligible []string, sex string) bool {
	for _, g := range eligible {
		if equalFoldASCII(g, sex) {
			return true
		}
	}
	return false
}

// triggerConditionsMatch reports whether any active patient condition's
// name fuzzy-matches (§4.1.3) any of the screening type's trigger
// condition names. A type with no trigger conditions configured never
// matches — a conditional or risk-based type without any named triggers
// is a configuration error, not an automatic pass.
func triggerConditionsMatch(triggerNames []string, conditions []*patient.Condition) bool {
	if len(triggerNames) == 0 {
		return false
	}
	for _, c := range conditions {
		if c.ClinicalStatus != "active" {
			continue
		}
		for _, name := range triggerNames {
			if conditionNameSimilarity(name, c.Description) >= triggerMatchThreshold {
				return true
			}
		}
	}
	return false
}

// normaliseConditionName implements the §4.1.3 normalisation for condition
// names: lower-case, map separator characters to spaces, and collapse
// whitespace, so "Type 2 Diabetes Mellitus" and "type_2-diabetes.mellitus"
// compare equal.
func normaliseConditionName(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch r {
		case '_', '-', '.', '/':
			r = ' '
		}
		if r == ' ' {
			if lastSpace {
				continue
			}
			lastSpace = true
		} else {
			lastSpace = false
		}
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}

// conditionNameSimilarity is the max of character-level and token-set
// similarity between two normalised condition names (§4.1.3): character
// similarity via normalised Levenshtein distance, token similarity via
// Jaccard over whitespace-separated tokens.
func conditionNameSimilarity(a, b string) float64 {
	na, nb := normaliseConditionName(a), normaliseConditionName(b)
	if na == "" || nb == "" {
		return 0
	}
	longest := len(na)
	if len(nb) > longest {
		longest = len(nb)
	}
	charSim := 1 - float64(levenshtein(na, nb))/float64(longest)
	tokenSim := jaccard(strings.Fields(na), strings.Fields(nb))
	if charSim > tokenSim {
		return charSim
	}
	return tokenSim
}

func jaccard(a, b []string) float64 {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter, union := 0, len(set)
	for _, t := range b {
		if _, ok := set[t]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func ageAt(birthDate, asOf time.Time) int {
	years := asOf.Year() - birthDate.Year()
	if asOf.Month() < birthDate.Month() || (asOf.Month() == birthDate.Month() && asOf.Day() < birthDate.Day()) {
		years--
	}
	return years
}

// NeedsReprocess decides whether a screening type's change requires
// reevaluating a patient's existing Screening: a forced reprocess always
// does, otherwise only a criteria signature change does — editing a
// display-only field like Name or SafeTitle never triggers a reprocess.
func NeedsReprocess(existing *Screening, st *screeningtype.ScreeningType, force bool) bool {
	if force {
		return true
	}
	if existing == nil {
		return true
	}
	return existing.MatchedCriteriaSignature != st.CriteriaSignature
}

// preserveLastCompleted carries forward a prior Screening's completion
// history onto a freshly-zeroed one. Evaluate calls this on every
// short-circuit path (not_eligible, superseded, unknown) so that evidence
// already observed is never silently wiped just because the patient no
// longer currently qualifies for the screening.
func preserveLastCompleted(out *Screening, existing *Screening) {
	if existing == nil {
		return
	}
	out.LastCompletedDate = existing.LastCompletedDate
	out.NextDueDate = existing.NextDueDate
}

// Evaluate is the core per-patient, per-screening-type evaluation step: it
// decides eligibility, finds the best matching evidence, and derives the
// new Screening state. It never mutates existing; the caller persists the
// returned Screening.
func Evaluate(st *screeningtype.ScreeningType, p *patient.Patient, conditions []*patient.Condition, evidence []Evidence, existing *Screening, overdueThresholdDays int, now time.Time) (*Screening, []MatchResult) {
	out := &Screening{
		TenantID:        p.TenantID,
		PatientID:       p.ID,
		ScreeningTypeID: st.ID,
	}
	if existing != nil {
		out.ID = existing.ID
		out.CreatedAt = existing.CreatedAt
	}
	out.MatchedCriteriaSignature = st.CriteriaSignature

	// not_eligible short-circuits everything else, but always preserves
	// whatever last_completed was already known — an admin narrowing
	// eligibility (e.g. raising min_age) must not erase history a patient
	// could become eligible again to see later (spec scenario S2).
	if !ageSexEligible(st, p, now) {
		out.Status = StatusNotEligible
		preserveLastCompleted(out, existing)
		return out, nil
	}

	isRiskVariant := st.ScreeningCategory == screeningtype.CategoryRiskBased && st.VariantOfTypeID != nil
	needsTriggerMatch := st.ScreeningCategory == screeningtype.CategoryConditional || st.ScreeningCategory == screeningtype.CategoryRiskBased

	if needsTriggerMatch && !triggerConditionsMatch(st.TriggerConditions, conditions) {
		preserveLastCompleted(out, existing)
		if isRiskVariant {
			// The variant's own trigger conditions didn't match: it does
			// not replace the base type for this patient (§4.1.1
			// condition 4) — the base screening stands, and this
			// variant's own row records that it was superseded rather
			// than silently vanishing.
			out.Status = StatusSuperseded
		} else {
			out.Status = StatusNotEligible
		}
		return out, nil
	}

	if st.IsImmunization && len(st.CVXCodes) == 0 {
		// The engine never guesses a due date from nothing: a type that
		// claims to be immunization-based but hasn't been configured with
		// any CVX codes to look for is a data problem, not a "due" patient.
		out.Status = StatusUnknown
		out.RequiresVaccineCodes = true
		preserveLastCompleted(out, existing)
		return out, nil
	}

	matches := MatchEvidence(st, evidence)

	var lastCompleted *time.Time
	for _, m := range matches {
		if m.Evidence.EffectiveDate == nil {
			continue
		}
		if lastCompleted == nil || m.Evidence.EffectiveDate.After(*lastCompleted) {
			lastCompleted = m.Evidence.EffectiveDate
		}
	}

	// Newly observed evidence can only add to what is already known, never
	// retract it: a later-dated prior completion always wins over a set of
	// matches that happens not to include it this round (e.g. a document
	// that temporarily failed to sync).
	if existing != nil && existing.LastCompletedDate != nil {
		if lastCompleted == nil || existing.LastCompletedDate.After(*lastCompleted) {
			lastCompleted = existing.LastCompletedDate
		}
	}

	status, nextDue := DeriveStatus(st, lastCompleted, overdueThresholdDays, now)
	out.Status = status
	out.LastCompletedDate = lastCompleted
	out.NextDueDate = nextDue

	return out, matches
}
