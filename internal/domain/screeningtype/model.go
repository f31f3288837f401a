// Package screeningtype models the configurable screening definitions that
// drive matching, eligibility, and due-date calculation.
package screeningtype

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// FrequencyUnit is the unit a ScreeningType's recurrence interval is
// expressed in.
type FrequencyUnit string

const (
	FrequencyDays   FrequencyUnit = "days"
	FrequencyMonths FrequencyUnit = "months"
	FrequencyYears  FrequencyUnit = "years"
)

// Category gates which eligibility rules beyond sex/age apply to a
// screening type (spec §4.1.1 conditions 3-4).
type Category string

const (
	// CategoryGeneral screening types are eligible to everyone within
	// sex/age bounds; TriggerConditions, if any, are ignored.
	CategoryGeneral Category = "general"
	// CategoryConditional screening types additionally require at least
	// one TriggerConditions name to fuzzy-match an active patient
	// condition.
	CategoryConditional Category = "conditional"
	// CategoryRiskBased screening types are a more specific variant of
	// another (general or conditional) type, named by VariantOfTypeID.
	// When its trigger conditions match, the variant supersedes the base;
	// when they don't, the variant is skipped (status `superseded`) and
	// the base stands.
	CategoryRiskBased Category = "risk_based"
)

// ScreeningType is a single screening definition. TenantID is nil for a
// global, platform-provided definition shared across every tenant.
type ScreeningType struct {
	ID                uuid.UUID
	TenantID          *uuid.UUID
	Name              string
	Keywords          []string
	TriggerConditions []string // condition names, fuzzy-matched (§4.1.3) against patient.Condition.Description
	ScreeningCategory Category
	VariantOfTypeID   *uuid.UUID // set only when ScreeningCategory == CategoryRiskBased
	EligibleGenders   []string
	MinAge            *int
	MaxAge            *int
	FrequencyValue    int
	FrequencyUnit     FrequencyUnit
	IsImmunization    bool
	CVXCodes          []string
	LOINCCodes        []string
	SafeTitle         string
	CriteriaSignature string
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// criteriaPayload is the deterministic projection of a ScreeningType whose
// hash becomes CriteriaSignature. Field order is fixed by struct layout and
// every slice is sorted before hashing so semantically identical criteria
// always produce the same signature regardless of how they were typed in.
type criteriaPayload struct {
	Keywords          []string `json:"keywords"`
	TriggerConditions []string `json:"trigger_conditions"`
	ScreeningCategory string   `json:"screening_category"`
	VariantOfTypeID   string   `json:"variant_of_type_id"`
	EligibleGenders   []string `json:"eligible_genders"`
	MinAge            *int     `json:"min_age"`
	MaxAge            *int     `json:"max_age"`
	FrequencyValue    int      `json:"frequency_value"`
	FrequencyUnit     string   `json:"frequency_unit"`
	IsImmunization    bool     `json:"is_immunization"`
	CVXCodes          []string `json:"cvx_codes"`
	LOINCCodes        []string `json:"loinc_codes"`
}

// ComputeSignature deterministically hashes the eligibility- and
// match-relevant fields of a ScreeningType. The job and screening engine
// use this to detect whether an edit to a screening type requires
// reprocessing every patient's screenings (signature changed) or none at
// all (signature unchanged, e.g. only Name or SafeTitle edited).
func ComputeSignature(st *ScreeningType) string {
	variantOf := ""
	if st.VariantOfTypeID != nil {
		variantOf = st.VariantOfTypeID.String()
	}
	p := criteriaPayload{
		Keywords:          sortedCopy(st.Keywords),
		TriggerConditions: sortedCopy(st.TriggerConditions),
		ScreeningCategory: string(st.ScreeningCategory),
		VariantOfTypeID:   variantOf,
		EligibleGenders:   sortedCopy(st.EligibleGenders),
		MinAge:            st.MinAge,
		MaxAge:            st.MaxAge,
		FrequencyValue:    st.FrequencyValue,
		FrequencyUnit:     string(st.FrequencyUnit),
		IsImmunization:    st.IsImmunization,
		CVXCodes:          sortedCopy(st.CVXCodes),
		LOINCCodes:        sortedCopy(st.LOINCCodes),
	}
	// json.Marshal cannot fail on this payload: every field is a plain
	// string, *int, int, bool, or slice thereof.
	b, _ := json.Marshal(p)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

// AddInterval returns from advanced by FrequencyValue units of
// FrequencyUnit, using calendar arithmetic (AddDate); any unit other than
// days or months is treated as years.
func (st *ScreeningType) AddInterval(from time.Time) time.Time {
	switch st.FrequencyUnit {
	case FrequencyDays:
		return from.AddDate(0, 0, st.FrequencyValue)
	case FrequencyMonths:
		return from.AddDate(0, st.FrequencyValue, 0)
	default:
		return from.AddDate(st.FrequencyValue, 0, 0)
	}
}
