package fhirmodels

import "encoding/json"

// RawResource is an opaque FHIR resource kept as raw JSON alongside a
// resourceType discriminator, used wherever HealthPrep stores a resource
// it doesn't need to fully parse (fhir_document.raw_fhir_resource).
type RawResource struct {
	ResourceType string          `json:"resourceType"`
	ID           string          `json:"id"`
	Raw          json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full document in Raw while still exposing
// ResourceType/ID for dispatch, mirroring the discriminated-union decode
// pattern spec §9 calls for (resourceType string field selects the Go
// type to decode into).
func (r *RawResource) UnmarshalJSON(data []byte) error {
	type alias struct {
		ResourceType string `json:"resourceType"`
		ID           string `json:"id"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	r.ResourceType = a.ResourceType
	r.ID = a.ID
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (r RawResource) MarshalJSON() ([]byte, error) {
	if r.Raw != nil {
		return r.Raw, nil
	}
	return json.Marshal(struct {
		ResourceType string `json:"resourceType"`
		ID           string `json:"id"`
	}{r.ResourceType, r.ID})
}

// CodeableConcept is the common FHIR shape for coded fields (conditions,
// vaccine codes, observation categories).
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Coding is a single code/system/display triple within a CodeableConcept.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// Reference is a FHIR resource reference, e.g. "Patient/123".
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// HumanName is the FHIR HumanName shape, used for Patient.name entries.
type HumanName struct {
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// Patient is the subset of FHIR R4 Patient that HealthPrep consumes.
type Patient struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id"`
	Name         []HumanName `json:"name,omitempty"`
	Gender       string      `json:"gender,omitempty"`
	BirthDate    string      `json:"birthDate,omitempty"`
}

// Condition is the subset of FHIR R4 Condition HealthPrep consumes,
// matched against ScreeningType.TriggerConditions.
type Condition struct {
	ResourceType   string          `json:"resourceType"`
	ID             string          `json:"id"`
	Subject        Reference       `json:"subject"`
	Code           CodeableConcept `json:"code"`
	ClinicalStatus CodeableConcept `json:"clinicalStatus,omitempty"`
	OnsetDateTime  string          `json:"onsetDateTime,omitempty"`
}

// Observation is the subset of FHIR R4 Observation HealthPrep persists —
// only when its LOINC code is screening-relevant (SPEC_FULL §4.2).
type Observation struct {
	ResourceType string          `json:"resourceType"`
	ID           string          `json:"id"`
	Subject      Reference       `json:"subject"`
	Code         CodeableConcept `json:"code"`
	EffectiveDateTime string     `json:"effectiveDateTime,omitempty"`
	Category     []CodeableConcept `json:"category,omitempty"`
}

// DiagnosticReport is the subset of FHIR R4 DiagnosticReport HealthPrep
// consumes, used for imaging-category screenings.
type DiagnosticReport struct {
	ResourceType string          `json:"resourceType"`
	ID           string          `json:"id"`
	Subject      Reference       `json:"subject"`
	Code         CodeableConcept `json:"code"`
	Category     []CodeableConcept `json:"category,omitempty"`
	EffectiveDateTime string     `json:"effectiveDateTime,omitempty"`
	PresentedForm []Attachment   `json:"presentedForm,omitempty"`
}

// DocumentReferenceContent is one entry of DocumentReference.content.
type DocumentReferenceContent struct {
	Attachment Attachment `json:"attachment"`
}

// Attachment is the FHIR Attachment shape: either inline base64 data or a
// url pointing at a Binary resource.
type Attachment struct {
	ContentType string `json:"contentType,omitempty"`
	URL         string `json:"url,omitempty"`
	Data        string `json:"data,omitempty"`
	Title       string `json:"title,omitempty"`
}

// DocumentReference is the subset of FHIR R4 DocumentReference HealthPrep
// consumes and produces (prep-sheet write-back uses this same shape).
type DocumentReference struct {
	ResourceType string                     `json:"resourceType"`
	ID           string                     `json:"id,omitempty"`
	Status       string                     `json:"status"`
	Type         CodeableConcept            `json:"type,omitempty"`
	Subject      Reference                  `json:"subject"`
	Date         string                     `json:"date,omitempty"`
	Content      []DocumentReferenceContent `json:"content"`
}

// Encounter is the subset of FHIR R4 Encounter HealthPrep persists for
// prep-sheet recency windows.
type Encounter struct {
	ResourceType string          `json:"resourceType"`
	ID           string          `json:"id"`
	Subject      Reference       `json:"subject"`
	Status       string          `json:"status,omitempty"`
	Class        Coding          `json:"class,omitempty"`
	PeriodStart  string          `json:"periodStart,omitempty"`
}

// Appointment is the subset of FHIR R4 Appointment HealthPrep consumes.
type Appointment struct {
	ResourceType string    `json:"resourceType"`
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Start        string    `json:"start,omitempty"`
	End          string    `json:"end,omitempty"`
}

// Immunization is the subset of FHIR R4 Immunization HealthPrep consumes
// for immunization-based screenings (spec §4.1.5).
type Immunization struct {
	ResourceType   string          `json:"resourceType"`
	ID             string          `json:"id"`
	Patient        Reference       `json:"patient"`
	Status         string          `json:"status"`
	VaccineCode    CodeableConcept `json:"vaccineCode"`
	OccurrenceDateTime string      `json:"occurrenceDateTime,omitempty"`
}
