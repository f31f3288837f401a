// Package document models uploaded and FHIR-sourced clinical documents,
// and orchestrates OCR extraction and PHI redaction of their text.
package document

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Source distinguishes a manually uploaded document from one pulled in
// through EMR sync.
type Source string

const (
	SourceUpload Source = "upload"
	SourceFHIR   Source = "fhir"
)

// Document is a manually uploaded file (scanned referral, fax, etc.).
type Document struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	PatientID     uuid.UUID
	Source        Source
	Filename      string
	MimeType      string
	OCRTextEnc    string
	OCRConfidence float64
	Redacted      bool
	DocumentDate  *time.Time
	CreatedAt     time.Time
}

// FHIRResourceType is the set of FHIR resource types HealthPrep treats as
// document evidence.
type FHIRResourceType string

const (
	ResourceDiagnosticReport   FHIRResourceType = "DiagnosticReport"
	ResourceDocumentReference  FHIRResourceType = "DocumentReference"
	ResourceObservation        FHIRResourceType = "Observation"
	ResourceImmunization       FHIRResourceType = "Immunization"
)

// FHIRDocument is a piece of clinical evidence synced from the EHR.
type FHIRDocument struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	PatientID        uuid.UUID
	FHIRResourceType FHIRResourceType
	FHIRID           string
	LOINCCode        string
	CVXCode          string
	RawFHIRResource  json.RawMessage
	EffectiveDate    *time.Time
	CreatedAt        time.Time
}
