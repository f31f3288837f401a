// Package screening implements the core HealthPrep engine: matching
// clinical evidence against screening type keywords, determining patient
// eligibility, and computing screening status and next-due dates.
package screening

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a single patient/screening-type pairing.
type Status string

const (
	StatusComplete    Status = "complete"
	StatusDueSoon     Status = "due_soon"
	StatusDue         Status = "due"
	StatusOverdue     Status = "overdue"
	StatusNotEligible Status = "not_eligible"
	StatusSuperseded  Status = "superseded"
	StatusUnknown     Status = "unknown"
)

// Screening is the record of one screening type's state for one patient.
type Screening struct {
	ID                       uuid.UUID
	TenantID                 uuid.UUID
	PatientID                uuid.UUID
	ScreeningTypeID          uuid.UUID
	Status                   Status
	LastCompletedDate        *time.Time
	NextDueDate              *time.Time
	// RequiresVaccineCodes is set alongside StatusUnknown when a screening
	// type declares is_immunization_based but has no CVX codes configured
	// (spec §4.1.5) — the engine refuses to guess rather than silently
	// treating it as due.
	RequiresVaccineCodes     bool
	MatchedCriteriaSignature string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// EvidenceKind distinguishes an uploaded Document from a synced
// FHIRDocument as a match's source.
type EvidenceKind string

const (
	EvidenceDocument     EvidenceKind = "document"
	EvidenceFHIRDocument EvidenceKind = "fhir_document"
)

// Match links a Screening to the evidence that satisfied it.
type Match struct {
	ScreeningID    uuid.UUID
	Kind           EvidenceKind
	EvidenceID     uuid.UUID
	Score          float64
	MatchedKeyword string
	EffectiveDate  *time.Time
}
