// Package patient models patients and their conditions, and implements the
// fuzzy match used to reconcile an inbound FHIR Patient resource against an
// existing record.
package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a HealthPrep patient record. Name fields are stored encrypted
// at rest; this struct always holds the decrypted plaintext once loaded
// through the repository.
type Patient struct {
	ID                       uuid.UUID
	TenantID                 uuid.UUID
	ProviderID               *uuid.UUID
	MRN                      string
	EpicPatientID            string
	FirstName                string
	LastName                 string
	BirthDate                *time.Time
	Sex                      string
	LastFHIRSyncAt           *time.Time
	DocumentsLastEvaluatedAt *time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Condition is a single ICD-10-coded problem on a patient's list.
type Condition struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	PatientID      uuid.UUID
	ICD10Code      string
	Description    string
	ClinicalStatus string
	OnsetDate      *time.Time
	CreatedAt      time.Time
}
