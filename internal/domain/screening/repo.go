package screening

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists Screening rows and their matched-evidence links.
type Repository interface {
	// Upsert inserts or updates by the (patient_id, screening_type_id)
	// uniqueness constraint.
	Upsert(ctx context.Context, s *Screening) error
	GetByPatientAndType(ctx context.Context, tenantID, patientID, screeningTypeID uuid.UUID) (*Screening, error)
	ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*Screening, error)
	// ListByType returns every Screening for a screening type, used by
	// selective refresh to find every patient potentially affected by an
	// edit to that type.
	ListByType(ctx context.Context, screeningTypeID uuid.UUID) ([]*Screening, error)
	ReplaceMatches(ctx context.Context, screeningID uuid.UUID, matches []Match) error
}
