package document

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists uploaded Document rows.
type Repository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Document, error)
	ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*Document, error)
}

// FHIRDocumentRepository persists FHIRDocument rows synced from the EHR.
type FHIRDocumentRepository interface {
	// Upsert inserts or, on a (tenant_id, fhir_resource_type, fhir_id)
	// conflict, replaces the stored resource — EMR sync always re-delivers
	// the current state of a resource rather than a diff.
	Upsert(ctx context.Context, d *FHIRDocument) error
	ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*FHIRDocument, error)
}
