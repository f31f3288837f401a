package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists Patient rows, transparently encrypting and decrypting
// the name fields.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, tenantID uuid.UUID, mrn string) (*Patient, error)
	GetByEpicPatientID(ctx context.Context, tenantID uuid.UUID, epicID string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	ListByProvider(ctx context.Context, tenantID, providerID uuid.UUID) ([]*Patient, error)
	MarkSynced(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error
}

// ConditionRepository persists Condition rows.
type ConditionRepository interface {
	Replace(ctx context.Context, tenantID, patientID uuid.UUID, conditions []*Condition) error
	ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*Condition, error)
}
