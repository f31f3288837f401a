package screeningtype

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists ScreeningType rows. tenantID is passed explicitly so
// callers can fetch the tenant's own types plus the shared global ones in
// one call.
type Repository interface {
	Create(ctx context.Context, st *ScreeningType) error
	GetByID(ctx context.Context, id uuid.UUID) (*ScreeningType, error)
	Update(ctx context.Context, st *ScreeningType) error
	// ListEffective returns every active global screening type plus every
	// active screening type owned by tenantID.
	ListEffective(ctx context.Context, tenantID uuid.UUID) ([]*ScreeningType, error)
}
