package prepsheet

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists compiled prep sheets so a previously generated sheet
// can be retrieved by id (the `GetPrepSheet` stable operation).
type Repository interface {
	Create(ctx context.Context, p *PrepSheet) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*PrepSheet, error)
}
