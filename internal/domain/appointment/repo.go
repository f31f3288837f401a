package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists Appointment rows.
type Repository interface {
	Upsert(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error)
	// ListUpcoming returns appointments scheduled within window of now,
	// optionally restricted to providerIDs (empty means all providers).
	ListUpcoming(ctx context.Context, tenantID uuid.UUID, providerIDs []uuid.UUID, window time.Duration) ([]*Appointment, error)
	SetPrepSheet(ctx context.Context, tenantID, id, prepSheetID uuid.UUID) error
}
