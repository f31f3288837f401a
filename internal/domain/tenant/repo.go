package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrganizationRepository persists Organization rows. Organizations are the
// root of tenant isolation, so unlike every other repository in this
// module none of its methods take a tenantID parameter to scope by.
type OrganizationRepository interface {
	Create(ctx context.Context, o *Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	Update(ctx context.Context, o *Organization) error
	List(ctx context.Context, activeOnly bool) ([]*Organization, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepository persists User rows, always scoped to a tenant.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, tenantID uuid.UUID) ([]*User, error)
}

// ProviderRepository persists Provider rows, including the encrypted OAuth2
// token fields.
type ProviderRepository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Provider, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]*Provider, error)
	Update(ctx context.Context, p *Provider) error
	UpdateTokens(ctx context.Context, tenantID, id uuid.UUID, accessEnc, refreshEnc, scope string, expiresAt *time.Time) error
	ClearTokens(ctx context.Context, tenantID, id uuid.UUID) error
}

// AssignmentRepository persists UserProviderAssignment rows.
type AssignmentRepository interface {
	Create(ctx context.Context, a *Assignment) error
	ProviderIDsForUser(ctx context.Context, tenantID, userID uuid.UUID) ([]uuid.UUID, error)
	Delete(ctx context.Context, tenantID, userID, providerID uuid.UUID) error
}
