package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service composes the tenant repositories into the operations the API and
// CLI actually call. It contains no SQL of its own.
type Service struct {
	Orgs        OrganizationRepository
	Users       UserRepository
	Providers   ProviderRepository
	Assignments AssignmentRepository
}

func NewService(orgs OrganizationRepository, users UserRepository, providers ProviderRepository, assignments AssignmentRepository) *Service {
	return &Service{Orgs: orgs, Users: users, Providers: providers, Assignments: assignments}
}

// CreateOrganization provisions a new tenant with default limits.
func (s *Service) CreateOrganization(ctx context.Context, name string) (*Organization, error) {
	o := &Organization{
		Name:                 name,
		FHIRHourlyCallLimit:  1000,
		OverdueThresholdDays: 30,
		Active:               true,
	}
	if err := s.Orgs.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("tenant: create organization: %w", err)
	}
	return o, nil
}

// AccessibleProviderIDs returns the providers a user may act against. Staff
// with no explicit assignment see none; org_admin and root_admin see the
// full tenant roster, matching spec §6's X-Accessible-Providers contract.
func (s *Service) AccessibleProviderIDs(ctx context.Context, tenantID, userID uuid.UUID, role Role) ([]uuid.UUID, error) {
	if role == RoleOrgAdmin || role == RoleRootAdmin {
		all, err := s.Providers.List(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, 0, len(all))
		for _, p := range all {
			ids = append(ids, p.ID)
		}
		return ids, nil
	}
	return s.Assignments.ProviderIDsForUser(ctx, tenantID, userID)
}

// AssignProvider grants userID visibility into providerID's patients.
func (s *Service) AssignProvider(ctx context.Context, tenantID, userID, providerID uuid.UUID) error {
	return s.Assignments.Create(ctx, &Assignment{TenantID: tenantID, UserID: userID, ProviderID: providerID})
}
