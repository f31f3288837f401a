// Package tenant models organizations, their users, and the providers whose
// EHR credentials those organizations hold.
package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Role is the set of permission levels a User can hold within its tenant.
type Role string

const (
	RoleRootAdmin Role = "root_admin"
	RoleOrgAdmin  Role = "org_admin"
	RoleProvider  Role = "provider"
	RoleStaff     Role = "staff"
)

// Organization is a single HealthPrep tenant.
type Organization struct {
	ID                  uuid.UUID
	Name                string
	EpicBaseURL         string
	EpicClientID        string
	EpicClientSecretEnc string
	FHIRHourlyCallLimit int
	OverdueThresholdDays int
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// User is a staff member, provider, or administrator within a tenant.
type User struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Email       string
	DisplayName string
	Role        Role
	Active      bool
	CreatedAt   time.Time
}

// Provider is a clinician whose Epic identity HealthPrep syncs against. The
// OAuth2 token fields are PHI-adjacent secrets and are stored encrypted.
type Provider struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	NPI                string
	DisplayName        string
	EpicPractitionerID string
	AccessTokenEnc     string
	RefreshTokenEnc    string
	TokenScope         string
	TokenExpiresAt     *time.Time
	Active             bool
	CreatedAt          time.Time
}

// Assignment grants a User visibility into a Provider's patients.
type Assignment struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	UserID     uuid.UUID
	ProviderID uuid.UUID
	CreatedAt  time.Time
}
