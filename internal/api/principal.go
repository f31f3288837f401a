package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthprep/healthprep/internal/domain/tenant"
)

// Principal is the caller identity and provider scope resolved from the
// gateway-set request headers (spec §6): X-Tenant-ID, X-User-ID,
// X-User-Roles, and X-Accessible-Providers. HealthPrep sits behind an
// authenticating gateway and trusts these headers the way the request
// reaches internal/api — it does not itself terminate session auth.
type Principal struct {
	TenantID            uuid.UUID
	UserID               uuid.UUID
	Roles                []tenant.Role
	AccessibleProviderIDs []uuid.UUID
}

// IsAdmin reports whether the principal holds a role that bypasses
// per-provider scoping (root_admin, org_admin).
func (p Principal) IsAdmin() bool {
	for _, r := range p.Roles {
		if r == tenant.RoleRootAdmin || r == tenant.RoleOrgAdmin {
			return true
		}
	}
	return false
}

const (
	headerTenantID           = "X-Tenant-ID"
	headerUserID             = "X-User-ID"
	headerUserRoles          = "X-User-Roles"
	headerAccessibleProviders = "X-Accessible-Providers"
)

// principalFromContext parses and validates the trust-boundary headers.
// Any missing or malformed header is a 401, not a 400: a request lacking
// these headers did not pass through the gateway correctly.
func principalFromContext(c echo.Context) (Principal, error) {
	var p Principal

	tenantID, err := uuid.Parse(c.Request().Header.Get(headerTenantID))
	if err != nil {
		return p, echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid "+headerTenantID)
	}
	userID, err := uuid.Parse(c.Request().Header.Get(headerUserID))
	if err != nil {
		return p, echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid "+headerUserID)
	}

	rolesHeader := c.Request().Header.Get(headerUserRoles)
	if rolesHeader == "" {
		return p, echo.NewHTTPError(http.StatusUnauthorized, "missing "+headerUserRoles)
	}
	var roles []tenant.Role
	for _, r := range strings.Split(rolesHeader, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			roles = append(roles, tenant.Role(r))
		}
	}

	var providerIDs []uuid.UUID
	if raw := c.Request().Header.Get(headerAccessibleProviders); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return p, echo.NewHTTPError(http.StatusUnauthorized, "invalid "+headerAccessibleProviders)
			}
			providerIDs = append(providerIDs, id)
		}
	}

	p.TenantID = tenantID
	p.UserID = userID
	p.Roles = roles
	p.AccessibleProviderIDs = providerIDs
	return p, nil
}
