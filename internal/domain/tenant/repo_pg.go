package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthprep/healthprep/internal/platform/corerr"
	"github.com/healthprep/healthprep/internal/platform/db"
)

// OrgRepoPG is the Postgres-backed OrganizationRepository.
type OrgRepoPG struct {
	pool *pgxpool.Pool
}

func NewOrgRepoPG(pool *pgxpool.Pool) *OrgRepoPG { return &OrgRepoPG{pool: pool} }

const orgColumns = `id, name, epic_base_url, epic_client_id, epic_client_secret_enc,
	fhir_hourly_call_limit, overdue_threshold_days, active, created_at, updated_at`

func scanOrg(row pgx.Row) (*Organization, error) {
	var o Organization
	err := row.Scan(&o.ID, &o.Name, &o.EpicBaseURL, &o.EpicClientID, &o.EpicClientSecretEnc,
		&o.FHIRHourlyCallLimit, &o.OverdueThresholdDays, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, corerr.New(corerr.KindNotFound, "organization not found")
		}
		return nil, fmt.Errorf("tenant: scan organization: %w", err)
	}
	return &o, nil
}

func (r *OrgRepoPG) Create(ctx context.Context, o *Organization) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	q := db.Resolve(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO organization (id, name, epic_base_url, epic_client_id, epic_client_secret_enc,
			fhir_hourly_call_limit, overdue_threshold_days, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.ID, o.Name, o.EpicBaseURL, o.EpicClientID, o.EpicClientSecretEnc,
		o.FHIRHourlyCallLimit, o.OverdueThresholdDays, o.Active)
	if err != nil {
		return fmt.Errorf("tenant: create organization: %w", err)
	}
	return nil
}

func (r *OrgRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+orgColumns+` FROM organization WHERE id = $1`, id)
	return scanOrg(row)
}

func (r *OrgRepoPG) Update(ctx context.Context, o *Organization) error {
	q := db.Resolve(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE organization SET name=$2, epic_base_url=$3, epic_client_id=$4,
			epic_client_secret_enc=$5, fhir_hourly_call_limit=$6, overdue_threshold_days=$7,
			active=$8, updated_at=NOW()
		WHERE id=$1`,
		o.ID, o.Name, o.EpicBaseURL, o.EpicClientID, o.EpicClientSecretEnc,
		o.FHIRHourlyCallLimit, o.OverdueThresholdDays, o.Active)
	if err != nil {
		return fmt.Errorf("tenant: update organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return corerr.New(corerr.KindNotFound, "organization not found")
	}
	return nil
}

func (r *OrgRepoPG) List(ctx context.Context, activeOnly bool) ([]*Organization, error) {
	q := db.Resolve(ctx, r.pool)
	query := `SELECT ` + orgColumns + ` FROM organization`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("tenant: list organizations: %w", err)
	}
	defer rows.Close()

	var out []*Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrgRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	q := db.Resolve(ctx, r.pool)
	_, err := q.Exec(ctx, `DELETE FROM organization WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("tenant: delete organization: %w", err)
	}
	return nil
}

// UserRepoPG is the Postgres-backed UserRepository.
type UserRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepoPG(pool *pgxpool.Pool) *UserRepoPG { return &UserRepoPG{pool: pool} }

const userColumns = `id, tenant_id, email, display_name, role, active, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.DisplayName, &role, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, corerr.New(corerr.KindNotFound, "user not found")
		}
		return nil, fmt.Errorf("tenant: scan user: %w", err)
	}
	u.Role = Role(role)
	return &u, nil
}

func (r *UserRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	q := db.Resolve(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO app_user (id, tenant_id, email, display_name, role, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.TenantID, u.Email, u.DisplayName, string(u.Role), u.Active)
	if err != nil {
		return fmt.Errorf("tenant: create user: %w", err)
	}
	return nil
}

func (r *UserRepoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*User, error) {
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return scanUser(row)
}

func (r *UserRepoPG) GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error) {
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE tenant_id=$1 AND email=$2`, tenantID, email)
	return scanUser(row)
}

func (r *UserRepoPG) Update(ctx context.Context, u *User) error {
	q := db.Resolve(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE app_user SET display_name=$3, role=$4, active=$5
		WHERE tenant_id=$1 AND id=$2`,
		u.TenantID, u.ID, u.DisplayName, string(u.Role), u.Active)
	if err != nil {
		return fmt.Errorf("tenant: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return corerr.New(corerr.KindNotFound, "user not found")
	}
	return nil
}

func (r *UserRepoPG) List(ctx context.Context, tenantID uuid.UUID) ([]*User, error) {
	q := db.Resolve(ctx, r.pool)
	rows, err := q.Query(ctx, `SELECT `+userColumns+` FROM app_user WHERE tenant_id=$1 ORDER BY display_name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant: list users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ProviderRepoPG is the Postgres-backed ProviderRepository.
type ProviderRepoPG struct {
	pool *pgxpool.Pool
}

func NewProviderRepoPG(pool *pgxpool.Pool) *ProviderRepoPG { return &ProviderRepoPG{pool: pool} }

const providerColumns = `id, tenant_id, npi, display_name, epic_practitioner_id,
	access_token_enc, refresh_token_enc, token_scope, token_expires_at, active, created_at`

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.TenantID, &p.NPI, &p.DisplayName, &p.EpicPractitionerID,
		&p.AccessTokenEnc, &p.RefreshTokenEnc, &p.TokenScope, &p.TokenExpiresAt, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, corerr.New(corerr.KindNotFound, "provider not found")
		}
		return nil, fmt.Errorf("tenant: scan provider: %w", err)
	}
	return &p, nil
}

func (r *ProviderRepoPG) Create(ctx context.Context, p *Provider) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	q := db.Resolve(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO provider (id, tenant_id, npi, display_name, epic_practitioner_id,
			access_token_enc, refresh_token_enc, token_scope, token_expires_at, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.TenantID, p.NPI, p.DisplayName, p.EpicPractitionerID,
		p.AccessTokenEnc, p.RefreshTokenEnc, p.TokenScope, p.TokenExpiresAt, p.Active)
	if err != nil {
		return fmt.Errorf("tenant: create provider: %w", err)
	}
	return nil
}

func (r *ProviderRepoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Provider, error) {
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+providerColumns+` FROM provider WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return scanProvider(row)
}

func (r *ProviderRepoPG) List(ctx context.Context, tenantID uuid.UUID) ([]*Provider, error) {
	q := db.Resolve(ctx, r.pool)
	rows, err := q.Query(ctx, `SELECT `+providerColumns+` FROM provider WHERE tenant_id=$1 ORDER BY display_name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant: list providers: %w", err)
	}
	defer rows.Close()

	var out []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProviderRepoPG) Update(ctx context.Context, p *Provider) error {
	q := db.Resolve(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE provider SET npi=$3, display_name=$4, epic_practitioner_id=$5, active=$6
		WHERE tenant_id=$1 AND id=$2`,
		p.TenantID, p.ID, p.NPI, p.DisplayName, p.EpicPractitionerID, p.Active)
	if err != nil {
		return fmt.Errorf("tenant: update provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return corerr.New(corerr.KindNotFound, "provider not found")
	}
	return nil
}

func (r *ProviderRepoPG) UpdateTokens(ctx context.Context, tenantID, id uuid.UUID, accessEnc, refreshEnc, scope string, expiresAt *time.Time) error {
	q := db.Resolve(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE provider SET access_token_enc=$3, refresh_token_enc=$4, token_scope=$5, token_expires_at=$6
		WHERE tenant_id=$1 AND id=$2`,
		tenantID, id, accessEnc, refreshEnc, scope, expiresAt)
	if err != nil {
		return fmt.Errorf("tenant: update provider tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return corerr.New(corerr.KindNotFound, "provider not found")
	}
	return nil
}

func (r *ProviderRepoPG) ClearTokens(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.UpdateTokens(ctx, tenantID, id, "", "", "", nil)
}

// AssignmentRepoPG is the Postgres-backed AssignmentRepository.
type AssignmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAssignmentRepoPG(pool *pgxpool.Pool) *AssignmentRepoPG { return &AssignmentRepoPG{pool: pool} }

func (r *AssignmentRepoPG) Create(ctx context.Context, a *Assignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	q := db.Resolve(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO user_provider_assignment (id, tenant_id, user_id, provider_id)
		VALUES ($1,$2,$3,$4) ON CONFLICT (user_id, provider_id) DO NOTHING`,
		a.ID, a.TenantID, a.UserID, a.ProviderID)
	if err != nil {
		return fmt.Errorf("tenant: create assignment: %w", err)
	}
	return nil
}

func (r *AssignmentRepoPG) ProviderIDsForUser(ctx context.Context, tenantID, userID uuid.UUID) ([]uuid.UUID, error) {
	q := db.Resolve(ctx, r.pool)
	rows, err := q.Query(ctx, `
		SELECT provider_id FROM user_provider_assignment WHERE tenant_id=$1 AND user_id=$2`,
		tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("tenant: list assignments: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("tenant: scan assignment: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *AssignmentRepoPG) Delete(ctx context.Context, tenantID, userID, providerID uuid.UUID) error {
	q := db.Resolve(ctx, r.pool)
	_, err := q.Exec(ctx, `
		DELETE FROM user_provider_assignment WHERE tenant_id=$1 AND user_id=$2 AND provider_id=$3`,
		tenantID, userID, providerID)
	if err != nil {
		return fmt.Errorf("tenant: delete assignment: %w", err)
	}
	return nil
}
