package appointment

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

// RepoPG is the Postgres-backed Repository.
type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG { return &RepoPG{pool: pool} }

const appointmentColumns = `id, tenant_id, patient_id, provider_id, epic_appointment_id,
	scheduled_at, status, prep_sheet_id, created_at`

func scan(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &a.TenantID, &a.PatientID, &a.ProviderID, &a.EpicAppointmentID,
		&a.ScheduledAt, &status, &a.PrepSheetID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, corerr.New(corerr.KindNotFound, "appointment not found")
		}
		return nil, fmt.Errorf("appointment: scan: %w", err)
	}
	a.Status = Status(status)
	return &a, nil
}

func (r *RepoPG) Upsert(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	q := db.Resolve(ctx, r.pool)
	var err error
	if a.EpicAppointmentID != "" {
		_, err = q.Exec(ctx, `
			INSERT INTO appointment (id, tenant_id, patient_id, provider_id, epic_appointment_id, scheduled_at, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO NOTHING`,
			a.ID, a.TenantID, a.PatientID, a.ProviderID, a.EpicAppointmentID, a.ScheduledAt, string(a.Status))
	} else {
		_, err = q.Exec(ctx, `
			INSERT INTO appointment (id, tenant_id, patient_id, provider_id, scheduled_at, status)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			a.ID, a.TenantID, a.PatientID, a.ProviderID, a.ScheduledAt, string(a.Status))
	}
	if err != nil {
		return fmt.Errorf("appointment: upsert: %w", err)
	}
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error) {
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointment WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return scan(row)
}

func (r *RepoPG) ListUpcoming(ctx context.Context, tenantID uuid.UUID, providerIDs []uuid.UUID, window time.Duration) ([]*Appointment, error) {
	q := db.Resolve(ctx, r.pool)
	until := time.Now().Add(window)

	query := `SELECT ` + appointmentColumns + ` FROM appointment
		WHERE tenant_id=$1 AND status='scheduled' AND scheduled_at BETWEEN NOW() AND $2`
	args := []any{tenantID, until}
	if len(providerIDs) > 0 {
		query += ` AND provider_id = ANY($3)`
		args = append(args, providerIDs)
	}
	query += ` ORDER BY scheduled_at`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointment: list upcoming: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *RepoPG) SetPrepSheet(ctx context.Context, tenantID, id, prepSheetID uuid.UUID) error {
	q := db.Resolve(ctx, r.pool)
	tag, err := q.Exec(ctx, `UPDATE appointment SET prep_sheet_id=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, id, prepSheetID)
	if err != nil {
		return fmt.Errorf("appointment: set prep sheet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return corerr.New(corerr.KindNotFound, "appointment not found")
	}
	return nil
}
