package prepsheet

import (
	"context"
	"errors"
	"fmt"

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

const prepSheetColumns = `id, tenant_id, patient_id, appointment_id, generated_at,
	html, pdf, dry_run, epic_document_reference_id`

func scanPrepSheet(row pgx.Row) (*PrepSheet, error) {
	var p PrepSheet
	err := row.Scan(&p.ID, &p.TenantID, &p.PatientID, &p.AppointmentID, &p.GeneratedAt,
		&p.HTML, &p.PDF, &p.DryRun, &p.EpicDocumentReferenceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, corerr.New(corerr.KindNotFound, "prep sheet not found")
		}
		return nil, fmt.Errorf("prepsheet: scan: %w", err)
	}
	return &p, nil
}

func (r *RepoPG) Create(ctx context.Context, p *PrepSheet) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	q := db.Resolve(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO prep_sheet (id, tenant_id, patient_id, appointment_id, generated_at,
			html, pdf, dry_run, epic_document_reference_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.TenantID, p.PatientID, p.AppointmentID, p.GeneratedAt,
		p.HTML, p.PDF, p.DryRun, p.EpicDocumentReferenceID)
	if err != nil {
		return fmt.Errorf("prepsheet: create: %w", err)
	}
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*PrepSheet, error) {
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+prepSheetColumns+` FROM prep_sheet WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return scanPrepSheet(row)
}
