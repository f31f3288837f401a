package screening

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

const screeningColumns = `id, tenant_id, patient_id, screening_type_id, status,
	last_completed_date, next_due_date, requires_vaccine_codes, matched_criteria_signature, created_at, updated_at`

func scanScreening(row pgx.Row) (*Screening, error) {
	var s Screening
	var status string
	err := row.Scan(&s.ID, &s.TenantID, &s.PatientID, &s.ScreeningTypeID, &status,
		&s.LastCompletedDate, &s.NextDueDate, &s.RequiresVaccineCodes, &s.MatchedCriteriaSignature, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, corerr.New(corerr.KindNotFound, "screening not found")
		}
		return nil, fmt.Errorf("screening: scan: %w", err)
	}
	s.Status = Status(status)
	return &s, nil
}

func (r *RepoPG) Upsert(ctx context.Context, s *Screening) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `
		INSERT INTO screening (id, tenant_id, patient_id, screening_type_id, status,
			last_completed_date, next_due_date, requires_vaccine_codes, matched_criteria_signature)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (patient_id, screening_type_id) DO UPDATE SET
			status = EXCLUDED.status,
			last_completed_date = EXCLUDED.last_completed_date,
			next_due_date = EXCLUDED.next_due_date,
			requires_vaccine_codes = EXCLUDED.requires_vaccine_codes,
			matched_criteria_signature = EXCLUDED.matched_criteria_signature,
			updated_at = NOW()
		RETURNING id`,
		s.ID, s.TenantID, s.PatientID, s.ScreeningTypeID, string(s.Status),
		s.LastCompletedDate, s.NextDueDate, s.RequiresVaccineCodes, s.MatchedCriteriaSignature)
	if err := row.Scan(&s.ID); err != nil {
		return fmt.Errorf("screening: upsert: %w", err)
	}
	return nil
}

func (r *RepoPG) GetByPatientAndType(ctx context.Context, tenantID, patientID, screeningTypeID uuid.UUID) (*Screening, error) {
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `
		SELECT `+screeningColumns+` FROM screening
		WHERE tenant_id=$1 AND patient_id=$2 AND screening_type_id=$3`,
		tenantID, patientID, screeningTypeID)
	return scanScreening(row)
}

func (r *RepoPG) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*Screening, error) {
	q := db.Resolve(ctx, r.pool)
	rows, err := q.Query(ctx, `SELECT `+screeningColumns+` FROM screening WHERE tenant_id=$1 AND patient_id=$2`, tenantID, patientID)
	if err != nil {
		return nil, fmt.Errorf("screening: list by patient: %w", err)
	}
	defer rows.Close()
	return collectScreenings(rows)
}

func (r *RepoPG) ListByType(ctx context.Context, screeningTypeID uuid.UUID) ([]*Screening, error) {
	q := db.Resolve(ctx, r.pool)
	rows, err := q.Query(ctx, `SELECT `+screeningColumns+` FROM screening WHERE screening_type_id=$1`, screeningTypeID)
	if err != nil {
		return nil, fmt.Errorf("screening: list by type: %w", err)
	}
	defer rows.Close()
	return collectScreenings(rows)
}

func collectScreenings(rows pgx.Rows) ([]*Screening, error) {
	var out []*Screening
	for rows.Next() {
		s, err := scanScreening(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReplaceMatches replaces a screening's matched-evidence links, running
// the delete and the inserts inside db.RunInTx. The emrsync pipeline calls
// it after Upsert; the two are not wrapped in a shared transaction.
func (r *RepoPG) ReplaceMatches(ctx context.Context, screeningID uuid.UUID, matches []Match) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Resolve(ctx, r.pool)
		if _, err := q.Exec(ctx, `DELETE FROM screening_document WHERE screening_id=$1`, screeningID); err != nil {
			return fmt.Errorf("screening: clear matches: %w", err)
		}
		for _, m := range matches {
			var docID, fhirDocID any
			switch m.Kind {
			case EvidenceDocument:
				docID, fhirDocID = m.EvidenceID, nil
			case EvidenceFHIRDocument:
				docID, fhirDocID = nil, m.EvidenceID
			}
			_, err := q.Exec(ctx, `
				INSERT INTO screening_document (screening_id, document_id, fhir_document_id, match_score, matched_keyword)
				VALUES ($1,$2,$3,$4,$5)`,
				screeningID, docID, fhirDocID, m.Score, m.MatchedKeyword)
			if err != nil {
				return fmt.Errorf("screening: insert match: %w", err)
			}
		}
		return nil
	})
}
