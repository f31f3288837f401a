package patient

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
	"github.com/healthprep/healthprep/internal/platform/phi"
)

// RepoPG is the Postgres-backed Repository. It encrypts first/last name
// before INSERT/UPDATE and decrypts them after every SELECT, the same
// field-level pattern the teacher's identity repository uses for patient
// and practitioner PHI.
type RepoPG struct {
	pool      *pgxpool.Pool
	encryptor *phi.PHIEncryptor
}

func NewRepoPG(pool *pgxpool.Pool, encryptor *phi.PHIEncryptor) *RepoPG {
	return &RepoPG{pool: pool, encryptor: encryptor}
}

const patientColumns = `id, tenant_id, provider_id, mrn, epic_patient_id,
	first_name_enc, last_name_enc, birth_date, sex,
	last_fhir_sync_at, documents_last_evaluated_at, created_at, updated_at`

func (r *RepoPG) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	var firstEnc, lastEnc string
	err := row.Scan(&p.ID, &p.TenantID, &p.ProviderID, &p.MRN, &p.EpicPatientID,
		&firstEnc, &lastEnc, &p.BirthDate, &p.Sex,
		&p.LastFHIRSyncAt, &p.DocumentsLastEvaluatedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, corerr.New(corerr.KindNotFound, "patient not found")
		}
		return nil, fmt.Errorf("patient: scan: %w", err)
	}

	p.FirstName, err = r.encryptor.Decrypt(p.TenantID, firstEnc)
	if err != nil {
		return nil, fmt.Errorf("patient: decrypt first name: %w", err)
	}
	p.LastName, err = r.encryptor.Decrypt(p.TenantID, lastEnc)
	if err != nil {
		return nil, fmt.Errorf("patient: decrypt last name: %w", err)
	}
	return &p, nil
}

func (r *RepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	firstEnc, err := r.encryptor.Encrypt(p.TenantID, p.FirstName)
	if err != nil {
		return fmt.Errorf("patient: encrypt first name: %w", err)
	}
	lastEnc, err := r.encryptor.Encrypt(p.TenantID, p.LastName)
	if err != nil {
		return fmt.Errorf("patient: encrypt last name: %w", err)
	}

	q := db.Resolve(ctx, r.pool)
	_, err = q.Exec(ctx, `
		INSERT INTO patient (id, tenant_id, provider_id, mrn, epic_patient_id,
			first_name_enc, last_name_enc, birth_date, sex)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.TenantID, p.ProviderID, p.MRN, p.EpicPatientID, firstEnc, lastEnc, p.BirthDate, p.Sex)
	if err != nil {
		return fmt.Errorf("patient: create: %w", err)
	}
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Patient, error) {
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+patientColumns+` FROM patient WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return r.scan(row)
}

func (r *RepoPG) GetByMRN(ctx context.Context, tenantID uuid.UUID, mrn string) (*Patient, error) {
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+patientColumns+` FROM patient WHERE tenant_id=$1 AND mrn=$2`, tenantID, mrn)
	return r.scan(row)
}

func (r *RepoPG) GetByEpicPatientID(ctx context.Context, tenantID uuid.UUID, epicID string) (*Patient, error) {
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+patientColumns+` FROM patient WHERE tenant_id=$1 AND epic_patient_id=$2`, tenantID, epicID)
	return r.scan(row)
}

func (r *RepoPG) Update(ctx context.Context, p *Patient) error {
	firstEnc, err := r.encryptor.Encrypt(p.TenantID, p.FirstName)
	if err != nil {
		return fmt.Errorf("patient: encrypt first name: %w", err)
	}
	lastEnc, err := r.encryptor.Encrypt(p.TenantID, p.LastName)
	if err != nil {
		return fmt.Errorf("patient: encrypt last name: %w", err)
	}

	q := db.Resolve(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE patient SET provider_id=$3, mrn=$4, epic_patient_id=$5,
			first_name_enc=$6, last_name_enc=$7, birth_date=$8, sex=$9,
			documents_last_evaluated_at=$10, updated_at=NOW()
		WHERE tenant_id=$1 AND id=$2`,
		p.TenantID, p.ID, p.ProviderID, p.MRN, p.EpicPatientID,
		firstEnc, lastEnc, p.BirthDate, p.Sex, p.DocumentsLastEvaluatedAt)
	if err != nil {
		return fmt.Errorf("patient: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return corerr.New(corerr.KindNotFound, "patient not found")
	}
	return nil
}

func (r *RepoPG) ListByProvider(ctx context.Context, tenantID, providerID uuid.UUID) ([]*Patient, error) {
	q := db.Resolve(ctx, r.pool)
	rows, err := q.Query(ctx, `SELECT `+patientColumns+` FROM patient WHERE tenant_id=$1 AND provider_id=$2 ORDER BY mrn`, tenantID, providerID)
	if err != nil {
		return nil, fmt.Errorf("patient: list by provider: %w", err)
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *RepoPG) MarkSynced(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	q := db.Resolve(ctx, r.pool)
	_, err := q.Exec(ctx, `UPDATE patient SET last_fhir_sync_at=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, id, at)
	if err != nil {
		return fmt.Errorf("patient: mark synced: %w", err)
	}
	return nil
}

// ConditionRepoPG is the Postgres-backed ConditionRepository.
type ConditionRepoPG struct {
	pool *pgxpool.Pool
}

func NewConditionRepoPG(pool *pgxpool.Pool) *ConditionRepoPG { return &ConditionRepoPG{pool: pool} }

// Replace deletes and reinserts a patient's condition list inside a single
// transaction, since EHR sync always delivers the full current problem list
// rather than incremental diffs.
func (r *ConditionRepoPG) Replace(ctx context.Context, tenantID, patientID uuid.UUID, conditions []*Condition) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Resolve(ctx, r.pool)
		if _, err := q.Exec(ctx, `DELETE FROM patient_condition WHERE tenant_id=$1 AND patient_id=$2`, tenantID, patientID); err != nil {
			return fmt.Errorf("patient: clear conditions: %w", err)
		}
		for _, c := range conditions {
			if c.ID == uuid.Nil {
				c.ID = uuid.New()
			}
			_, err := q.Exec(ctx, `
				INSERT INTO patient_condition (id, tenant_id, patient_id, icd10_code, description, clinical_status, onset_date)
				VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				c.ID, tenantID, patientID, c.ICD10Code, c.Description, c.ClinicalStatus, c.OnsetDate)
			if err != nil {
				return fmt.Errorf("patient: insert condition: %w", err)
			}
		}
		return nil
	})
}

func (r *ConditionRepoPG) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*Condition, error) {
	q := db.Resolve(ctx, r.pool)
	rows, err := q.Query(ctx, `
		SELECT id, tenant_id, patient_id, icd10_code, description, clinical_status, onset_date, created_at
		FROM patient_condition WHERE tenant_id=$1 AND patient_id=$2 ORDER BY onset_date DESC NULLS LAST`,
		tenantID, patientID)
	if err != nil {
		return nil, fmt.Errorf("patient: list conditions: %w", err)
	}
	defer rows.Close()

	var out []*Condition
	for rows.Next() {
		var c Condition
		if err := rows.Scan(&c.ID, &c.TenantID, &c.PatientID, &c.ICD10Code, &c.Description, &c.ClinicalStatus, &c.OnsetDate, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("patient: scan condition: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
