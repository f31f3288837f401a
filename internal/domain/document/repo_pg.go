package document

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

const documentColumns = `id, tenant_id, patient_id, source, filename, mime_type,
	ocr_text_enc, ocr_confidence, redacted, document_date, created_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	var source string
	err := row.Scan(&d.ID, &d.TenantID, &d.PatientID, &source, &d.Filename, &d.MimeType,
		&d.OCRTextEnc, &d.OCRConfidence, &d.Redacted, &d.DocumentDate, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, corerr.New(corerr.KindNotFound, "document not found")
		}
		return nil, fmt.Errorf("document: scan: %w", err)
	}
	d.Source = Source(source)
	return &d, nil
}

func (r *RepoPG) Create(ctx context.Context, d *Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	q := db.Resolve(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO document (id, tenant_id, patient_id, source, filename, mime_type,
			ocr_text_enc, ocr_confidence, redacted, document_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.ID, d.TenantID, d.PatientID, string(d.Source), d.Filename, d.MimeType,
		d.OCRTextEnc, d.OCRConfidence, d.Redacted, d.DocumentDate)
	if err != nil {
		return fmt.Errorf("document: create: %w", err)
	}
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Document, error) {
	q := db.Resolve(ctx, r.pool)
	row := q.QueryRow(ctx, `SELECT `+documentColumns+` FROM document WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return scanDocument(row)
}

func (r *RepoPG) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*Document, error) {
	q := db.Resolve(ctx, r.pool)
	rows, err := q.Query(ctx, `SELECT `+documentColumns+` FROM document WHERE tenant_id=$1 AND patient_id=$2 ORDER BY document_date DESC NULLS LAST`, tenantID, patientID)
	if err != nil {
		return nil, fmt.Errorf("document: list by patient: %w", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FHIRDocumentRepoPG is the Postgres-backed FHIRDocumentRepository.
type FHIRDocumentRepoPG struct {
	pool *pgxpool.Pool
}

func NewFHIRDocumentRepoPG(pool *pgxpool.Pool) *FHIRDocumentRepoPG { return &FHIRDocumentRepoPG{pool: pool} }

const fhirDocumentColumns = `id, tenant_id, patient_id, fhir_resource_type, fhir_id,
	loinc_code, cvx_code, raw_fhir_resource, effective_date, created_at`

func scanFHIRDocument(row pgx.Row) (*FHIRDocument, error) {
	var d FHIRDocument
	var resourceType string
	err := row.Scan(&d.ID, &d.TenantID, &d.PatientID, &resourceType, &d.FHIRID,
		&d.LOINCCode, &d.CVXCode, &d.RawFHIRResource, &d.EffectiveDate, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, corerr.New(corerr.KindNotFound, "fhir document not found")
		}
		return nil, fmt.Errorf("document: scan fhir document: %w", err)
	}
	d.FHIRResourceType = FHIRResourceType(resourceType)
	return &d, nil
}

func (r *FHIRDocumentRepoPG) Upsert(ctx context.Context, d *FHIRDocument) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	q := db.Resolve(ctx, r.pool)
	_, err := q.Exec(ctx, `
		INSERT INTO fhir_document (id, tenant_id, patient_id, fhir_resource_type, fhir_id,
			loinc_code, cvx_code, raw_fhir_resource, effective_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (tenant_id, fhir_resource_type, fhir_id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			loinc_code = EXCLUDED.loinc_code,
			cvx_code = EXCLUDED.cvx_code,
			raw_fhir_resource = EXCLUDED.raw_fhir_resource,
			effective_date = EXCLUDED.effective_date`,
		d.ID, d.TenantID, d.PatientID, string(d.FHIRResourceType), d.FHIRID,
		d.LOINCCode, d.CVXCode, d.RawFHIRResource, d.EffectiveDate)
	if err != nil {
		return fmt.Errorf("document: upsert fhir document: %w", err)
	}
	return nil
}

func (r *FHIRDocumentRepoPG) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*FHIRDocument, error) {
	q := db.Resolve(ctx, r.pool)
	rows, err := q.Query(ctx, `SELECT `+fhirDocumentColumns+` FROM fhir_document WHERE tenant_id=$1 AND patient_id=$2 ORDER BY effective_date DESC NULLS LAST`, tenantID, patientID)
	if err != nil {
		return nil, fmt.Errorf("document: list fhir documents by patient: %w", err)
	}
	defer rows.Close()

	var out []*FHIRDocument
	for rows.Next() {
		d, err := scanFHIRDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
