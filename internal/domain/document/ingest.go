package document

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/platform/corerr"
	"github.com/healthprep/healthprep/internal/platform/ocr"
	"github.com/healthprep/healthprep/internal/platform/phi"
)

// Ingester turns an uploaded file into a stored, redacted, OCR'd Document.
type Ingester struct {
	repo      Repository
	extractor ocr.Extractor
	encryptor *phi.PHIEncryptor
}

func NewIngester(repo Repository, extractor ocr.Extractor, encryptor *phi.PHIEncryptor) *Ingester {
	return &Ingester{repo: repo, extractor: extractor, encryptor: encryptor}
}

// Ingest extracts text, redacts PHI, encrypts the redacted text, and
// stores the Document. It returns corerr.KindPHIFilterFailed if OCR
// confidence never clears ocr.ConfidenceFloor — per spec §4.4, HealthPrep
// never persists unredacted or unreliable-confidence text.
func (in *Ingester) Ingest(ctx context.Context, tenantID, patientID uuid.UUID, filename, mimeType string, data []byte, documentDate *time.Time) (*Document, phi.RedactionCounts, error) {
	result, err := in.extractor.Extract(ctx, mimeType, data)
	if err != nil {
		return nil, nil, fmt.Errorf("document: extract: %w", err)
	}
	if result.Failed() {
		return nil, nil, corerr.New(corerr.KindPHIFilterFailed, "ocr_failed: confidence below floor")
	}

	redactedText, counts := phi.Redact(result.Text)

	enc, err := in.encryptor.Encrypt(tenantID, redactedText)
	if err != nil {
		return nil, nil, fmt.Errorf("document: encrypt redacted text: %w", err)
	}

	d := &Document{
		TenantID:      tenantID,
		PatientID:     patientID,
		Source:        SourceUpload,
		Filename:      filename,
		MimeType:      mimeType,
		OCRTextEnc:    enc,
		OCRConfidence: result.Confidence,
		Redacted:      true,
		DocumentDate:  documentDate,
	}
	if err := in.repo.Create(ctx, d); err != nil {
		return nil, nil, err
	}
	return d, counts, nil
}
