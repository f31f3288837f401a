package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthprep/healthprep/internal/domain/document"
	"github.com/healthprep/healthprep/internal/platform/alert"
	"github.com/healthprep/healthprep/internal/platform/ocr"
	"github.com/healthprep/healthprep/internal/platform/phi"
)

type fakeDocumentRepo struct {
	created []*document.Document
}

func (f *fakeDocumentRepo) Create(ctx context.Context, d *document.Document) error {
	d.ID = uuid.New()
	f.created = append(f.created, d)
	return nil
}
func (f *fakeDocumentRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*document.Document, error) {
	for _, d := range f.created {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}
func (f *fakeDocumentRepo) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*document.Document, error) {
	return f.created, nil
}

// fixedConfidenceExtractor always returns the same confidence, so tests
// can drive the ocr.ConfidenceFloor branch deterministically without a
// real extraction pipeline.
type fixedConfidenceExtractor struct {
	confidence float64
}

func (e fixedConfidenceExtractor) Extract(ctx context.Context, contentType string, data []byte) (ocr.Result, error) {
	return ocr.Result{Text: "patient notes", Confidence: e.confidence, Method: ocr.MethodVerbatim, Pages: 1}, nil
}

type capturingNotifier struct {
	mu     sync.Mutex
	events []alert.Event
}

func (n *capturingNotifier) Notify(ctx context.Context, e alert.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func newMultipartUploadRequest(t *testing.T, filename, content string) (*http.Request, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/patients/:id/documents", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req, w.Boundary()
}

func newTestEncryptor(t *testing.T) *phi.PHIEncryptor {
	t.Helper()
	enc, err := phi.NewPHIEncryptor(make([]byte, 32))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	return enc
}

func TestDocumentHandler_Upload_StoresRedactedDocument(t *testing.T) {
	repo := &fakeDocumentRepo{}
	ingester := document.NewIngester(repo, fixedConfidenceExtractor{confidence: 0.95}, newTestEncryptor(t))
	notifier := &capturingNotifier{}
	handler := NewDocumentHandler(ingester, notifier)

	tenantID := uuid.New()
	userID := uuid.New()
	patientID := uuid.New()

	req, _ := newMultipartUploadRequest(t, "note.txt", "patient has a history of diabetes")
	req.Header.Set(headerTenantID, tenantID.String())
	req.Header.Set(headerUserID, userID.String())
	req.Header.Set(headerUserRoles, "provider")

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())

	if err := handler.Upload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 document stored, got %d", len(repo.created))
	}
	if !repo.created[0].Redacted {
		t.Fatal("stored document should be marked redacted")
	}
	if len(notifier.events) != 0 {
		t.Fatalf("expected no alert on a successful ingest, got %d", len(notifier.events))
	}
}

// TestDocumentHandler_Upload_PHIFilterFailedFiresAlert covers the
// corerr.KindPHIFilterFailed path: a low-confidence extraction must be
// rejected with 422 and must fire exactly one alert.EventPHIFilterFailed,
// never silently stored.
func TestDocumentHandler_Upload_PHIFilterFailedFiresAlert(t *testing.T) {
	repo := &fakeDocumentRepo{}
	ingester := document.NewIngester(repo, fixedConfidenceExtractor{confidence: ocr.ConfidenceFloor - 0.1}, newTestEncryptor(t))
	notifier := &capturingNotifier{}
	handler := NewDocumentHandler(ingester, notifier)

	tenantID := uuid.New()
	userID := uuid.New()
	patientID := uuid.New()

	req, _ := newMultipartUploadRequest(t, "scan.txt", "illegible scan")
	req.Header.Set(headerTenantID, tenantID.String())
	req.Header.Set(headerUserID, userID.String())
	req.Header.Set(headerUserRoles, "provider")

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())

	err := handler.Upload(c)
	if err == nil {
		t.Fatal("expected an error for a below-floor-confidence extraction")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no document stored on PHI filter failure, got %d", len(repo.created))
	}

	if len(notifier.events) != 1 {
		t.Fatalf("expected exactly 1 alert event, got %d", len(notifier.events))
	}
	if notifier.events[0].Type != alert.EventPHIFilterFailed {
		t.Fatalf("expected EventPHIFilterFailed, got %s", notifier.events[0].Type)
	}
	if notifier.events[0].TenantID != tenantID {
		t.Fatalf("alert tenant mismatch: got %s, want %s", notifier.events[0].TenantID, tenantID)
	}
}

func TestDocumentHandler_Upload_MissingFileIsBadRequest(t *testing.T) {
	repo := &fakeDocumentRepo{}
	ingester := document.NewIngester(repo, fixedConfidenceExtractor{confidence: 0.9}, newTestEncryptor(t))
	handler := NewDocumentHandler(ingester, &capturingNotifier{})

	req := httptest.NewRequest(http.MethodPost, "/patients/:id/documents", nil)
	req.Header.Set(headerTenantID, uuid.New().String())
	req.Header.Set(headerUserID, uuid.New().String())
	req.Header.Set(headerUserRoles, "provider")

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := handler.Upload(c)
	if err == nil {
		t.Fatal("expected an error when no file is attached")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
