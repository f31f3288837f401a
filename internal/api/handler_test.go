package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthprep/healthprep/internal/domain/patient"
	"github.com/healthprep/healthprep/internal/domain/screening"
	"github.com/healthprep/healthprep/pkg/pagination"
)

type fakePatientRepo struct {
	byID map[uuid.UUID]*patient.Patient
}

func (f *fakePatientRepo) Create(ctx context.Context, p *patient.Patient) error { return nil }
func (f *fakePatientRepo) Update(ctx context.Context, p *patient.Patient) error { return nil }
func (f *fakePatientRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*patient.Patient, error) {
	return f.byID[id], nil
}
func (f *fakePatientRepo) GetByMRN(ctx context.Context, tenantID uuid.UUID, mrn string) (*patient.Patient, error) {
	return nil, nil
}
func (f *fakePatientRepo) GetByEpicPatientID(ctx context.Context, tenantID uuid.UUID, epicID string) (*patient.Patient, error) {
	return nil, nil
}
func (f *fakePatientRepo) ListByProvider(ctx context.Context, tenantID, providerID uuid.UUID) ([]*patient.Patient, error) {
	return nil, nil
}
func (f *fakePatientRepo) MarkSynced(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	return nil
}

type fakeScreeningRepo struct {
	byPatient map[uuid.UUID][]*screening.Screening
}

func (f *fakeScreeningRepo) Upsert(ctx context.Context, s *screening.Screening) error { return nil }
func (f *fakeScreeningRepo) GetByPatientAndType(ctx context.Context, tenantID, patientID, screeningTypeID uuid.UUID) (*screening.Screening, error) {
	return nil, nil
}
func (f *fakeScreeningRepo) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*screening.Screening, error) {
	return f.byPatient[patientID], nil
}
func (f *fakeScreeningRepo) ListByType(ctx context.Context, screeningTypeID uuid.UUID) ([]*screening.Screening, error) {
	return nil, nil
}
func (f *fakeScreeningRepo) ReplaceMatches(ctx context.Context, screeningID uuid.UUID, matches []screening.Match) error {
	return nil
}

func newRequestWithHeaders(method, target string, headers map[string]string) (*httptest.ResponseRecorder, echo.Context) {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return rec, echo.New().NewContext(req, rec)
}

// TestScenario_S6_CrossProviderAccessDenied is the named spec scenario: a
// staff user whose accessible providers don't include the patient's
// provider is denied access to that patient's screenings.
func TestScenario_S6_CrossProviderAccessDenied(t *testing.T) {
	tenantID := uuid.New()
	patientProviderID := uuid.New()
	otherProviderID := uuid.New()
	patientID := uuid.New()

	pat := &patient.Patient{ID: patientID, TenantID: tenantID, ProviderID: &patientProviderID}
	patients := &fakePatientRepo{byID: map[uuid.UUID]*patient.Patient{patientID: pat}}
	screenings := &fakeScreeningRepo{byPatient: map[uuid.UUID][]*screening.Screening{
		patientID: {{ID: uuid.New()}},
	}}

	h := NewHandler(nil, nil, screenings, patients, nil, nil)

	rec, c := newRequestWithHeaders(http.MethodGet, "/patients/"+patientID.String()+"/screenings", map[string]string{
		headerTenantID:            tenantID.String(),
		headerUserID:              uuid.New().String(),
		headerUserRoles:           "staff",
		headerAccessibleProviders: otherProviderID.String(),
	})
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())

	err := h.ListScreenings(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403 forbidden, got %v (rec code %d)", err, rec.Code)
	}
}

func TestListScreenings_SameProviderAllowed(t *testing.T) {
	tenantID := uuid.New()
	providerID := uuid.New()
	patientID := uuid.New()

	pat := &patient.Patient{ID: patientID, TenantID: tenantID, ProviderID: &providerID}
	patients := &fakePatientRepo{byID: map[uuid.UUID]*patient.Patient{patientID: pat}}
	screenings := &fakeScreeningRepo{byPatient: map[uuid.UUID][]*screening.Screening{
		patientID: {{ID: uuid.New(), Status: screening.StatusDue}},
	}}

	h := NewHandler(nil, nil, screenings, patients, nil, nil)

	rec, c := newRequestWithHeaders(http.MethodGet, "/patients/"+patientID.String()+"/screenings", map[string]string{
		headerTenantID:            tenantID.String(),
		headerUserID:              uuid.New().String(),
		headerUserRoles:           "provider",
		headerAccessibleProviders: providerID.String(),
	})
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())

	if err := h.ListScreenings(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 1 {
		t.Fatalf("expected 1 screening, got %d", got.Total)
	}
}
