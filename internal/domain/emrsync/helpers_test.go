package emrsync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/domain/document"
	"github.com/healthprep/healthprep/internal/domain/patient"
	"github.com/healthprep/healthprep/internal/domain/screening"
	"github.com/healthprep/healthprep/internal/domain/screeningtype"
)

type fakeFetcher struct {
	patientBundle        json.RawMessage
	conditionsBundle     json.RawMessage
	observationsBundle   json.RawMessage
	imagingBundle        json.RawMessage
	docRefsBundle        json.RawMessage
	encountersBundle     json.RawMessage
	appointmentsBundle   json.RawMessage
	immunizationsBundle  json.RawMessage
	calls                int
	immunizationCalls    int
	lastVaccineCodes     []string
}

func emptyBundle() json.RawMessage { return json.RawMessage(`{"resourceType":"Bundle","entry":[]}`) }

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		patientBundle:       emptyBundle(),
		conditionsBundle:    emptyBundle(),
		observationsBundle:  emptyBundle(),
		imagingBundle:       emptyBundle(),
		docRefsBundle:       emptyBundle(),
		encountersBundle:    emptyBundle(),
		appointmentsBundle:  emptyBundle(),
		immunizationsBundle: emptyBundle(),
	}
}

func (f *fakeFetcher) GetPatient(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string) (json.RawMessage, error) {
	f.calls++
	return f.patientBundle, nil
}
func (f *fakeFetcher) GetConditions(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string) (json.RawMessage, error) {
	return f.conditionsBundle, nil
}
func (f *fakeFetcher) GetObservations(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, cutoff time.Time) (json.RawMessage, error) {
	return f.observationsBundle, nil
}
func (f *fakeFetcher) GetImagingReports(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, cutoff time.Time) (json.RawMessage, error) {
	return f.imagingBundle, nil
}
func (f *fakeFetcher) GetDocumentReferences(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, cutoff time.Time) (json.RawMessage, error) {
	return f.docRefsBundle, nil
}
func (f *fakeFetcher) GetEncounters(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string) (json.RawMessage, error) {
	return f.encountersBundle, nil
}
func (f *fakeFetcher) GetUpcomingAppointments(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, window time.Duration) (json.RawMessage, error) {
	return f.appointmentsBundle, nil
}
func (f *fakeFetcher) GetImmunizations(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, vaccineCodes []string) (json.RawMessage, error) {
	f.immunizationCalls++
	f.lastVaccineCodes = vaccineCodes
	return f.immunizationsBundle, nil
}

type fakePatientRepo struct {
	patients map[uuid.UUID]*patient.Patient
	synced   map[uuid.UUID]time.Time
}

func newFakePatientRepo(p *patient.Patient) *fakePatientRepo {
	return &fakePatientRepo{patients: map[uuid.UUID]*patient.Patient{p.ID: p}, synced: map[uuid.UUID]time.Time{}}
}

func (f *fakePatientRepo) Create(ctx context.Context, p *patient.Patient) error { return nil }
func (f *fakePatientRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*patient.Patient, error) {
	return f.patients[id], nil
}
func (f *fakePatientRepo) GetByMRN(ctx context.Context, tenantID uuid.UUID, mrn string) (*patient.Patient, error) {
	return nil, nil
}
func (f *fakePatientRepo) GetByEpicPatientID(ctx context.Context, tenantID uuid.UUID, epicID string) (*patient.Patient, error) {
	return nil, nil
}
func (f *fakePatientRepo) Update(ctx context.Context, p *patient.Patient) error { return nil }
func (f *fakePatientRepo) ListByProvider(ctx context.Context, tenantID, providerID uuid.UUID) ([]*patient.Patient, error) {
	return nil, nil
}
func (f *fakePatientRepo) MarkSynced(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	f.synced[id] = at
	return nil
}

type fakeConditionRepo struct{ calls int }

func (f *fakeConditionRepo) Replace(ctx context.Context, tenantID, patientID uuid.UUID, conditions []*patient.Condition) error {
	f.calls++
	return nil
}
func (f *fakeConditionRepo) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*patient.Condition, error) {
	return nil, nil
}

type fakeFHIRDocRepo struct{ upserted []*document.FHIRDocument }

func (f *fakeFHIRDocRepo) Upsert(ctx context.Context, d *document.FHIRDocument) error {
	f.upserted = append(f.upserted, d)
	return nil
}
func (f *fakeFHIRDocRepo) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*document.FHIRDocument, error) {
	return f.upserted, nil
}

type fakeScreeningTypeRepo struct{ types []*screeningtype.ScreeningType }

func (f *fakeScreeningTypeRepo) Create(ctx context.Context, st *screeningtype.ScreeningType) error {
	return nil
}
func (f *fakeScreeningTypeRepo) GetByID(ctx context.Context, id uuid.UUID) (*screeningtype.ScreeningType, error) {
	for _, st := range f.types {
		if st.ID == id {
			return st, nil
		}
	}
	return nil, nil
}
func (f *fakeScreeningTypeRepo) Update(ctx context.Context, st *screeningtype.ScreeningType) error {
	return nil
}
func (f *fakeScreeningTypeRepo) ListEffective(ctx context.Context, tenantID uuid.UUID) ([]*screeningtype.ScreeningType, error) {
	return f.types, nil
}

type fakeScreeningRepo struct {
	byPatientAndType map[string]*screening.Screening
	upserts          int
}

func newFakeScreeningRepo() *fakeScreeningRepo {
	return &fakeScreeningRepo{byPatientAndType: map[string]*screening.Screening{}}
}

func key(patientID, typeID uuid.UUID) string { return patientID.String() + "|" + typeID.String() }

func (f *fakeScreeningRepo) Upsert(ctx context.Context, s *screening.Screening) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	f.byPatientAndType[key(s.PatientID, s.ScreeningTypeID)] = s
	f.upserts++
	return nil
}
func (f *fakeScreeningRepo) GetByPatientAndType(ctx context.Context, tenantID, patientID, screeningTypeID uuid.UUID) (*screening.Screening, error) {
	s, ok := f.byPatientAndType[key(patientID, screeningTypeID)]
	if !ok {
		return nil, nil
	}
	return s, nil
}
func (f *fakeScreeningRepo) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*screening.Screening, error) {
	return nil, nil
}
func (f *fakeScreeningRepo) ListByType(ctx context.Context, screeningTypeID uuid.UUID) ([]*screening.Screening, error) {
	var out []*screening.Screening
	for _, s := range f.byPatientAndType {
		if s.ScreeningTypeID == screeningTypeID {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeScreeningRepo) ReplaceMatches(ctx context.Context, screeningID uuid.UUID, matches []screening.Match) error {
	return nil
}
