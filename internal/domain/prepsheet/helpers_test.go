package prepsheet

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/domain/appointment"
	"github.com/healthprep/healthprep/internal/domain/document"
	"github.com/healthprep/healthprep/internal/domain/patient"
	"github.com/healthprep/healthprep/internal/domain/screening"
	"github.com/healthprep/healthprep/internal/domain/screeningtype"
)

type fakePatientRepo struct{ p *patient.Patient }

func (f *fakePatientRepo) Create(ctx context.Context, p *patient.Patient) error { return nil }
func (f *fakePatientRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*patient.Patient, error) {
	if f.p.ID != id {
		return nil, nil
	}
	return f.p, nil
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
	return nil
}

type fakeScreeningRepo struct{ screenings []*screening.Screening }

func (f *fakeScreeningRepo) Upsert(ctx context.Context, s *screening.Screening) error { return nil }
func (f *fakeScreeningRepo) GetByPatientAndType(ctx context.Context, tenantID, patientID, screeningTypeID uuid.UUID) (*screening.Screening, error) {
	return nil, nil
}
func (f *fakeScreeningRepo) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*screening.Screening, error) {
	return f.screenings, nil
}
func (f *fakeScreeningRepo) ListByType(ctx context.Context, screeningTypeID uuid.UUID) ([]*screening.Screening, error) {
	return nil, nil
}
func (f *fakeScreeningRepo) ReplaceMatches(ctx context.Context, screeningID uuid.UUID, matches []screening.Match) error {
	return nil
}

type fakeScreeningTypeRepo struct{ types []*screeningtype.ScreeningType }

func (f *fakeScreeningTypeRepo) Create(ctx context.Context, st *screeningtype.ScreeningType) error {
	return nil
}
func (f *fakeScreeningTypeRepo) GetByID(ctx context.Context, id uuid.UUID) (*screeningtype.ScreeningType, error) {
	return nil, nil
}
func (f *fakeScreeningTypeRepo) Update(ctx context.Context, st *screeningtype.ScreeningType) error {
	return nil
}
func (f *fakeScreeningTypeRepo) ListEffective(ctx context.Context, tenantID uuid.UUID) ([]*screeningtype.ScreeningType, error) {
	return f.types, nil
}

type fakeDocumentRepo struct{ docs []*document.Document }

func (f *fakeDocumentRepo) Create(ctx context.Context, d *document.Document) error { return nil }
func (f *fakeDocumentRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*document.Document, error) {
	return nil, nil
}
func (f *fakeDocumentRepo) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*document.Document, error) {
	return f.docs, nil
}

type fakeFHIRDocRepo struct{ docs []*document.FHIRDocument }

func (f *fakeFHIRDocRepo) Upsert(ctx context.Context, d *document.FHIRDocument) error { return nil }
func (f *fakeFHIRDocRepo) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID) ([]*document.FHIRDocument, error) {
	return f.docs, nil
}

type fakeAppointmentRepo struct{ appointments []*appointment.Appointment }

func (f *fakeAppointmentRepo) Upsert(ctx context.Context, a *appointment.Appointment) error {
	return nil
}
func (f *fakeAppointmentRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*appointment.Appointment, error) {
	return nil, nil
}
func (f *fakeAppointmentRepo) ListUpcoming(ctx context.Context, tenantID uuid.UUID, providerIDs []uuid.UUID, window time.Duration) ([]*appointment.Appointment, error) {
	return f.appointments, nil
}
func (f *fakeAppointmentRepo) SetPrepSheet(ctx context.Context, tenantID, id, prepSheetID uuid.UUID) error {
	return nil
}
