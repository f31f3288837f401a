package prepsheet

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/domain/appointment"
	"github.com/healthprep/healthprep/internal/domain/document"
	"github.com/healthprep/healthprep/internal/domain/patient"
	"github.com/healthprep/healthprep/internal/domain/screening"
	"github.com/healthprep/healthprep/internal/domain/screeningtype"
)

// PDFRenderer converts rendered HTML into a themed PDF. No PDF library
// appears anywhere in the corpus this module was grounded on, so this is
// an explicitly unwired seam: NoopPDFRenderer returns the HTML bytes
// unchanged, and a real renderer can be substituted without touching the
// rest of the generator.
type PDFRenderer interface {
	Render(ctx context.Context, html []byte, theme string) ([]byte, error)
}

// NoopPDFRenderer is the default PDFRenderer: it performs no conversion.
type NoopPDFRenderer struct{}

func (NoopPDFRenderer) Render(_ context.Context, html []byte, _ string) ([]byte, error) {
	return html, nil
}

var sheetTemplate = template.Must(template.New("prepsheet").Parse(`
<!DOCTYPE html>
<html>
<head><title>Prep Sheet</title></head>
<body>
<h1>Prep Sheet — {{.GeneratedAt.Format "2006-01-02"}}</h1>
<h2>Screenings</h2>
<ul>
{{range .Screenings}}<li>{{.ScreeningTypeName}}: {{.Status}}{{if .NextDueDate}} (next due {{.NextDueDate.Format "2006-01-02"}}){{end}}</li>
{{end}}
</ul>
<h2>Recent Documents</h2>
<ul>
{{range .Documents}}<li>[{{.Category}}] {{.Title}}{{if .Date}} — {{.Date.Format "2006-01-02"}}{{end}}</li>
{{end}}
</ul>
<h2>Upcoming Appointments</h2>
<ul>
{{range .Appointments}}<li>{{.ScheduledAt.Format "2006-01-02 15:04"}} ({{.Status}})</li>
{{end}}
</ul>
</body>
</html>
`))

// Generator compiles and renders prep sheets.
type Generator struct {
	screenings     screening.Repository
	screeningTypes screeningtype.Repository
	documents      document.Repository
	fhirDocs       document.FHIRDocumentRepository
	appointments   appointment.Repository
	patients       patient.Repository
	pdf            PDFRenderer
}

func NewGenerator(
	screenings screening.Repository,
	screeningTypes screeningtype.Repository,
	documents document.Repository,
	fhirDocs document.FHIRDocumentRepository,
	appointments appointment.Repository,
	patients patient.Repository,
	pdf PDFRenderer,
) *Generator {
	if pdf == nil {
		pdf = NoopPDFRenderer{}
	}
	return &Generator{
		screenings:     screenings,
		screeningTypes: screeningTypes,
		documents:      documents,
		fhirDocs:       fhirDocs,
		appointments:   appointments,
		patients:       patients,
		pdf:            pdf,
	}
}

// Generate compiles, renders, and PDF-converts a prep sheet for one
// patient, optionally tied to a specific appointment.
func (g *Generator) Generate(ctx context.Context, tenantID, patientID uuid.UUID, appointmentID *uuid.UUID, theme string, now time.Time) (*PrepSheet, error) {
	pat, err := g.patients.GetByID(ctx, tenantID, patientID)
	if err != nil {
		return nil, err
	}
	if pat == nil {
		return nil, fmt.Errorf("prepsheet: patient %s not found", patientID)
	}

	sheet := &PrepSheet{
		ID:               uuid.New(),
		TenantID:         tenantID,
		PatientID:        patientID,
		AppointmentID:    appointmentID,
		GeneratedAt:      now,
		PatientFirstName: pat.FirstName,
		PatientLastName:  pat.LastName,
		PatientSex:       pat.Sex,
		PatientBirthDate: pat.BirthDate,
	}

	if err := g.collectScreenings(ctx, tenantID, pat, sheet); err != nil {
		return nil, err
	}
	if err := g.collectDocuments(ctx, tenantID, pat, now, sheet); err != nil {
		return nil, err
	}
	if err := g.collectAppointments(ctx, tenantID, pat, now, sheet); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := sheetTemplate.Execute(&buf, sheet); err != nil {
		return nil, fmt.Errorf("prepsheet: render template: %w", err)
	}
	sheet.HTML = buf.String()

	pdf, err := g.pdf.Render(ctx, buf.Bytes(), theme)
	if err != nil {
		return nil, fmt.Errorf("prepsheet: render pdf: %w", err)
	}
	sheet.PDF = pdf

	return sheet, nil
}

func (g *Generator) collectScreenings(ctx context.Context, tenantID uuid.UUID, pat *patient.Patient, sheet *PrepSheet) error {
	screenings, err := g.screenings.ListByPatient(ctx, tenantID, pat.ID)
	if err != nil {
		return err
	}
	types, err := g.screeningTypes.ListEffective(ctx, tenantID)
	if err != nil {
		return err
	}
	nameByID := make(map[uuid.UUID]string, len(types))
	for _, st := range types {
		nameByID[st.ID] = st.Name
	}
	for _, s := range screenings {
		sheet.Screenings = append(sheet.Screenings, ScreeningLine{
			ScreeningTypeName: nameByID[s.ScreeningTypeID],
			Status:            string(s.Status),
			LastCompletedDate: s.LastCompletedDate,
			NextDueDate:       s.NextDueDate,
		})
	}
	return nil
}

// categoryWindow maps a FHIR resource type to the recency cut-off used for
// prep-sheet inclusion (spec §4.6: labs 12mo, imaging 24mo, consults
// 12mo, hospital 24mo). DiagnosticReport counts as imaging, Observation
// as labs, and DocumentReference as a consult note. HealthPrep has no hospital-encounter document type yet,
// so that category is reserved for a future FHIRResourceType.
func categoryFor(resourceType document.FHIRResourceType) (category string, window time.Duration) {
	switch resourceType {
	case document.ResourceDiagnosticReport:
		return "imaging", WindowImaging
	case document.ResourceObservation:
		return "labs", WindowLabs
	case document.ResourceDocumentReference:
		return "consults", WindowConsults
	default:
		return "other", WindowConsults
	}
}

func (g *Generator) collectDocuments(ctx context.Context, tenantID uuid.UUID, pat *patient.Patient, now time.Time, sheet *PrepSheet) error {
	uploaded, err := g.documents.ListByPatient(ctx, tenantID, pat.ID)
	if err != nil {
		return err
	}
	for _, d := range uploaded {
		if d.DocumentDate != nil && now.Sub(*d.DocumentDate) > WindowConsults {
			continue
		}
		sheet.Documents = append(sheet.Documents, DocumentLine{
			Category: "uploaded",
			Title:    "Document",
			Date:     d.DocumentDate,
		})
	}

	fhirDocs, err := g.fhirDocs.ListByPatient(ctx, tenantID, pat.ID)
	if err != nil {
		return err
	}
	for _, d := range fhirDocs {
		category, window := categoryFor(d.FHIRResourceType)
		if d.EffectiveDate != nil && now.Sub(*d.EffectiveDate) > window {
			continue
		}
		title := string(d.FHIRResourceType)
		if d.LOINCCode != "" {
			title = d.LOINCCode
		}
		sheet.Documents = append(sheet.Documents, DocumentLine{
			Category: category,
			Title:    title,
			Date:     d.EffectiveDate,
		})
	}
	return nil
}

func (g *Generator) collectAppointments(ctx context.Context, tenantID uuid.UUID, pat *patient.Patient, now time.Time, sheet *PrepSheet) error {
	var providerIDs []uuid.UUID
	if pat.ProviderID != nil {
		providerIDs = []uuid.UUID{*pat.ProviderID}
	}
	appts, err := g.appointments.ListUpcoming(ctx, tenantID, providerIDs, 14*24*time.Hour)
	if err != nil {
		return err
	}
	for _, a := range appts {
		if a.PatientID != pat.ID {
			continue
		}
		sheet.Appointments = append(sheet.Appointments, AppointmentLine{
			ScheduledAt: a.ScheduledAt,
			Status:      string(a.Status),
		})
	}
	return nil
}
