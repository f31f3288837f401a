// Package emrsync orchestrates the per-patient FHIR fetch sequence against
// the EHR and feeds the results into the patient, document, and screening
// domains.
package emrsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/domain/document"
	"github.com/healthprep/healthprep/internal/domain/patient"
	"github.com/healthprep/healthprep/internal/domain/screening"
	"github.com/healthprep/healthprep/internal/domain/screeningtype"
	"github.com/healthprep/healthprep/pkg/fhirmodels"
)

// Fetcher is the subset of fhirclient.Client the pipeline needs, narrowed
// to an interface so the fetch sequence can be tested without a live FHIR
// server.
type Fetcher interface {
	GetPatient(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string) (json.RawMessage, error)
	GetConditions(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string) (json.RawMessage, error)
	GetObservations(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, cutoff time.Time) (json.RawMessage, error)
	GetImagingReports(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, cutoff time.Time) (json.RawMessage, error)
	GetDocumentReferences(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, cutoff time.Time) (json.RawMessage, error)
	GetEncounters(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string) (json.RawMessage, error)
	GetUpcomingAppointments(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, window time.Duration) (json.RawMessage, error)
	GetImmunizations(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, vaccineCodes []string) (json.RawMessage, error)
}

// Pipeline runs the 7-step fetch sequence (Patient, Conditions,
// Observations, Imaging/DiagnosticReports, DocumentReferences, Encounters,
// Appointments — plus Immunizations for immunization-type screenings) and
// feeds the results to the screening engine.
type Pipeline struct {
	fetcher        Fetcher
	patients       patient.Repository
	conditions     patient.ConditionRepository
	fhirDocs       document.FHIRDocumentRepository
	screeningTypes screeningtype.Repository
	screenings     screening.Repository

	mu          sync.Mutex
	lastHashFor map[uuid.UUID]string // in-memory upstream content hash, keyed by patient
}

func NewPipeline(
	fetcher Fetcher,
	patients patient.Repository,
	conditions patient.ConditionRepository,
	fhirDocs document.FHIRDocumentRepository,
	screeningTypes screeningtype.Repository,
	screenings screening.Repository,
) *Pipeline {
	return &Pipeline{
		fetcher:        fetcher,
		patients:       patients,
		conditions:     conditions,
		fhirDocs:       fhirDocs,
		screeningTypes: screeningTypes,
		screenings:     screenings,
		lastHashFor:    make(map[uuid.UUID]string),
	}
}

// Result summarizes what a single Sync call did.
type Result struct {
	Changed              bool
	ConditionsCount       int
	FHIRDocumentsCount    int
	ScreeningsRecomputed  int
}

// Sync fetches every FHIR resource HealthPrep cares about for one patient,
// updates the patient/condition/document rows, and re-runs the screening
// engine — unless the combined upstream payload is byte-identical to the
// last successful sync, in which case it is a no-op beyond bumping
// last_fhir_sync_at.
func (p *Pipeline) Sync(ctx context.Context, tenantID, providerID, patientID uuid.UUID, epicPatientID string, cutoff, now time.Time) (*Result, error) {
	patientBundle, err := p.fetcher.GetPatient(ctx, tenantID, providerID, epicPatientID)
	if err != nil {
		return nil, fmt.Errorf("emrsync: fetch patient: %w", err)
	}
	conditionsBundle, err := p.fetcher.GetConditions(ctx, tenantID, providerID, epicPatientID)
	if err != nil {
		return nil, fmt.Errorf("emrsync: fetch conditions: %w", err)
	}
	observationsBundle, err := p.fetcher.GetObservations(ctx, tenantID, providerID, epicPatientID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("emrsync: fetch observations: %w", err)
	}
	imagingBundle, err := p.fetcher.GetImagingReports(ctx, tenantID, providerID, epicPatientID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("emrsync: fetch imaging reports: %w", err)
	}
	docRefsBundle, err := p.fetcher.GetDocumentReferences(ctx, tenantID, providerID, epicPatientID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("emrsync: fetch document references: %w", err)
	}
	encountersBundle, err := p.fetcher.GetEncounters(ctx, tenantID, providerID, epicPatientID)
	if err != nil {
		return nil, fmt.Errorf("emrsync: fetch encounters: %w", err)
	}
	appointmentsBundle, err := p.fetcher.GetUpcomingAppointments(ctx, tenantID, providerID, epicPatientID, 90*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("emrsync: fetch appointments: %w", err)
	}

	types, err := p.screeningTypes.ListEffective(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("emrsync: list effective screening types: %w", err)
	}

	// Spec §4.1.5: the Immunization resource is only worth fetching when at
	// least one effective screening type is immunization-based and has CVX
	// codes configured to look for — an immunization-based type with no
	// codes never gets far enough to use the result (it resolves to
	// `unknown` before any evidence is matched), so skip the EHR round trip
	// entirely rather than fetch data nothing will consult.
	var immunizationsBundle json.RawMessage
	if vaccineCodes := aggregateVaccineCodes(types); len(vaccineCodes) > 0 {
		immunizationsBundle, err = p.fetcher.GetImmunizations(ctx, tenantID, providerID, epicPatientID, vaccineCodes)
		if err != nil {
			return nil, fmt.Errorf("emrsync: fetch immunizations: %w", err)
		}
	}

	combined := combinedHash(patientBundle, conditionsBundle, observationsBundle, imagingBundle, docRefsBundle, encountersBundle, appointmentsBundle, immunizationsBundle)

	p.mu.Lock()
	unchanged := p.lastHashFor[patientID] == combined
	p.mu.Unlock()

	if unchanged {
		if err := p.patients.MarkSynced(ctx, tenantID, patientID, now); err != nil {
			return nil, err
		}
		return &Result{Changed: false}, nil
	}

	conditions, err := decodeConditions(tenantID, patientID, conditionsBundle)
	if err != nil {
		return nil, fmt.Errorf("emrsync: decode conditions: %w", err)
	}
	if err := p.conditions.Replace(ctx, tenantID, patientID, conditions); err != nil {
		return nil, err
	}

	fhirDocs, err := decodeFHIRDocuments(tenantID, patientID, observationsBundle, imagingBundle, docRefsBundle, immunizationsBundle)
	if err != nil {
		return nil, fmt.Errorf("emrsync: decode fhir documents: %w", err)
	}
	for _, d := range fhirDocs {
		if err := p.fhirDocs.Upsert(ctx, d); err != nil {
			return nil, err
		}
	}

	pat, err := p.patients.GetByID(ctx, tenantID, patientID)
	if err != nil {
		return nil, err
	}

	recomputed, err := p.recomputeScreenings(ctx, tenantID, pat, types, conditions, fhirDocs, now)
	if err != nil {
		return nil, err
	}

	if err := p.patients.MarkSynced(ctx, tenantID, patientID, now); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.lastHashFor[patientID] = combined
	p.mu.Unlock()

	return &Result{
		Changed:              true,
		ConditionsCount:      len(conditions),
		FHIRDocumentsCount:   len(fhirDocs),
		ScreeningsRecomputed: recomputed,
	}, nil
}

func (p *Pipeline) recomputeScreenings(ctx context.Context, tenantID uuid.UUID, pat *patient.Patient, types []*screeningtype.ScreeningType, conditions []*patient.Condition, fhirDocs []*document.FHIRDocument, now time.Time) (int, error) {
	evidence := make([]screening.Evidence, 0, len(fhirDocs))
	for _, d := range fhirDocs {
		evidence = append(evidence, screening.Evidence{
			Kind:          screening.EvidenceFHIRDocument,
			EvidenceID:    d.ID,
			LOINCCode:     d.LOINCCode,
			CVXCode:       d.CVXCode,
			EffectiveDate: d.EffectiveDate,
		})
	}

	// A sync only reaches here once Sync has already established the
	// upstream payload changed, so every effective type is recomputed
	// unconditionally; NeedsReprocess guards the separate selective-refresh
	// job path, which fans a single screening-type edit out across an
	// entire tenant's patients without new EHR evidence.
	count := 0
	for _, st := range types {
		existing, err := p.screenings.GetByPatientAndType(ctx, tenantID, pat.ID, st.ID)
		if err != nil {
			existing = nil
		}

		result, matches := screening.Evaluate(st, pat, conditions, evidence, existing, 30, now)
		if err := p.screenings.Upsert(ctx, result); err != nil {
			return count, err
		}

		screeningMatches := make([]screening.Match, 0, len(matches))
		for _, m := range matches {
			screeningMatches = append(screeningMatches, screening.Match{
				ScreeningID:    result.ID,
				Kind:           m.Evidence.Kind,
				EvidenceID:     m.Evidence.EvidenceID,
				Score:          m.Score,
				MatchedKeyword: m.MatchedKeyword,
				EffectiveDate:  m.Evidence.EffectiveDate,
			})
		}
		if err := p.screenings.ReplaceMatches(ctx, result.ID, screeningMatches); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// RefreshType re-evaluates every patient already screened against st
// (spec §4.1.4's selective refresh): it fans out across the screening
// type's existing Screening rows rather than re-fetching from the EHR,
// since a screening-type edit produces no new EHR evidence. Unlike Sync's
// recomputeScreenings, each patient is gated by NeedsReprocess: unless
// force is set, a patient whose screening already carries the type's
// current criteria signature is skipped. Document timestamps are not
// compared, so newer documents alone do not bring a patient back in.
func (p *Pipeline) RefreshType(ctx context.Context, tenantID, screeningTypeID uuid.UUID, force bool, now time.Time) (int, error) {
	st, err := p.screeningTypes.GetByID(ctx, screeningTypeID)
	if err != nil {
		return 0, fmt.Errorf("emrsync: refresh: load screening type: %w", err)
	}

	existingScreenings, err := p.screenings.ListByType(ctx, screeningTypeID)
	if err != nil {
		return 0, fmt.Errorf("emrsync: refresh: list existing screenings: %w", err)
	}

	count := 0
	for _, existing := range existingScreenings {
		if !screening.NeedsReprocess(existing, st, force) {
			continue
		}

		pat, err := p.patients.GetByID(ctx, tenantID, existing.PatientID)
		if err != nil {
			return count, err
		}
		conditions, err := p.conditions.ListByPatient(ctx, tenantID, existing.PatientID)
		if err != nil {
			return count, err
		}
		fhirDocs, err := p.fhirDocs.ListByPatient(ctx, tenantID, existing.PatientID)
		if err != nil {
			return count, err
		}

		evidence := make([]screening.Evidence, 0, len(fhirDocs))
		for _, d := range fhirDocs {
			evidence = append(evidence, screening.Evidence{
				Kind:          screening.EvidenceFHIRDocument,
				EvidenceID:    d.ID,
				LOINCCode:     d.LOINCCode,
				CVXCode:       d.CVXCode,
				EffectiveDate: d.EffectiveDate,
			})
		}

		result, matches := screening.Evaluate(st, pat, conditions, evidence, existing, 30, now)
		if err := p.screenings.Upsert(ctx, result); err != nil {
			return count, err
		}
		screeningMatches := make([]screening.Match, 0, len(matches))
		for _, m := range matches {
			screeningMatches = append(screeningMatches, screening.Match{
				ScreeningID:    result.ID,
				Kind:           m.Evidence.Kind,
				EvidenceID:     m.Evidence.EvidenceID,
				Score:          m.Score,
				MatchedKeyword: m.MatchedKeyword,
				EffectiveDate:  m.Evidence.EffectiveDate,
			})
		}
		if err := p.screenings.ReplaceMatches(ctx, result.ID, screeningMatches); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// aggregateVaccineCodes collects the deduplicated union of CVX codes across
// every effective immunization-based screening type, so a single
// Immunizations fetch can serve all of them at once.
func aggregateVaccineCodes(types []*screeningtype.ScreeningType) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, st := range types {
		if !st.IsImmunization {
			continue
		}
		for _, c := range st.CVXCodes {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			codes = append(codes, c)
		}
	}
	return codes
}

func combinedHash(bundles ...json.RawMessage) string {
	h := sha256.New()
	for _, b := range bundles {
		h.Write(b)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type bundle struct {
	Entry []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

func bundleResources(raw json.RawMessage) ([]json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var b bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(b.Entry))
	for _, e := range b.Entry {
		if len(e.Resource) > 0 {
			out = append(out, e.Resource)
		}
	}
	return out, nil
}

func decodeConditions(tenantID, patientID uuid.UUID, raw json.RawMessage) ([]*patient.Condition, error) {
	resources, err := bundleResources(raw)
	if err != nil {
		return nil, err
	}
	var out []*patient.Condition
	for _, r := range resources {
		var c fhirmodels.Condition
		if err := json.Unmarshal(r, &c); err != nil {
			return nil, err
		}
		status := ""
		if len(c.ClinicalStatus.Coding) > 0 {
			status = c.ClinicalStatus.Coding[0].Code
		}
		code := ""
		desc := c.Code.Text
		if len(c.Code.Coding) > 0 {
			code = c.Code.Coding[0].Code
		}
		var onset *time.Time
		if c.OnsetDateTime != "" {
			if t, err := time.Parse("2006-01-02", c.OnsetDateTime[:min(10, len(c.OnsetDateTime))]); err == nil {
				onset = &t
			}
		}
		out = append(out, &patient.Condition{
			TenantID:       tenantID,
			PatientID:      patientID,
			ICD10Code:      code,
			Description:    desc,
			ClinicalStatus: status,
			OnsetDate:      onset,
		})
	}
	return out, nil
}

func decodeFHIRDocuments(tenantID, patientID uuid.UUID, bundles ...json.RawMessage) ([]*document.FHIRDocument, error) {
	var out []*document.FHIRDocument
	for _, raw := range bundles {
		resources, err := bundleResources(raw)
		if err != nil {
			return nil, err
		}
		for _, r := range resources {
			var rr fhirmodels.RawResource
			if err := json.Unmarshal(r, &rr); err != nil {
				return nil, err
			}
			if rr.ResourceType == "" {
				continue
			}
			d := &document.FHIRDocument{
				TenantID:         tenantID,
				PatientID:        patientID,
				FHIRResourceType: document.FHIRResourceType(rr.ResourceType),
				FHIRID:           rr.ID,
				RawFHIRResource:  rr.Raw,
			}
			decorateCodes(d, r)
			out = append(out, d)
		}
	}
	return out, nil
}

// decorateCodes extracts the LOINC/CVX code and effective date a resource
// carries, without caring which resource type it came from — every
// fetched type here uses the same code/effectiveDateTime shape closely
// enough for HealthPrep's purposes.
func decorateCodes(d *document.FHIRDocument, raw json.RawMessage) {
	var shape struct {
		Code struct {
			Coding []fhirmodels.Coding `json:"coding"`
		} `json:"code"`
		VaccineCode struct {
			Coding []fhirmodels.Coding `json:"coding"`
		} `json:"vaccineCode"`
		EffectiveDateTime string `json:"effectiveDateTime"`
		OccurrenceDateTime string `json:"occurrenceDateTime"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return
	}
	for _, c := range shape.Code.Coding {
		if c.System == "http://loinc.org" {
			d.LOINCCode = c.Code
		}
	}
	for _, c := range shape.VaccineCode.Coding {
		if c.System == "http://hl7.org/fhir/sid/cvx" {
			d.CVXCode = c.Code
		}
	}
	dateStr := shape.EffectiveDateTime
	if dateStr == "" {
		dateStr = shape.OccurrenceDateTime
	}
	if len(dateStr) >= 10 {
		if t, err := time.Parse("2006-01-02", dateStr[:10]); err == nil {
			d.EffectiveDate = &t
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
