package prepsheet

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/domain/patient"
	"github.com/healthprep/healthprep/internal/platform/audit"
	"github.com/healthprep/healthprep/internal/platform/corerr"
)

// Service composes generation, write-back, and storage behind the
// `GetPrepSheet` stable operation (spec §6), enforcing provider scope on
// every read.
type Service struct {
	generator *Generator
	writer    *Writer
	repo      Repository
	patients  patient.Repository
	audit     *audit.Writer
}

func NewService(generator *Generator, writer *Writer, repo Repository, patients patient.Repository, auditWriter *audit.Writer) *Service {
	return &Service{generator: generator, writer: writer, repo: repo, patients: patients, audit: auditWriter}
}

// GenerateAndWriteBack compiles a prep sheet, optionally posts it back to
// the EMR, and persists the result.
func (s *Service) GenerateAndWriteBack(ctx context.Context, tenantID, providerID, patientID, userID uuid.UUID, appointmentID *uuid.UUID, epicPatientID, theme string, dryRun bool, now time.Time) (*PrepSheet, error) {
	sheet, err := s.generator.Generate(ctx, tenantID, patientID, appointmentID, theme, now)
	if err != nil {
		return nil, err
	}
	if _, err := s.writer.WriteBack(ctx, tenantID, providerID, userID, epicPatientID, sheet, dryRun); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, sheet); err != nil {
		return nil, err
	}
	return sheet, nil
}

// GetPrepSheet returns a previously generated sheet, enforcing that the
// requesting user has access to the owning patient's provider — spec
// scenario S6: a user without access to the patient's provider gets
// `forbidden` and a `security_violation` audit entry with a hashed patient
// identifier, never the patient's name.
func (s *Service) GetPrepSheet(ctx context.Context, tenantID, userID, id uuid.UUID, accessibleProviders []uuid.UUID, isAdmin bool) (*PrepSheet, error) {
	sheet, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if isAdmin {
		return sheet, nil
	}

	pat, err := s.patients.GetByID(ctx, tenantID, sheet.PatientID)
	if err != nil {
		return nil, err
	}
	if pat != nil && pat.ProviderID != nil && !providerIn(accessibleProviders, *pat.ProviderID) {
		if s.audit != nil {
			_ = s.audit.Log(ctx, &audit.Entry{
				TenantID:     tenantID,
				UserID:       &userID,
				EventType:    audit.EventSecurityAlert,
				ResourceType: "PrepSheet",
				ResourceID:   &id,
				PatientHash:  s.audit.HashIdentifier(sheet.PatientID.String()),
				Data:         map[string]any{"reason": "cross_provider_access_denied"},
			})
		}
		return nil, corerr.New(corerr.KindSecurityViolation, "prep sheet belongs to a patient outside the requester's assigned providers")
	}

	return sheet, nil
}

func providerIn(providers []uuid.UUID, id uuid.UUID) bool {
	for _, p := range providers {
		if p == id {
			return true
		}
	}
	return false
}
