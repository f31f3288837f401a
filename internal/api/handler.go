package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthprep/healthprep/internal/domain/job"
	"github.com/healthprep/healthprep/internal/domain/patient"
	"github.com/healthprep/healthprep/internal/domain/prepsheet"
	"github.com/healthprep/healthprep/internal/domain/screening"
	"github.com/healthprep/healthprep/internal/domain/tenant"
	"github.com/healthprep/healthprep/internal/platform/audit"
	"github.com/healthprep/healthprep/internal/platform/corerr"
	"github.com/healthprep/healthprep/pkg/pagination"
)

// Handler exposes the six stable operations (spec §6) as thin echo routes.
// All domain logic lives in the job, screening, and prepsheet packages;
// this layer only resolves the caller's Principal, enforces provider scope,
// and translates between JSON and Go values.
type Handler struct {
	jobs       *job.Service
	prepsheets *prepsheet.Service
	screenings screening.Repository
	patients   patient.Repository
	orgs       tenant.OrganizationRepository
	audit      *audit.Writer
}

func NewHandler(jobs *job.Service, prepsheets *prepsheet.Service, screenings screening.Repository, patients patient.Repository, orgs tenant.OrganizationRepository, auditWriter *audit.Writer) *Handler {
	return &Handler{jobs: jobs, prepsheets: prepsheets, screenings: screenings, patients: patients, orgs: orgs, audit: auditWriter}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/sync/batch", h.EnqueueBatchSync)
	g.POST("/prepsheets/enqueue", h.EnqueuePrepSheets)
	g.GET("/jobs/:id", h.GetJob)
	g.POST("/jobs/:id/cancel", h.CancelJob)
	g.GET("/patients/:id/screenings", h.ListScreenings)
	g.GET("/prepsheets/:id", h.GetPrepSheet)
}

type enqueueBatchSyncRequest struct {
	ProviderID uuid.UUID   `json:"provider_id"`
	PatientIDs []uuid.UUID `json:"patient_ids"`
}

// EnqueueBatchSync admits a batch_sync job, rejecting it outright (spec
// scenario S4) if the batch is oversized or would blow the tenant's hourly
// FHIR call budget.
func (h *Handler) EnqueueBatchSync(c echo.Context) error {
	principal, err := principalFromContext(c)
	if err != nil {
		return err
	}
	var req enqueueBatchSyncRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	org, err := h.orgs.GetByID(c.Request().Context(), principal.TenantID)
	if err != nil {
		return httpError(err)
	}

	j, err := h.jobs.EnqueueBatchSync(c.Request().Context(), principal.TenantID, req.ProviderID, req.PatientIDs, org.FHIRHourlyCallLimit, &principal.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, j)
}

type enqueuePrepSheetsRequest struct {
	AppointmentIDs []uuid.UUID `json:"appointment_ids"`
	DryRun         bool        `json:"dry_run"`
}

func (h *Handler) EnqueuePrepSheets(c echo.Context) error {
	principal, err := principalFromContext(c)
	if err != nil {
		return err
	}
	var req enqueuePrepSheetsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	j, err := h.jobs.EnqueuePrepSheets(c.Request().Context(), principal.TenantID, req.AppointmentIDs, req.DryRun, &principal.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, j)
}

func (h *Handler) GetJob(c echo.Context) error {
	principal, err := principalFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	j, err := h.jobs.GetJob(c.Request().Context(), principal.TenantID, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, j)
}

func (h *Handler) CancelJob(c echo.Context) error {
	principal, err := principalFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.jobs.CancelJob(c.Request().Context(), principal.TenantID, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListScreenings returns a patient's screenings, enforcing provider scope
// (spec scenario S6): a non-admin caller without the patient's provider in
// X-Accessible-Providers is denied and the attempt is audited.
func (h *Handler) ListScreenings(c echo.Context) error {
	principal, err := principalFromContext(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.authorizePatientAccess(c, principal, patientID); err != nil {
		return httpError(err)
	}

	list, err := h.screenings.ListByPatient(c.Request().Context(), principal.TenantID, patientID)
	if err != nil {
		return httpError(err)
	}

	p := pagination.FromContext(c)
	page := pagination.Slice(list, p)
	return c.JSON(http.StatusOK, pagination.NewResponse(page, len(list), p.Limit, p.Offset))
}

func (h *Handler) GetPrepSheet(c echo.Context) error {
	principal, err := principalFromContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sheet, err := h.prepsheets.GetPrepSheet(c.Request().Context(), principal.TenantID, principal.UserID, id, principal.AccessibleProviderIDs, principal.IsAdmin())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sheet)
}

// authorizePatientAccess applies the same cross-provider rule as
// prepsheet.Service.GetPrepSheet to a raw patient id, recording a
// security_violation audit entry with only a hashed patient identifier on
// denial.
func (h *Handler) authorizePatientAccess(c echo.Context, principal Principal, patientID uuid.UUID) error {
	if principal.IsAdmin() {
		return nil
	}
	pat, err := h.patients.GetByID(c.Request().Context(), principal.TenantID, patientID)
	if err != nil {
		return err
	}
	if pat == nil || pat.ProviderID == nil {
		return nil
	}
	for _, id := range principal.AccessibleProviderIDs {
		if id == *pat.ProviderID {
			return nil
		}
	}
	if h.audit != nil {
		_ = h.audit.Log(c.Request().Context(), &audit.Entry{
			TenantID:     principal.TenantID,
			UserID:       &principal.UserID,
			EventType:    audit.EventSecurityAlert,
			ResourceType: "Patient",
			ResourceID:   &patientID,
			PatientHash:  h.audit.HashIdentifier(patientID.String()),
			Data:         map[string]any{"reason": "cross_provider_access_denied"},
		})
	}
	return corerr.New(corerr.KindSecurityViolation, "patient belongs to a provider outside the requester's assigned providers")
}
