package api

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthprep/healthprep/internal/domain/document"
	"github.com/healthprep/healthprep/internal/platform/alert"
	"github.com/healthprep/healthprep/internal/platform/corerr"
)

// DocumentHandler exposes manual document upload — the OCR/PHI-redaction
// path that feeds prep-sheet generation alongside EMR-synced evidence.
// It is not one of the six stable operations, but uses the same
// Principal-header contract.
type DocumentHandler struct {
	ingester *document.Ingester
	alerts   alert.Notifier
}

func NewDocumentHandler(ingester *document.Ingester, notifier alert.Notifier) *DocumentHandler {
	return &DocumentHandler{ingester: ingester, alerts: notifier}
}

func (h *DocumentHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/patients/:id/documents", h.Upload)
}

func (h *DocumentHandler) Upload(c echo.Context) error {
	principal, err := principalFromContext(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read uploaded file")
	}

	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	doc, _, err := h.ingester.Ingest(c.Request().Context(), principal.TenantID, patientID, file.Filename, mimeType, data, nil)
	if err != nil {
		if h.alerts != nil && corerr.KindOf(err) == corerr.KindPHIFilterFailed {
			_ = h.alerts.Notify(c.Request().Context(), alert.Event{
				Type:     alert.EventPHIFilterFailed,
				TenantID: principal.TenantID,
				Detail:   "document ingest for patient " + patientID.String() + " failed PHI redaction confidence floor",
				Occurred: time.Now(),
			})
		}
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, doc)
}
