package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthprep/healthprep/internal/platform/corerr"
)

// httpError maps a domain error's corerr.Kind onto an HTTP status, the way
// the teacher's FHIR handlers map outcome codes onto HTTP status.
func httpError(err error) error {
	if err == nil {
		return nil
	}
	switch corerr.KindOf(err) {
	case corerr.KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case corerr.KindValidation, corerr.KindBatchTooLarge:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case corerr.KindSecurityViolation:
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case corerr.KindAuthRequired, corerr.KindReauthRequired:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case corerr.KindRateLimitExceeded, corerr.KindRateLimitWouldExceed:
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case corerr.KindPHIFilterFailed:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
