package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/internal/logging"
)

// ProblemDetails represents an RFC 7807 Problem Details response.
type ProblemDetails struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance,omitempty"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

const problemContentType = "application/problem+json"

// problemFor maps err onto a problem document. Details of unexpected errors
// are not exposed.
func problemFor(err error) ProblemDetails {
	p := ProblemDetails{Type: "about:blank"}

	var he *echo.HTTPError
	var ve *apperrors.ValidationError
	switch {
	case apperrors.As(err, &he):
		p.Status = he.Code
		p.Detail = fmt.Sprint(he.Message)
	case apperrors.As(err, &ve):
		p.Status = http.StatusUnprocessableEntity
		p.Detail = ve.Message
		p.Field = ve.Field
	case apperrors.Is(err, apperrors.ErrNotFound):
		p.Status = http.StatusNotFound
		p.Detail = err.Error()
	case apperrors.Is(err, apperrors.ErrConflict), apperrors.Is(err, apperrors.ErrInvalidTransition):
		p.Status = http.StatusConflict
		p.Detail = err.Error()
	case apperrors.IsRetryable(err):
		p.Status = http.StatusServiceUnavailable
		p.Detail = "a dependency is temporarily unavailable, retry later"
	case apperrors.Is(err, context.DeadlineExceeded):
		p.Status = http.StatusGatewayTimeout
		p.Detail = "the request timed out"
	default:
		p.Status = http.StatusInternalServerError
		p.Detail = "an unexpected error occurred"
	}
	p.Title = http.StatusText(p.Status)
	return p
}

// HTTPErrorHandler renders every handler error as problem details.
func HTTPErrorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		p := problemFor(err)
		p.Instance = c.Request().URL.Path
		p.RequestID = c.Response().Header().Get(echo.HeaderXRequestID)

		if p.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method, "path", p.Instance, "status", p.Status,
				"request_id", p.RequestID, "error", err)
		}
		if p.Status == http.StatusServiceUnavailable {
			c.Response().Header().Set("Retry-After", "1")
		}

		c.Response().Header().Set(echo.HeaderContentType, problemContentType)
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(p.Status)
		} else {
			werr = c.JSON(p.Status, p)
		}
		if werr != nil {
			logger.Error("failed to write error response", "error", werr)
		}
	}
}
