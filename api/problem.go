package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xraph/stepwise"
)

// Problem is an RFC 7807 problem document.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Validation failures.
	Errors   []stepwise.Issue `json:"errors,omitempty"`
	Warnings []stepwise.Issue `json:"warnings,omitempty"`

	// Invalid definitions.
	Problems []string `json:"problems,omitempty"`
}

// problemError is a handler-level error with a fixed status.
type problemError struct {
	status int
	title  string
	detail string
}

func (e *problemError) Error() string { return e.detail }

func badRequest(detail string) error {
	return &problemError{status: http.StatusBadRequest, title: "Bad request", detail: detail}
}

// problemFor maps an error to its problem document.
func problemFor(err error) Problem {
	p := Problem{Type: "about:blank", Status: http.StatusInternalServerError, Title: "Internal error", Detail: err.Error()}

	var (
		pe   *problemError
		he   *echo.HTTPError
		verr *stepwise.StepValidationError
		derr *stepwise.DefinitionInvalidError
	)
	switch {
	case errors.As(err, &pe):
		p.Status, p.Title = pe.status, pe.title
	case errors.As(err, &he):
		p.Status, p.Title = he.Code, http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			p.Detail = msg
		}
	case errors.As(err, &verr):
		p.Status, p.Title = http.StatusUnprocessableEntity, "Step validation failed"
		p.Errors, p.Warnings = verr.Errors, verr.Warnings
	case errors.As(err, &derr):
		p.Status, p.Title = http.StatusBadRequest, "Invalid definition"
		p.Problems = derr.Problems
	case errors.Is(err, stepwise.ErrWorkflowNotFound),
		errors.Is(err, stepwise.ErrStepNotFound),
		errors.Is(err, stepwise.ErrSkillNotFound):
		p.Status, p.Title = http.StatusNotFound, "Not found"
	case errors.Is(err, stepwise.ErrUnknownStep):
		p.Status, p.Title = http.StatusNotFound, "No guidance for step"
	case errors.Is(err, stepwise.ErrTerminalState),
		errors.Is(err, stepwise.ErrInvalidTransition),
		errors.Is(err, stepwise.ErrOutOfOrderStep),
		errors.Is(err, stepwise.ErrStepNotOptional):
		p.Status, p.Title = http.StatusConflict, "Conflict"
	case errors.Is(err, stepwise.ErrEngineUnavailable):
		p.Status, p.Title = http.StatusServiceUnavailable, "Engine unavailable"
	}
	return p
}

func (a *API) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	p := problemFor(err)
	p.Instance = c.Request().URL.Path
	if p.Status >= http.StatusInternalServerError {
		a.logger.ErrorContext(c.Request().Context(), "request failed",
			"path", p.Instance,
			"status", p.Status,
			"error", err.Error(),
		)
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	c.Response().WriteHeader(p.Status)
	if c.Request().Method == http.MethodHead {
		return
	}
	_ = c.Echo().JSONSerializer.Serialize(c, p, "")
}
