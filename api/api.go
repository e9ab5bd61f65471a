// Package api exposes the engine over HTTP with echo.
//
// The caller's identity is taken from the X-Owner-ID header, which the
// upstream auth proxy sets; it is carried to the engine through scope.
// Every /v1/workflows route requires it, and a caller only ever sees the
// instances it owns.
// Errors are rendered as RFC 7807 problem documents.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xraph/stepwise/engine"
	"github.com/xraph/stepwise/scope"
)

// OwnerHeader carries the authenticated owner ID.
const OwnerHeader = "X-Owner-ID"

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithPinger sets the health check backend, usually the store.
func WithPinger(p Pinger) Option {
	return func(a *API) { a.pinger = p }
}

// API wires the HTTP handlers to an Engine.
type API struct {
	eng    *engine.Engine
	pinger Pinger
	logger *slog.Logger
}

// New creates an API over eng.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{eng: eng, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns an echo instance with every route registered.
func (a *API) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = a.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			a.logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "http request", attrs...)
			return nil
		},
	}))
	e.Use(ownerScope)

	e.GET("/healthz", a.health)
	a.RegisterRoutes(e.Group("/v1"))
	return e
}

// RegisterRoutes registers the /v1 routes on g.
func (a *API) RegisterRoutes(g *echo.Group) {
	g.GET("/skills", a.listSkills)

	w := g.Group("/workflows", requireOwner)
	w.POST("", a.createWorkflow)
	w.GET("", a.listWorkflows)
	w.GET("/:id", a.getWorkflow)
	w.DELETE("/:id", a.deleteWorkflow)
	w.POST("/:id/start", a.startWorkflow)
	w.POST("/:id/pause", a.pauseWorkflow)
	w.POST("/:id/resume", a.resumeWorkflow)
	w.POST("/:id/fail", a.failWorkflow)
	w.POST("/:id/advance", a.advanceWorkflow)
	w.PATCH("/:id/data", a.updateWorkflowData)
	w.GET("/:id/validations", a.listWorkflowValidations)

	w.GET("/:id/steps", a.listSteps)
	w.GET("/:id/steps/:stepId", a.getStep)
	w.POST("/:id/steps/:stepId/complete", a.completeStep)
	w.POST("/:id/steps/:stepId/validate", a.validateStep)
	w.PUT("/:id/steps/:stepId/draft", a.saveStepDraft)
	w.POST("/:id/steps/:stepId/skip", a.skipStep)
	w.GET("/:id/steps/:stepId/guidance", a.stepGuidance)
	w.GET("/:id/steps/:stepId/validations", a.listStepValidations)
}

// ownerScope copies the owner header into the request context.
func ownerScope(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if owner := c.Request().Header.Get(OwnerHeader); owner != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(scope.WithOwner(req.Context(), owner)))
		}
		return next(c)
	}
}

// requireOwner rejects workflow requests that carry no owner. Instances of
// other owners are hidden by the engine.
func requireOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := scope.Owner(c.Request().Context()); !ok {
			return &problemError{status: http.StatusUnauthorized, title: "Unauthorized", detail: OwnerHeader + " header is required"}
		}
		return next(c)
	}
}

func (a *API) health(c echo.Context) error {
	if a.pinger != nil {
		if err := a.pinger.Ping(c.Request().Context()); err != nil {
			return &problemError{status: http.StatusServiceUnavailable, title: "Store unavailable", detail: err.Error()}
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
