// Package api contains the HTTP handlers of the customer success service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"

	"clynto/backend/internal/logging"
	"clynto/backend/internal/services"
)

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the API server.
type Server struct {
	Orchestrator *services.OrchestratorService
	Playbooks    *services.PlaybookService
	Canvas       *services.CanvasService
	Onboarding   *services.OnboardingService
	Store        Pinger
	Logger       *logging.Logger
	Version      string
}

// RegisterHandlers mounts the authenticated API routes on g.
func RegisterHandlers(g *echo.Group, s *Server) {
	g.GET("/workflows", s.ListWorkflows)
	g.GET("/workflows/:id", s.GetWorkflow)
	g.GET("/workflows/:id/board", s.GetBoard)
	g.PUT("/workflows/:id/tasks/:taskId/status", s.UpdateTaskStatus)
	g.POST("/workflows/:id/tasks/:taskId/reopen", s.ReopenTask)
	g.POST("/workflows/:id/tasks/:taskId/subtasks/:subTaskId/toggle", s.ToggleSubTask)
	g.POST("/workflows/:id/pause", s.PauseWorkflow)
	g.POST("/workflows/:id/resume", s.ResumeWorkflow)

	g.GET("/awaiting-accounts", s.ListAwaitingAccounts)
	g.POST("/awaiting-accounts", s.RegisterAwaitingAccount)
	g.POST("/awaiting-accounts/:id/assign", s.AssignPlaybook)

	g.GET("/journey", s.GetJourney)

	g.GET("/playbooks", s.ListPlaybooks)
	g.GET("/playbooks/:id", s.GetPlaybook)
	g.PUT("/playbooks/:id", s.PutPlaybook)
	g.DELETE("/playbooks/:id", s.DeletePlaybook)

	g.GET("/canvas/accounts", s.ListAccounts)
	g.GET("/canvas/accounts/:id", s.GetAccount)
	g.GET("/canvas/health", s.ListHealth)
	g.GET("/canvas/revenue", s.GetRevenue)
	g.GET("/canvas/tickets", s.ListTickets)
	g.GET("/canvas/tickets/:id", s.GetTicket)
	g.GET("/canvas/meetings", s.ListMeetings)
	g.GET("/canvas/meetings/:id", s.GetMeeting)
	g.GET("/canvas/tasks", s.ListTasks)

	g.POST("/onboarding/sessions", s.StartOnboarding)
	g.GET("/onboarding/sessions/:id", s.GetOnboarding)
	g.PUT("/onboarding/sessions/:id/steps/:step", s.SubmitOnboardingStep)
	g.POST("/onboarding/sessions/:id/integrations/:name/validate", s.ValidateIntegration)
	g.POST("/onboarding/sessions/:id/complete", s.CompleteOnboarding)
	g.DELETE("/onboarding/sessions/:id", s.AbandonOnboarding)
}

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Storage   string    `json:"storage,omitempty"`
}

// HandleHealth reports liveness. It always returns 200.
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   "clynto-backend",
		Version:   s.Version,
	})
}

// HandleReady reports readiness, failing with 503 while storage is down.
func (s *Server) HandleReady(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   "clynto-backend",
		Version:   s.Version,
		Storage:   "ok",
	}
	code := http.StatusOK
	if err := s.Store.Ping(ctx); err != nil {
		s.Logger.Warn("readiness check failed", "error", err)
		status.Status, status.Storage = "degraded", "unavailable"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// bindQuery binds one optional form-style query parameter into dest.
func bindQuery(c echo.Context, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, c.QueryParams(), dest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameter "+name+": "+err.Error())
	}
	return nil
}

func bindBody(c echo.Context, dest any) error {
	if err := c.Bind(dest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
