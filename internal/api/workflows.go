package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"clynto/backend/pkg/models"
)

// ListWorkflowsParams are the query parameters of GET /workflows.
type ListWorkflowsParams struct {
	Category *string
	Search   *string
}

// StatusUpdateRequest is the body of a task status update.
type StatusUpdateRequest struct {
	Status models.TaskStatus `json:"status"`
}

// AssignRequest is the body of a playbook assignment.
type AssignRequest struct {
	PlaybookID string `json:"playbook_id"`
}

// ListWorkflows returns active workflows, filtered by category and search.
func (s *Server) ListWorkflows(c echo.Context) error {
	var params ListWorkflowsParams
	if err := bindQuery(c, "category", &params.Category); err != nil {
		return err
	}
	if err := bindQuery(c, "search", &params.Search); err != nil {
		return err
	}
	list, err := s.Orchestrator.ListActive(c.Request().Context(), deref(params.Category), deref(params.Search))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) GetWorkflow(c echo.Context) error {
	w, err := s.Orchestrator.GetWorkflow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

// GetBoard renders the phase board. Repeat "expanded" to open several tasks.
func (s *Server) GetBoard(c echo.Context) error {
	var expanded *[]string
	if err := bindQuery(c, "expanded", &expanded); err != nil {
		return err
	}
	board, err := s.Orchestrator.Board(c.Request().Context(), c.Param("id"), deref(expanded))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, board)
}

func (s *Server) UpdateTaskStatus(c echo.Context) error {
	var req StatusUpdateRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	w, err := s.Orchestrator.UpdateTaskStatus(c.Request().Context(), c.Param("id"), c.Param("taskId"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

func (s *Server) ReopenTask(c echo.Context) error {
	w, err := s.Orchestrator.ReopenTask(c.Request().Context(), c.Param("id"), c.Param("taskId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

func (s *Server) ToggleSubTask(c echo.Context) error {
	w, err := s.Orchestrator.ToggleSubTask(c.Request().Context(), c.Param("id"), c.Param("taskId"), c.Param("subTaskId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

func (s *Server) PauseWorkflow(c echo.Context) error {
	w, err := s.Orchestrator.Pause(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

func (s *Server) ResumeWorkflow(c echo.Context) error {
	w, err := s.Orchestrator.Resume(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

func (s *Server) ListAwaitingAccounts(c echo.Context) error {
	list, err := s.Orchestrator.ListAwaiting(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// RegisterAwaitingAccount queues a new account for playbook assignment.
func (s *Server) RegisterAwaitingAccount(c echo.Context) error {
	var in models.AwaitingAccount
	if err := bindBody(c, &in); err != nil {
		return err
	}
	acc, err := s.Orchestrator.RegisterAwaiting(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, acc)
}

// AssignPlaybook starts a workflow for an awaiting account.
func (s *Server) AssignPlaybook(c echo.Context) error {
	var req AssignRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	w, err := s.Orchestrator.AssignPlaybook(c.Request().Context(), c.Param("id"), req.PlaybookID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, w)
}

// GetJourney returns the lifecycle stage summaries.
func (s *Server) GetJourney(c echo.Context) error {
	var nonEmpty *bool
	if err := bindQuery(c, "non_empty", &nonEmpty); err != nil {
		return err
	}
	stages, err := s.Orchestrator.Journey(c.Request().Context(), deref(nonEmpty))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stages)
}
