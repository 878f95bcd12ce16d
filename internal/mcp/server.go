// Package mcp exposes the playbook orchestrator as Model Context Protocol
// tools so assistants can inspect and drive customer workflows.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/internal/logging"
	"clynto/backend/internal/services"
	"clynto/backend/internal/tenant"
	"clynto/backend/pkg/models"
)

type Server struct {
	mcpServer    *server.MCPServer
	orchestrator *services.OrchestratorService
	playbooks    *services.PlaybookService
	logger       *logging.Logger
}

func NewServer(orchestrator *services.OrchestratorService, playbooks *services.PlaybookService, logger *logging.Logger, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Clynto Playbooks",
			version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
		orchestrator: orchestrator,
		playbooks:    playbooks,
		logger:       logger,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_playbooks",
			mcp.WithDescription("List the playbook templates that can be assigned to accounts"),
		),
		s.handleListPlaybooks,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_awaiting_accounts",
			mcp.WithDescription("List accounts waiting for a playbook assignment"),
		),
		s.handleListAwaiting,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_active_workflows",
			mcp.WithDescription("List running workflows with their progress"),
			mcp.WithString("category", mcp.Description("onboarding, at_risk, renewal, expansion or all")),
			mcp.WithString("search", mcp.Description("Case-insensitive match on account or playbook name")),
		),
		s.handleListActive,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"assign_playbook",
			mcp.WithDescription("Start a playbook for an awaiting account"),
			mcp.WithString("account_id", mcp.Required(), mcp.Description("The ID of the awaiting account")),
			mcp.WithString("playbook_id", mcp.Required(), mcp.Description("The ID of the playbook template")),
		),
		s.handleAssign,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"workflow_board",
			mcp.WithDescription("Show the phases and tasks of a workflow"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
		),
		s.handleBoard,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"update_task_status",
			mcp.WithDescription("Move a task to a new status"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("The ID of the task")),
			mcp.WithString("status", mcp.Required(),
				mcp.Enum(string(models.TaskStatusInProgress), string(models.TaskStatusCompleted), string(models.TaskStatusSkipped)),
				mcp.Description("The new status")),
		),
		s.handleUpdateTaskStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"journey_summary",
			mcp.WithDescription("Summarize accounts per customer journey stage"),
			mcp.WithBoolean("non_empty", mcp.Description("Only return stages that have accounts")),
		),
		s.handleJourney,
	)
}

// toolError reports err to the model. Only user-facing errors are shown in
// full.
func (s *Server) toolError(action string, err error) *mcp.CallToolResult {
	if apperrors.IsUserFacing(err) {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", action, err))
	}
	s.logger.Error("mcp tool failed", "action", action, "error", err)
	if apperrors.IsRetryable(err) {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: the service is temporarily unavailable", action))
	}
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s", action))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleListPlaybooks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.playbooks.List(ctx)
	if err != nil {
		return s.toolError("list playbooks", err), nil
	}
	return jsonResult(list)
}

func (s *Server) handleListAwaiting(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.orchestrator.ListAwaiting(ctx)
	if err != nil {
		return s.toolError("list awaiting accounts", err), nil
	}
	return jsonResult(list)
}

func (s *Server) handleListActive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.orchestrator.ListActive(ctx, request.GetString("category", "all"), request.GetString("search", ""))
	if err != nil {
		return s.toolError("list workflows", err), nil
	}
	return jsonResult(list)
}

func (s *Server) handleAssign(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accountID, err := request.RequireString("account_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	playbookID, err := request.RequireString("playbook_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	active, err := s.orchestrator.AssignPlaybook(ctx, accountID, playbookID)
	if err != nil {
		return s.toolError("assign playbook", err), nil
	}
	return jsonResult(active)
}

func (s *Server) handleBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	board, err := s.orchestrator.Board(ctx, id, nil)
	if err != nil {
		return s.toolError("load workflow", err), nil
	}
	return jsonResult(board)
}

func (s *Server) handleUpdateTaskStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	taskID, err := request.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	w, err := s.orchestrator.UpdateTaskStatus(ctx, id, taskID, models.TaskStatus(status))
	if err != nil {
		return s.toolError("update task", err), nil
	}
	_, task := w.FindTask(taskID)
	return jsonResult(task)
}

func (s *Server) handleJourney(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stages, err := s.orchestrator.Journey(ctx, request.GetBool("non_empty", false))
	if err != nil {
		return s.toolError("summarize journey", err), nil
	}
	return jsonResult(stages)
}

// Mount serves the SSE transport under /mcp on g. Requests reach g already
// authenticated, so the tenant of the request is carried into tool calls.
func Mount(g *echo.Group, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return tenant.WithID(ctx, tenant.FromContext(r.Context()))
		}),
	)

	sse := sseServer.SSEHandler()
	g.GET("/sse", func(c echo.Context) error {
		// The stream outlives the server write timeout.
		_ = http.NewResponseController(c.Response()).SetWriteDeadline(time.Time{})
		sse.ServeHTTP(c.Response(), c.Request())
		return nil
	})
	g.POST("/message", echo.WrapHandler(sseServer.MessageHandler()))
}
