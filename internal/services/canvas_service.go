package services

import (
	"context"

	"clynto/backend/internal/canvas"
	apperrors "clynto/backend/internal/errors"
	"clynto/backend/internal/repository"
	"clynto/backend/internal/retry"
	"clynto/backend/pkg/models"
)

// CanvasService serves the account canvas pages.
type CanvasService struct {
	store     repository.CanvasStore
	workflows repository.WorkflowStore
	policy    retry.Policy
}

// NewCanvasService creates a new CanvasService.
func NewCanvasService(store repository.CanvasStore, workflows repository.WorkflowStore, policy retry.Policy) *CanvasService {
	return &CanvasService{store: store, workflows: workflows, policy: policy}
}

func validHealth(h models.HealthStatus) bool {
	switch h {
	case "", models.HealthHealthy, models.HealthAtRisk, models.HealthCritical:
		return true
	}
	return false
}

func (s *CanvasService) accounts(ctx context.Context) ([]models.Account, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	return retry.Value(ctx, s.policy, "list accounts", func(ctx context.Context) ([]models.Account, error) {
		return s.store.ListAccounts(ctx, tenantID)
	})
}

// Accounts lists the accounts table.
func (s *CanvasService) Accounts(ctx context.Context, f canvas.AccountFilter) ([]models.Account, error) {
	if !validHealth(f.Health) {
		return nil, apperrors.NewValidationError("health", "unknown health status "+string(f.Health))
	}
	all, err := s.accounts(ctx)
	if err != nil {
		return nil, err
	}
	return canvas.FilterAccounts(all, f), nil
}

// Account returns one account row.
func (s *CanvasService) Account(ctx context.Context, id string) (*models.Account, error) {
	all, err := s.accounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError("account", id)
}

// Health lists accounts with their health status.
func (s *CanvasService) Health(ctx context.Context, status models.HealthStatus) ([]models.HealthRecord, error) {
	if !validHealth(status) {
		return nil, apperrors.NewValidationError("status", "unknown health status "+string(status))
	}
	all, err := s.accounts(ctx)
	if err != nil {
		return nil, err
	}
	return canvas.HealthRecords(all, status), nil
}

// Revenue builds the projection-vs-collection matrix.
func (s *CanvasService) Revenue(ctx context.Context, account string) (canvas.RevenueMatrix, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return canvas.RevenueMatrix{}, err
	}
	entries, err := retry.Value(ctx, s.policy, "list revenue", func(ctx context.Context) ([]models.RevenueEntry, error) {
		return s.store.ListRevenue(ctx, tenantID)
	})
	if err != nil {
		return canvas.RevenueMatrix{}, err
	}
	m := canvas.BuildRevenueMatrix(entries, account)
	if account != "" && len(m.Rows) == 0 {
		return canvas.RevenueMatrix{}, apperrors.NewNotFoundError("revenue account", account)
	}
	return m, nil
}

func (s *CanvasService) tickets(ctx context.Context) ([]models.Ticket, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	return retry.Value(ctx, s.policy, "list tickets", func(ctx context.Context) ([]models.Ticket, error) {
		return s.store.ListTickets(ctx, tenantID)
	})
}

// Tickets lists support tickets.
func (s *CanvasService) Tickets(ctx context.Context, f canvas.TicketFilter) ([]models.Ticket, error) {
	switch f.Status {
	case "", models.TicketOpen, models.TicketInProgress, models.TicketResolved, models.TicketClosed:
	default:
		return nil, apperrors.NewValidationError("status", "unknown ticket status "+string(f.Status))
	}
	switch f.Priority {
	case "", models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical:
	default:
		return nil, apperrors.NewValidationError("priority", "unknown ticket priority "+string(f.Priority))
	}
	all, err := s.tickets(ctx)
	if err != nil {
		return nil, err
	}
	return canvas.FilterTickets(all, f), nil
}

// Ticket returns one ticket.
func (s *CanvasService) Ticket(ctx context.Context, id string) (*models.Ticket, error) {
	all, err := s.tickets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError("ticket", id)
}

func (s *CanvasService) meetings(ctx context.Context) ([]models.Meeting, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	return retry.Value(ctx, s.policy, "list meetings", func(ctx context.Context) ([]models.Meeting, error) {
		return s.store.ListMeetings(ctx, tenantID)
	})
}

// Meetings lists customer meetings.
func (s *CanvasService) Meetings(ctx context.Context, f canvas.MeetingFilter) ([]models.Meeting, error) {
	switch f.Status {
	case "", models.MeetingScheduled, models.MeetingCompleted, models.MeetingCancelled:
	default:
		return nil, apperrors.NewValidationError("status", "unknown meeting status "+string(f.Status))
	}
	all, err := s.meetings(ctx)
	if err != nil {
		return nil, err
	}
	return canvas.FilterMeetings(all, f), nil
}

// Meeting returns one meeting.
func (s *CanvasService) Meeting(ctx context.Context, id string) (*models.Meeting, error) {
	all, err := s.meetings(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError("meeting", id)
}

// Tasks lists playbook tasks across the tenant's workflows.
func (s *CanvasService) Tasks(ctx context.Context, f canvas.TaskFilter) ([]canvas.TaskItem, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperrors.NewValidationError("status", "unknown task status "+string(f.Status))
	}
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	instances, err := retry.Value(ctx, s.policy, "list workflows", func(ctx context.Context) ([]*models.WorkflowInstance, error) {
		return s.workflows.ListWorkflows(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return canvas.ListTasks(instances, f), nil
}
