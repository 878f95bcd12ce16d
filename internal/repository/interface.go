package repository

import (
	"context"

	"clynto/backend/pkg/models"
)

// TenantStore resolves tenants for authenticated requests.
type TenantStore interface {
	// GetTenantByDomain returns the tenant owning an email domain.
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	// CreateTenant inserts a tenant.
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
}

// PlaybookStore holds the playbook template catalog.
type PlaybookStore interface {
	ListPlaybooks(ctx context.Context) ([]models.Playbook, error)
	GetPlaybook(ctx context.Context, id string) (*models.Playbook, error)
	// SavePlaybook inserts or replaces a template.
	SavePlaybook(ctx context.Context, pb *models.Playbook) error
	DeletePlaybook(ctx context.Context, id string) error
}

// WorkflowStore holds awaiting accounts and workflow instances.
type WorkflowStore interface {
	ListAwaiting(ctx context.Context, tenantID string) ([]models.AwaitingAccount, error)
	GetAwaiting(ctx context.Context, tenantID, id string) (*models.AwaitingAccount, error)
	CreateAwaiting(ctx context.Context, account *models.AwaitingAccount) error

	// AssignPlaybook removes the awaiting account and inserts the workflow
	// in one step. Either both happen or neither does.
	AssignPlaybook(ctx context.Context, tenantID, awaitingID string, w *models.WorkflowInstance) error

	ListWorkflows(ctx context.Context, tenantID string) ([]*models.WorkflowInstance, error)
	GetWorkflow(ctx context.Context, tenantID, id string) (*models.WorkflowInstance, error)
	// SaveWorkflow inserts or replaces a workflow instance.
	SaveWorkflow(ctx context.Context, w *models.WorkflowInstance) error
}

// CanvasStore holds the account canvas datasets.
type CanvasStore interface {
	ListAccounts(ctx context.Context, tenantID string) ([]models.Account, error)
	ListTickets(ctx context.Context, tenantID string) ([]models.Ticket, error)
	ListMeetings(ctx context.Context, tenantID string) ([]models.Meeting, error)
	ListRevenue(ctx context.Context, tenantID string) ([]models.RevenueEntry, error)

	SaveAccount(ctx context.Context, a *models.Account) error
	SaveTicket(ctx context.Context, t *models.Ticket) error
	SaveMeeting(ctx context.Context, m *models.Meeting) error
	SaveRevenue(ctx context.Context, e *models.RevenueEntry) error
}

// OnboardingStore holds signup wizard sessions.
type OnboardingStore interface {
	GetOnboardingSession(ctx context.Context, tenantID, id string) (*models.OnboardingSession, error)
	SaveOnboardingSession(ctx context.Context, s *models.OnboardingSession) error
	DeleteOnboardingSession(ctx context.Context, tenantID, id string) error
}

// Repository is the full persistence surface used by the services.
// Lookups of missing rows return an error matching errors.ErrNotFound;
// connectivity failures return a retryable errors.TransientError.
type Repository interface {
	TenantStore
	PlaybookStore
	WorkflowStore
	CanvasStore
	OnboardingStore

	Ping(ctx context.Context) error
	Close()
}
