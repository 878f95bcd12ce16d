package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/pkg/models"
)

// MemoryStore is an in-process Repository for development and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	tenants    map[string]models.Tenant
	playbooks  map[string]models.Playbook
	awaiting   map[string]models.AwaitingAccount
	workflows  map[string]*models.WorkflowInstance
	accounts   map[string]models.Account
	tickets    map[string]models.Ticket
	meetings   map[string]models.Meeting
	revenue    map[string]models.RevenueEntry
	onboarding map[string]*models.OnboardingSession
}

var _ Repository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:    make(map[string]models.Tenant),
		playbooks:  make(map[string]models.Playbook),
		awaiting:   make(map[string]models.AwaitingAccount),
		workflows:  make(map[string]*models.WorkflowInstance),
		accounts:   make(map[string]models.Account),
		tickets:    make(map[string]models.Ticket),
		meetings:   make(map[string]models.Meeting),
		revenue:    make(map[string]models.RevenueEntry),
		onboarding: make(map[string]*models.OnboardingSession),
	}
}

func key(tenantID, id string) string { return tenantID + "/" + id }

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() {}

func (s *MemoryStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if strings.EqualFold(t.Domain, domain) {
			t := t
			return &t, nil
		}
	}
	return nil, apperrors.NewNotFoundError("tenant", domain)
}

func (s *MemoryStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	if _, ok := s.tenants[tenant.ID]; ok {
		return apperrors.NewConflictError("tenant %s already exists", tenant.ID)
	}
	for _, t := range s.tenants {
		if strings.EqualFold(t.Domain, tenant.Domain) {
			return apperrors.NewConflictError("domain %s is already registered", tenant.Domain)
		}
	}
	s.tenants[tenant.ID] = *tenant
	return nil
}

func (s *MemoryStore) ListPlaybooks(ctx context.Context) ([]models.Playbook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Playbook, 0, len(s.playbooks))
	for _, pb := range s.playbooks {
		pb.Phases = models.ClonePhases(pb.Phases)
		out = append(out, pb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetPlaybook(ctx context.Context, id string) (*models.Playbook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pb, ok := s.playbooks[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("playbook", id)
	}
	pb.Phases = models.ClonePhases(pb.Phases)
	return &pb, nil
}

func (s *MemoryStore) SavePlaybook(ctx context.Context, pb *models.Playbook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *pb
	stored.Phases = models.ClonePhases(pb.Phases)
	if prev, ok := s.playbooks[pb.ID]; ok && !prev.CreatedAt.IsZero() {
		stored.CreatedAt = prev.CreatedAt
	}
	s.playbooks[pb.ID] = stored
	return nil
}

func (s *MemoryStore) DeletePlaybook(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.playbooks[id]; !ok {
		return apperrors.NewNotFoundError("playbook", id)
	}
	delete(s.playbooks, id)
	return nil
}

func (s *MemoryStore) ListAwaiting(ctx context.Context, tenantID string) ([]models.AwaitingAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AwaitingAccount, 0)
	for _, a := range s.awaiting {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetAwaiting(ctx context.Context, tenantID, id string) (*models.AwaitingAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.awaiting[key(tenantID, id)]
	if !ok {
		return nil, apperrors.NewNotFoundError("awaiting account", id)
	}
	return &a, nil
}

func (s *MemoryStore) CreateAwaiting(ctx context.Context, account *models.AwaitingAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(account.TenantID, account.ID)
	if _, ok := s.awaiting[k]; ok {
		return apperrors.NewConflictError("awaiting account %s already exists", account.ID)
	}
	s.awaiting[k] = *account
	return nil
}

func (s *MemoryStore) AssignPlaybook(ctx context.Context, tenantID, awaitingID string, w *models.WorkflowInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(tenantID, awaitingID)
	if _, ok := s.awaiting[k]; !ok {
		return apperrors.NewNotFoundError("awaiting account", awaitingID)
	}
	if _, ok := s.workflows[key(w.TenantID, w.ID)]; ok {
		return apperrors.NewConflictError("workflow %s already exists", w.ID)
	}
	delete(s.awaiting, k)
	s.workflows[key(w.TenantID, w.ID)] = w.Clone()
	return nil
}

func (s *MemoryStore) ListWorkflows(ctx context.Context, tenantID string) ([]*models.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.WorkflowInstance, 0)
	for _, w := range s.workflows {
		if w.TenantID == tenantID {
			out = append(out, w.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetWorkflow(ctx context.Context, tenantID, id string) (*models.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[key(tenantID, id)]
	if !ok {
		return nil, apperrors.NewNotFoundError("workflow", id)
	}
	return w.Clone(), nil
}

func (s *MemoryStore) SaveWorkflow(ctx context.Context, w *models.WorkflowInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[key(w.TenantID, w.ID)] = w.Clone()
	return nil
}

func (s *MemoryStore) ListAccounts(ctx context.Context, tenantID string) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Account, 0)
	for _, a := range s.accounts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) ListTickets(ctx context.Context, tenantID string) ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Ticket, 0)
	for _, t := range s.tickets {
		if t.TenantID == tenantID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.After(out[j].OpenedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ListMeetings(ctx context.Context, tenantID string) ([]models.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Meeting, 0)
	for _, m := range s.meetings {
		if m.TenantID == tenantID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ListRevenue(ctx context.Context, tenantID string) ([]models.RevenueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RevenueEntry, 0)
	for _, e := range s.revenue {
		if e.TenantID == tenantID {
			if e.Variance != nil {
				v := *e.Variance
				e.Variance = &v
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountName != out[j].AccountName {
			return out[i].AccountName < out[j].AccountName
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (s *MemoryStore) SaveAccount(ctx context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[key(a.TenantID, a.ID)] = *a
	return nil
}

func (s *MemoryStore) SaveTicket(ctx context.Context, t *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[key(t.TenantID, t.ID)] = *t
	return nil
}

func (s *MemoryStore) SaveMeeting(ctx context.Context, m *models.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[key(m.TenantID, m.ID)] = *m
	return nil
}

func (s *MemoryStore) SaveRevenue(ctx context.Context, e *models.RevenueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *e
	if e.Variance != nil {
		v := *e.Variance
		stored.Variance = &v
	}
	s.revenue[key(e.TenantID, e.AccountID+"/"+e.Month)] = stored
	return nil
}

func (s *MemoryStore) GetOnboardingSession(ctx context.Context, tenantID, id string) (*models.OnboardingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.onboarding[key(tenantID, id)]
	if !ok {
		return nil, apperrors.NewNotFoundError("onboarding session", id)
	}
	return sess.Clone(), nil
}

func (s *MemoryStore) SaveOnboardingSession(ctx context.Context, sess *models.OnboardingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onboarding[key(sess.TenantID, sess.ID)] = sess.Clone()
	return nil
}

func (s *MemoryStore) DeleteOnboardingSession(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(tenantID, id)
	if _, ok := s.onboarding[k]; !ok {
		return apperrors.NewNotFoundError("onboarding session", id)
	}
	delete(s.onboarding, k)
	return nil
}
