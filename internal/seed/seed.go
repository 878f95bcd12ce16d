// Package seed loads the builtin playbook templates and a demo data set for
// local development.
package seed

import (
	"context"
	"fmt"
	"time"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/internal/logging"
	"clynto/backend/internal/repository"
	"clynto/backend/internal/retry"
	"clynto/backend/internal/services"
	"clynto/backend/internal/tenant"
	"clynto/backend/pkg/models"
)

// DevDomain is the email domain of the dev-mode user.
const DevDomain = "localhost"

// Result summarizes a seeding run.
type Result struct {
	TenantID  string
	Playbooks int
	Demo      bool
}

type demoAccount struct {
	awaiting models.AwaitingAccount
	age      int
	playbook string
	started  int
}

var demoAccounts = []demoAccount{
	{awaiting: models.AwaitingAccount{ID: "aw-1", Name: "Quantum Dynamics", Segment: "Enterprise", ARR: 450000, HealthScore: 78, Source: models.SourceCRM, SuggestedStage: models.CategoryOnboarding}, age: 2},
	{awaiting: models.AwaitingAccount{ID: "aw-2", Name: "Northwind Traders", Segment: "Mid-Market", ARR: 120000, HealthScore: 42, Source: models.SourceBulkUpload, SuggestedStage: models.CategoryAtRisk}, age: 5},
	{awaiting: models.AwaitingAccount{ID: "aw-3", Name: "Globex", Segment: "SMB", ARR: 36000, HealthScore: 88, Source: models.SourceManual, SuggestedStage: models.CategoryOnboarding}, age: 1},
	{awaiting: models.AwaitingAccount{ID: "aw-4", Name: "Initech", Segment: "Mid-Market", ARR: 95000, HealthScore: 35, Source: models.SourceCRM, SuggestedStage: models.CategoryAtRisk}, age: 30, playbook: "adoption-recovery", started: 2},
	{awaiting: models.AwaitingAccount{ID: "aw-5", Name: "Umbrella Corp", Segment: "Enterprise", ARR: 780000, HealthScore: 71, Source: models.SourceCRM, SuggestedStage: models.CategoryRenewal}, age: 60, playbook: "renewal-readiness", started: 1},
	{awaiting: models.AwaitingAccount{ID: "aw-6", Name: "Acme Analytics", Segment: "Enterprise", ARR: 520000, HealthScore: 92, Source: models.SourceCRM, SuggestedStage: models.CategoryExpansion}, age: 45, playbook: "expansion-growth"},
}

// Run ensures the dev tenant and the builtin templates exist. Demo accounts,
// workflows and canvas data are added only when the tenant has no canvas
// accounts yet, so Run can be repeated.
func Run(ctx context.Context, store repository.Repository, logger *logging.Logger, now time.Time) (Result, error) {
	var res Result
	policy := retry.DefaultPolicy()

	t, err := ensureTenant(ctx, store, logger)
	if err != nil {
		return res, err
	}
	res.TenantID = t.ID
	ctx = tenant.WithID(ctx, t.ID)

	playbooks := services.NewPlaybookService(store, logger, policy)
	if res.Playbooks, err = playbooks.SeedBuiltin(ctx); err != nil {
		return res, fmt.Errorf("seed playbooks: %w", err)
	}

	existing, err := store.ListAccounts(ctx, t.ID)
	if err != nil {
		return res, err
	}
	if len(existing) > 0 {
		logger.Info("demo data already present", "tenant_id", t.ID)
		return res, nil
	}

	orchestrator := services.NewOrchestratorService(store, logger, policy)
	if err := seedWorkflows(ctx, orchestrator, now); err != nil {
		return res, err
	}
	if err := seedCanvas(ctx, store, t.ID, now); err != nil {
		return res, err
	}
	res.Demo = true
	logger.Info("seeded demo data", "tenant_id", t.ID, "accounts", len(demoAccounts))
	return res, nil
}

func ensureTenant(ctx context.Context, store repository.TenantStore, logger *logging.Logger) (*models.Tenant, error) {
	t, err := store.GetTenantByDomain(ctx, DevDomain)
	if err == nil {
		logger.Info("found existing tenant", "tenant_id", t.ID)
		return t, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	logger.Info("creating default tenant", "domain", DevDomain)
	t = &models.Tenant{Name: "Local Dev Tenant", Domain: DevDomain}
	if err := store.CreateTenant(ctx, t); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return t, nil
}

func seedWorkflows(ctx context.Context, orchestrator *services.OrchestratorService, now time.Time) error {
	for _, d := range demoAccounts {
		created := now.AddDate(0, 0, -d.age)
		orchestrator.SetClock(func() time.Time { return created })
		if _, err := orchestrator.RegisterAwaiting(ctx, d.awaiting); err != nil {
			return fmt.Errorf("register %s: %w", d.awaiting.Name, err)
		}
		if d.playbook == "" {
			continue
		}
		active, err := orchestrator.AssignPlaybook(ctx, d.awaiting.ID, d.playbook)
		if err != nil {
			return fmt.Errorf("assign %s: %w", d.playbook, err)
		}
		if d.started == 0 {
			continue
		}

		w, err := orchestrator.GetWorkflow(ctx, active.ID)
		if err != nil {
			return err
		}
		var tasks []string
		for _, p := range w.Phases {
			for _, t := range p.Tasks {
				tasks = append(tasks, t.ID)
			}
		}
		for i := 0; i < d.started && i < len(tasks); i++ {
			if _, err := orchestrator.UpdateTaskStatus(ctx, active.ID, tasks[i], models.TaskStatusCompleted); err != nil {
				return err
			}
		}
		if d.started < len(tasks) {
			if _, err := orchestrator.UpdateTaskStatus(ctx, active.ID, tasks[d.started], models.TaskStatusInProgress); err != nil {
				return err
			}
		}
	}
	orchestrator.SetClock(time.Now)
	return nil
}

func seedCanvas(ctx context.Context, store repository.CanvasStore, tenantID string, now time.Time) error {
	day := now.UTC().Truncate(24 * time.Hour)
	owners := []string{"Priya Shah", "Marcus Lee", "Dana Kim"}

	for i, d := range demoAccounts {
		a := d.awaiting
		acc := models.Account{
			ID:          "acc-" + a.ID[len("aw-"):],
			TenantID:    tenantID,
			Name:        a.Name,
			Segment:     a.Segment,
			Industry:    []string{"Software", "Logistics", "Manufacturing"}[i%3],
			ARR:         a.ARR,
			HealthScore: a.HealthScore,
			RenewalDate: day.AddDate(0, 2+i*2, 0),
			Owner:       owners[i%len(owners)],
		}
		if err := store.SaveAccount(ctx, &acc); err != nil {
			return err
		}

		ticket := models.Ticket{
			ID:          fmt.Sprintf("tk-%d", 100+i),
			TenantID:    tenantID,
			AccountID:   acc.ID,
			AccountName: acc.Name,
			Subject:     []string{"SSO login loop", "Export times out", "Invoice mismatch"}[i%3],
			Status:      []models.TicketStatus{models.TicketOpen, models.TicketInProgress, models.TicketResolved}[i%3],
			Priority:    []models.TicketPriority{models.PriorityHigh, models.PriorityMedium, models.PriorityCritical, models.PriorityLow}[i%4],
			OpenedAt:    day.AddDate(0, 0, -(i + 1)),
		}
		if err := store.SaveTicket(ctx, &ticket); err != nil {
			return err
		}

		meeting := models.Meeting{
			ID:          fmt.Sprintf("mt-%d", 200+i),
			TenantID:    tenantID,
			AccountID:   acc.ID,
			AccountName: acc.Name,
			Title:       []string{"Quarterly business review", "Kickoff", "Renewal sync"}[i%3],
			ScheduledAt: day.AddDate(0, 0, i*3-4).Add(15 * time.Hour),
			Status:      models.MeetingScheduled,
		}
		if meeting.ScheduledAt.Before(now) {
			meeting.Status = models.MeetingCompleted
		}
		if err := store.SaveMeeting(ctx, &meeting); err != nil {
			return err
		}

		monthly := a.ARR / 12
		for m := 2; m >= 0; m-- {
			e := models.RevenueEntry{
				TenantID:    tenantID,
				AccountID:   acc.ID,
				AccountName: acc.Name,
				Month:       day.AddDate(0, -m, 0).Format("2006-01"),
				Projected:   monthly,
				Collected:   monthly,
			}
			if a.HealthScore < 50 && m == 0 {
				e.Collected = monthly * 0.6
				e.Variance = &models.Variance{Amount: e.Collected - e.Projected, Reason: "Partial payment pending"}
			}
			if err := store.SaveRevenue(ctx, &e); err != nil {
				return err
			}
		}
	}
	return nil
}
