package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/pkg/models"
)

var testTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func samplePlaybook() *models.Playbook {
	return &models.Playbook{
		ID:       "enterprise-onboarding",
		Name:     "Enterprise Onboarding",
		Category: models.CategoryOnboarding,
		Phases: []models.Phase{{
			ID: "kickoff", Name: "Kickoff", Timeline: "Days 1-3", Enabled: true,
			Tasks: []models.Task{{
				ID: "welcome", Name: "Send welcome email", Status: models.TaskStatusPending,
				SubTasks: []models.SubTask{{ID: "draft", Name: "Draft email"}},
			}},
		}},
	}
}

func sampleWorkflow(tenantID, id string) *models.WorkflowInstance {
	pb := samplePlaybook()
	return &models.WorkflowInstance{
		ID:           id,
		TenantID:     tenantID,
		Account:      models.AccountRef{ID: "aw-1", Name: "Quantum Dynamics", Segment: "Enterprise", ARR: 250000, HealthScore: 75},
		Playbook:     models.PlaybookRef{ID: pb.ID, Name: pb.Name},
		Category:     pb.Category,
		Phases:       pb.Phases,
		LastActivity: testTime,
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	}
}

// runContract exercises behavior every Repository implementation must share.
func runContract(t *testing.T, repo Repository) {
	ctx := context.Background()

	t.Run("playbooks", func(t *testing.T) {
		require.NoError(t, repo.SavePlaybook(ctx, samplePlaybook()))

		pb, err := repo.GetPlaybook(ctx, "enterprise-onboarding")
		require.NoError(t, err)
		assert.Equal(t, "Enterprise Onboarding", pb.Name)
		require.Len(t, pb.Phases, 1)
		assert.Equal(t, "welcome", pb.Phases[0].Tasks[0].ID)

		pb.Name = "Enterprise Onboarding v2"
		require.NoError(t, repo.SavePlaybook(ctx, pb))
		list, err := repo.ListPlaybooks(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Enterprise Onboarding v2", list[0].Name)

		_, err = repo.GetPlaybook(ctx, "missing")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
		assert.True(t, apperrors.Is(repo.DeletePlaybook(ctx, "missing"), apperrors.ErrNotFound))
	})

	t.Run("assign moves account to workflows", func(t *testing.T) {
		require.NoError(t, repo.CreateAwaiting(ctx, &models.AwaitingAccount{
			ID: "aw-1", TenantID: "t1", Name: "Quantum Dynamics", Segment: "Enterprise",
			ARR: 250000, Source: models.SourceCRM, SuggestedStage: models.CategoryOnboarding, CreatedAt: testTime,
		}))
		err := repo.CreateAwaiting(ctx, &models.AwaitingAccount{ID: "aw-1", TenantID: "t1", Name: "dup", Source: models.SourceManual, CreatedAt: testTime})
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

		awaiting, err := repo.ListAwaiting(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, awaiting, 1)

		require.NoError(t, repo.AssignPlaybook(ctx, "t1", "aw-1", sampleWorkflow("t1", "wf-1")))

		awaiting, err = repo.ListAwaiting(ctx, "t1")
		require.NoError(t, err)
		assert.Empty(t, awaiting)

		w, err := repo.GetWorkflow(ctx, "t1", "wf-1")
		require.NoError(t, err)
		assert.Equal(t, "Quantum Dynamics", w.Account.Name)
		assert.Equal(t, "Enterprise Onboarding", w.Playbook.Name)
		assert.Equal(t, models.TaskStatusPending, w.Phases[0].Tasks[0].Status)

		err = repo.AssignPlaybook(ctx, "t1", "aw-1", sampleWorkflow("t1", "wf-2"))
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
		_, err = repo.GetWorkflow(ctx, "t1", "wf-2")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("workflows are tenant scoped and saved whole", func(t *testing.T) {
		_, err := repo.GetWorkflow(ctx, "other", "wf-1")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

		w, err := repo.GetWorkflow(ctx, "t1", "wf-1")
		require.NoError(t, err)
		w.Phases[0].Tasks[0].Status = models.TaskStatusInProgress
		w.Paused = true
		require.NoError(t, repo.SaveWorkflow(ctx, w))

		list, err := repo.ListWorkflows(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, models.TaskStatusInProgress, list[0].Phases[0].Tasks[0].Status)
		assert.True(t, list[0].Paused)

		others, err := repo.ListWorkflows(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, others)
	})

	t.Run("canvas datasets", func(t *testing.T) {
		require.NoError(t, repo.SaveAccount(ctx, &models.Account{ID: "a2", TenantID: "t1", Name: "Zenith", HealthScore: 30}))
		require.NoError(t, repo.SaveAccount(ctx, &models.Account{ID: "a1", TenantID: "t1", Name: "Acme Corp", HealthScore: 82, RenewalDate: testTime}))
		accounts, err := repo.ListAccounts(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, "Acme Corp", accounts[0].Name)
		assert.True(t, accounts[0].RenewalDate.Equal(testTime))

		require.NoError(t, repo.SaveRevenue(ctx, &models.RevenueEntry{
			TenantID: "t1", AccountID: "a1", AccountName: "Acme Corp", Month: "2025-01",
			Projected: 1000, Collected: 800, Variance: &models.Variance{Amount: -200, Reason: "late payment"},
		}))
		require.NoError(t, repo.SaveRevenue(ctx, &models.RevenueEntry{
			TenantID: "t1", AccountID: "a1", AccountName: "Acme Corp", Month: "2025-02", Projected: 1000, Collected: 1000,
		}))
		revenue, err := repo.ListRevenue(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, revenue, 2)
		require.NotNil(t, revenue[0].Variance)
		assert.Equal(t, "late payment", revenue[0].Variance.Reason)
		assert.Nil(t, revenue[1].Variance)

		require.NoError(t, repo.SaveTicket(ctx, &models.Ticket{ID: "tk-1", TenantID: "t1", AccountID: "a1", AccountName: "Acme Corp",
			Subject: "SSO broken", Status: models.TicketOpen, Priority: models.PriorityHigh, OpenedAt: testTime}))
		tickets, err := repo.ListTickets(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, tickets, 1)
		assert.Equal(t, models.PriorityHigh, tickets[0].Priority)

		require.NoError(t, repo.SaveMeeting(ctx, &models.Meeting{ID: "m-1", TenantID: "t1", AccountID: "a1", AccountName: "Acme Corp",
			Title: "QBR", ScheduledAt: testTime, Status: models.MeetingScheduled}))
		meetings, err := repo.ListMeetings(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, meetings, 1)
		assert.Equal(t, "QBR", meetings[0].Title)
	})

	t.Run("onboarding sessions", func(t *testing.T) {
		sess := &models.OnboardingSession{
			ID: "s1", TenantID: "t1", CurrentStep: models.StepIntegrations,
			CompletedSteps: []models.OnboardingStep{models.StepProfile},
			Answers: models.OnboardingAnswers{
				Profile:      &models.CompanyProfile{CompanyName: "Clynto", Industry: "SaaS"},
				Integrations: []models.IntegrationSelection{{Name: "salesforce", Validation: models.ValidationNone}},
			},
			Status: models.OnboardingActive, CreatedAt: testTime, UpdatedAt: testTime,
		}
		require.NoError(t, repo.SaveOnboardingSession(ctx, sess))

		got, err := repo.GetOnboardingSession(ctx, "t1", "s1")
		require.NoError(t, err)
		assert.Equal(t, models.StepIntegrations, got.CurrentStep)
		assert.Equal(t, "Clynto", got.Answers.Profile.CompanyName)
		assert.True(t, got.StepDone(models.StepProfile))

		_, err = repo.GetOnboardingSession(ctx, "t2", "s1")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

		require.NoError(t, repo.DeleteOnboardingSession(ctx, "t1", "s1"))
		_, err = repo.GetOnboardingSession(ctx, "t1", "s1")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("tenants", func(t *testing.T) {
		require.NoError(t, repo.CreateTenant(ctx, &models.Tenant{ID: "t1", Name: "Clynto", Domain: "clynto.ai", CreatedAt: testTime, UpdatedAt: testTime}))
		tn, err := repo.GetTenantByDomain(ctx, "CLYNTO.ai")
		require.NoError(t, err)
		assert.Equal(t, "t1", tn.ID)

		_, err = repo.GetTenantByDomain(ctx, "example.com")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})
}

func TestMemoryStore(t *testing.T) {
	runContract(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore()
	require.NoError(t, repo.SaveWorkflow(ctx, sampleWorkflow("t1", "wf-1")))

	w, err := repo.GetWorkflow(ctx, "t1", "wf-1")
	require.NoError(t, err)
	w.Phases[0].Tasks[0].Status = models.TaskStatusCompleted
	w.Phases[0].Tasks[0].SubTasks[0].Completed = true

	again, err := repo.GetWorkflow(ctx, "t1", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, again.Phases[0].Tasks[0].Status)
	assert.False(t, again.Phases[0].Tasks[0].SubTasks[0].Completed)
}

func TestMemoryStore_ConcurrentAssignIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore()
	require.NoError(t, repo.CreateAwaiting(ctx, &models.AwaitingAccount{ID: "aw-1", TenantID: "t1", Name: "Quantum Dynamics", Source: models.SourceCRM}))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.AssignPlaybook(ctx, "t1", "aw-1", sampleWorkflow("t1", "wf-"+string(rune('a'+i))))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	list, err := repo.ListWorkflows(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
