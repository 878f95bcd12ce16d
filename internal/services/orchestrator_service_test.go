package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/internal/logging"
	"clynto/backend/internal/repository"
	"clynto/backend/pkg/models"
)

func newOrchestrator(t *testing.T) (*OrchestratorService, *repository.MemoryStore) {
	t.Helper()
	repo := repository.NewMemoryStore()
	playbooks := NewPlaybookService(repo, logging.Nop(), testPolicy)
	_, err := playbooks.SeedBuiltin(context.Background())
	require.NoError(t, err)

	svc := NewOrchestratorService(repo, logging.Nop(), testPolicy)
	svc.SetClock(func() time.Time { return testNow })
	return svc, repo
}

func registerQuantum(t *testing.T, svc *OrchestratorService) {
	t.Helper()
	_, err := svc.RegisterAwaiting(tenantCtx(), models.AwaitingAccount{
		ID: "aw-1", Name: "Quantum Dynamics", Segment: "Enterprise", ARR: 450000, HealthScore: 78,
		Source: models.SourceCRM, SuggestedStage: models.CategoryOnboarding,
	})
	require.NoError(t, err)
}

func TestAssignPlaybook_MovesAccountToActive(t *testing.T) {
	svc, _ := newOrchestrator(t)
	ctx := tenantCtx()
	registerQuantum(t, svc)

	awaiting, err := svc.ListAwaiting(ctx)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)

	active, err := svc.AssignPlaybook(ctx, "aw-1", "enterprise-onboarding")
	require.NoError(t, err)
	assert.Equal(t, "Quantum Dynamics", active.Account.Name)
	assert.Equal(t, "Enterprise Onboarding", active.Playbook.Name)
	assert.Equal(t, models.CategoryOnboarding, active.Category)
	assert.Equal(t, 0, active.Progress.Percentage)
	assert.Equal(t, 1, active.Progress.CurrentPhase)

	awaiting, err = svc.ListAwaiting(ctx)
	require.NoError(t, err)
	for _, a := range awaiting {
		assert.NotEqual(t, "aw-1", a.ID)
	}

	list, err := svc.ListActive(ctx, "all", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)
	assert.Equal(t, "Quantum Dynamics", list[0].Account.Name)
}

func TestAssignPlaybook_NotFound(t *testing.T) {
	svc, _ := newOrchestrator(t)
	ctx := tenantCtx()
	registerQuantum(t, svc)

	_, err := svc.AssignPlaybook(ctx, "aw-404", "enterprise-onboarding")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = svc.AssignPlaybook(ctx, "aw-1", "no-such-playbook")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	awaiting, err := svc.ListAwaiting(ctx)
	require.NoError(t, err)
	assert.Len(t, awaiting, 1, "failed assignment must leave the account waiting")
}

// lostAckStore commits the first assignment but reports a transient error.
type lostAckStore struct {
	*repository.MemoryStore
	calls int
}

func (s *lostAckStore) AssignPlaybook(ctx context.Context, tenantID, awaitingID string, w *models.WorkflowInstance) error {
	s.calls++
	err := s.MemoryStore.AssignPlaybook(ctx, tenantID, awaitingID, w)
	if s.calls == 1 && err == nil {
		return apperrors.NewTransientError("assign playbook", errors.New("connection reset by peer"))
	}
	return err
}

func TestAssignPlaybook_CommittedBeforeTransientError(t *testing.T) {
	_, repo := newOrchestrator(t)
	store := &lostAckStore{MemoryStore: repo}
	svc := NewOrchestratorService(store, logging.Nop(), testPolicy)
	svc.SetClock(func() time.Time { return testNow })
	ctx := tenantCtx()
	registerQuantum(t, svc)

	active, err := svc.AssignPlaybook(ctx, "aw-1", "enterprise-onboarding")
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls, "the retry sees the account already moved")
	assert.Equal(t, "Quantum Dynamics", active.Account.Name)

	list, err := svc.ListActive(ctx, "all", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)

	awaiting, err := svc.ListAwaiting(ctx)
	require.NoError(t, err)
	assert.Empty(t, awaiting)

	// A second assignment of the same account is still rejected.
	_, err = svc.AssignPlaybook(ctx, "aw-1", "enterprise-onboarding")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestAssignPlaybook_RequiresTenant(t *testing.T) {
	svc, _ := newOrchestrator(t)
	_, err := svc.AssignPlaybook(context.Background(), "aw-1", "enterprise-onboarding")
	assert.Error(t, err)
}

func TestRegisterAwaiting_Validation(t *testing.T) {
	svc, _ := newOrchestrator(t)
	ctx := tenantCtx()

	_, err := svc.RegisterAwaiting(ctx, models.AwaitingAccount{Name: "  "})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.RegisterAwaiting(ctx, models.AwaitingAccount{Name: "Acme", Source: "Spreadsheet"})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.RegisterAwaiting(ctx, models.AwaitingAccount{Name: "Acme", HealthScore: 140})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

	a, err := svc.RegisterAwaiting(ctx, models.AwaitingAccount{Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceManual, a.Source)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "t1", a.TenantID)
}

func TestListAwaiting_DaysSinceCreation(t *testing.T) {
	svc, _ := newOrchestrator(t)
	ctx := tenantCtx()
	registerQuantum(t, svc)

	svc.SetClock(func() time.Time { return testNow.Add(72 * time.Hour) })
	awaiting, err := svc.ListAwaiting(ctx)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	assert.Equal(t, 3, awaiting[0].DaysSinceCreation)
}

func TestListActive_Filters(t *testing.T) {
	svc, _ := newOrchestrator(t)
	ctx := tenantCtx()
	for _, in := range []struct{ id, name, playbook string }{
		{"aw-1", "Quantum Dynamics", "enterprise-onboarding"},
		{"aw-2", "Acme Corp", "renewal-readiness"},
		{"aw-3", "Globex", "adoption-recovery"},
	} {
		_, err := svc.RegisterAwaiting(ctx, models.AwaitingAccount{ID: in.id, Name: in.name})
		require.NoError(t, err)
		_, err = svc.AssignPlaybook(ctx, in.id, in.playbook)
		require.NoError(t, err)
	}

	renewal, err := svc.ListActive(ctx, "renewal", "")
	require.NoError(t, err)
	require.Len(t, renewal, 1)
	assert.Equal(t, "Acme Corp", renewal[0].Account.Name)

	search, err := svc.ListActive(ctx, "", "ONBOARD")
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "Quantum Dynamics", search[0].Account.Name)

	_, err = svc.ListActive(ctx, "churned", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

	stages, err := svc.Journey(ctx, false)
	require.NoError(t, err)
	require.Len(t, stages, 4)
	assert.Equal(t, "Adoption", stages[1].Label)
	assert.Equal(t, 1, stages[1].Count)

	nonEmpty, err := svc.Journey(ctx, true)
	require.NoError(t, err)
	assert.Len(t, nonEmpty, 3)
}

func assignedWorkflow(t *testing.T, svc *OrchestratorService) (*models.WorkflowInstance, string) {
	t.Helper()
	registerQuantum(t, svc)
	active, err := svc.AssignPlaybook(tenantCtx(), "aw-1", "enterprise-onboarding")
	require.NoError(t, err)
	w, err := svc.GetWorkflow(tenantCtx(), active.ID)
	require.NoError(t, err)
	return w, w.Phases[0].Tasks[0].ID
}

func TestUpdateTaskStatus_PersistsAndEnforcesStateMachine(t *testing.T) {
	svc, _ := newOrchestrator(t)
	ctx := tenantCtx()
	w, taskID := assignedWorkflow(t, svc)

	later := testNow.Add(time.Hour)
	svc.SetClock(func() time.Time { return later })

	updated, err := svc.UpdateTaskStatus(ctx, w.ID, taskID, models.TaskStatusInProgress)
	require.NoError(t, err)
	_, task := updated.FindTask(taskID)
	assert.Equal(t, models.TaskStatusInProgress, task.Status)
	assert.True(t, updated.LastActivity.Equal(later))

	_, err = svc.UpdateTaskStatus(ctx, w.ID, taskID, models.TaskStatusCompleted)
	require.NoError(t, err)

	_, err = svc.UpdateTaskStatus(ctx, w.ID, taskID, models.TaskStatusInProgress)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))

	reopened, err := svc.ReopenTask(ctx, w.ID, taskID)
	require.NoError(t, err)
	_, task = reopened.FindTask(taskID)
	assert.Equal(t, models.TaskStatusPending, task.Status)

	stored, err := svc.GetWorkflow(ctx, w.ID)
	require.NoError(t, err)
	_, task = stored.FindTask(taskID)
	assert.Equal(t, models.TaskStatusPending, task.Status)

	_, err = svc.UpdateTaskStatus(ctx, w.ID, "missing-task", models.TaskStatusCompleted)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = svc.UpdateTaskStatus(ctx, "missing-workflow", taskID, models.TaskStatusCompleted)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestToggleSubTaskAndBoard(t *testing.T) {
	svc, _ := newOrchestrator(t)
	ctx := tenantCtx()
	w, taskID := assignedWorkflow(t, svc)
	_, task := w.FindTask(taskID)
	require.NotEmpty(t, task.SubTasks)
	subID := task.SubTasks[0].ID

	_, err := svc.ToggleSubTask(ctx, w.ID, taskID, subID)
	require.NoError(t, err)

	board, err := svc.Board(ctx, w.ID, []string{taskID})
	require.NoError(t, err)
	require.NotEmpty(t, board.Phases)
	first := board.Phases[0].Tasks[0]
	assert.True(t, first.Expanded)
	assert.Equal(t, 1, first.SubTasksDone)
	assert.Equal(t, len(task.SubTasks), first.SubTasksTotal)
}

func TestPauseResume(t *testing.T) {
	svc, _ := newOrchestrator(t)
	ctx := tenantCtx()
	w, _ := assignedWorkflow(t, svc)

	_, err := svc.Pause(ctx, w.ID)
	require.NoError(t, err)
	list, err := svc.ListActive(ctx, "all", "")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowPaused, list[0].Status)

	_, err = svc.Resume(ctx, w.ID)
	require.NoError(t, err)
	list, err = svc.ListActive(ctx, "all", "")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowRunning, list[0].Status)
}

func TestConcurrentStatusUpdatesAreSerialized(t *testing.T) {
	svc, _ := newOrchestrator(t)
	ctx := tenantCtx()
	w, _ := assignedWorkflow(t, svc)

	var ids []string
	for _, p := range w.Phases {
		for _, task := range p.Tasks {
			ids = append(ids, task.ID)
		}
	}

	done := make(chan error, len(ids))
	for _, id := range ids {
		go func(id string) {
			_, err := svc.UpdateTaskStatus(ctx, w.ID, id, models.TaskStatusCompleted)
			done <- err
		}(id)
	}
	for range ids {
		require.NoError(t, <-done)
	}

	list, err := svc.ListActive(ctx, "all", "")
	require.NoError(t, err)
	assert.Equal(t, 100, list[0].Progress.Percentage)
	assert.Equal(t, models.WorkflowCompleted, list[0].Status)
}
