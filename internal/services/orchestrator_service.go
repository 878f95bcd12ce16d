package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/internal/journey"
	"clynto/backend/internal/logging"
	"clynto/backend/internal/metrics"
	"clynto/backend/internal/playbook"
	"clynto/backend/internal/retry"
	"clynto/backend/internal/workflow"
	"clynto/backend/pkg/models"
)

// OrchestratorService manages awaiting accounts and the workflows created
// from them.
type OrchestratorService struct {
	store  OrchestratorStore
	logger *logging.Logger
	policy retry.Policy
	now    func() time.Time
	locks  keyedMutex
}

// NewOrchestratorService creates a new OrchestratorService.
func NewOrchestratorService(store OrchestratorStore, logger *logging.Logger, policy retry.Policy) *OrchestratorService {
	return &OrchestratorService{
		store:  store,
		logger: logger,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *OrchestratorService) SetClock(now func() time.Time) { s.now = now }

// ListAwaiting returns the tenant's accounts that have no playbook yet.
func (s *OrchestratorService) ListAwaiting(ctx context.Context) ([]models.AwaitingAccount, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	accounts, err := retry.Value(ctx, s.policy, "list awaiting", func(ctx context.Context) ([]models.AwaitingAccount, error) {
		return s.store.ListAwaiting(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range accounts {
		accounts[i].DaysSinceCreation = accounts[i].DaysSince(now)
	}
	return accounts, nil
}

// RegisterAwaiting adds an account to the awaiting list.
func (s *OrchestratorService) RegisterAwaiting(ctx context.Context, in models.AwaitingAccount) (*models.AwaitingAccount, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperrors.NewValidationError("name", "account name is required")
	}
	if in.Source == "" {
		in.Source = models.SourceManual
	}
	if !in.Source.Valid() {
		return nil, apperrors.NewValidationError("source", "source must be one of CRM, Bulk Upload or Manual")
	}
	if in.SuggestedStage != "" && !in.SuggestedStage.Valid() {
		return nil, apperrors.NewValidationError("suggested_stage", "unknown lifecycle category "+string(in.SuggestedStage))
	}
	if in.ARR < 0 {
		return nil, apperrors.NewValidationError("arr", "must not be negative")
	}
	if in.HealthScore < 0 || in.HealthScore > 100 {
		return nil, apperrors.NewValidationError("health_score", "must be between 0 and 100")
	}
	if in.ID == "" {
		in.ID = "aw-" + uuid.New().String()
	}
	in.TenantID = tenantID
	in.CreatedAt = s.now()
	in.DaysSinceCreation = 0

	err = retry.Do(ctx, s.policy, "create awaiting", func(ctx context.Context) error {
		return s.store.CreateAwaiting(ctx, &in)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("registered awaiting account", "tenant_id", tenantID, "account_id", in.ID, "source", in.Source)
	return &in, nil
}

// AssignPlaybook instantiates playbookID for the awaiting account and moves
// the account from the awaiting list to the active workflows.
func (s *OrchestratorService) AssignPlaybook(ctx context.Context, accountID, playbookID string) (_ models.ActiveWorkflow, err error) {
	ctx, span := startSpan(ctx, "OrchestratorService.AssignPlaybook")
	span.SetAttributes(attribute.String("account.id", accountID), attribute.String("playbook.id", playbookID))
	defer func() { endSpan(span, err) }()

	tenantID, err := tenantOf(ctx)
	if err != nil {
		return models.ActiveWorkflow{}, err
	}
	account, err := retry.Value(ctx, s.policy, "get awaiting", func(ctx context.Context) (*models.AwaitingAccount, error) {
		return s.store.GetAwaiting(ctx, tenantID, accountID)
	})
	if err != nil {
		return models.ActiveWorkflow{}, err
	}
	pb, err := retry.Value(ctx, s.policy, "get playbook", func(ctx context.Context) (*models.Playbook, error) {
		return s.store.GetPlaybook(ctx, playbookID)
	})
	if err != nil {
		return models.ActiveWorkflow{}, err
	}

	instance := playbook.Instantiate(pb, tenantID, models.AccountRef{
		ID:          account.ID,
		Name:        account.Name,
		Segment:     account.Segment,
		ARR:         account.ARR,
		HealthScore: account.HealthScore,
	}, s.now())

	attempts := 0
	err = retry.Do(ctx, s.policy, "assign playbook", func(ctx context.Context) error {
		attempts++
		return s.store.AssignPlaybook(ctx, tenantID, accountID, instance)
	})
	if err != nil && attempts > 1 && s.assignmentCommitted(ctx, tenantID, instance.ID) {
		// An earlier attempt committed before its error reached us.
		s.logger.Warn("assignment committed despite error", "tenant_id", tenantID, "account_id", accountID, "workflow_id", instance.ID, "error", err)
		err = nil
	}
	if err != nil {
		return models.ActiveWorkflow{}, err
	}

	metrics.RecordAssignment(pb.ID)
	s.logger.Info("assigned playbook",
		"tenant_id", tenantID, "account_id", accountID, "playbook_id", pb.ID, "workflow_id", instance.ID)
	return workflow.Summarize(instance), nil
}

// assignmentCommitted reports whether the workflow created by an assignment
// is already stored.
func (s *OrchestratorService) assignmentCommitted(ctx context.Context, tenantID, workflowID string) bool {
	w, err := retry.Value(ctx, s.policy, "get workflow", func(ctx context.Context) (*models.WorkflowInstance, error) {
		return s.store.GetWorkflow(ctx, tenantID, workflowID)
	})
	return err == nil && w != nil
}

func (s *OrchestratorService) listInstances(ctx context.Context) ([]*models.WorkflowInstance, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	return retry.Value(ctx, s.policy, "list workflows", func(ctx context.Context) ([]*models.WorkflowInstance, error) {
		return s.store.ListWorkflows(ctx, tenantID)
	})
}

// ListActive returns workflow summaries filtered by category and a search
// over account and playbook names. Category "all" or "" matches every
// category.
func (s *OrchestratorService) ListActive(ctx context.Context, category, search string) ([]models.ActiveWorkflow, error) {
	if category != "" && category != workflow.CategoryAll && !models.Category(category).Valid() {
		return nil, apperrors.NewValidationError("category", "unknown category "+category)
	}
	instances, err := s.listInstances(ctx)
	if err != nil {
		return nil, err
	}
	return workflow.Filter(workflow.SummarizeAll(instances), category, search), nil
}

// Instances returns the tenant's full workflow trees.
func (s *OrchestratorService) Instances(ctx context.Context) ([]*models.WorkflowInstance, error) {
	return s.listInstances(ctx)
}

// GetWorkflow returns one workflow instance.
func (s *OrchestratorService) GetWorkflow(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	return retry.Value(ctx, s.policy, "get workflow", func(ctx context.Context) (*models.WorkflowInstance, error) {
		return s.store.GetWorkflow(ctx, tenantID, id)
	})
}

// Board returns the phase board of a workflow with the given tasks expanded.
func (s *OrchestratorService) Board(ctx context.Context, id string, expanded []string) (workflow.Board, error) {
	w, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return workflow.Board{}, err
	}
	return workflow.BuildBoard(w, workflow.NewExpansionSet(expanded...)), nil
}

// mutate loads a workflow, applies fn and saves the result when fn reports a
// change. Calls for the same workflow are serialized.
func (s *OrchestratorService) mutate(ctx context.Context, id, op string, fn func(w *models.WorkflowInstance) (bool, error)) (_ *models.WorkflowInstance, err error) {
	ctx, span := startSpan(ctx, "OrchestratorService."+op)
	span.SetAttributes(attribute.String("workflow.id", id))
	defer func() { endSpan(span, err) }()

	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(tenantID + "/" + id)
	defer unlock()

	w, err := retry.Value(ctx, s.policy, "get workflow", func(ctx context.Context) (*models.WorkflowInstance, error) {
		return s.store.GetWorkflow(ctx, tenantID, id)
	})
	if err != nil {
		return nil, err
	}
	changed, err := fn(w)
	if err != nil {
		return nil, err
	}
	if !changed {
		return w, nil
	}
	err = retry.Do(ctx, s.policy, "save workflow", func(ctx context.Context) error {
		return s.store.SaveWorkflow(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateTaskStatus moves a task through the status state machine.
func (s *OrchestratorService) UpdateTaskStatus(ctx context.Context, id, taskID string, status models.TaskStatus) (*models.WorkflowInstance, error) {
	return s.mutate(ctx, id, "UpdateTaskStatus", func(w *models.WorkflowInstance) (bool, error) {
		from, err := workflow.UpdateTaskStatus(w, taskID, status, s.now())
		if err != nil || from == status {
			return false, err
		}
		metrics.RecordTransition(string(from), string(status))
		s.logger.Info("task status changed", "workflow_id", id, "task_id", taskID, "from", from, "to", status)
		return true, nil
	})
}

// ReopenTask moves a completed or skipped task back to pending.
func (s *OrchestratorService) ReopenTask(ctx context.Context, id, taskID string) (*models.WorkflowInstance, error) {
	return s.mutate(ctx, id, "ReopenTask", func(w *models.WorkflowInstance) (bool, error) {
		from, err := workflow.ReopenTask(w, taskID, s.now())
		if err != nil {
			return false, err
		}
		metrics.RecordTransition(string(from), string(models.TaskStatusPending))
		s.logger.Info("task reopened", "workflow_id", id, "task_id", taskID, "from", from)
		return true, nil
	})
}

// ToggleSubTask flips the completion of a subtask.
func (s *OrchestratorService) ToggleSubTask(ctx context.Context, id, taskID, subTaskID string) (*models.WorkflowInstance, error) {
	return s.mutate(ctx, id, "ToggleSubTask", func(w *models.WorkflowInstance) (bool, error) {
		if _, err := workflow.ToggleSubTask(w, taskID, subTaskID, s.now()); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Pause stops a workflow from being reported as running.
func (s *OrchestratorService) Pause(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	return s.setPaused(ctx, id, true)
}

// Resume undoes Pause.
func (s *OrchestratorService) Resume(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	return s.setPaused(ctx, id, false)
}

func (s *OrchestratorService) setPaused(ctx context.Context, id string, paused bool) (*models.WorkflowInstance, error) {
	op := "Resume"
	if paused {
		op = "Pause"
	}
	return s.mutate(ctx, id, op, func(w *models.WorkflowInstance) (bool, error) {
		if w.Paused == paused {
			return false, nil
		}
		if err := workflow.SetPaused(w, paused, s.now()); err != nil {
			return false, err
		}
		s.logger.Info("workflow paused state changed", "workflow_id", id, "paused", paused)
		return true, nil
	})
}

// Journey groups the tenant's workflows into the lifecycle stages. With
// nonEmpty set, stages without workflows are left out.
func (s *OrchestratorService) Journey(ctx context.Context, nonEmpty bool) ([]journey.StageSummary, error) {
	instances, err := s.listInstances(ctx)
	if err != nil {
		return nil, err
	}
	stages := journey.Group(workflow.SummarizeAll(instances))
	if nonEmpty {
		stages = journey.NonEmpty(stages)
	}
	return stages, nil
}
