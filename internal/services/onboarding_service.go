package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/internal/logging"
	"clynto/backend/internal/metrics"
	"clynto/backend/internal/repository"
	"clynto/backend/internal/retry"
	"clynto/backend/pkg/models"
)

// KnownIntegrations are the vendors offered on the integrations step.
var KnownIntegrations = []string{
	"gong", "hubspot", "intercom", "salesforce", "segment", "slack", "stripe", "zendesk",
}

func knownIntegration(name string) bool {
	i := sort.SearchStrings(KnownIntegrations, name)
	return i < len(KnownIntegrations) && KnownIntegrations[i] == name
}

// StepInput carries the answers submitted for one wizard step. Only the
// fields of the submitted step are read.
type StepInput struct {
	Profile      *models.CompanyProfile `json:"profile,omitempty"`
	Integrations []string               `json:"integrations,omitempty"`
	Goals        []string               `json:"goals,omitempty"`
	Confirmed    bool                   `json:"confirmed,omitempty"`
}

// OnboardingService drives tenant-scoped signup wizard sessions.
type OnboardingService struct {
	store     repository.OnboardingStore
	validator IntegrationValidator
	logger    *logging.Logger
	policy    retry.Policy
	now       func() time.Time
	locks     keyedMutex

	// pendingTimeout bounds how long a pending validation holds its
	// selection. Older pending entries may be taken over.
	pendingTimeout time.Duration
}

// DefaultPendingTimeout is how long a validation may stay pending before
// another request can take it over.
const DefaultPendingTimeout = 2 * time.Minute

// NewOnboardingService creates a new OnboardingService.
func NewOnboardingService(store repository.OnboardingStore, validator IntegrationValidator, logger *logging.Logger, policy retry.Policy) *OnboardingService {
	return &OnboardingService{
		store:     store,
		validator: validator,
		logger:    logger,
		policy:    policy,
		now:       func() time.Time { return time.Now().UTC() },

		pendingTimeout: DefaultPendingTimeout,
	}
}

// SetClock replaces the time source.
func (s *OnboardingService) SetClock(now func() time.Time) { s.now = now }

// SetPendingTimeout changes how long a pending validation is honoured.
func (s *OnboardingService) SetPendingTimeout(d time.Duration) {
	if d > 0 {
		s.pendingTimeout = d
	}
}

// stalePending reports whether sel is pending but was left behind by a
// check that never recorded its outcome.
func (s *OnboardingService) stalePending(sel *models.IntegrationSelection) bool {
	if sel.Validation != models.ValidationPending {
		return false
	}
	return sel.PendingSince == nil || s.now().Sub(*sel.PendingSince) >= s.pendingTimeout
}

// Start opens a new wizard session for the caller's tenant.
func (s *OnboardingService) Start(ctx context.Context) (*models.OnboardingSession, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &models.OnboardingSession{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		CurrentStep:    models.StepProfile,
		CompletedSteps: []models.OnboardingStep{},
		Status:         models.OnboardingActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("onboarding started", "tenant_id", tenantID, "session_id", sess.ID)
	return sess, nil
}

// Get returns a session of the caller's tenant.
func (s *OnboardingService) Get(ctx context.Context, id string) (*models.OnboardingSession, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	return retry.Value(ctx, s.policy, "get onboarding session", func(ctx context.Context) (*models.OnboardingSession, error) {
		return s.store.GetOnboardingSession(ctx, tenantID, id)
	})
}

func (s *OnboardingService) save(ctx context.Context, sess *models.OnboardingSession) error {
	return retry.Do(ctx, s.policy, "save onboarding session", func(ctx context.Context) error {
		return s.store.SaveOnboardingSession(ctx, sess)
	})
}

// update loads an active session, applies fn and saves it.
func (s *OnboardingService) update(ctx context.Context, id string, fn func(sess *models.OnboardingSession) error) (*models.OnboardingSession, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(tenantID + "/" + id)
	defer unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.OnboardingActive {
		return nil, apperrors.NewConflictError("onboarding session %s is %s", id, sess.Status)
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.UpdatedAt = s.now()
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SubmitStep validates and stores the answers of one step. Earlier steps may
// be revisited; a step cannot be submitted before every step ahead of it.
func (s *OnboardingService) SubmitStep(ctx context.Context, id string, step models.OnboardingStep, in StepInput) (*models.OnboardingSession, error) {
	idx := models.StepIndex(step)
	if idx < 0 {
		return nil, apperrors.NewValidationError("step", "unknown step "+string(step))
	}
	return s.update(ctx, id, func(sess *models.OnboardingSession) error {
		for _, prev := range models.OnboardingSteps[:idx] {
			if !sess.StepDone(prev) {
				return apperrors.NewValidationError("step", "complete the "+string(prev)+" step first")
			}
		}
		if err := applyStep(sess, step, in); err != nil {
			return err
		}
		if !sess.StepDone(step) {
			sess.CompletedSteps = append(sess.CompletedSteps, step)
		}
		if idx+1 < len(models.OnboardingSteps) {
			sess.CurrentStep = models.OnboardingSteps[idx+1]
		} else {
			sess.CurrentStep = step
		}
		return nil
	})
}

func applyStep(sess *models.OnboardingSession, step models.OnboardingStep, in StepInput) error {
	switch step {
	case models.StepProfile:
		if in.Profile == nil || strings.TrimSpace(in.Profile.CompanyName) == "" {
			return apperrors.NewValidationError("company_name", "enter your company name")
		}
		if strings.TrimSpace(in.Profile.Industry) == "" {
			return apperrors.NewValidationError("industry", "select an industry")
		}
		p := *in.Profile
		p.CompanyName = strings.TrimSpace(p.CompanyName)
		sess.Answers.Profile = &p

	case models.StepIntegrations:
		if len(in.Integrations) == 0 {
			return apperrors.NewValidationError("integrations", "select at least one integration")
		}
		selected := make([]models.IntegrationSelection, 0, len(in.Integrations))
		seen := make(map[string]bool)
		for _, raw := range in.Integrations {
			name := strings.ToLower(strings.TrimSpace(raw))
			if !knownIntegration(name) {
				return apperrors.NewValidationError("integrations", "unknown integration "+raw)
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			if prev := sess.Integration(name); prev != nil {
				selected = append(selected, *prev)
				continue
			}
			selected = append(selected, models.IntegrationSelection{Name: name, Validation: models.ValidationNone})
		}
		sess.Answers.Integrations = selected

	case models.StepGoals:
		goals := make([]string, 0, len(in.Goals))
		for _, g := range in.Goals {
			if g = strings.TrimSpace(g); g != "" {
				goals = append(goals, g)
			}
		}
		if len(goals) == 0 {
			return apperrors.NewValidationError("goals", "select at least one goal")
		}
		sess.Answers.Goals = goals

	case models.StepReview:
		if !in.Confirmed {
			return apperrors.NewValidationError("confirmed", "confirm your answers to continue")
		}
		sess.Answers.Reviewed = true
	}
	return nil
}

// ValidateIntegration checks the API key of a selected integration. The
// selection is marked pending while the check runs and ends validated or
// failed. When the check cannot be reached the previous state is restored
// and the error is returned.
func (s *OnboardingService) ValidateIntegration(ctx context.Context, id, integration, apiKey string) (_ *models.OnboardingSession, err error) {
	ctx, span := startSpan(ctx, "OnboardingService.ValidateIntegration")
	span.SetAttributes(attribute.String("integration", integration))
	defer func() { endSpan(span, err) }()

	integration = strings.ToLower(strings.TrimSpace(integration))
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperrors.NewValidationError("api_key", "enter an API key first")
	}

	var previous models.IntegrationSelection
	if _, err := s.update(ctx, id, func(sess *models.OnboardingSession) error {
		sel := sess.Integration(integration)
		if sel == nil {
			return apperrors.NewValidationError("integration", "select "+integration+" before validating it")
		}
		switch {
		case sel.Validation != models.ValidationPending:
			previous = *sel
		case !s.stalePending(sel):
			return apperrors.NewConflictError("%s is already being validated", integration)
		default:
			s.logger.Warn("taking over stale integration validation", "session_id", id, "integration", integration)
			previous = models.IntegrationSelection{Name: sel.Name, Validation: models.ValidationNone}
		}
		since := s.now()
		sel.Validation = models.ValidationPending
		sel.PendingSince = &since
		sel.Message = ""
		return nil
	}); err != nil {
		return nil, err
	}

	result, checkErr := retry.Value(ctx, s.policy, "validate integration", func(ctx context.Context) (ValidationResult, error) {
		return s.validator.Validate(ctx, integration, apiKey)
	})

	// The outcome is recorded even when the caller has gone away.
	saveCtx := context.WithoutCancel(ctx)
	sess, err := s.update(saveCtx, id, func(sess *models.OnboardingSession) error {
		sel := sess.Integration(integration)
		if sel == nil {
			return nil
		}
		if checkErr != nil {
			*sel = previous
			return nil
		}
		checked := s.now()
		sel.CheckedAt = &checked
		sel.PendingSince = nil
		sel.Message = result.Message
		if result.Valid {
			sel.Validation = models.ValidationSucceeded
		} else {
			sel.Validation = models.ValidationFailed
		}
		return nil
	})
	if checkErr != nil {
		s.logger.Warn("integration validation unavailable", "session_id", id, "integration", integration, "error", checkErr)
		if err != nil {
			s.logger.Error("failed to restore integration state", "session_id", id, "integration", integration, "error", err)
			return nil, apperrors.Join(checkErr, err)
		}
		return nil, checkErr
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("integration validated", "session_id", id, "integration", integration, "valid", result.Valid)
	return sess, nil
}

// Complete finishes the wizard. Every step must have been submitted.
func (s *OnboardingService) Complete(ctx context.Context, id string) (*models.OnboardingSession, error) {
	sess, err := s.update(ctx, id, func(sess *models.OnboardingSession) error {
		for _, step := range models.OnboardingSteps {
			if !sess.StepDone(step) {
				return apperrors.NewValidationError("step", "complete the "+string(step)+" step first")
			}
		}
		if len(sess.Answers.Integrations) == 0 {
			return apperrors.NewValidationError("integrations", "select at least one integration")
		}
		for _, sel := range sess.Answers.Integrations {
			if s.stalePending(&sel) {
				return apperrors.NewConflictError("%s validation did not finish, validate it again", sel.Name)
			}
			if sel.Validation == models.ValidationPending {
				return apperrors.NewConflictError("%s is still being validated", sel.Name)
			}
		}
		sess.Status = models.OnboardingCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordOnboardingCompleted()
	s.logger.Info("onboarding completed", "tenant_id", sess.TenantID, "session_id", id)
	return sess, nil
}

// Abandon discards an active session.
func (s *OnboardingService) Abandon(ctx context.Context, id string) error {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return err
	}
	if _, err := s.update(ctx, id, func(sess *models.OnboardingSession) error {
		sess.Status = models.OnboardingAbandoned
		return nil
	}); err != nil {
		return err
	}
	if err := retry.Do(ctx, s.policy, "delete onboarding session", func(ctx context.Context) error {
		return s.store.DeleteOnboardingSession(ctx, tenantID, id)
	}); err != nil {
		return err
	}
	s.logger.Info("onboarding abandoned", "tenant_id", tenantID, "session_id", id)
	return nil
}
