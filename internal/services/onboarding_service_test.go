package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/internal/logging"
	"clynto/backend/internal/repository"
	"clynto/backend/internal/tenant"
	"clynto/backend/pkg/models"
)

func newOnboarding(t *testing.T) (*OnboardingService, *mockValidator) {
	t.Helper()
	v := &mockValidator{}
	svc := NewOnboardingService(repository.NewMemoryStore(), v, logging.Nop(), testPolicy)
	svc.SetClock(func() time.Time { return testNow })
	return svc, v
}

func walkToReview(t *testing.T, svc *OnboardingService, id string) {
	t.Helper()
	ctx := tenantCtx()
	_, err := svc.SubmitStep(ctx, id, models.StepProfile, StepInput{
		Profile: &models.CompanyProfile{CompanyName: "Clynto", Industry: "SaaS", TeamSize: "11-50"},
	})
	require.NoError(t, err)
	_, err = svc.SubmitStep(ctx, id, models.StepIntegrations, StepInput{Integrations: []string{"Salesforce", "zendesk"}})
	require.NoError(t, err)
	_, err = svc.SubmitStep(ctx, id, models.StepGoals, StepInput{Goals: []string{"reduce churn"}})
	require.NoError(t, err)
}

func TestOnboarding_HappyPath(t *testing.T) {
	svc, _ := newOnboarding(t)
	ctx := tenantCtx()

	sess, err := svc.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StepProfile, sess.CurrentStep)
	assert.Equal(t, models.OnboardingActive, sess.Status)

	walkToReview(t, svc, sess.ID)

	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepReview, got.CurrentStep)
	require.Len(t, got.Answers.Integrations, 2)
	assert.Equal(t, "salesforce", got.Answers.Integrations[0].Name)

	_, err = svc.SubmitStep(ctx, sess.ID, models.StepReview, StepInput{Confirmed: true})
	require.NoError(t, err)

	done, err := svc.Complete(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingCompleted, done.Status)

	_, err = svc.SubmitStep(ctx, sess.ID, models.StepGoals, StepInput{Goals: []string{"more"}})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestOnboarding_StepValidation(t *testing.T) {
	svc, _ := newOnboarding(t)
	ctx := tenantCtx()
	sess, err := svc.Start(ctx)
	require.NoError(t, err)

	_, err = svc.SubmitStep(ctx, sess.ID, models.StepGoals, StepInput{Goals: []string{"x"}})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput), "cannot skip ahead")

	_, err = svc.SubmitStep(ctx, sess.ID, "billing", StepInput{})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.SubmitStep(ctx, sess.ID, models.StepProfile, StepInput{Profile: &models.CompanyProfile{Industry: "SaaS"}})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.SubmitStep(ctx, sess.ID, models.StepProfile, StepInput{Profile: &models.CompanyProfile{CompanyName: "Clynto", Industry: "SaaS"}})
	require.NoError(t, err)

	_, err = svc.SubmitStep(ctx, sess.ID, models.StepIntegrations, StepInput{})
	require.Error(t, err)
	assert.Equal(t, "integrations: select at least one integration", err.Error())

	_, err = svc.SubmitStep(ctx, sess.ID, models.StepIntegrations, StepInput{Integrations: []string{"myspace"}})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.Complete(ctx, sess.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestOnboarding_ValidateIntegration(t *testing.T) {
	svc, v := newOnboarding(t)
	ctx := tenantCtx()
	sess, err := svc.Start(ctx)
	require.NoError(t, err)
	walkToReview(t, svc, sess.ID)

	_, err = svc.ValidateIntegration(ctx, sess.ID, "salesforce", "")
	require.Error(t, err)
	assert.Equal(t, "api_key: enter an API key first", err.Error())

	v.On("Validate", mock.Anything, "salesforce", "sk-good-key-123456").
		Return(ValidationResult{Valid: true}, nil).Once()
	v.On("Validate", mock.Anything, "zendesk", "bad").
		Return(ValidationResult{Valid: false, Message: "the API key was rejected"}, nil).Once()

	updated, err := svc.ValidateIntegration(ctx, sess.ID, "salesforce", "sk-good-key-123456")
	require.NoError(t, err)
	assert.Equal(t, models.ValidationSucceeded, updated.Integration("salesforce").Validation)
	require.NotNil(t, updated.Integration("salesforce").CheckedAt)

	updated, err = svc.ValidateIntegration(ctx, sess.ID, "zendesk", "bad")
	require.NoError(t, err)
	assert.Equal(t, models.ValidationFailed, updated.Integration("zendesk").Validation)
	assert.Equal(t, "the API key was rejected", updated.Integration("zendesk").Message)

	_, err = svc.ValidateIntegration(ctx, sess.ID, "stripe", "sk-anything-123456")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput), "stripe was not selected")

	v.AssertExpectations(t)
}

func TestOnboarding_ValidateIntegrationRetriesTransientFailures(t *testing.T) {
	svc, v := newOnboarding(t)
	ctx := tenantCtx()
	sess, err := svc.Start(ctx)
	require.NoError(t, err)
	walkToReview(t, svc, sess.ID)

	v.On("Validate", mock.Anything, "salesforce", "sk-good-key-123456").
		Return(ValidationResult{}, apperrors.NewTransientError("validate integration", fmt.Errorf("status code 503"))).Twice()
	v.On("Validate", mock.Anything, "salesforce", "sk-good-key-123456").
		Return(ValidationResult{Valid: true}, nil).Once()

	updated, err := svc.ValidateIntegration(ctx, sess.ID, "salesforce", "sk-good-key-123456")
	require.NoError(t, err)
	assert.Equal(t, models.ValidationSucceeded, updated.Integration("salesforce").Validation)
	v.AssertNumberOfCalls(t, "Validate", 3)
}

func TestOnboarding_ValidateIntegrationUnavailableRestoresState(t *testing.T) {
	svc, v := newOnboarding(t)
	ctx := tenantCtx()
	sess, err := svc.Start(ctx)
	require.NoError(t, err)
	walkToReview(t, svc, sess.ID)

	v.On("Validate", mock.Anything, "zendesk", "zd-key-1234567890").
		Return(ValidationResult{}, apperrors.NewTransientError("validate integration", nil))

	_, err = svc.ValidateIntegration(ctx, sess.ID, "zendesk", "zd-key-1234567890")
	assert.True(t, apperrors.IsRetryable(err))

	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationNone, got.Integration("zendesk").Validation)
}

// flakyOnboardingStore fails every session save while failing is set.
type flakyOnboardingStore struct {
	*repository.MemoryStore
	failing atomic.Bool
}

var errStoreDown = fmt.Errorf("connection reset by peer")

func (s *flakyOnboardingStore) SaveOnboardingSession(ctx context.Context, sess *models.OnboardingSession) error {
	if s.failing.Load() {
		return errStoreDown
	}
	return s.MemoryStore.SaveOnboardingSession(ctx, sess)
}

func TestOnboarding_ValidateIntegrationRestoreFailureIsReportedAndRecoverable(t *testing.T) {
	store := &flakyOnboardingStore{MemoryStore: repository.NewMemoryStore()}
	v := &mockValidator{}
	now := testNow
	svc := NewOnboardingService(store, v, logging.Nop(), testPolicy)
	svc.SetClock(func() time.Time { return now })
	svc.SetPendingTimeout(time.Minute)
	ctx := tenantCtx()

	sess, err := svc.Start(ctx)
	require.NoError(t, err)
	walkToReview(t, svc, sess.ID)
	_, err = svc.SubmitStep(ctx, sess.ID, models.StepReview, StepInput{Confirmed: true})
	require.NoError(t, err)

	v.On("Validate", mock.Anything, "zendesk", "zd-key-1234567890").
		Run(func(mock.Arguments) { store.failing.Store(true) }).
		Return(ValidationResult{}, apperrors.NewTransientError("validate integration", nil))

	_, err = svc.ValidateIntegration(ctx, sess.ID, "zendesk", "zd-key-1234567890")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransient))
	assert.ErrorIs(t, err, errStoreDown, "the failed restore must be reported")

	store.failing.Store(false)
	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	zendesk := got.Integration("zendesk")
	assert.Equal(t, models.ValidationPending, zendesk.Validation)
	require.NotNil(t, zendesk.PendingSince)
	assert.Equal(t, testNow, *zendesk.PendingSince)

	// A recent pending check still holds the selection.
	_, err = svc.ValidateIntegration(ctx, sess.ID, "zendesk", "zd-key-1234567890")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	_, err = svc.Complete(ctx, sess.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still being validated")

	now = testNow.Add(2 * time.Minute)
	_, err = svc.Complete(ctx, sess.ID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Contains(t, err.Error(), "validate it again")

	v.ExpectedCalls = nil
	v.On("Validate", mock.Anything, "zendesk", "zd-key-1234567890").
		Return(ValidationResult{Valid: true}, nil).Once()

	updated, err := svc.ValidateIntegration(ctx, sess.ID, "zendesk", "zd-key-1234567890")
	require.NoError(t, err)
	assert.Equal(t, models.ValidationSucceeded, updated.Integration("zendesk").Validation)
	assert.Nil(t, updated.Integration("zendesk").PendingSince)

	done, err := svc.Complete(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingCompleted, done.Status)
}

func TestOnboarding_AbandonAndTenantScope(t *testing.T) {
	svc, _ := newOnboarding(t)
	ctx := tenantCtx()
	sess, err := svc.Start(ctx)
	require.NoError(t, err)

	other := tenant.WithID(context.Background(), "t2")
	_, err = svc.Get(other, sess.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.True(t, apperrors.Is(svc.Abandon(other, sess.ID), apperrors.ErrNotFound))

	require.NoError(t, svc.Abandon(ctx, sess.ID))
	_, err = svc.Get(ctx, sess.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
