package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"clynto/backend/internal/retry"
	"clynto/backend/internal/tenant"
)

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

var testPolicy = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

func tenantCtx() context.Context {
	return tenant.WithID(context.Background(), "t1")
}

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) Validate(ctx context.Context, integration, apiKey string) (ValidationResult, error) {
	args := m.Called(ctx, integration, apiKey)
	return args.Get(0).(ValidationResult), args.Error(1)
}
