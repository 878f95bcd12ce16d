package services

import (
	"context"

	"clynto/backend/internal/repository"
)

// ValidationResult is the outcome of an integration key check.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// IntegrationValidator checks a vendor API key entered during onboarding.
type IntegrationValidator interface {
	// Validate returns a result for a reachable vendor. Errors are reserved
	// for failures to reach the check itself.
	Validate(ctx context.Context, integration, apiKey string) (ValidationResult, error)
}

// OrchestratorStore is the persistence used by OrchestratorService.
type OrchestratorStore interface {
	repository.PlaybookStore
	repository.WorkflowStore
}
