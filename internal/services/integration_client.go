package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "clynto/backend/internal/errors"
)

// HTTPIntegrationValidator asks a validation service whether a vendor key
// is accepted.
type HTTPIntegrationValidator struct {
	url    string
	client *http.Client
}

// NewHTTPIntegrationValidator creates a validator posting to url + "/validate".
func NewHTTPIntegrationValidator(url string, timeout time.Duration) *HTTPIntegrationValidator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPIntegrationValidator{
		url:    strings.TrimSuffix(url, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Validate checks apiKey for integration. Network failures and 5xx or 429
// responses are transient.
func (c *HTTPIntegrationValidator) Validate(ctx context.Context, integration, apiKey string) (ValidationResult, error) {
	requestBody, err := json.Marshal(map[string]string{"integration": integration, "api_key": apiKey})
	if err != nil {
		return ValidationResult{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/validate", bytes.NewReader(requestBody))
	if err != nil {
		return ValidationResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ValidationResult{}, ctx.Err()
		}
		return ValidationResult{}, apperrors.NewTransientError("validate integration", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return ValidationResult{}, apperrors.NewTransientError("validate integration",
			fmt.Errorf("status code %d", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ValidationResult{Valid: false, Message: "the API key was rejected"}, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ValidationResult{}, fmt.Errorf("validate integration: status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result ValidationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ValidationResult{}, fmt.Errorf("failed to decode response body: %w", err)
	}
	return result, nil
}

// LocalValidator checks only the shape of a key. It is used when no
// validation service is configured.
type LocalValidator struct{}

// Validate accepts keys of at least 16 characters without whitespace.
func (LocalValidator) Validate(ctx context.Context, integration, apiKey string) (ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return ValidationResult{}, err
	}
	if len(apiKey) < 16 || strings.ContainsAny(apiKey, " \t\n") {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("%s keys are at least 16 characters with no spaces", integration)}, nil
	}
	return ValidationResult{Valid: true}, nil
}
