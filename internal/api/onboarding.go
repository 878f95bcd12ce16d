package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"clynto/backend/internal/services"
	"clynto/backend/pkg/models"
)

// ValidateIntegrationRequest carries the API key to check.
type ValidateIntegrationRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) StartOnboarding(c echo.Context) error {
	sess, err := s.Onboarding.Start(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sess)
}

func (s *Server) GetOnboarding(c echo.Context) error {
	sess, err := s.Onboarding.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

// SubmitOnboardingStep stores the answers of one wizard step.
func (s *Server) SubmitOnboardingStep(c echo.Context) error {
	var in services.StepInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	sess, err := s.Onboarding.SubmitStep(c.Request().Context(), c.Param("id"), models.OnboardingStep(c.Param("step")), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

// ValidateIntegration checks an API key with the integration provider. A
// rejected key is not an error; the outcome is recorded on the session.
func (s *Server) ValidateIntegration(c echo.Context) error {
	var req ValidateIntegrationRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	sess, err := s.Onboarding.ValidateIntegration(c.Request().Context(), c.Param("id"), c.Param("name"), req.APIKey)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) CompleteOnboarding(c echo.Context) error {
	sess, err := s.Onboarding.Complete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) AbandonOnboarding(c echo.Context) error {
	if err := s.Onboarding.Abandon(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
