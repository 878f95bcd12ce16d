package models

import "time"

// OnboardingStep names a step of the signup wizard.
type OnboardingStep string

const (
	StepProfile      OnboardingStep = "profile"
	StepIntegrations OnboardingStep = "integrations"
	StepGoals        OnboardingStep = "goals"
	StepReview       OnboardingStep = "review"
)

// OnboardingSteps is the wizard order.
var OnboardingSteps = []OnboardingStep{StepProfile, StepIntegrations, StepGoals, StepReview}

// StepIndex returns the position of step in the wizard, or -1.
func StepIndex(step OnboardingStep) int {
	for i, s := range OnboardingSteps {
		if s == step {
			return i
		}
	}
	return -1
}

// OnboardingStatus is the lifecycle of a wizard session.
type OnboardingStatus string

const (
	OnboardingActive    OnboardingStatus = "active"
	OnboardingCompleted OnboardingStatus = "completed"
	OnboardingAbandoned OnboardingStatus = "abandoned"
)

// ValidationState tracks an asynchronous integration key check.
type ValidationState string

const (
	ValidationNone      ValidationState = "none"
	ValidationPending   ValidationState = "pending"
	ValidationSucceeded ValidationState = "validated"
	ValidationFailed    ValidationState = "failed"
)

// CompanyProfile holds the answers of the profile step.
type CompanyProfile struct {
	CompanyName string `json:"company_name"`
	Industry    string `json:"industry"`
	TeamSize    string `json:"team_size"`
	Role        string `json:"role"`
}

// IntegrationSelection is one selected vendor integration.
type IntegrationSelection struct {
	Name         string          `json:"name"`
	Validation   ValidationState `json:"validation"`
	Message      string          `json:"message,omitempty"`
	CheckedAt    *time.Time      `json:"checked_at,omitempty"`
	PendingSince *time.Time      `json:"pending_since,omitempty"`
}

// OnboardingAnswers carries wizard answers across steps.
type OnboardingAnswers struct {
	Profile      *CompanyProfile        `json:"profile,omitempty"`
	Integrations []IntegrationSelection `json:"integrations,omitempty"`
	Goals        []string               `json:"goals,omitempty"`
	Reviewed     bool                   `json:"reviewed"`
}

// OnboardingSession is the state of one run through the signup wizard.
type OnboardingSession struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenant_id"`
	CurrentStep    OnboardingStep    `json:"current_step"`
	CompletedSteps []OnboardingStep  `json:"completed_steps"`
	Answers        OnboardingAnswers `json:"answers"`
	Status         OnboardingStatus  `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// StepDone reports whether step has been submitted.
func (s *OnboardingSession) StepDone(step OnboardingStep) bool {
	for _, done := range s.CompletedSteps {
		if done == step {
			return true
		}
	}
	return false
}

// Integration returns the selection with the given name.
func (s *OnboardingSession) Integration(name string) *IntegrationSelection {
	for i := range s.Answers.Integrations {
		if s.Answers.Integrations[i].Name == name {
			return &s.Answers.Integrations[i]
		}
	}
	return nil
}

// Clone returns a deep copy of s.
func (s *OnboardingSession) Clone() *OnboardingSession {
	c := *s
	c.CompletedSteps = append([]OnboardingStep(nil), s.CompletedSteps...)
	if s.Answers.Profile != nil {
		p := *s.Answers.Profile
		c.Answers.Profile = &p
	}
	c.Answers.Integrations = append([]IntegrationSelection(nil), s.Answers.Integrations...)
	c.Answers.Goals = append([]string(nil), s.Answers.Goals...)
	return &c
}
