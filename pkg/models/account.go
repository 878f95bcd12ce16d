package models

import "time"

// AccountSource records how an awaiting account entered the system.
type AccountSource string

const (
	SourceCRM        AccountSource = "CRM"
	SourceBulkUpload AccountSource = "Bulk Upload"
	SourceManual     AccountSource = "Manual"
)

// Valid reports whether s is a known account source.
func (s AccountSource) Valid() bool {
	switch s {
	case SourceCRM, SourceBulkUpload, SourceManual:
		return true
	}
	return false
}

// AwaitingAccount is an account registered without an assigned playbook.
// It is removed in the same step that creates its WorkflowInstance.
type AwaitingAccount struct {
	ID                string        `json:"id"`
	TenantID          string        `json:"tenant_id"`
	Name              string        `json:"name"`
	Segment           string        `json:"segment"`
	ARR               float64       `json:"arr"`
	HealthScore       int           `json:"health_score"`
	Source            AccountSource `json:"source"`
	SuggestedStage    Category      `json:"suggested_stage"`
	DaysSinceCreation int           `json:"days_since_creation"`
	CreatedAt         time.Time     `json:"created_at"`
}

// DaysSince returns whole days elapsed between CreatedAt and now.
func (a AwaitingAccount) DaysSince(now time.Time) int {
	if a.CreatedAt.IsZero() || now.Before(a.CreatedAt) {
		return 0
	}
	return int(now.Sub(a.CreatedAt).Hours() / 24)
}
