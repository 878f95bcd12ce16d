package workflow

import (
	"fmt"
	"time"

	"clynto/backend/pkg/models"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func phaseWith(id string, statuses ...models.TaskStatus) models.Phase {
	p := models.Phase{ID: id, Name: "Phase " + id, Timeline: "Days 1-3", Enabled: true}
	for i, s := range statuses {
		p.Tasks = append(p.Tasks, models.Task{
			ID:     fmt.Sprintf("%s-t%d", id, i+1),
			Name:   fmt.Sprintf("Task %d", i+1),
			Status: s,
		})
	}
	return p
}

func instanceWith(phases ...models.Phase) *models.WorkflowInstance {
	return &models.WorkflowInstance{
		ID:       "wf-1",
		TenantID: "tenant-1",
		Account:  models.AccountRef{Name: "Acme Corp", Segment: "Enterprise", ARR: 120000, HealthScore: 82},
		Playbook: models.PlaybookRef{ID: "enterprise-onboarding", Name: "Enterprise Onboarding"},
		Category: models.CategoryOnboarding,
		Phases:   phases,
	}
}
