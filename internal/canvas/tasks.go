package canvas

import (
	"strings"

	"clynto/backend/pkg/models"
)

// TaskItem is a playbook task listed on the tasks page with its workflow
// context.
type TaskItem struct {
	WorkflowID   string             `json:"workflow_id"`
	AccountName  string             `json:"account_name"`
	PlaybookName string             `json:"playbook_name"`
	PhaseID      string             `json:"phase_id"`
	PhaseName    string             `json:"phase_name"`
	TaskID       string             `json:"task_id"`
	TaskName     string             `json:"task_name"`
	Status       models.TaskStatus  `json:"status"`
	Owner        string             `json:"owner,omitempty"`
	DueDate      string             `json:"due_date,omitempty"`
	TriggerType  models.TriggerType `json:"trigger_type,omitempty"`
}

// TaskFilter selects tasks on the tasks page.
type TaskFilter struct {
	Status  models.TaskStatus
	Owner   string
	Account string
	Search  string
}

// ListTasks flattens the task trees of instances in phase order, skipping
// disabled phases, and applies f.
func ListTasks(instances []*models.WorkflowInstance, f TaskFilter) []TaskItem {
	out := make([]TaskItem, 0)
	for _, w := range instances {
		if !matchAccount(w.Account.ID, w.Account.Name, f.Account) {
			continue
		}
		for _, phase := range w.Phases {
			if !phase.Enabled {
				continue
			}
			for _, t := range phase.Tasks {
				if f.Status != "" && t.Status != f.Status {
					continue
				}
				if f.Owner != "" && !strings.EqualFold(t.Owner, f.Owner) {
					continue
				}
				if !containsFold(t.Name, f.Search) {
					continue
				}
				out = append(out, TaskItem{
					WorkflowID:   w.ID,
					AccountName:  w.Account.Name,
					PlaybookName: w.Playbook.Name,
					PhaseID:      phase.ID,
					PhaseName:    phase.Name,
					TaskID:       t.ID,
					TaskName:     t.Name,
					Status:       t.Status,
					Owner:        t.Owner,
					DueDate:      t.DueDate,
					TriggerType:  t.TriggerType,
				})
			}
		}
	}
	return out
}
