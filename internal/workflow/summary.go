package workflow

import "clynto/backend/pkg/models"

// AttentionHealthThreshold is the account health score below which a running
// workflow is flagged for attention.
const AttentionHealthThreshold = 50

// Summarize builds the orchestrator summary of w from its phase tree.
func Summarize(w *models.WorkflowInstance) models.ActiveWorkflow {
	aw := models.ActiveWorkflow{
		ID:       w.ID,
		Account:  w.Account,
		Playbook: models.PlaybookActivity{Name: w.Playbook.Name, LastActivity: w.LastActivity},
		Category: w.Category,
		Progress: Progress(w),
		Status:   Status(w),
	}
	if phase := CurrentPhase(w); phase != nil {
		aw.CurrentPhaseName = phase.Name
		aw.PhaseTimeline = phase.Timeline
	}
	return aw
}

// SummarizeAll summarizes every instance in order.
func SummarizeAll(instances []*models.WorkflowInstance) []models.ActiveWorkflow {
	out := make([]models.ActiveWorkflow, 0, len(instances))
	for _, w := range instances {
		out = append(out, Summarize(w))
	}
	return out
}

// Status derives the summary status of w.
func Status(w *models.WorkflowInstance) models.WorkflowStatus {
	switch {
	case allTerminal(w):
		return models.WorkflowCompleted
	case w.Paused:
		return models.WorkflowPaused
	case w.Account.HealthScore < AttentionHealthThreshold || hasStragglers(w):
		return models.WorkflowAttention
	default:
		return models.WorkflowRunning
	}
}

// allTerminal reports whether every task of the enabled phases is terminal.
// An instance with no task in an enabled phase has nothing to finish and is
// never complete.
func allTerminal(w *models.WorkflowInstance) bool {
	tasks := 0
	for _, phase := range w.Phases {
		if !phase.Enabled {
			continue
		}
		if !phase.Finished() {
			return false
		}
		tasks += len(phase.Tasks)
	}
	return tasks > 0
}

// hasStragglers reports work started in an enabled phase while an earlier
// enabled phase still has open tasks.
func hasStragglers(w *models.WorkflowInstance) bool {
	openSeen := false
	for _, phase := range w.Phases {
		if !phase.Enabled {
			continue
		}
		if openSeen && startedAny(phase) {
			return true
		}
		if !phase.Finished() {
			openSeen = true
		}
	}
	return false
}

func startedAny(p models.Phase) bool {
	for _, t := range p.Tasks {
		if t.Status != models.TaskStatusPending {
			return true
		}
	}
	return false
}
