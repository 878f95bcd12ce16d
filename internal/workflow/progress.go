package workflow

import "clynto/backend/pkg/models"

// PhaseProgress returns completed tasks / total tasks * 100, or 0 for a phase
// without tasks. Skipped tasks count toward the total but not as completed.
func PhaseProgress(phase models.Phase) float64 {
	total := len(phase.Tasks)
	if total == 0 {
		return 0
	}
	return float64(completedCount(phase.Tasks)) * 100 / float64(total)
}

// Progress derives the phase position and overall completion of w. Only
// enabled phases count.
func Progress(w *models.WorkflowInstance) models.Progress {
	var (
		p         models.Progress
		tasks     int
		completed int
	)
	for _, phase := range w.Phases {
		if !phase.Enabled {
			continue
		}
		p.TotalPhases++
		tasks += len(phase.Tasks)
		completed += completedCount(phase.Tasks)
		if p.CurrentPhase == 0 && !phase.Finished() {
			p.CurrentPhase = p.TotalPhases
		}
	}
	if p.CurrentPhase == 0 {
		p.CurrentPhase = p.TotalPhases
	}
	if tasks > 0 {
		p.Percentage = completed * 100 / tasks
	}
	return p
}

// CurrentPhase returns the first enabled phase that still has open tasks, the
// last enabled phase when all are finished, or nil when none is enabled.
func CurrentPhase(w *models.WorkflowInstance) *models.Phase {
	var last *models.Phase
	for i := range w.Phases {
		if !w.Phases[i].Enabled {
			continue
		}
		if !w.Phases[i].Finished() {
			return &w.Phases[i]
		}
		last = &w.Phases[i]
	}
	return last
}

// SubTaskProgress returns the number of completed subtasks and the total.
func SubTaskProgress(t models.Task) (done, total int) {
	for _, st := range t.SubTasks {
		if st.Completed {
			done++
		}
	}
	return done, len(t.SubTasks)
}

func completedCount(tasks []models.Task) int {
	n := 0
	for _, t := range tasks {
		if t.IsDone() {
			n++
		}
	}
	return n
}
