package workflow

import "clynto/backend/pkg/models"

// BoardTask is a task card on the visualization board.
type BoardTask struct {
	Task          models.Task `json:"task"`
	Expanded      bool        `json:"expanded"`
	SubTasksDone  int         `json:"sub_tasks_done"`
	SubTasksTotal int         `json:"sub_tasks_total"`
}

// BoardPhase is a column of the board.
type BoardPhase struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Timeline string      `json:"timeline"`
	Enabled  bool        `json:"enabled"`
	Progress float64     `json:"progress"`
	Current  bool        `json:"current"`
	Tasks    []BoardTask `json:"tasks"`
}

// Board is the phase board projection of one workflow instance.
type Board struct {
	Workflow models.ActiveWorkflow `json:"workflow"`
	Phases   []BoardPhase          `json:"phases"`
}

// BuildBoard projects w for the visualization panel. Progress is computed on
// every call.
func BuildBoard(w *models.WorkflowInstance, expanded ExpansionSet) Board {
	current := CurrentPhase(w)
	b := Board{
		Workflow: Summarize(w),
		Phases:   make([]BoardPhase, 0, len(w.Phases)),
	}
	for i := range w.Phases {
		phase := &w.Phases[i]
		bp := BoardPhase{
			ID:       phase.ID,
			Name:     phase.Name,
			Timeline: phase.Timeline,
			Enabled:  phase.Enabled,
			Progress: PhaseProgress(*phase),
			Current:  phase == current,
			Tasks:    make([]BoardTask, 0, len(phase.Tasks)),
		}
		for _, t := range phase.Tasks {
			done, total := SubTaskProgress(t)
			bp.Tasks = append(bp.Tasks, BoardTask{
				Task:          t,
				Expanded:      expanded.Expanded(t.ID),
				SubTasksDone:  done,
				SubTasksTotal: total,
			})
		}
		b.Phases = append(b.Phases, bp)
	}
	return b
}
