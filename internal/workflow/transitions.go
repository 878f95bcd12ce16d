package workflow

import (
	"time"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/pkg/models"
)

// UpdateTaskStatus is the single mutation path for a task's status. Setting
// the current status again is a no-op; anything the state machine forbids
// returns a *errors.TransitionError.
func UpdateTaskStatus(w *models.WorkflowInstance, taskID string, target models.TaskStatus, now time.Time) (models.TaskStatus, error) {
	if !target.Valid() {
		return "", apperrors.NewValidationError("status", "unknown task status "+string(target))
	}
	_, task := w.FindTask(taskID)
	if task == nil {
		return "", apperrors.NewNotFoundError("task", taskID)
	}
	from := task.Status
	if from == target {
		return from, nil
	}
	if !from.CanTransitionTo(target) {
		te := &apperrors.TransitionError{TaskID: taskID, From: string(from), To: string(target)}
		if from.IsTerminal() {
			te.Reason = "reopen required"
		}
		return from, te
	}
	task.Status = target
	touch(w, now)
	return from, nil
}

// ReopenTask moves a completed or skipped task back to pending.
func ReopenTask(w *models.WorkflowInstance, taskID string, now time.Time) (models.TaskStatus, error) {
	_, task := w.FindTask(taskID)
	if task == nil {
		return "", apperrors.NewNotFoundError("task", taskID)
	}
	from := task.Status
	if !from.IsTerminal() {
		return from, &apperrors.TransitionError{
			TaskID: taskID, From: string(from), To: string(models.TaskStatusPending),
			Reason: "only completed or skipped tasks can be reopened",
		}
	}
	task.Status = models.TaskStatusPending
	touch(w, now)
	return from, nil
}

// ToggleSubTask flips a subtask's completion. Subtasks of terminal tasks are
// frozen; there is no roll-up into the parent task's status.
func ToggleSubTask(w *models.WorkflowInstance, taskID, subTaskID string, now time.Time) (bool, error) {
	_, task := w.FindTask(taskID)
	if task == nil {
		return false, apperrors.NewNotFoundError("task", taskID)
	}
	if task.Status.IsTerminal() {
		return false, apperrors.NewConflictError("task %s is %s; reopen it to change subtasks", taskID, task.Status)
	}
	for i := range task.SubTasks {
		if task.SubTasks[i].ID == subTaskID {
			task.SubTasks[i].Completed = !task.SubTasks[i].Completed
			touch(w, now)
			return task.SubTasks[i].Completed, nil
		}
	}
	return false, apperrors.NewNotFoundError("subtask", subTaskID)
}

// SetPaused pauses or resumes w. Completed workflows cannot be paused.
func SetPaused(w *models.WorkflowInstance, paused bool, now time.Time) error {
	if paused && allTerminal(w) {
		return apperrors.NewConflictError("workflow %s is already completed", w.ID)
	}
	if w.Paused == paused {
		return nil
	}
	w.Paused = paused
	touch(w, now)
	return nil
}

func touch(w *models.WorkflowInstance, now time.Time) {
	w.LastActivity = now
	w.UpdatedAt = now
}
