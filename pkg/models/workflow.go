package models

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of a playbook task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusSkipped    TaskStatus = "skipped"
)

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusSkipped:
		return true
	}
	return false
}

// IsTerminal reports whether no further work happens on a task in this state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusSkipped
}

// CanTransitionTo returns true if the status can move to target through a
// regular status update. Terminal states only leave through an explicit reopen.
//
//	pending     -> in_progress | completed | skipped
//	in_progress -> completed | skipped
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return target == TaskStatusInProgress || target == TaskStatusCompleted || target == TaskStatusSkipped
	case TaskStatusInProgress:
		return target == TaskStatusCompleted || target == TaskStatusSkipped
	default:
		return false
	}
}

// TriggerType names what started a task.
type TriggerType string

const (
	TriggerPlaybook TriggerType = "playbook"
	TriggerSystem   TriggerType = "system"
	TriggerEvent    TriggerType = "event"
)

// Attribute is an account attribute a task updates when it runs.
type Attribute struct {
	Name        string `json:"name" yaml:"name"`
	Value       string `json:"value" yaml:"value"`
	AutoUpdated bool   `json:"auto_updated" yaml:"auto_updated"`
}

// SubTask is a checklist item under a task.
type SubTask struct {
	ID              string `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	Completed       bool   `json:"completed" yaml:"completed"`
	AttributeUpdate string `json:"attribute_update,omitempty" yaml:"attribute_update,omitempty"`
}

// Task is a unit of work inside a phase. Status is the only stored
// representation of completion; IsDone derives the boolean view.
type Task struct {
	ID                 string      `json:"id" yaml:"id"`
	Name               string      `json:"name" yaml:"name"`
	Description        string      `json:"description" yaml:"description"`
	EndGoal            string      `json:"end_goal" yaml:"end_goal"`
	AttributesToUpdate []Attribute `json:"attributes_to_update" yaml:"attributes_to_update"`
	Expectations       []string    `json:"expectations" yaml:"expectations"`
	SubTasks           []SubTask   `json:"sub_tasks" yaml:"sub_tasks"`
	Status             TaskStatus  `json:"status" yaml:"status"`
	DueDate            string      `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	Owner              string      `json:"owner,omitempty" yaml:"owner,omitempty"`
	TriggerType        TriggerType `json:"trigger_type,omitempty" yaml:"trigger_type,omitempty"`
}

// IsDone reports whether the task is completed.
func (t Task) IsDone() bool {
	return t.Status == TaskStatusCompleted
}

// MarshalJSON adds the derived completed flag for clients that still read it.
func (t Task) MarshalJSON() ([]byte, error) {
	type task Task
	return json.Marshal(struct {
		task
		Completed bool `json:"completed"`
	}{task(t), t.IsDone()})
}

// Phase is an ordered stage of a playbook. Task order is execution order.
type Phase struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Timeline string `json:"timeline" yaml:"timeline"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Tasks    []Task `json:"tasks" yaml:"tasks"`
}

// Finished reports whether every task in the phase is terminal.
func (p Phase) Finished() bool {
	for _, t := range p.Tasks {
		if !t.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// Category is the lifecycle category a workflow is filed under.
type Category string

const (
	CategoryOnboarding Category = "onboarding"
	CategoryAtRisk     Category = "at_risk"
	CategoryRenewal    Category = "renewal"
	CategoryExpansion  Category = "expansion"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryOnboarding, CategoryAtRisk, CategoryRenewal, CategoryExpansion:
		return true
	}
	return false
}

// WorkflowStatus is the summary status shown for an active workflow.
type WorkflowStatus string

const (
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowAttention WorkflowStatus = "attention"
	WorkflowPaused    WorkflowStatus = "paused"
	WorkflowCompleted WorkflowStatus = "completed"
)

// AccountRef is the account snapshot carried by a workflow.
type AccountRef struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Segment     string  `json:"segment"`
	ARR         float64 `json:"arr"`
	HealthScore int     `json:"health_score"`
}

// PlaybookRef identifies the playbook a workflow was instantiated from.
type PlaybookRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WorkflowInstance is one playbook applied to one account. It owns the
// phase tree; every summary figure is derived from it.
type WorkflowInstance struct {
	ID           string      `json:"id"`
	TenantID     string      `json:"tenant_id"`
	Account      AccountRef  `json:"account"`
	Playbook     PlaybookRef `json:"playbook"`
	Category     Category    `json:"category"`
	Phases       []Phase     `json:"phases"`
	Paused       bool        `json:"paused"`
	LastActivity time.Time   `json:"last_activity"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// FindTask returns pointers to the task with the given id and its phase.
func (w *WorkflowInstance) FindTask(taskID string) (*Phase, *Task) {
	for i := range w.Phases {
		for j := range w.Phases[i].Tasks {
			if w.Phases[i].Tasks[j].ID == taskID {
				return &w.Phases[i], &w.Phases[i].Tasks[j]
			}
		}
	}
	return nil, nil
}

// Progress is the phase position and completion of a workflow.
type Progress struct {
	CurrentPhase int `json:"current_phase"`
	TotalPhases  int `json:"total_phases"`
	Percentage   int `json:"percentage"`
}

// PlaybookActivity is the playbook half of an active workflow summary.
type PlaybookActivity struct {
	Name         string    `json:"name"`
	LastActivity time.Time `json:"last_activity"`
}

// ActiveWorkflow is the orchestrator's summary of a WorkflowInstance.
type ActiveWorkflow struct {
	ID               string           `json:"id"`
	Account          AccountRef       `json:"account"`
	Playbook         PlaybookActivity `json:"playbook"`
	Category         Category         `json:"category"`
	Progress         Progress         `json:"progress"`
	CurrentPhaseName string           `json:"current_phase_name"`
	PhaseTimeline    string           `json:"phase_timeline"`
	Status           WorkflowStatus   `json:"status"`
}

// ClonePhases deep-copies a phase tree.
func ClonePhases(src []Phase) []Phase {
	if src == nil {
		return nil
	}
	phases := make([]Phase, len(src))
	for i, p := range src {
		phases[i] = p
		phases[i].Tasks = make([]Task, len(p.Tasks))
		for j, t := range p.Tasks {
			t.AttributesToUpdate = append([]Attribute(nil), t.AttributesToUpdate...)
			t.Expectations = append([]string(nil), t.Expectations...)
			t.SubTasks = append([]SubTask(nil), t.SubTasks...)
			phases[i].Tasks[j] = t
		}
	}
	return phases
}

// Clone returns a deep copy of w.
func (w *WorkflowInstance) Clone() *WorkflowInstance {
	c := *w
	c.Phases = ClonePhases(w.Phases)
	return &c
}
