// Package domain holds the data model shared across the task supervisor,
// workflow engine, agent runtime and evaluator (§3): the wire-shape types
// that flow between them without any package owning execution logic over
// another's internals.
package domain

import "time"

// Priority is the user-assigned importance of a Task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriority reports whether p is one of the three accepted values.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// TaskStatus is a Task's position in the lifecycle state machine of §4.1.
type TaskStatus string

const (
	TaskPending                TaskStatus = "pending"
	TaskDecomposing            TaskStatus = "decomposing"
	TaskInProgress             TaskStatus = "in-progress"
	TaskEvaluating             TaskStatus = "evaluating"
	TaskCompleted              TaskStatus = "completed"
	TaskCompletedWithErrors    TaskStatus = "completed_with_errors"
	TaskError                  TaskStatus = "error"
)

// ValidTaskStatus reports whether s is a recognized TaskStatus.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskPending, TaskDecomposing, TaskInProgress, TaskEvaluating,
		TaskCompleted, TaskCompletedWithErrors, TaskError:
		return true
	default:
		return false
	}
}

// Terminal reports whether s ends the Task lifecycle (§4.1).
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskCompletedWithErrors, TaskError:
		return true
	default:
		return false
	}
}

// ErrorRecord describes why a Task ended in TaskError (§3 expansion).
type ErrorRecord struct {
	Phase   string `json:"phase"`
	Message string `json:"message"`
}

// Task is a user-submitted unit of work (§3).
type Task struct {
	ID            string        `json:"id"`
	Description   string        `json:"description"`
	Priority      Priority      `json:"priority"`
	DueDate       *time.Time    `json:"dueDate,omitempty"`
	Status        TaskStatus    `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
	OverallScore  *float64      `json:"overallScore,omitempty"`
	Decomposition *Decomposition `json:"decomposition,omitempty"`
	AgentCount    int           `json:"agentCount"`
	FinalResult   any           `json:"finalResult,omitempty"`
	Evaluations   *EvaluationSet `json:"evaluations,omitempty"`
	Error         *ErrorRecord  `json:"error,omitempty"`
}

// Clone returns a deep-enough copy of t safe to hand to a reader while t
// continues to be mutated by its single-writer owner (§5).
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	if t.DueDate != nil {
		d := *t.DueDate
		clone.DueDate = &d
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		clone.CompletedAt = &c
	}
	if t.OverallScore != nil {
		s := *t.OverallScore
		clone.OverallScore = &s
	}
	if t.Decomposition != nil {
		d := *t.Decomposition
		clone.Decomposition = &d
	}
	if t.Evaluations != nil {
		e := t.Evaluations.Clone()
		clone.Evaluations = e
	}
	if t.Error != nil {
		e := *t.Error
		clone.Error = &e
	}
	return &clone
}
