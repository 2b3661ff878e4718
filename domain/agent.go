package domain

import "time"

// AgentType is a fixed role from the Agent Registry (§4.1).
type AgentType string

const (
	AgentTypeResearcher AgentType = "RESEARCHER"
	AgentTypePlanner    AgentType = "PLANNER"
	AgentTypeEvaluator  AgentType = "EVALUATOR"
	AgentTypeExecutor   AgentType = "EXECUTOR"
	AgentTypeGeneral    AgentType = "GENERAL"
)

// AgentStatus is a position in the Agent Runtime state machine (§4.3) plus
// the scheduler-only terminal states of §4.2.
type AgentStatus string

const (
	AgentPending        AgentStatus = "pending"
	AgentWaiting        AgentStatus = "waiting"
	AgentReadyToExecute AgentStatus = "ready_to_execute"
	AgentInProgress     AgentStatus = "in-progress"
	AgentCompleted      AgentStatus = "completed"
	AgentError          AgentStatus = "error"
	AgentBlockedError   AgentStatus = "blocked_error"
	AgentStalled        AgentStatus = "stalled"
)

// Terminal reports whether s is one of the terminal states counted by I4.
func (s AgentStatus) Terminal() bool {
	switch s {
	case AgentCompleted, AgentError, AgentBlockedError, AgentStalled:
		return true
	default:
		return false
	}
}

// AgentConfig is the engine's input for one agent (§4.2 "Inputs").
type AgentConfig struct {
	SubtaskID        string    `json:"subtaskId"`
	TaskID           string    `json:"taskId"`
	TaskAssigned     string    `json:"taskAssigned"`
	AgentType        AgentType `json:"agentType"`
	SystemInstruction string   `json:"systemInstruction"`
	ToolWhitelist    []string  `json:"toolWhitelist"`
	ParallelGroup    string    `json:"parallelGroup"`
	Dependencies     []string  `json:"dependencies"`
}

// Stats carries the per-agent counters of §3.
type Stats struct {
	ExecutionTimeMs int64 `json:"executionTimeMs"`
	ToolCallsMade   int   `json:"toolCallsMade"`
}

// AgentReport is the immutable terminal record of an agent run (§3).
type AgentReport struct {
	SubtaskID    string      `json:"subtaskId"`
	TaskAssigned string      `json:"taskAssigned"`
	AgentType    AgentType   `json:"agentType"`
	Status       AgentStatus `json:"status"`
	StartTime    time.Time   `json:"startTime"`
	EndTime      time.Time   `json:"endTime"`
	Result       any         `json:"result,omitempty"`
	Reasoning    string      `json:"reasoning,omitempty"`
	ToolsUsed    []string    `json:"toolsUsed"`
	Stats        Stats       `json:"stats"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}

// ExecutionTimeMs computes the elapsed time between StartTime and EndTime.
func (r *AgentReport) ExecutionTimeMs() int64 {
	return r.EndTime.Sub(r.StartTime).Milliseconds()
}
