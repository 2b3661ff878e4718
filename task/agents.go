package task

import (
	"context"
	"sync"

	"github.com/hupe1980/taskmesh/domain"
	"github.com/hupe1980/taskmesh/workflow"
)

// AgentTracker consumes a workflow.Event feed and maintains the live
// taskId -> subtaskId -> AgentStatus view the §6 GET /tasks/:id/agents
// endpoint and the "agents" SSE event both read from, since the
// Supervisor's Store only ever holds a Task's aggregate state, not its
// in-flight per-agent statuses.
type AgentTracker struct {
	mu       sync.RWMutex
	statuses map[string]map[string]domain.AgentStatus
	events   <-chan workflow.Event
	onUpdate func(taskID string)
}

// NewAgentTracker constructs a tracker reading from events. onUpdate, if
// non-nil, is invoked after every processed event so callers (the server's
// SSE layer) can push a fresh snapshot without polling.
func NewAgentTracker(events <-chan workflow.Event, onUpdate func(taskID string)) *AgentTracker {
	return &AgentTracker{
		statuses: make(map[string]map[string]domain.AgentStatus),
		events:   events,
		onUpdate: onUpdate,
	}
}

// Run drains events until ctx is done or the channel closes. Intended to
// run in its own goroutine for the lifetime of the process.
func (a *AgentTracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.events:
			if !ok {
				return
			}
			a.record(ev)
		}
	}
}

func (a *AgentTracker) record(ev workflow.Event) {
	a.mu.Lock()
	m, ok := a.statuses[ev.TaskID]
	if !ok {
		m = make(map[string]domain.AgentStatus)
		a.statuses[ev.TaskID] = m
	}
	m[ev.SubtaskID] = ev.Status
	a.mu.Unlock()

	if a.onUpdate != nil {
		a.onUpdate(ev.TaskID)
	}
}

// Snapshot returns a copy of every tracked task's per-agent status map.
func (a *AgentTracker) Snapshot() map[string]map[string]domain.AgentStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]map[string]domain.AgentStatus, len(a.statuses))
	for taskID, agents := range a.statuses {
		copied := make(map[string]domain.AgentStatus, len(agents))
		for id, st := range agents {
			copied[id] = st
		}
		out[taskID] = copied
	}
	return out
}

// SnapshotFor returns a copy of one task's per-agent status map.
func (a *AgentTracker) SnapshotFor(taskID string) (map[string]domain.AgentStatus, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	agents, ok := a.statuses[taskID]
	if !ok {
		return nil, false
	}
	copied := make(map[string]domain.AgentStatus, len(agents))
	for id, st := range agents {
		copied[id] = st
	}
	return copied, true
}
