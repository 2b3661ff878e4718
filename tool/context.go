package tool

import "github.com/hupe1980/taskmesh/logging"

// CallContext is the scoped execution context passed to a Tool on every
// invocation. It replaces the teacher's session/event/actions-carrying
// ToolContext with the handful of things a subtask-scoped tool call actually
// needs: which agent is calling, which task it belongs to, and the logger
// passed to NewCallContext, as given.
type CallContext struct {
	AgentID        string
	TaskID         string
	FunctionCallID string
	logger         logging.Logger
}

// NewCallContext constructs a CallContext, substituting a NoOpLogger when l is nil.
func NewCallContext(taskID, agentID, functionCallID string, l logging.Logger) *CallContext {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	return &CallContext{AgentID: agentID, TaskID: taskID, FunctionCallID: functionCallID, logger: l}
}

// Logger returns the context's logger.
func (c *CallContext) Logger() logging.Logger { return c.logger }
