package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/tool"
)

const (
	// DefaultMaxMessages bounds the message count per I5.
	DefaultMaxMessages = 30
	// DefaultMaxTokens bounds the estimated token count per I5.
	DefaultMaxTokens = 8000
)

// Context is the per-agent, single-owner conversation buffer described in
// §4.4. It is not safe for concurrent use by more than one agent goroutine at
// a time, mirroring the teacher's MCP session being scoped to one invocation;
// the mutex guards against the tool loop's concurrent-tool-call goroutines
// reading it while a result is appended.
type Context struct {
	mu          sync.Mutex
	messages    []Message
	maxMessages int
	maxTokens   int
	model       model.Model
	toolDefs    []tool.Definition
	logger      logging.Logger
}

// Options configures a Context.
type Options struct {
	MaxMessages int
	MaxTokens   int
	ToolDefs    []tool.Definition
	Logger      logging.Logger
}

// New constructs a Context bound to model for generation.
func New(m model.Model, optFns ...func(*Options)) *Context {
	opts := Options{MaxMessages: DefaultMaxMessages, MaxTokens: DefaultMaxTokens, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Context{
		maxMessages: opts.MaxMessages,
		maxTokens:   opts.MaxTokens,
		model:       m,
		toolDefs:    opts.ToolDefs,
		logger:      opts.Logger,
	}
}

// estimateTokens implements §4.4's token estimator: ceil(len(stringified)/4).
func estimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	return (len(s) + 3) / 4
}

func (c *Context) totalTokensLocked() int {
	total := 0
	for _, m := range c.messages {
		total += estimateTokens(m.stringified())
	}
	return total
}

// Add appends a message and enforces the I5 bounds, evicting the oldest
// non-system message (repeatedly) until both bounds hold or only the system
// message and one other entry remain.
func (c *Context) Add(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	c.evictLocked()
}

func (c *Context) evictLocked() {
	for len(c.messages) > 2 && (len(c.messages) > c.maxMessages || c.totalTokensLocked() > c.maxTokens) {
		idx := -1
		for i, m := range c.messages {
			if m.Kind != KindSystem {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		c.logger.Debug("mcp.context.evict", "index", idx, "kind", c.messages[idx].Kind.String())
		c.messages = append(c.messages[:idx], c.messages[idx+1:]...)
	}
}

// Messages returns a copy of the current buffer, oldest first.
func (c *Context) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the current message count.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// EstimatedTokens returns the current total estimated token count.
func (c *Context) EstimatedTokens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalTokensLocked()
}

// GenerateResult is the classified outcome of one Generate call: either a
// plain text response or a batch of requested tool calls, never both.
type GenerateResult struct {
	Text      string
	ToolCalls []ToolCallRequest
}

// Generate renders the current buffer into a model.Request, drives the model
// to completion and appends the resulting assistant message back into the
// buffer before returning the classified result.
func (c *Context) Generate(ctx context.Context) (GenerateResult, error) {
	c.mu.Lock()
	contents, toolDefs := c.buildRequestLocked()
	c.mu.Unlock()

	req := model.Request{Contents: contents, Tools: toolDefs}
	respCh, errCh := c.model.Generate(ctx, req)

	var final model.Response
	var gotFinal bool
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				final = resp
				gotFinal = true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				c.Add(NewSystemMessage(fmt.Sprintf("LLM generation failed: %v", err)))
				return GenerateResult{}, fmt.Errorf("mcp: generation failed: %w", err)
			}
		}
	}
	if !gotFinal {
		return GenerateResult{}, fmt.Errorf("mcp: model closed channels without a final response")
	}

	return c.classifyAndAppend(final), nil
}

func (c *Context) classifyAndAppend(resp model.Response) GenerateResult {
	var text string
	var calls []ToolCallRequest
	for _, p := range resp.Content.Parts {
		switch part := p.(type) {
		case core.TextPart:
			text += part.Text
		case core.FunctionCallPart:
			calls = append(calls, ToolCallRequest{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: []byte(part.FunctionCall.Arguments),
			})
		}
	}
	if len(calls) > 0 {
		c.Add(NewAssistantToolCallMessage(calls))
		return GenerateResult{ToolCalls: calls}
	}
	c.Add(NewAssistantMessage(text))
	return GenerateResult{Text: text}
}

// buildRequestLocked maps the buffer into core.Content per the §4.4 SDK
// formatting rules. Caller must hold c.mu.
func (c *Context) buildRequestLocked() ([]core.Content, []model.ToolDefinition) {
	contents := make([]core.Content, 0, len(c.messages))
	for _, m := range c.messages {
		switch m.Kind {
		case KindSystem:
			contents = append(contents, core.Content{Role: "model", Parts: []core.Part{core.TextPart{Text: m.Text}}})
		case KindUser:
			contents = append(contents, core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: m.Text}}})
		case KindAssistant:
			contents = append(contents, core.Content{Role: "model", Parts: []core.Part{core.TextPart{Text: m.Text}}})
		case KindAssistantToolCall:
			parts := make([]core.Part, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID: tc.ID, Name: tc.Name, Arguments: string(tc.Args),
				}})
			}
			contents = append(contents, core.Content{Role: "model", Parts: parts})
		case KindToolResponse:
			parts := make([]core.Part, 0, len(m.ToolResponses))
			for _, tr := range m.ToolResponses {
				parts = append(parts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
					ID: tr.ID, Name: tr.Name, Response: tr.Response, Error: tr.Error,
				}})
			}
			contents = append(contents, core.Content{Role: "user", Parts: parts})
		}
	}

	defs := make([]model.ToolDefinition, 0, len(c.toolDefs))
	for _, d := range c.toolDefs {
		defs = append(defs, model.ToolDefinition{Type: "function", Function: model.FunctionDefinition{
			Name: d.Name, Description: d.Description, Parameters: d.Parameters,
		}})
	}
	return contents, defs
}
