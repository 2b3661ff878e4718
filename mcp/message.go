// Package mcp implements the Model Context Protocol buffer: the bounded,
// token-budgeted conversation window one agent exchanges with its model, the
// role mapping into the provider-agnostic model.Request/model.Response shape,
// and tolerant parsing of the model's JSON output.
package mcp

import "encoding/json"

// Kind tags the polymorphic content a Message carries, mirroring the
// "tagged variant" resolution of the source's duck-typed message payloads.
type Kind int

const (
	KindSystem Kind = iota
	KindUser
	KindAssistant
	KindAssistantToolCall
	KindToolResponse
)

func (k Kind) String() string {
	switch k {
	case KindSystem:
		return "system"
	case KindUser:
		return "user"
	case KindAssistant:
		return "assistant"
	case KindAssistantToolCall:
		return "assistant"
	case KindToolResponse:
		return "tool"
	default:
		return "unknown"
	}
}

// ToolCallRequest is one {name, args} entry of an KindAssistantToolCall message.
type ToolCallRequest struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// ToolResponseEntry is one {name, response} entry of a KindToolResponse message.
type ToolResponseEntry struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Message is one entry of an agent's context buffer.
type Message struct {
	Kind          Kind
	Text          string
	ToolCalls     []ToolCallRequest
	ToolResponses []ToolResponseEntry
}

// stringified renders a Message the way it is counted for token estimation:
// the JSON-equivalent of whatever payload it carries, matching §4.4's
// "estimated tokens = ceil(len(stringified content)/4)".
func (m Message) stringified() string {
	switch m.Kind {
	case KindAssistantToolCall:
		b, _ := json.Marshal(m.ToolCalls)
		return string(b)
	case KindToolResponse:
		b, _ := json.Marshal(m.ToolResponses)
		return string(b)
	default:
		return m.Text
	}
}

// NewSystemMessage constructs a system-role Message.
func NewSystemMessage(text string) Message { return Message{Kind: KindSystem, Text: text} }

// NewUserMessage constructs a user-role Message.
func NewUserMessage(text string) Message { return Message{Kind: KindUser, Text: text} }

// NewAssistantMessage constructs a plain-text assistant Message.
func NewAssistantMessage(text string) Message { return Message{Kind: KindAssistant, Text: text} }

// NewAssistantToolCallMessage constructs an assistant Message carrying tool calls.
func NewAssistantToolCallMessage(calls []ToolCallRequest) Message {
	return Message{Kind: KindAssistantToolCall, ToolCalls: calls}
}

// NewToolResponseMessage constructs a tool Message carrying tool responses.
func NewToolResponseMessage(entries []ToolResponseEntry) Message {
	return Message{Kind: KindToolResponse, ToolResponses: entries}
}
