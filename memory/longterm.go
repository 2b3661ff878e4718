package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/vectorstore"
)

// LongTerm persists and retrieves per-agent episodic memories — "{task,
// result, reasoning}" on success, "{task, error}" on failure (§4.3 step 6) —
// in the vector store's agent_memory collection, filtered by agentId.
type LongTerm struct {
	gateway vectorstore.Gateway
}

// NewLongTerm constructs a LongTerm store over gateway.
func NewLongTerm(gateway vectorstore.Gateway) *LongTerm {
	return &LongTerm{gateway: gateway}
}

// Entry is one stored episodic memory.
type Entry struct {
	AgentID   string `json:"agentId"`
	Task      string `json:"task"`
	Result    any    `json:"result,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Store persists entry, embedding its task description for later retrieval.
func (l *LongTerm) Store(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("memory: marshal entry: %w", err)
	}
	return l.gateway.Add(ctx, vectorstore.CollectionAgentMemory, []vectorstore.Document{{
		ID:      uuid.NewString(),
		Content: entry.Task,
		Metadata: map[string]string{
			"agentId": entry.AgentID,
			"payload": string(payload),
		},
	}})
}

// Search returns up to limit memories relevant to query, scoped to agentID.
func (l *LongTerm) Search(ctx context.Context, agentID, query string, limit int) ([]core.SearchResult, error) {
	return l.gateway.Query(ctx, vectorstore.CollectionAgentMemory, query, limit, map[string]string{"agentId": agentID})
}
