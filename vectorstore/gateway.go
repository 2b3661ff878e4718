// Package vectorstore implements the Vector Store Gateway of §6: an opaque
// collection/embedding/metadata store the rest of the orchestrator treats as
// an external collaborator, backed concretely by an embedded chromem-go
// database so the gateway has something real to exercise in tests and the
// reference server.
package vectorstore

import (
	"context"

	"github.com/hupe1980/taskmesh/core"
)

// Collection names fixed by §6.
const (
	CollectionTasks            = "tasks"
	CollectionAgentExecutions  = "agent_executions"
	CollectionKnowledgeBase    = "knowledge_base"
	CollectionAgentMemory      = "agent_memory"
)

// Document is one item added to a collection.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Gateway is the abstract vector store contract of §6: collection-scoped
// add/query/count over embedded documents, with similarity returned as
// 1 - distance.
type Gateway interface {
	GetOrCreateCollection(ctx context.Context, name string) error
	Add(ctx context.Context, collection string, docs []Document) error
	Query(ctx context.Context, collection, queryText string, nResults int, where map[string]string) ([]core.SearchResult, error)
	Count(ctx context.Context, collection string) (int, error)
}

// Stats summarizes the four fixed collections for the §6 /system/stats endpoint.
type Stats struct {
	Tasks            int `json:"tasks"`
	AgentExecutions  int `json:"agentExecutions"`
	KnowledgeBase    int `json:"knowledgeBase"`
	AgentMemory      int `json:"agentMemory"`
}

// CollectStats queries all four fixed collections via g.
func CollectStats(ctx context.Context, g Gateway) (Stats, error) {
	var s Stats
	var err error
	if s.Tasks, err = g.Count(ctx, CollectionTasks); err != nil {
		return s, err
	}
	if s.AgentExecutions, err = g.Count(ctx, CollectionAgentExecutions); err != nil {
		return s, err
	}
	if s.KnowledgeBase, err = g.Count(ctx, CollectionKnowledgeBase); err != nil {
		return s, err
	}
	if s.AgentMemory, err = g.Count(ctx, CollectionAgentMemory); err != nil {
		return s, err
	}
	return s, nil
}
