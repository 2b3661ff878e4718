package runtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/domain"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/tool"
	"github.com/hupe1980/taskmesh/vectorstore"
	"github.com/stretchr/testify/require"
)

func TestRunner_Run_PlainTextResult(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.AddResponse("summarize the quarterly report", "Q3 revenue grew 12%.")

	reg := tool.NewRegistry()
	r := New(m, reg)

	cfg := domain.AgentConfig{
		SubtaskID:         "s1",
		TaskID:            "t1",
		TaskAssigned:      "summarize the quarterly report",
		AgentType:         domain.AgentTypeGeneral,
		SystemInstruction: "You are a helpful agent.",
	}

	report := r.Run(context.Background(), cfg, nil)
	require.Equal(t, domain.AgentCompleted, report.Status)
	require.Equal(t, "Q3 revenue grew 12%.", report.Result)
	require.Empty(t, report.ToolsUsed)
}

func TestRunner_Run_ForcesAnswerAtMaxToolLoops(t *testing.T) {
	// A tool model that always wants to call a tool; the loop must still
	// terminate after MaxToolLoops and return whatever text came back.
	m := &alwaysToolCallModel{}
	reg := tool.NewRegistry()
	reg.Register(tool.NewFunctionTool("noop", "does nothing", map[string]interface{}{"type": "object"},
		func(ctx *tool.CallContext, args map[string]any) (any, error) { return "ok", nil }))

	r := New(m, reg)
	cfg := domain.AgentConfig{
		SubtaskID:         "s1",
		TaskID:            "t1",
		TaskAssigned:      "loop forever",
		AgentType:         domain.AgentTypeGeneral,
		SystemInstruction: "sys",
		ToolWhitelist:     []string{"noop"},
	}

	report := r.Run(context.Background(), cfg, nil)
	require.Equal(t, domain.AgentCompleted, report.Status)
	require.LessOrEqual(t, report.Stats.ToolCallsMade, MaxToolLoops)
}

// TestRunner_Run_PrimesContextFromDependenciesAndMemory covers §4.3 step 2
// with a dependency-result map, a vector store and long-term memory all
// supplied: the run completes, and priming queried the store (which here
// backs both the prior-task lookup and long-term memory).
func TestRunner_Run_PrimesContextFromDependenciesAndMemory(t *testing.T) {
	store := &recordingGateway{}
	m := model.NewMockModel("mock", "test")
	m.AddResponse("write the summary", "done")

	reg := tool.NewRegistry()
	r := New(m, reg, func(o *Options) {
		o.VectorStore = store
		o.LongTerm = memory.NewLongTerm(store)
	})

	cfg := domain.AgentConfig{
		SubtaskID:         "s2",
		TaskID:            "t1",
		TaskAssigned:      "write the summary",
		AgentType:         domain.AgentTypeGeneral,
		SystemInstruction: "sys",
	}

	report := r.Run(context.Background(), cfg, map[string]any{"s1": "R1"})
	require.Equal(t, domain.AgentCompleted, report.Status)
	require.True(t, store.queried, "expected priming to query the vector store for prior tasks")
}

// recordingGateway is a minimal in-memory vectorstore.Gateway double: Query
// always returns one hit so primeContext's prior-tasks push is exercised,
// and Add records what Runner.persist wrote without needing a real backend.
type recordingGateway struct {
	queried bool
	added   []vectorstore.Document
}

func (g *recordingGateway) GetOrCreateCollection(ctx context.Context, name string) error { return nil }

func (g *recordingGateway) Add(ctx context.Context, collection string, docs []vectorstore.Document) error {
	g.added = append(g.added, docs...)
	return nil
}

func (g *recordingGateway) Query(ctx context.Context, collection, queryText string, nResults int, where map[string]string) ([]core.SearchResult, error) {
	g.queried = true
	return []core.SearchResult{{ID: "prior-1", Content: "a similar earlier task", Score: 0.9}}, nil
}

func (g *recordingGateway) Count(ctx context.Context, collection string) (int, error) { return 0, nil }

// alwaysToolCallModel always asks to call "noop" until its counter exceeds
// MaxToolLoops, then answers with plain text, letting the test assert the
// runner's own forced-answer path also works if the model ever cooperates.
type alwaysToolCallModel struct{ calls int }

func (m *alwaysToolCallModel) Info() model.Info {
	return model.Info{Name: "always-tool-call", Provider: "test", SupportsTools: true}
}

func (m *alwaysToolCallModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		m.calls++
		if m.calls > MaxToolLoops {
			respCh <- model.Response{
				Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "final answer"}}},
				FinishReason: "stop",
			}
			return
		}
		args, _ := json.Marshal(map[string]any{})
		respCh <- model.Response{
			Content: core.Content{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{
				FunctionCall: core.FunctionCall{ID: "c1", Name: "noop", Arguments: string(args)},
			}}},
		}
	}()
	return respCh, errCh
}
