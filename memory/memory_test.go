package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/hupe1980/taskmesh/vectorstore"
	"github.com/stretchr/testify/require"
)

func TestShortTerm_GetPutIsolatesCopies(t *testing.T) {
	s := NewShortTerm()
	m := s.Get("agent-1")
	require.Empty(t, m)

	s.Put("agent-1", map[string]any{"k1": "v1", "k2": 2})
	m2 := s.Get("agent-1")
	require.Equal(t, "v1", m2["k1"])

	m2["k1"] = "mutated"
	m3 := s.Get("agent-1")
	require.Equal(t, "v1", m3["k1"])
}

func TestShortTerm_ConcurrentAccess(t *testing.T) {
	s := NewShortTerm()
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Put("agent-x", map[string]any{"k": i})
			_ = s.Get("agent-x")
		}(i)
	}
	wg.Wait()
	require.NotEmpty(t, s.Get("agent-x"))
}

func TestLongTerm_StoreAndSearchScopedByAgent(t *testing.T) {
	gw, err := vectorstore.New()
	require.NoError(t, err)
	lt := NewLongTerm(gw)
	ctx := context.Background()

	require.NoError(t, lt.Store(ctx, Entry{AgentID: "agent-1", Task: "research go concurrency", Result: "done"}))
	require.NoError(t, lt.Store(ctx, Entry{AgentID: "agent-2", Task: "research go concurrency", Result: "done"}))

	results, err := lt.Search(ctx, "agent-1", "go concurrency", 5)
	require.NoError(t, err)
	for _, r := range results {
		require.Equal(t, "agent-1", r.Metadata["agentId"])
	}
}
