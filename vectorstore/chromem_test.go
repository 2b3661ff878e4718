package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChromemGateway_AddQueryCount(t *testing.T) {
	ctx := context.Background()
	g, err := New()
	require.NoError(t, err)

	require.NoError(t, g.GetOrCreateCollection(ctx, CollectionKnowledgeBase))
	require.NoError(t, g.Add(ctx, CollectionKnowledgeBase, []Document{
		{ID: "d1", Content: "go concurrency patterns", Metadata: map[string]string{"taskId": "t1"}},
		{ID: "d2", Content: "vector database basics", Metadata: map[string]string{"taskId": "t2"}},
	}))

	count, err := g.Count(ctx, CollectionKnowledgeBase)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	results, err := g.Query(ctx, CollectionKnowledgeBase, "go concurrency", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestChromemGateway_CountOnEmptyCollection(t *testing.T) {
	ctx := context.Background()
	g, err := New()
	require.NoError(t, err)
	count, err := g.Count(ctx, CollectionTasks)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
