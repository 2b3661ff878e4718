package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/hupe1980/taskmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_EvictsOldestNonSystemMessage(t *testing.T) {
	c := New(model.NewMockModel("mock", "mock"), func(o *Options) {
		o.MaxMessages = 3
	})
	c.Add(NewSystemMessage("system"))
	c.Add(NewUserMessage("first"))
	c.Add(NewUserMessage("second"))
	c.Add(NewUserMessage("third"))

	msgs := c.Messages()
	require.LessOrEqual(t, len(msgs), 3)
	assert.Equal(t, KindSystem, msgs[0].Kind)
	for _, m := range msgs[1:] {
		assert.NotEqual(t, "first", m.Text)
	}
}

func TestContext_TokenBoundEviction(t *testing.T) {
	c := New(model.NewMockModel("mock", "mock"), func(o *Options) {
		o.MaxMessages = 100
		o.MaxTokens = 5
	})
	c.Add(NewSystemMessage("s"))
	c.Add(NewUserMessage(strings.Repeat("x", 40)))
	assert.LessOrEqual(t, c.EstimatedTokens(), estimateTokens(strings.Repeat("x", 40))+1)
}

func TestContext_Generate_TextResponse(t *testing.T) {
	mm := model.NewMockModel("mock", "mock")
	mm.AddResponse("hello", "world")
	c := New(mm)
	c.Add(NewUserMessage("hello"))

	res, err := c.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "world", res.Text)
	assert.Nil(t, res.ToolCalls)
}

func TestExtractJSON_FencedBlock(t *testing.T) {
	raw := "here you go:\n```json\n{\"a\":1}\n```\nthanks"
	r, ok := ExtractJSON(raw)
	require.True(t, ok)
	assert.Equal(t, int64(1), r.Get("a").Int())
}

func TestExtractJSON_RawFallback(t *testing.T) {
	r, ok := ExtractJSON(`{"a":2}`)
	require.True(t, ok)
	assert.Equal(t, int64(2), r.Get("a").Int())
}

func TestExtractJSON_SalvageFromProse(t *testing.T) {
	r, ok := ExtractJSON(`sure, {"a":3} is the answer`)
	require.True(t, ok)
	assert.Equal(t, int64(3), r.Get("a").Int())
}

func TestExtractJSON_NoJSON(t *testing.T) {
	_, ok := ExtractJSON("no json here at all")
	assert.False(t, ok)
}
