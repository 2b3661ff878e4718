package evaluation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/domain"
	"github.com/hupe1980/taskmesh/model"
	"github.com/stretchr/testify/require"
)

// scriptedModel fails its first `failures` calls with a *core.RateLimitError
// to exercise the retry path, then returns the same canned response on every
// later call.
type scriptedModel struct {
	failures int32
	response string
}

func (m *scriptedModel) Info() model.Info { return model.Info{Name: "scripted", Provider: "test"} }

func (m *scriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		if atomic.AddInt32(&m.failures, -1) >= 0 {
			errCh <- &core.RateLimitError{Provider: "test"}
			return
		}
		respCh <- model.Response{
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: m.response}}},
			FinishReason: "stop",
		}
	}()
	return respCh, errCh
}

func fastBackoff() backoff.BackOff {
	b := backoff.NewConstantBackOff(time.Millisecond)
	return backoff.WithMaxRetries(b, MaxAttempts-1)
}

func TestEvaluator_Evaluate_ParsesRatingsAndComputesEfficiency(t *testing.T) {
	m := &scriptedModel{response: `{"accuracy":{"score":8,"reasoning":"solid"},"completeness":{"score":7,"reasoning":"mostly"},"coherence":{"score":9,"reasoning":"clear"},"feedback":"good job"}`}
	e := New(m, func(o *Options) { o.BuildBackoff = fastBackoff })

	reports := map[string]domain.AgentReport{
		"s1": {SubtaskID: "s1", Status: domain.AgentCompleted, Stats: domain.Stats{ExecutionTimeMs: 500, ToolCallsMade: 1}},
	}
	set, err := e.Evaluate(context.Background(), "do the thing", reports)
	require.NoError(t, err)
	eval := set.PerAgent["s1"]
	require.Equal(t, 8.0, eval.Accuracy.Score)
	require.Equal(t, "good job", eval.Feedback)
	require.Greater(t, eval.Overall, 0.0)
}

func TestEvaluator_RetriesTransientFailuresUpToMaxAttempts(t *testing.T) {
	m := &scriptedModel{failures: int32(MaxAttempts - 1), response: `{"systemRating":7,"analysis":"fine","recommendations":["a","b"]}`}
	e := New(m, func(o *Options) { o.BuildBackoff = fastBackoff })

	reports := map[string]domain.AgentReport{}
	set, err := e.Evaluate(context.Background(), "task", reports)
	require.NoError(t, err)
	require.Equal(t, 7.0, set.System.SystemRating)
	require.Len(t, set.System.Recommendations, 2)
}

func TestEvaluator_ExhaustsRetriesAndReturnsError(t *testing.T) {
	m := &scriptedModel{failures: MaxAttempts + 5, response: "unused"}
	e := New(m, func(o *Options) { o.BuildBackoff = fastBackoff })

	_, err := e.Evaluate(context.Background(), "task", map[string]domain.AgentReport{})
	require.Error(t, err)
}
