package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/taskmesh/domain"
	"github.com/stretchr/testify/require"
)

func cfgFor(id string) domain.AgentConfig {
	return domain.AgentConfig{SubtaskID: id, TaskAssigned: id, AgentType: domain.AgentTypeGeneral}
}

func TestScheduler_LinearChain(t *testing.T) {
	decomp := &domain.Decomposition{
		MainTask: "linear",
		Subtasks: []domain.Subtask{
			{SubtaskID: "a", ParallelGroup: "g1"},
			{SubtaskID: "b", ParallelGroup: "g2", Dependencies: []string{"a"}},
			{SubtaskID: "c", ParallelGroup: "g3", Dependencies: []string{"b"}},
		},
	}
	var order []string
	var mu sync.Mutex
	dispatch := func(ctx context.Context, cfg domain.AgentConfig, depResults map[string]any) domain.AgentReport {
		mu.Lock()
		order = append(order, cfg.SubtaskID)
		mu.Unlock()
		return domain.AgentReport{SubtaskID: cfg.SubtaskID, Status: domain.AgentCompleted}
	}
	s := New(dispatch)
	configs := map[string]domain.AgentConfig{"a": cfgFor("a"), "b": cfgFor("b"), "c": cfgFor("c")}
	reports, err := s.Run(context.Background(), "t1", decomp, configs)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	require.Equal(t, []string{"a", "b", "c"}, order)
	for _, r := range reports {
		require.Equal(t, domain.AgentCompleted, r.Status)
	}
}

func TestScheduler_DiamondRunsParallelCohortConcurrently(t *testing.T) {
	decomp := &domain.Decomposition{
		MainTask: "diamond",
		Subtasks: []domain.Subtask{
			{SubtaskID: "a"},
			{SubtaskID: "b", Dependencies: []string{"a"}},
			{SubtaskID: "c", Dependencies: []string{"a"}},
			{SubtaskID: "d", Dependencies: []string{"b", "c"}},
		},
	}
	var inFlight, maxInFlight int
	var mu sync.Mutex
	dispatch := func(ctx context.Context, cfg domain.AgentConfig, depResults map[string]any) domain.AgentReport {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return domain.AgentReport{SubtaskID: cfg.SubtaskID, Status: domain.AgentCompleted}
	}
	s := New(dispatch)
	configs := map[string]domain.AgentConfig{"a": cfgFor("a"), "b": cfgFor("b"), "c": cfgFor("c"), "d": cfgFor("d")}
	reports, err := s.Run(context.Background(), "t1", decomp, configs)
	require.NoError(t, err)
	require.Len(t, reports, 4)
	require.GreaterOrEqual(t, maxInFlight, 2)
}

func TestScheduler_ErrorCascadesToBlocked(t *testing.T) {
	decomp := &domain.Decomposition{
		MainTask: "cascade",
		Subtasks: []domain.Subtask{
			{SubtaskID: "a"},
			{SubtaskID: "b", Dependencies: []string{"a"}},
			{SubtaskID: "c", Dependencies: []string{"b"}},
		},
	}
	dispatch := func(ctx context.Context, cfg domain.AgentConfig, depResults map[string]any) domain.AgentReport {
		if cfg.SubtaskID == "a" {
			return domain.AgentReport{SubtaskID: "a", Status: domain.AgentError, ErrorMessage: "boom"}
		}
		return domain.AgentReport{SubtaskID: cfg.SubtaskID, Status: domain.AgentCompleted}
	}
	s := New(dispatch)
	configs := map[string]domain.AgentConfig{"a": cfgFor("a"), "b": cfgFor("b"), "c": cfgFor("c")}
	reports, err := s.Run(context.Background(), "t1", decomp, configs)
	require.NoError(t, err)
	require.Equal(t, domain.AgentError, reports["a"].Status)
	require.Equal(t, domain.AgentBlockedError, reports["b"].Status)
	require.Equal(t, domain.AgentBlockedError, reports["c"].Status)
}

func TestScheduler_RejectsCyclicDecomposition(t *testing.T) {
	decomp := &domain.Decomposition{
		MainTask: "cycle",
		Subtasks: []domain.Subtask{
			{SubtaskID: "a", Dependencies: []string{"b"}},
			{SubtaskID: "b", Dependencies: []string{"a"}},
		},
	}
	s := New(func(ctx context.Context, cfg domain.AgentConfig, depResults map[string]any) domain.AgentReport {
		return domain.AgentReport{Status: domain.AgentCompleted}
	})
	_, err := s.Run(context.Background(), "t1", decomp, map[string]domain.AgentConfig{})
	require.Error(t, err)
}

func TestScheduler_EmitsEvents(t *testing.T) {
	decomp := &domain.Decomposition{
		MainTask: "single",
		Subtasks: []domain.Subtask{{SubtaskID: "a"}},
	}
	events := make(chan Event, 10)
	s := New(func(ctx context.Context, cfg domain.AgentConfig, depResults map[string]any) domain.AgentReport {
		return domain.AgentReport{SubtaskID: "a", Status: domain.AgentCompleted}
	}, func(o *Options) { o.Events = events })
	_, err := s.Run(context.Background(), "t1", decomp, map[string]domain.AgentConfig{"a": cfgFor("a")})
	require.NoError(t, err)
	close(events)
	var statuses []domain.AgentStatus
	for ev := range events {
		statuses = append(statuses, ev.Status)
	}
	require.Contains(t, statuses, domain.AgentPending)
	require.Contains(t, statuses, domain.AgentInProgress)
	require.Contains(t, statuses, domain.AgentCompleted)
}

// TestScheduler_ThreadsDependencyResultsToSuccessor covers I3 / scenario 1:
// s2 depends on s1, so s2's dispatch must observe s1's materialized result
// rather than running in isolation from it.
func TestScheduler_ThreadsDependencyResultsToSuccessor(t *testing.T) {
	decomp := &domain.Decomposition{
		MainTask: "scenario-1",
		Subtasks: []domain.Subtask{
			{SubtaskID: "s1"},
			{SubtaskID: "s2", Dependencies: []string{"s1"}},
		},
	}
	var observed map[string]any
	var mu sync.Mutex
	dispatch := func(ctx context.Context, cfg domain.AgentConfig, depResults map[string]any) domain.AgentReport {
		if cfg.SubtaskID == "s2" {
			mu.Lock()
			observed = depResults
			mu.Unlock()
		}
		return domain.AgentReport{SubtaskID: cfg.SubtaskID, Status: domain.AgentCompleted, Result: "R1"}
	}
	s := New(dispatch)
	configs := map[string]domain.AgentConfig{"s1": cfgFor("s1"), "s2": cfgFor("s2")}
	reports, err := s.Run(context.Background(), "t1", decomp, configs)
	require.NoError(t, err)
	require.Equal(t, domain.AgentCompleted, reports["s2"].Status)
	require.Equal(t, map[string]any{"s1": "R1"}, observed)
}
