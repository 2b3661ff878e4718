package task

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/taskmesh/domain"
	"github.com/hupe1980/taskmesh/evaluation"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/runtime"
	"github.com/hupe1980/taskmesh/tool"
	"github.com/stretchr/testify/require"
)

const decomposedJSON = `{"mainTask":"write a report","subtasks":[` +
	`{"subtaskId":"s1","subtaskName":"research the topic","description":"research background facts","dependencies":[],"parallelGroup":"g1"},` +
	`{"subtaskId":"s2","subtaskName":"write the report","description":"execute the writing","dependencies":["s1"],"parallelGroup":"g2"}]}`

func waitForTerminal(t *testing.T, s *Supervisor, id string) *domain.Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tk, ok := s.Store().Get(id)
		require.True(t, ok)
		switch tk.Status {
		case domain.TaskCompleted, domain.TaskCompletedWithErrors, domain.TaskError:
			return tk
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not reach a terminal state in time")
	return nil
}

func TestSupervisor_Submit_DecomposesSchedulesAndEvaluates(t *testing.T) {
	decompModel := model.NewMockModel("decomp", "test")
	decompModel.AddResponse("write a report", decomposedJSON)

	agentModel := model.NewMockModel("agent", "test")
	agentModel.AddResponse("research the topic: research background facts", "background gathered")
	agentModel.AddResponse("write the report: execute the writing", "report written")

	evalModel := model.NewMockModel("eval", "test")
	// Any prompt not explicitly registered falls back to MockModel's
	// generic "Mock response to: ..." text, which ExtractJSON will fail to
	// parse into ratings — exercising the zero-value rating path too.

	reg := tool.NewRegistry()
	runner := runtime.New(agentModel, reg)
	evaluator := evaluation.New(evalModel)

	sup := New(decompModel, runner, evaluator)
	created, err := sup.Submit(context.Background(), "write a report", domain.PriorityHigh)
	require.NoError(t, err)
	require.Equal(t, domain.TaskPending, created.Status)

	final := waitForTerminal(t, sup, created.ID)
	require.Contains(t, []domain.TaskStatus{domain.TaskCompleted, domain.TaskCompletedWithErrors}, final.Status)
	require.Equal(t, 2, final.AgentCount)
	require.NotNil(t, final.Decomposition)
	require.NotNil(t, final.CompletedAt)
}

func TestSupervisor_Submit_RejectsEmptyDescription(t *testing.T) {
	decompModel := model.NewMockModel("decomp", "test")
	runner := runtime.New(model.NewMockModel("agent", "test"), tool.NewRegistry())
	evaluator := evaluation.New(model.NewMockModel("eval", "test"))
	sup := New(decompModel, runner, evaluator)

	_, err := sup.Submit(context.Background(), "", domain.PriorityMedium)
	require.Error(t, err)
}

func TestSupervisor_Submit_DecompositionFailureMarksTaskError(t *testing.T) {
	decompModel := model.NewMockModel("decomp", "test")
	decompModel.AddResponse("impossible task", "not json at all, sorry")

	runner := runtime.New(model.NewMockModel("agent", "test"), tool.NewRegistry())
	evaluator := evaluation.New(model.NewMockModel("eval", "test"))
	sup := New(decompModel, runner, evaluator)

	created, err := sup.Submit(context.Background(), "impossible task", domain.PriorityLow)
	require.NoError(t, err)

	final := waitForTerminal(t, sup, created.ID)
	require.Equal(t, domain.TaskError, final.Status)
	require.NotNil(t, final.Error)
	require.Equal(t, "decomposition", final.Error.Phase)
}

func TestStore_ListOrdersNewestFirst(t *testing.T) {
	s := NewStore()
	a := s.Create("first", domain.PriorityLow)
	time.Sleep(time.Millisecond)
	b := s.Create("second", domain.PriorityLow)
	list := s.List()
	require.Len(t, list, 2)
	require.Equal(t, b.ID, list[0].ID)
	require.Equal(t, a.ID, list[1].ID)
}

func TestBroadcaster_PublishDeliversToSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.Subscribe(4)
	defer unsub()
	b.Publish(UpdateEvent{TaskID: "t1", Status: "pending"})
	select {
	case ev := <-ch:
		require.Equal(t, "t1", ev.TaskID)
	case <-time.After(time.Second):
		t.Fatal("expected event")
	}
}
