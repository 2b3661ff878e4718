package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/evaluation"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/runtime"
	"github.com/hupe1980/taskmesh/task"
	"github.com/hupe1980/taskmesh/tool"
	"github.com/hupe1980/taskmesh/vectorstore"
	"github.com/hupe1980/taskmesh/workflow"
)

func newTestServer(t *testing.T) (*Server, *task.Supervisor) {
	t.Helper()
	decompModel := model.NewMockModel("decomp", "test")
	runner := runtime.New(model.NewMockModel("agent", "test"), tool.NewRegistry())
	evaluator := evaluation.New(model.NewMockModel("eval", "test"))
	sup := task.New(decompModel, runner, evaluator)

	events := make(chan workflow.Event, 16)
	tracker := task.NewAgentTracker(events, nil)

	gw, err := vectorstore.New()
	require.NoError(t, err)
	srv := New(sup, tracker, gw, func(o *Options) { o.ReleaseMode = true })
	return srv, sup
}

func TestCreateTask_RejectsEmptyDescription(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"description": ""})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTask_ReturnsCreatedTask(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"description": "write a report"})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "write a report", got["description"])
}

func TestGetTask_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/tasks/missing", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdatePriority_RejectsInvalidValue(t *testing.T) {
	srv, sup := newTestServer(t)
	created := sup.Store().Create("some task", "low")

	body, _ := json.Marshal(map[string]string{"priority": "urgent"})
	req := httptest.NewRequest(http.MethodPut, "/tasks/"+created.ID+"/priority", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdatePriority_AppliesValidValue(t *testing.T) {
	srv, sup := newTestServer(t)
	created := sup.Store().Create("some task", "low")

	body, _ := json.Marshal(map[string]string{"priority": "high"})
	req := httptest.NewRequest(http.MethodPut, "/tasks/"+created.ID+"/priority", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	updated, ok := sup.Store().Get(created.ID)
	require.True(t, ok)
	require.Equal(t, "high", string(updated.Priority))
}

func TestDeleteTask_RemovesExistingTask(t *testing.T) {
	srv, sup := newTestServer(t)
	created := sup.Store().Create("some task", "low")

	req := httptest.NewRequest(http.MethodDelete, "/tasks/"+created.ID, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	_, ok := sup.Store().Get(created.ID)
	require.False(t, ok)
}

func TestGetTaskAgents_NotFoundForUnknownTask(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/tasks/missing/agents", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSystemStats_ReturnsCollectionCounts(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/system/stats", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
