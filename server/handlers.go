package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/taskmesh/domain"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/task"
	"github.com/hupe1980/taskmesh/vectorstore"
)

// handlers holds the dependencies every route needs. Grounded on the
// teacher's handlers.ConfigHandler/SessionHandler shape: a small struct
// wrapping the domain collaborator(s), constructed once in New and bound
// as gin.HandlerFunc method values.
type handlers struct {
	sup     *task.Supervisor
	tracker *task.AgentTracker
	gateway vectorstore.Gateway
	logger  logging.Logger
}

type errorBody struct {
	Error string `json:"error"`
}

type createTaskRequest struct {
	Description string  `json:"description" binding:"required"`
	Priority    *string `json:"priority,omitempty"`
}

func (h *handlers) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "description is required"})
		return
	}

	priority := domain.PriorityMedium
	if req.Priority != nil {
		priority = domain.Priority(*req.Priority)
		if !domain.ValidPriority(priority) {
			c.JSON(http.StatusBadRequest, errorBody{Error: "invalid priority"})
			return
		}
	}

	t, err := h.sup.Submit(c.Request.Context(), req.Description, priority)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *handlers) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.sup.Store().List())
}

func (h *handlers) getTask(c *gin.Context) {
	t, ok := h.sup.Store().Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorBody{Error: "task not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *handlers) getTaskAgents(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.sup.Store().Get(id); !ok {
		c.JSON(http.StatusNotFound, errorBody{Error: "task not found"})
		return
	}
	agents, ok := h.tracker.SnapshotFor(id)
	if !ok {
		c.JSON(http.StatusOK, map[string]domain.AgentStatus{})
		return
	}
	c.JSON(http.StatusOK, agents)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *handlers) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "status is required"})
		return
	}
	status := domain.TaskStatus(req.Status)
	if !domain.ValidTaskStatus(status) {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid status"})
		return
	}
	id := c.Param("id")
	ok := h.sup.Store().Mutate(id, func(t *domain.Task) { t.Status = status })
	if !ok {
		c.JSON(http.StatusNotFound, errorBody{Error: "task not found"})
		return
	}
	h.sup.Broadcaster().Publish(task.UpdateEvent{TaskID: id, Status: string(status)})
	t, _ := h.sup.Store().Get(id)
	c.JSON(http.StatusOK, t)
}

type updatePriorityRequest struct {
	Priority string `json:"priority" binding:"required"`
}

func (h *handlers) updatePriority(c *gin.Context) {
	var req updatePriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "priority is required"})
		return
	}
	priority := domain.Priority(req.Priority)
	if !domain.ValidPriority(priority) {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid priority"})
		return
	}
	id := c.Param("id")
	if !h.sup.Store().SetPriority(id, priority) {
		c.JSON(http.StatusNotFound, errorBody{Error: "task not found"})
		return
	}
	t, _ := h.sup.Store().Get(id)
	c.JSON(http.StatusOK, t)
}

func (h *handlers) deleteTask(c *gin.Context) {
	id := c.Param("id")
	if !h.sup.Store().Delete(id) {
		c.JSON(http.StatusNotFound, errorBody{Error: "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

func (h *handlers) systemStats(c *gin.Context) {
	stats, err := vectorstore.CollectStats(c.Request.Context(), h.gateway)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
