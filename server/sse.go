package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/taskmesh/task"
	"github.com/hupe1980/taskmesh/vectorstore"
)

// events serves the §6 GET /events stream, grounded on
// cklxx-elephant.ai's SSEHandler.HandleSSEStream: named `event: <name>`
// frames, a per-message flush, and a heartbeat so idle connections
// survive intermediary proxies. It pushes an initial `tasks` snapshot on
// connect, then re-pushes `tasks`/`agents` on every task status change and
// `stats` once a task reaches a terminal status.
func (h *handlers) events(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	updates, unsubscribe := h.sup.Broadcaster().Subscribe(32)
	defer unsubscribe()

	h.writeEvent(c, "tasks", h.sup.Store().List())

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-updates:
			if !ok {
				return
			}
			h.writeEvent(c, "tasks", h.sup.Store().List())
			h.writeEvent(c, "agents", h.tracker.Snapshot())
			if terminalUpdate(ev) {
				h.writeStats(c)
			}
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		}
	}
}

func terminalUpdate(ev task.UpdateEvent) bool {
	switch ev.Status {
	case "completed", "completed_with_errors", "error":
		return true
	default:
		return false
	}
}

func (h *handlers) writeStats(c *gin.Context) {
	stats, err := vectorstore.CollectStats(c.Request.Context(), h.gateway)
	if err != nil {
		h.logger.Warn("server.sse.stats_failed", "error", err.Error())
		return
	}
	h.writeEvent(c, "stats", stats)
}

func (h *handlers) writeEvent(c *gin.Context, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("server.sse.marshal_failed", "event", name, "error", err.Error())
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", name, data)
	c.Writer.Flush()
}
