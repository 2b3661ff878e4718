// Package server exposes the orchestrator's §6 external REST and SSE
// surface over gin-gonic/gin, grounded on the teacher's webui.Server
// (gin.New + gin-contrib/cors + grouped routes) and
// cklxx-elephant.ai's sse_handler.go (named-event, flush-per-message SSE
// loop). A GET /metrics endpoint additionally exposes
// prometheus/client_golang counters, ambient observability the §6 contract
// itself doesn't name.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/task"
	"github.com/hupe1980/taskmesh/vectorstore"
)

// sseHeartbeat keeps intermediary proxies from closing idle SSE
// connections, matching the 30s heartbeat cklxx-elephant.ai's SSEHandler
// uses for the same reason.
const sseHeartbeat = 30 * time.Second

// Server wraps a gin.Engine wired to a task.Supervisor, its AgentTracker,
// and a vector store gateway used only for the /system/stats endpoint.
type Server struct {
	engine *gin.Engine
}

// Options configures Server construction.
type Options struct {
	Logger      logging.Logger
	CORSOrigin  string
	ReleaseMode bool
}

// New constructs a Server. It depends on the concrete *task.Supervisor
// rather than an interface: the handlers need its full surface
// (Store/Broadcaster/Submit) and no second implementation exists or is
// expected to.
func New(sup *task.Supervisor, tracker *task.AgentTracker, gateway vectorstore.Gateway, optFns ...func(*Options)) *Server {
	opts := Options{Logger: logging.NoOpLogger{}, CORSOrigin: "*"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if opts.CORSOrigin == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{opts.CORSOrigin}
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsCfg))

	h := &handlers{sup: sup, tracker: tracker, gateway: gateway, logger: opts.Logger}
	registerRoutes(engine, h)

	return &Server{engine: engine}
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func registerRoutes(engine *gin.Engine, h *handlers) {
	engine.POST("/tasks", h.createTask)
	engine.GET("/tasks", h.listTasks)
	engine.GET("/tasks/:id", h.getTask)
	engine.GET("/tasks/:id/agents", h.getTaskAgents)
	engine.PUT("/tasks/:id/status", h.updateStatus)
	engine.PUT("/tasks/:id/priority", h.updatePriority)
	engine.DELETE("/tasks/:id", h.deleteTask)
	engine.GET("/system/stats", h.systemStats)
	engine.GET("/events", h.events)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
