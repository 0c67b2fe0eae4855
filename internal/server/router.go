package server

import (
	"context"
	_ "embed"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftdeck/craftdeck/internal/history"
	"github.com/craftdeck/craftdeck/internal/hub"
	"github.com/craftdeck/craftdeck/internal/metrics"
	"github.com/craftdeck/craftdeck/internal/supervisor"
)

//go:embed dashboard.html
var dashboardHTML []byte

// Router provides embeddable HTTP handlers for the dashboard.
// Endpoints:
//
//	GET  {basePath}/             dashboard page
//	GET  {basePath}/ws           websocket (snapshot + live events)
//	POST {basePath}/start
//	POST {basePath}/stop
//	POST {basePath}/restart
//	POST {basePath}/command      body: {"command": "..."}
//	GET  {basePath}/status
//	GET  {basePath}/console
//	GET  {basePath}/players
//	GET  {basePath}/properties
//	GET  {basePath}/history      query: limit=N (default 50)
//	GET  /metrics                when metrics are enabled
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	sup      *supervisor.Supervisor
	ws       *hub.Hub
	props    func() map[string]string
	store    history.Store
	basePath string
	metrics  bool
}

// NewRouter constructs a Router with configurable basePath.
// Example basePath: "/dash" results in /dash/start, /dash/status, ...
// store may be nil when history is disabled.
func NewRouter(sup *supervisor.Supervisor, ws *hub.Hub, props func() map[string]string, store history.Store, basePath string) *Router {
	return &Router{
		sup:      sup,
		ws:       ws,
		props:    props,
		store:    store,
		basePath: sanitizeBase(basePath),
	}
}

// EnableMetrics mounts promhttp at /metrics on the next Handler call.
func (r *Router) EnableMetrics() { r.metrics = true }

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/", r.handleDashboard)
	group.GET("/ws", gin.WrapF(r.ws.HandleWS))
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/restart", r.handleRestart)
	group.POST("/command", r.handleCommand)
	group.GET("/status", r.handleStatus)
	group.GET("/console", r.handleConsole)
	group.GET("/players", r.handlePlayers)
	group.GET("/properties", r.handleProperties)
	group.GET("/history", r.handleHistory)
	if r.metrics {
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Call the returned server's Close or Shutdown to stop it.
func NewServer(addr string, r *Router) (*http.Server, error) {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type statusResp struct {
	Status  supervisor.Status `json:"status"`
	PID     int               `json:"pid"`
	Players []string          `json:"players"`
}

type commandReq struct {
	Command string `json:"command"`
}

func (r *Router) handleDashboard(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", dashboardHTML)
}

// Lifecycle commands always succeed at the HTTP level; refusals (already
// running, not running) surface as console notices so every connected
// client sees them.

func (r *Router) handleStart(c *gin.Context) {
	r.sup.Start()
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStop(c *gin.Context) {
	r.sup.Stop()
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleRestart(c *gin.Context) {
	r.sup.Restart()
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleCommand(c *gin.Context) {
	var req commandReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Command == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "command required"})
		return
	}
	r.sup.SendCommand(req.Command)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	players := r.sup.Players()
	if players == nil {
		players = []string{}
	}
	writeJSON(c, http.StatusOK, statusResp{
		Status:  r.sup.Status(),
		PID:     r.sup.PID(),
		Players: players,
	})
}

func (r *Router) handleConsole(c *gin.Context) {
	lines := r.sup.Console()
	if lines == nil {
		lines = []string{}
	}
	writeJSON(c, http.StatusOK, gin.H{"lines": lines})
}

func (r *Router) handlePlayers(c *gin.Context) {
	players := r.sup.Players()
	if players == nil {
		players = []string{}
	}
	writeJSON(c, http.StatusOK, gin.H{"players": players})
}

func (r *Router) handleProperties(c *gin.Context) {
	props := map[string]string{}
	if r.props != nil {
		props = r.props()
	}
	writeJSON(c, http.StatusOK, props)
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.store == nil {
		writeJSON(c, http.StatusOK, []history.Record{})
		return
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	recs, err := r.store.Recent(ctx, limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	writeJSON(c, http.StatusOK, recs)
}
