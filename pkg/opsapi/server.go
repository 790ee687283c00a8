// Package opsapi is the incident core's operational HTTP surface: liveness,
// readiness, and circuit-breaker observability for whatever process runs
// the orchestrator pool. It carries none of a dashboard's session/trace/
// chat endpoints — those are out of scope here — but keeps the familiar
// gin-gonic/gin server shape used elsewhere in this codebase.
package opsapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/sentinel/pkg/fabric"
)

// Pinger checks that a backing dependency is reachable. eventstore.Postgres
// satisfies it; tests and the in-memory store wire in a stub.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the operational HTTP server. It owns no business services
// directly — only the two things an operator needs to probe from outside
// the process.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	fabric     *fabric.Fabric
	ready      Pinger
}

// NewServer builds a Server. fab may be nil (breaker endpoint reports an
// empty set); ready may be nil (readyz always reports ready).
func NewServer(fab *fabric.Fabric, ready Pinger) *Server {
	e := gin.New()
	e.Use(gin.Recovery())

	s := &Server{engine: e, fabric: fab, ready: ready}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.healthzHandler)
	s.engine.GET("/readyz", s.readyzHandler)
	s.engine.GET("/debug/breakers", s.breakersHandler)
}

// healthzHandler answers liveness: the process is up and serving requests.
// It checks nothing downstream — that's readyz's job — so an orchestrator
// outage never causes a supervisor to restart a perfectly healthy process.
func (s *Server) healthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// readyzHandler answers readiness: whether the process can currently serve
// incident traffic. With no Pinger wired, the server is always ready.
func (s *Server) readyzHandler(c *gin.Context) {
	if s.ready == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.ready.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// breakersHandler dumps every named channel's current circuit-breaker
// state, for diagnosing a degraded fabric without a dashboard.
func (s *Server) breakersHandler(c *gin.Context) {
	if s.fabric == nil {
		c.JSON(http.StatusOK, gin.H{"channels": gin.H{}})
		return
	}

	states := s.fabric.BreakerState()
	out := make(map[string]string, len(states))
	for name, state := range states {
		out[name] = state.String()
	}
	c.JSON(http.StatusOK, gin.H{"channels": out})
}

// Start serves the operational API on addr. Blocks until Shutdown is
// called or the listener fails.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
