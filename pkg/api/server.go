// Package api provides the KITT HTTP API surface: agent registration and
// heartbeat, campaign CRUD, log/status ingestion, and SSE event delivery.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/kitt/pkg/dispatch"
	"github.com/codeready-toolchain/kitt/pkg/eventbus"
	"github.com/codeready-toolchain/kitt/pkg/executor"
	"github.com/codeready-toolchain/kitt/pkg/ledger"
	"github.com/codeready-toolchain/kitt/pkg/registry"
	"github.com/codeready-toolchain/kitt/pkg/services"
)

// DefaultLivenessWindow is used when the server config doesn't override it.
const DefaultLivenessWindow = 30 * time.Second

// Server is the HTTP API server binding the orchestration core together.
type Server struct {
	engine *gin.Engine
	http   *http.Server

	store          *ledger.Store
	agents         *registry.Store
	dispatchQ      *dispatch.Queue
	bus            *eventbus.Bus
	execMgr        *executor.Manager
	summary        *services.CampaignSummaryService
	adminToken     string
	livenessWindow time.Duration

	metrics Metrics // nil until set; no-op if unset
}

// Metrics is the narrow interface pkg/api needs from pkg/metrics, kept here
// (rather than importing pkg/metrics' concrete type) so handler tests don't
// need a Prometheus registry.
type Metrics interface {
	ObserveRequest(method, path string, status int, dur time.Duration)
}

// NewServer constructs a Server with its required collaborators and
// registers all routes. Optional collaborators are wired via SetMetrics.
func NewServer(store *ledger.Store, agents *registry.Store, dispatchQ *dispatch.Queue, bus *eventbus.Bus, execMgr *executor.Manager, adminToken string) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:         engine,
		store:          store,
		agents:         agents,
		dispatchQ:      dispatchQ,
		bus:            bus,
		execMgr:        execMgr,
		summary:        services.NewCampaignSummaryService(store),
		adminToken:     adminToken,
		livenessWindow: DefaultLivenessWindow,
	}
	engine.Use(s.requestLogger())
	s.setupRoutes()
	return s
}

// SetLivenessWindow overrides DefaultLivenessWindow.
func (s *Server) SetLivenessWindow(d time.Duration) {
	s.livenessWindow = d
}

// SetMetrics wires a metrics sink; requests are timed whether or not this is
// called, but only reported once a sink is present.
func (s *Server) SetMetrics(m Metrics) {
	s.metrics = m
}

// ValidateWiring checks that required collaborators are non-nil, so a
// wiring gap in main fails fast at startup instead of panicking mid-request.
func (s *Server) ValidateWiring() error {
	var errs []error
	if s.store == nil {
		errs = append(errs, fmt.Errorf("ledger store not set"))
	}
	if s.agents == nil {
		errs = append(errs, fmt.Errorf("agent registry not set"))
	}
	if s.dispatchQ == nil {
		errs = append(errs, fmt.Errorf("dispatch queue not set"))
	}
	if s.bus == nil {
		errs = append(errs, fmt.Errorf("event bus not set"))
	}
	if s.execMgr == nil {
		errs = append(errs, fmt.Errorf("executor manager not set"))
	}
	if s.adminToken == "" {
		errs = append(errs, fmt.Errorf("admin token not set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("server wiring incomplete: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	agents := s.engine.Group("/agents")
	agents.POST("/provision", s.adminAuth(), s.provisionAgentHandler)
	agents.GET("", s.adminAuth(), s.listAgentsHandler)
	agents.GET("/:id", s.adminAuth(), s.getAgentHandler)
	agents.POST("/:name/heartbeat", s.agentAuth(), s.heartbeatHandler)
	agents.POST("/:name/results", s.agentAuth(), s.resultsHandler)

	s.engine.POST("/commands/:command_id/log", s.agentAuth(), s.appendLogHandler)

	campaigns := s.engine.Group("/campaigns")
	campaigns.POST("", s.adminAuth(), s.createCampaignHandler)
	campaigns.POST("/:id/start", s.adminAuth(), s.startCampaignHandler)
	campaigns.POST("/:id/cancel", s.adminAuth(), s.cancelCampaignHandler)
	campaigns.GET("/:id", s.adminAuth(), s.getCampaignHandler)
	campaigns.GET("/:id/summary", s.adminAuth(), s.getCampaignSummaryHandler)

	s.engine.GET("/events", s.adminAuth(), s.eventsHandler)
}

// Handler exposes the underlying gin.Engine, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	return s.http.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, used
// by tests that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.http = &http.Server{Handler: s.engine}
	return s.http.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// requestLogger records per-request latency with slog, matching the
// teacher's structured logging conventions, and reports to Metrics if set.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		dur := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), dur)
		}
	}
}
