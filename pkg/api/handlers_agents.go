package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/kitt/pkg/ledger"
	"github.com/codeready-toolchain/kitt/pkg/registry"
)

// provisionAgentHandler handles POST /agents/provision.
func (s *Server) provisionAgentHandler(c *gin.Context) {
	var req ProvisionAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	agentID, rawToken, err := s.agents.Provision(c.Request.Context(), req.Name, req.Hostname, req.Port)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ProvisionAgentResponse{AgentID: agentID, RawToken: rawToken})
}

// listAgentsHandler handles GET /agents.
func (s *Server) listAgentsHandler(c *gin.Context) {
	agents, err := s.agents.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]AgentResponse, len(agents))
	for i, a := range agents {
		out[i] = agentResponse(a)
	}
	c.JSON(http.StatusOK, out)
}

// getAgentHandler handles GET /agents/{id}.
func (s *Server) getAgentHandler(c *gin.Context) {
	a, err := s.agents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agentResponse(a))
}

// heartbeatHandler handles POST /agents/{name}/heartbeat. It records
// liveness/capabilities and, unless the agent reports active commands
// (busy back-pressure per spec §5), dequeues and returns its next command.
func (s *Server) heartbeatHandler(c *gin.Context) {
	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	agentID := agentIDFromContext(c)

	err := s.agents.Heartbeat(c.Request.Context(), agentID, registry.HeartbeatDetails{
		CPUArch:     req.Capabilities.CPUArch,
		GPUSummary:  req.Capabilities.GPUSummary,
		KittVersion: req.Capabilities.KittVersion,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if len(req.ActiveCommands) > 0 {
		c.JSON(http.StatusOK, HeartbeatResponse{Command: nil})
		return
	}

	cmd, ok := s.dispatchQ.Dequeue(agentID)
	if !ok {
		c.JSON(http.StatusOK, HeartbeatResponse{Command: nil})
		return
	}

	if err := s.store.TransitionRun(c.Request.Context(), cmd.RunID, ledger.RunStatusQueued, ledger.RunStatusDispatched,
		ledger.TransitionFields{CommandID: &cmd.ID}); err != nil {
		// The handout already happened but the command is not returned:
		// the agent gets an error response, and the per-run watchdog
		// resolves the run later, per spec §4.E's note that a lost handout
		// response is recovered by the watchdog rather than retried here.
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, HeartbeatResponse{Command: &CommandResponse{
		CommandID: cmd.ID,
		Type:      cmd.Type,
		Payload:   cmd.Payload,
	}})
}

// resultsHandler handles POST /agents/{name}/results. It accepts both the
// non-terminal "running" status transition (step 3a of the agent command
// loop) and the terminal completed/failed report; duplicate terminal
// reports for an already-settled run are no-ops.
func (s *Server) resultsHandler(c *gin.Context) {
	var req ResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	run, err := s.findRunByCommand(c, req.CommandID)
	if err != nil {
		respondError(c, err)
		return
	}

	if ledger.IsTerminalRunStatus(run.Status) {
		c.Status(http.StatusOK)
		return
	}

	target := req.Status
	fields := ledger.TransitionFields{}
	if ledger.IsTerminalRunStatus(target) {
		now := time.Now().UTC()
		fields.CompletedAt = &now
	} else {
		now := time.Now().UTC()
		fields.StartedAt = &now
	}
	if req.Error != "" {
		fields.ErrorMessage = &req.Error
		kind := string(ledger.ErrorKindEngineError)
		fields.ErrorKind = &kind
	}

	if err := s.store.TransitionRun(c.Request.Context(), run.ID, run.Status, target, fields); err != nil {
		respondError(c, err)
		return
	}

	if target == ledger.RunStatusCompleted {
		result := ledger.Result{RunID: run.ID, Passed: true, Metrics: req.ResultPayload}
		if _, err := s.store.InsertResult(c.Request.Context(), result); err != nil {
			respondError(c, err)
			return
		}
	}

	statusPayload, _ := json.Marshal(map[string]string{"status": target, "error_kind": run.ErrorKind})
	s.bus.Publish(run.ID, "status", statusPayload)
	s.bus.Publish(run.CampaignID, "status", statusPayload)

	if ledger.IsTerminalRunStatus(target) {
		s.dispatchQ.RemoveForRun(agentIDFromContext(c), run.ID)
	}

	c.Status(http.StatusOK)
}

func (s *Server) findRunByCommand(c *gin.Context, commandID string) (ledger.PlannedRun, error) {
	return s.store.GetRunByCommandID(c.Request.Context(), commandID)
}
