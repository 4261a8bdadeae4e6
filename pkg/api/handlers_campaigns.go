package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/kitt/pkg/campaignconfig"
	"github.com/codeready-toolchain/kitt/pkg/ledger"
	"github.com/codeready-toolchain/kitt/pkg/planner"
)

// createCampaignHandler handles POST /campaigns. The campaign is created in
// draft state; no runs are planned and no agent is assigned until start.
func (s *Server) createCampaignHandler(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	cfg, err := campaignconfig.Parse(req.Config)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	author := extractAuthor(c)
	id, err := s.store.CreateCampaign(c.Request.Context(), req.Name, req.Config, &author)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateCampaignResponse{ID: id})
}

// startCampaignHandler handles POST /campaigns/{id}/start: plans runs from
// the campaign's config, assigns the target agent, and spawns the Executor.
func (s *Server) startCampaignHandler(c *gin.Context) {
	var req StartCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	campaignID := c.Param("id")
	campaign, err := s.store.GetCampaign(c.Request.Context(), campaignID)
	if err != nil {
		respondError(c, err)
		return
	}

	cfg, err := campaignconfig.Parse(campaign.Config)
	if err != nil {
		respondError(c, err)
		return
	}

	runs, skipped, err := planner.Plan(c.Request.Context(), campaignID, cfg, planner.DefaultDiscoverer{})
	if err != nil {
		respondError(c, err)
		return
	}
	for _, sk := range skipped {
		evt, _ := json.Marshal(map[string]string{"model": sk.Model, "engine": sk.Engine, "reason": sk.Reason})
		s.bus.Publish(campaignID, "status", evt)
	}

	if err := s.store.TransitionCampaign(c.Request.Context(), campaignID, ledger.CampaignStatusDraft, ledger.CampaignStatusQueued, nil); err != nil {
		respondError(c, err)
		return
	}
	if err := s.store.InsertPlannedRuns(c.Request.Context(), runs); err != nil {
		respondError(c, err)
		return
	}
	for _, r := range runs {
		if !ledger.IsTerminalRunStatus(r.Status) {
			continue
		}
		evt, _ := json.Marshal(map[string]string{"status": r.Status, "error_kind": r.ErrorKind})
		s.bus.Publish(r.ID, "status", evt)
		s.bus.Publish(campaignID, "status", evt)
	}
	if err := s.store.UpdateCampaignAggregates(c.Request.Context(), campaignID); err != nil {
		respondError(c, err)
		return
	}

	agentID := req.AgentID
	if err := s.store.TransitionCampaign(c.Request.Context(), campaignID, ledger.CampaignStatusQueued, ledger.CampaignStatusRunning, &agentID); err != nil {
		respondError(c, err)
		return
	}

	s.execMgr.Start(context.WithoutCancel(c.Request.Context()), campaignID)

	updated, err := s.store.GetCampaign(c.Request.Context(), campaignID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaignResponse(updated))
}

// cancelCampaignHandler handles POST /campaigns/{id}/cancel. Cancellation
// stops the Executor, which stops awaiting the current run's status and
// enqueues no further runs, and marks every non-terminal run of the
// campaign cancelled, the run in flight included; a later report from the
// agent for that run is acknowledged as a no-op. A command still queued
// for the agent is not removed from the dispatch queue.
func (s *Server) cancelCampaignHandler(c *gin.Context) {
	campaignID := c.Param("id")

	campaign, err := s.store.GetCampaign(c.Request.Context(), campaignID)
	if err != nil {
		respondError(c, err)
		return
	}
	if ledger.IsTerminalCampaignStatus(campaign.Status) {
		c.JSON(http.StatusOK, campaignResponse(campaign))
		return
	}

	s.execMgr.Cancel(campaignID)

	if err := s.store.CancelPendingRuns(c.Request.Context(), campaignID); err != nil {
		respondError(c, err)
		return
	}
	if err := s.store.TransitionCampaign(c.Request.Context(), campaignID, campaign.Status, ledger.CampaignStatusCancelled, campaign.AgentID); err != nil {
		respondError(c, err)
		return
	}
	if err := s.store.UpdateCampaignAggregates(c.Request.Context(), campaignID); err != nil {
		respondError(c, err)
		return
	}

	updated, err := s.store.GetCampaign(c.Request.Context(), campaignID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaignResponse(updated))
}

// getCampaignHandler handles GET /campaigns/{id}, the aggregate-plus-per-run
// snapshot.
func (s *Server) getCampaignHandler(c *gin.Context) {
	snap, err := s.store.SnapshotCampaign(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaignSnapshotResponse(snap))
}

// getCampaignSummaryHandler handles GET /campaigns/{id}/summary, the
// top-three-failure-kinds breakdown computed from the campaign's runs.
func (s *Server) getCampaignSummaryHandler(c *gin.Context) {
	summary, err := s.summary.Summarize(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaignSummaryResponse(summary))
}
