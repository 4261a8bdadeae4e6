package api

import (
	"encoding/json"
	"time"

	"github.com/codeready-toolchain/kitt/pkg/ledger"
	"github.com/codeready-toolchain/kitt/pkg/registry"
	"github.com/codeready-toolchain/kitt/pkg/services"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

// ProvisionAgentResponse is returned by POST /agents/provision. RawToken is
// handed back exactly once — it is never retrievable again.
type ProvisionAgentResponse struct {
	AgentID  string `json:"agent_id"`
	RawToken string `json:"raw_token"`
}

// AgentResponse is the JSON projection of a registry.Agent.
type AgentResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Hostname      string          `json:"hostname"`
	Port          int             `json:"port"`
	CPUArch       string          `json:"cpu_arch"`
	GPUSummary    json.RawMessage `json:"gpu_summary"`
	Status        string          `json:"status"`
	LastHeartbeat *time.Time      `json:"last_heartbeat,omitempty"`
	TokenPrefix   string          `json:"token_prefix"`
	KittVersion   string          `json:"kitt_version"`
	RegisteredAt  time.Time       `json:"registered_at"`
}

func agentResponse(a registry.Agent) AgentResponse {
	return AgentResponse{
		ID:            a.ID,
		Name:          a.Name,
		Hostname:      a.Hostname,
		Port:          a.Port,
		CPUArch:       a.CPUArch,
		GPUSummary:    a.GPUSummary,
		Status:        a.Status,
		LastHeartbeat: a.LastHeartbeat,
		TokenPrefix:   a.TokenPrefix,
		KittVersion:   a.KittVersion,
		RegisteredAt:  a.RegisteredAt,
	}
}

// HeartbeatResponse is returned by POST /agents/{name}/heartbeat.
type HeartbeatResponse struct {
	Command *CommandResponse `json:"command"`
}

// CommandResponse is the JSON projection of a dispatch.Command.
type CommandResponse struct {
	CommandID string          `json:"command_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// CampaignResponse is the JSON projection of a ledger.Campaign.
type CampaignResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	AgentID     *string    `json:"agent_id"`
	TotalRuns   int        `json:"total_runs"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Skipped     int        `json:"skipped"`
	Cancelled   int        `json:"cancelled"`
	CreatedBy   *string    `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func campaignResponse(c ledger.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:          c.ID,
		Name:        c.Name,
		Status:      c.Status,
		AgentID:     c.AgentID,
		TotalRuns:   c.TotalRuns,
		Succeeded:   c.Succeeded,
		Failed:      c.Failed,
		Skipped:     c.Skipped,
		Cancelled:   c.Cancelled,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		StartedAt:   c.StartedAt,
		CompletedAt: c.CompletedAt,
	}
}

// CreateCampaignResponse is returned by POST /campaigns.
type CreateCampaignResponse struct {
	ID string `json:"id"`
}

// RunResponse is the JSON projection of a ledger.PlannedRun.
type RunResponse struct {
	ID              string  `json:"id"`
	ModelRef        string  `json:"model_ref"`
	EngineName      string  `json:"engine_name"`
	EngineMode      string  `json:"engine_mode"`
	BenchmarkName   string  `json:"benchmark_name"`
	SuiteName       string  `json:"suite_name"`
	Quant           string  `json:"quant"`
	EstimatedSizeGB float64 `json:"estimated_size_gb"`
	Status          string  `json:"status"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	ErrorKind       string  `json:"error_kind,omitempty"`
}

func runResponse(r ledger.PlannedRun) RunResponse {
	return RunResponse{
		ID:              r.ID,
		ModelRef:        r.ModelRef,
		EngineName:      r.EngineName,
		EngineMode:      r.EngineMode,
		BenchmarkName:   r.BenchmarkName,
		SuiteName:       r.SuiteName,
		Quant:           r.Quant,
		EstimatedSizeGB: r.EstimatedSizeGB,
		Status:          r.Status,
		ErrorMessage:    r.ErrorMessage,
		ErrorKind:       r.ErrorKind,
	}
}

// CampaignSnapshotResponse is returned by GET /campaigns/{id}.
type CampaignSnapshotResponse struct {
	Campaign CampaignResponse `json:"campaign"`
	Runs     []RunResponse    `json:"runs"`
}

func campaignSnapshotResponse(snap ledger.CampaignSnapshot) CampaignSnapshotResponse {
	runs := make([]RunResponse, len(snap.Runs))
	for i, r := range snap.Runs {
		runs[i] = runResponse(r)
	}
	return CampaignSnapshotResponse{Campaign: campaignResponse(snap.Campaign), Runs: runs}
}

// CampaignSummaryResponse is returned by GET /campaigns/{id}/summary.
type CampaignSummaryResponse struct {
	CampaignID      string                      `json:"campaign_id"`
	TopFailureKinds []services.FailureKindCount `json:"top_failure_kinds"`
}

func campaignSummaryResponse(s services.CampaignSummary) CampaignSummaryResponse {
	return CampaignSummaryResponse{CampaignID: s.CampaignID, TopFailureKinds: s.TopFailureKinds}
}
