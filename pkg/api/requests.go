package api

import "encoding/json"

// ProvisionAgentRequest is the body of POST /agents/provision.
type ProvisionAgentRequest struct {
	Name     string `json:"name" binding:"required"`
	Hostname string `json:"hostname" binding:"required"`
	Port     int    `json:"port"`
}

// Capabilities mirrors what the agent reports every heartbeat.
type Capabilities struct {
	CPUArch     string          `json:"cpu_arch"`
	GPUSummary  json.RawMessage `json:"gpu_summary"`
	KittVersion string          `json:"kitt_version"`
}

// HeartbeatRequest is the body of POST /agents/{name}/heartbeat.
type HeartbeatRequest struct {
	AgentID        string       `json:"agent_id" binding:"required"`
	Capabilities   Capabilities `json:"capabilities"`
	ActiveCommands []string     `json:"active_commands"`
}

// ResultsRequest is the body of POST /agents/{name}/results.
type ResultsRequest struct {
	CommandID     string          `json:"command_id" binding:"required"`
	Status        string          `json:"status" binding:"required"`
	Error         string          `json:"error"`
	ResultPayload json.RawMessage `json:"result_payload"`
}

// AppendLogRequest is the body of POST /commands/{command_id}/log.
type AppendLogRequest struct {
	Line string `json:"line" binding:"required"`
}

// CreateCampaignRequest is the body of POST /campaigns.
type CreateCampaignRequest struct {
	Name   string          `json:"name" binding:"required"`
	Config json.RawMessage `json:"config" binding:"required"`
}

// StartCampaignRequest is the body of POST /campaigns/{id}/start. The
// target agent is chosen at start time, not at creation — a draft campaign
// has no agent assignment until it is queued to run.
type StartCampaignRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}
