// Package apiclient is kittctl's thin REST client over the orchestrator's
// admin API surface.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Client issues admin-authenticated REST calls to a kitt-server.
type Client struct {
	http *resty.Client
}

// New builds a Client. A zero-value token is valid; requests will simply be
// rejected by the server with 401.
func New(baseURL, token string) *Client {
	http := resty.New().SetBaseURL(baseURL)
	if token != "" {
		http = http.SetAuthToken(token)
	}
	return &Client{http: http}
}

// RemoteError wraps a non-2xx response, distinguished from a transport-level
// error so kittctl can map it to exit code 2 ("remote error") per the CLI's
// exit-code contract.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &RemoteError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

// Agent is the JSON projection of an agent, as returned by the server.
type Agent struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Hostname      string          `json:"hostname"`
	Port          int             `json:"port"`
	CPUArch       string          `json:"cpu_arch"`
	GPUSummary    json.RawMessage `json:"gpu_summary"`
	Status        string          `json:"status"`
	LastHeartbeat *string         `json:"last_heartbeat,omitempty"`
	KittVersion   string          `json:"kitt_version"`
	RegisteredAt  string          `json:"registered_at"`
}

// ListAgents calls GET /agents.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	resp, err := c.http.R().SetContext(ctx).SetResult(&agents).Get("/agents")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return agents, nil
}

// Campaign is the JSON projection of a campaign's aggregate state.
type Campaign struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	AgentID     *string `json:"agent_id"`
	TotalRuns   int     `json:"total_runs"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	Cancelled   int     `json:"cancelled"`
	CreatedAt   string  `json:"created_at"`
	StartedAt   *string `json:"started_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// Run is the JSON projection of one planned run within a campaign.
type Run struct {
	ID            string `json:"id"`
	ModelRef      string `json:"model_ref"`
	EngineName    string `json:"engine_name"`
	BenchmarkName string `json:"benchmark_name"`
	Quant         string `json:"quant"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// CampaignSnapshot is the body of GET /campaigns/{id}.
type CampaignSnapshot struct {
	Campaign Campaign `json:"campaign"`
	Runs     []Run    `json:"runs"`
}

// CreateCampaign calls POST /campaigns with a raw config blob and returns
// the new campaign's ID.
func (c *Client) CreateCampaign(ctx context.Context, name string, config json.RawMessage) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"name": name, "config": config}).
		SetResult(&out).
		Post("/campaigns")
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}
	return out.ID, nil
}

// StartCampaign calls POST /campaigns/{id}/start, assigning agentID as the
// execution target.
func (c *Client) StartCampaign(ctx context.Context, campaignID, agentID string) (Campaign, error) {
	var out Campaign
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"agent_id": agentID}).
		SetResult(&out).
		Post(fmt.Sprintf("/campaigns/%s/start", campaignID))
	if err := checkResponse(resp, err); err != nil {
		return Campaign{}, err
	}
	return out, nil
}

// GetCampaignSnapshot calls GET /campaigns/{id}.
func (c *Client) GetCampaignSnapshot(ctx context.Context, campaignID string) (CampaignSnapshot, error) {
	var out CampaignSnapshot
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(fmt.Sprintf("/campaigns/%s", campaignID))
	if err := checkResponse(resp, err); err != nil {
		return CampaignSnapshot{}, err
	}
	return out, nil
}

// CancelCampaign calls POST /campaigns/{id}/cancel.
func (c *Client) CancelCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	var out Campaign
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Post(fmt.Sprintf("/campaigns/%s/cancel", campaignID))
	if err := checkResponse(resp, err); err != nil {
		return Campaign{}, err
	}
	return out, nil
}
