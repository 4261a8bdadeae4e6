package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-resty/resty/v2"
)

// maxRetryWait is the per-attempt cap on the agent retry policy:
// exponential backoff with jitter, capped at 30s per attempt, no give-up.
const maxRetryWait = 30 * time.Second

// Client issues the agent-side REST calls back to the server. Every call
// retries indefinitely on any failure (a transport error or any non-2xx
// response, 4xx included) with capped exponential backoff, matching the
// "no give-up" retry policy; a caller that wants to stop retrying cancels
// the context instead.
type Client struct {
	http  *resty.Client
	agent string
}

// NewClient builds a Client authenticated with the agent's provisioned
// token. baseURL is the server's root (e.g. "https://kitt.example.com").
func NewClient(baseURL, agentName, token string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetRetryCount(0) // this package drives its own retry loop below;
	// resty's own built-in retrier does not distinguish "keep retrying
	// forever" from "give up after N", and this client always needs the former.
	return &Client{http: http, agent: agentName}
}

// withRetry runs fn, retrying forever with jittered exponential backoff
// (1s doubling per attempt, cap 30s, each wait jittered into [wait/2, wait])
// until it succeeds or ctx is cancelled.
func withRetry(ctx context.Context, fn func() error) error {
	attempt := 0
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := time.Duration(1<<attempt) * time.Second
		if wait > maxRetryWait || wait <= 0 {
			wait = maxRetryWait
		}
		wait = wait/2 + time.Duration(rand.Int64N(int64(wait/2+1)))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		attempt++
	}
}

// Heartbeat reports liveness and capabilities, returning the next command
// payload or nil if there is none.
func (c *Client) Heartbeat(ctx context.Context, agentID string, caps Capabilities, active []string) (*HeartbeatResult, error) {
	var result HeartbeatResult
	err := withRetry(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(map[string]any{
				"agent_id":        agentID,
				"capabilities":    caps,
				"active_commands": active,
			}).
			SetResult(&result).
			Post(fmt.Sprintf("/agents/%s/heartbeat", c.agent))
		return checkResponse(resp, err)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// HeartbeatResult mirrors the server's heartbeat response.
type HeartbeatResult struct {
	Command *CommandPayload `json:"command"`
}

// CommandPayload is the command handed out by a heartbeat.
type CommandPayload struct {
	CommandID string          `json:"command_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// AppendLog ships one log line for a command.
func (c *Client) AppendLog(ctx context.Context, commandID, line string) error {
	return withRetry(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(map[string]string{"line": line}).
			Post(fmt.Sprintf("/commands/%s/log", commandID))
		return checkResponse(resp, err)
	})
}

// ReportResult sends the terminal status for a command.
func (c *Client) ReportResult(ctx context.Context, commandID, status, errMsg string, resultPayload json.RawMessage) error {
	return withRetry(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(map[string]any{
				"command_id":     commandID,
				"status":         status,
				"error":          errMsg,
				"result_payload": resultPayload,
			}).
			Post(fmt.Sprintf("/agents/%s/results", c.agent))
		return checkResponse(resp, err)
	})
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("server returned %s: %s", resp.Status(), resp.String())
	}
	return nil
}
