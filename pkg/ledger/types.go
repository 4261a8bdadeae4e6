package ledger

import (
	"encoding/json"
	"time"
)

// Campaign statuses.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusQueued    = "queued"
	CampaignStatusRunning   = "running"
	CampaignStatusCompleted = "completed"
	CampaignStatusFailed    = "failed"
	CampaignStatusCancelled = "cancelled"
)

// PlannedRun statuses.
const (
	RunStatusPending    = "pending"
	RunStatusQueued     = "queued"
	RunStatusDispatched = "dispatched"
	RunStatusRunning    = "running"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusSkipped    = "skipped"
	RunStatusCancelled  = "cancelled"
)

// IsTerminalRunStatus reports whether no further transitions are allowed.
func IsTerminalRunStatus(status string) bool {
	switch status {
	case RunStatusCompleted, RunStatusFailed, RunStatusSkipped, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminalCampaignStatus reports whether a campaign has finished and
// cancel/start requests against it should be no-ops rather than errors.
func IsTerminalCampaignStatus(status string) bool {
	switch status {
	case CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// Campaign mirrors ent/schema.Campaign.
type Campaign struct {
	ID          string
	Name        string
	Config      json.RawMessage
	Status      string
	AgentID     *string
	TotalRuns   int
	Succeeded   int
	Failed      int
	Skipped     int
	Cancelled   int
	CreatedBy   *string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// PlannedRun mirrors ent/schema.PlannedRun.
type PlannedRun struct {
	ID               string
	CampaignID       string
	ModelRef         string
	EngineName       string
	EngineMode       string
	BenchmarkName    string
	SuiteName        string
	Quant            string
	EstimatedSizeGB  float64
	Status           string
	CommandID        *string
	WatchdogDeadline *time.Time
	QueuedAt         *time.Time
	DispatchedAt     *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ErrorMessage     string
	ErrorKind        string
}

// Result mirrors ent/schema.Result.
type Result struct {
	ID                string
	RunID             string
	Passed            bool
	Metrics           json.RawMessage
	RawOutputLocation string
	HardwareSnapshot  json.RawMessage
	ReportedAt        time.Time
}

// StreamEvent mirrors ent/schema.StreamEvent (LogLine/StatusEvent).
type StreamEvent struct {
	ID        string
	StreamID  string
	Sequence  int64
	Kind      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Stream event kinds.
const (
	StreamEventKindLog    = "log"
	StreamEventKindStatus = "status"
)

// CampaignSnapshot is the aggregate-plus-per-run view returned by
// GET /campaigns/{id}.
type CampaignSnapshot struct {
	Campaign Campaign
	Runs     []PlannedRun
}

// TransitionFields carries the optional column updates that accompany a
// status transition. Only non-nil fields are written.
type TransitionFields struct {
	CommandID        *string
	WatchdogDeadline *time.Time
	QueuedAt         *time.Time
	DispatchedAt     *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ErrorMessage     *string
	ErrorKind        *string
}
