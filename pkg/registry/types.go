// Package registry identifies agents, verifies their bearer tokens, and
// tracks liveness. Persistence is hand-written SQL against the agents
// table, in the same style as pkg/ledger.
package registry

import (
	"encoding/json"
	"errors"
	"time"
)

// Agent statuses.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

var (
	// ErrNameTaken is returned by Provision when an agent with the same
	// name already exists. Treated as fatal: the caller must pick a
	// different name, not retry.
	ErrNameTaken = errors.New("registry: agent name already registered")
	// ErrUnauthorized is returned by Verify when the presented token does
	// not match the stored hash of any agent that is still registered.
	ErrUnauthorized = errors.New("registry: invalid token")
	ErrNotFound     = errors.New("registry: agent not found")
)

// Agent is the persisted record for a benchmarking agent.
type Agent struct {
	ID             string
	Name           string
	Hostname       string
	Port           int
	CPUArch        string
	GPUSummary     json.RawMessage
	Status         string
	LastHeartbeat  *time.Time
	TokenHash      string
	TokenPrefix    string
	KittVersion    string
	RegisteredAt   time.Time
	UnregisteredAt *time.Time
}

// IsOnline reports whether the agent's last heartbeat is within l of now:
// online while now - last_heartbeat <= l.
func (a Agent) IsOnline(now time.Time, l time.Duration) bool {
	if a.LastHeartbeat == nil {
		return false
	}
	return now.Sub(*a.LastHeartbeat) <= l
}

// HeartbeatDetails carries the capability fields an agent reports on every
// heartbeat call.
type HeartbeatDetails struct {
	CPUArch     string
	GPUSummary  json.RawMessage
	KittVersion string
}
