// Package dispatch is the per-agent command FIFO: the Campaign Executor
// enqueues one Command per run it hands to an agent, and the agent's next
// heartbeat dequeues at most one.
package dispatch

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// DefaultCapacity is the recommended per-agent queue depth.
const DefaultCapacity = 64

// Command types.
const (
	CommandRunContainer  = "run_container"
	CommandStopContainer = "stop_container"
	CommandCheckDocker   = "check_docker"
	CommandRunTest       = "run_test"
)

// ErrQueueFull is returned by Enqueue when an agent's queue is at capacity
// — a sign the agent has stopped heartbeating, since dequeue keeps it
// near-empty under normal operation.
var ErrQueueFull = errors.New("dispatch: agent queue full")

// Command is a single unit of work handed to an agent.
type Command struct {
	ID        string          `json:"command_id"`
	AgentID   string          `json:"agent_id"`
	RunID     string          `json:"run_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue is a registry of per-agent bounded FIFOs. Each agent's queue has
// its own mutex, so enqueue and dequeue for one agent never wait on another
// agent's queue; the Queue-wide mutex is held only while looking up or
// lazily creating an agent's entry in the map.
type Queue struct {
	mu       sync.Mutex
	perAgent map[string]*agentQueue
	capacity int
}

type agentQueue struct {
	mu      sync.Mutex
	pending []Command
}

// New constructs an empty dispatch Queue with DefaultCapacity per agent.
func New() *Queue {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity is New with an explicit per-agent capacity.
func NewWithCapacity(capacity int) *Queue {
	return &Queue{perAgent: make(map[string]*agentQueue), capacity: capacity}
}

// Enqueue appends cmd to its agent's FIFO. Lazily creates the per-agent
// queue on first use.
func (q *Queue) Enqueue(cmd Command) error {
	aq := q.queueFor(cmd.AgentID)

	aq.mu.Lock()
	defer aq.mu.Unlock()
	if len(aq.pending) >= q.capacity {
		return ErrQueueFull
	}
	aq.pending = append(aq.pending, cmd)
	return nil
}

// Dequeue pops the next command for agentID, or (Command{}, false) if
// empty. Called from the heartbeat handler — the caller is responsible
// for performing the ledger pending/queued -> dispatched transition for
// the returned command's run in the same request, so a command is handed
// out to at most one heartbeat.
func (q *Queue) Dequeue(agentID string) (Command, bool) {
	aq := q.queueFor(agentID)

	aq.mu.Lock()
	defer aq.mu.Unlock()
	if len(aq.pending) == 0 {
		return Command{}, false
	}
	cmd := aq.pending[0]
	aq.pending = aq.pending[1:]
	return cmd, true
}

// Requeue puts cmd back at the front of its agent's queue, ahead of any
// pending commands. The heartbeat handler does not call it: a command
// whose ledger transition fails after Dequeue is not put back.
func (q *Queue) Requeue(cmd Command) error {
	aq := q.queueFor(cmd.AgentID)

	aq.mu.Lock()
	defer aq.mu.Unlock()
	if len(aq.pending) >= q.capacity {
		return ErrQueueFull
	}
	aq.pending = append([]Command{cmd}, aq.pending...)
	return nil
}

// Len reports how many commands are pending for agentID.
func (q *Queue) Len(agentID string) int {
	aq := q.queueFor(agentID)
	aq.mu.Lock()
	defer aq.mu.Unlock()
	return len(aq.pending)
}

// RemoveForRun drops the first pending command referencing runID from
// agentID's queue and reports whether one was found. The results handler
// calls it once a run reports a terminal status; campaign cancellation
// does not call it.
func (q *Queue) RemoveForRun(agentID, runID string) bool {
	aq := q.queueFor(agentID)

	aq.mu.Lock()
	defer aq.mu.Unlock()
	for i, c := range aq.pending {
		if c.RunID == runID {
			aq.pending = append(aq.pending[:i], aq.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) queueFor(agentID string) *agentQueue {
	q.mu.Lock()
	defer q.mu.Unlock()
	aq, ok := q.perAgent[agentID]
	if !ok {
		aq = &agentQueue{}
		q.perAgent[agentID] = aq
	}
	return aq
}
