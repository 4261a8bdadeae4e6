package agentloop

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultHeartbeatInterval is the recommended 5-10s heartbeat cadence.
const DefaultHeartbeatInterval = 7 * time.Second

// Runner drives the agent's single primary loop: heartbeat, fetch,
// dispatch a worker. Uses a select{ctx.Done, ticker.C} loop driven by a
// jittered ticker instead of DB polling.
type Runner struct {
	client            *Client
	agentID           string
	hostArch          string
	heartbeatInterval time.Duration
	gpu               GPUSummary

	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

// NewRunner constructs a Runner. agentID is the ID returned by
// provisioning; it is sent unchanged on every heartbeat and is not learned
// from or updated by heartbeat responses.
func NewRunner(client *Client, agentID, hostArch string, gpu GPUSummary) *Runner {
	return &Runner{
		client:            client,
		agentID:           agentID,
		hostArch:          hostArch,
		heartbeatInterval: DefaultHeartbeatInterval,
		gpu:               gpu,
		active:            make(map[string]struct{}),
	}
}

// SetHeartbeatInterval overrides DefaultHeartbeatInterval.
func (r *Runner) SetHeartbeatInterval(d time.Duration) { r.heartbeatInterval = d }

// Run blocks, heartbeating until ctx is cancelled, then waits for any
// in-flight command workers to finish cleanup before returning.
func (r *Runner) Run(ctx context.Context) {
	log := slog.With("agent_id", r.agentID)
	log.Info("agentloop: starting")

	ticker := time.NewTicker(r.jitteredInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("agentloop: shutting down, waiting for in-flight commands")
			r.wg.Wait()
			return
		case <-ticker.C:
			r.tick(ctx)
			ticker.Reset(r.jitteredInterval())
		}
	}
}

func (r *Runner) jitteredInterval() time.Duration {
	base := r.heartbeatInterval
	jitter := base / 4
	if jitter <= 0 {
		return base
	}
	return base - jitter + time.Duration(rand.Int64N(int64(2*jitter)))
}

func (r *Runner) tick(ctx context.Context) {
	caps, err := DetectCapabilities(ctx, r.gpu)
	if err != nil {
		slog.Warn("agentloop: capability detection degraded", "error", err)
	}

	result, err := r.client.Heartbeat(ctx, r.agentID, caps, r.activeCommandIDs())
	if err != nil {
		slog.Warn("agentloop: heartbeat failed", "error", err)
		return
	}
	if result.Command == nil {
		return
	}

	r.spawn(ctx, *result.Command)
}

func (r *Runner) activeCommandIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.active))
	for id := range r.active {
		out = append(out, id)
	}
	return out
}

func (r *Runner) spawn(ctx context.Context, cmd CommandPayload) {
	r.mu.Lock()
	r.active[cmd.CommandID] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.active, cmd.CommandID)
			r.mu.Unlock()
		}()

		worker := NewWorker(r.client, r.hostArch)
		worker.Execute(ctx, cmd)
	}()
}
