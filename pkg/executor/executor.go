// Package executor runs the long-lived per-campaign worker: it marches a
// campaign's planned runs in order, dispatches each to its agent, waits for
// a terminal status, and advances the ledger's aggregates until the
// campaign finishes or is cancelled.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/kitt/pkg/dispatch"
	"github.com/codeready-toolchain/kitt/pkg/eventbus"
	"github.com/codeready-toolchain/kitt/pkg/ledger"
	"github.com/google/uuid"
)

// DefaultRunTimeout is the per-run lifecycle watchdog timeout.
const DefaultRunTimeout = 30 * time.Minute

// StatusPayload is the JSON shape published on a run's event-bus topic
// when its status changes — both by the agent's REST callback and by the
// executor's own watchdog.
type StatusPayload struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
}

// Manager owns one goroutine per actively running campaign, registered by
// campaign id in a cancel-func registry guarded by a single mutex.
type Manager struct {
	store      *ledger.Store
	dispatchQ  *dispatch.Queue
	bus        *eventbus.Bus
	runTimeout time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a Manager with the default run timeout.
func New(store *ledger.Store, dispatchQ *dispatch.Queue, bus *eventbus.Bus) *Manager {
	return &Manager{
		store:      store,
		dispatchQ:  dispatchQ,
		bus:        bus,
		runTimeout: DefaultRunTimeout,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// SetRunTimeout overrides DefaultRunTimeout, e.g. from server config.
func (m *Manager) SetRunTimeout(d time.Duration) {
	m.runTimeout = d
}

// Start launches the march goroutine for campaignID if one isn't already
// registered. Safe to call more than once for the same campaign (resume
// after crash recovery) — a second call is a no-op.
func (m *Manager) Start(parent context.Context, campaignID string) {
	m.mu.Lock()
	if _, running := m.cancels[campaignID]; running {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.cancels[campaignID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.unregister(campaignID)
		m.march(ctx, campaignID)
	}()
}

// Cancel requests that campaignID's executor stop enqueueing further runs.
// Returns true if a running executor was found on this process.
func (m *Manager) Cancel(campaignID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[campaignID]; ok {
		cancel()
		return true
	}
	return false
}

// Shutdown cancels every running executor and waits for them to return.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Running reports whether campaignID currently has a registered executor
// on this process.
func (m *Manager) Running(campaignID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cancels[campaignID]
	return ok
}

func (m *Manager) unregister(campaignID string) {
	m.mu.Lock()
	delete(m.cancels, campaignID)
	m.mu.Unlock()
}

// march processes a campaign's pending runs strictly serially: within a
// Campaign Executor, one run dispatches at a time for that campaign on
// that agent.
func (m *Manager) march(ctx context.Context, campaignID string) {
	for {
		campaign, err := m.store.GetCampaign(ctx, campaignID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("executor: load campaign failed", "campaign_id", campaignID, "error", err)
			m.failExecutor(context.WithoutCancel(ctx), campaignID, nil)
			return
		}
		if campaign.Status != ledger.CampaignStatusRunning {
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		pending, err := m.store.ListPendingRunsByCampaign(ctx, campaignID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("executor: list pending runs failed", "campaign_id", campaignID, "error", err)
			m.failExecutor(context.WithoutCancel(ctx), campaignID, campaign.AgentID)
			return
		}
		if len(pending) == 0 {
			m.finishCampaign(ctx, campaignID)
			return
		}

		// Cancellation stops the march — checked here, before the next run
		// is started, and in awaitTerminal, which returns as soon as ctx is
		// done: the current run's status is not awaited further and no
		// further runs are enqueued.
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.runOne(ctx, campaign, pending[0]); err != nil {
			slog.Error("executor: run failed", "campaign_id", campaignID, "run_id", pending[0].ID, "error", err)
		}

		if err := m.store.UpdateCampaignAggregates(ctx, campaignID); err != nil {
			slog.Error("executor: update aggregates failed", "campaign_id", campaignID, "error", err)
		}
	}
}

// runOne dispatches a single run and blocks until it reaches a terminal
// status or the watchdog timeout fires.
func (m *Manager) runOne(ctx context.Context, campaign ledger.Campaign, run ledger.PlannedRun) error {
	if campaign.AgentID == nil {
		return fmt.Errorf("campaign %s has no assigned agent", campaign.ID)
	}

	now := time.Now().UTC()
	if err := m.store.TransitionRun(ctx, run.ID, ledger.RunStatusPending, ledger.RunStatusQueued, ledger.TransitionFields{QueuedAt: &now}); err != nil {
		return fmt.Errorf("queue run: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"run_id":         run.ID,
		"model_ref":      run.ModelRef,
		"engine_name":    run.EngineName,
		"engine_mode":    run.EngineMode,
		"benchmark_name": run.BenchmarkName,
		"suite_name":     run.SuiteName,
		"quant":          run.Quant,
	})
	if err != nil {
		return fmt.Errorf("marshal command payload: %w", err)
	}

	cmd := dispatch.Command{
		ID:        uuid.NewString(),
		AgentID:   *campaign.AgentID,
		RunID:     run.ID,
		Type:      dispatch.CommandRunContainer,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	sub := m.bus.Subscribe(run.ID)
	defer sub.Unsubscribe()

	if err := m.dispatchQ.Enqueue(cmd); err != nil {
		return fmt.Errorf("enqueue command: %w", err)
	}

	deadline := time.Now().UTC().Add(m.runTimeout)
	if err := m.store.SetWatchdogDeadline(ctx, run.ID, deadline); err != nil {
		slog.Warn("executor: failed to record watchdog deadline", "run_id", run.ID, "error", err)
	}

	return m.awaitTerminal(ctx, run.ID, sub, deadline)
}

// awaitTerminal blocks on the run's event-bus topic until a terminal
// status event arrives, the watchdog deadline fires, or ctx is cancelled.
// On timeout the run is transitioned to failed(watchdog), matching §5's
// recovery semantics.
func (m *Manager) awaitTerminal(ctx context.Context, runID string, sub *eventbus.Subscription, deadline time.Time) error {
	for {
		waitCtx, cancel := context.WithDeadline(ctx, deadline)
		evt, err := sub.Next(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return m.failWatchdog(context.WithoutCancel(ctx), runID)
		}

		if evt.Kind != "status" {
			continue
		}
		var status StatusPayload
		if err := json.Unmarshal(evt.Payload, &status); err != nil {
			continue
		}
		if ledger.IsTerminalRunStatus(status.Status) {
			return nil
		}
	}
}

func (m *Manager) failWatchdog(ctx context.Context, runID string) error {
	run, err := m.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if ledger.IsTerminalRunStatus(run.Status) {
		return nil
	}
	msg := "no status update before watchdog deadline"
	kind := string(ledger.ErrorKindWatchdog)
	now := time.Now().UTC()
	return m.store.TransitionRun(ctx, runID, run.Status, ledger.RunStatusFailed, ledger.TransitionFields{
		ErrorMessage: &msg,
		ErrorKind:    &kind,
		CompletedAt:  &now,
	})
}

// finishCampaign transitions a campaign off "running" once march finds no
// more pending runs. Individual run failures are captured per-row and
// counted in the campaign's aggregates; they never turn the campaign itself
// into "failed" — that status is reserved for the executor-fatal path in
// march, where the campaign or run state couldn't even be loaded.
func (m *Manager) finishCampaign(ctx context.Context, campaignID string) {
	campaign, err := m.store.GetCampaign(ctx, campaignID)
	if err != nil {
		slog.Error("executor: load campaign failed", "campaign_id", campaignID, "error", err)
		return
	}

	if err := m.store.TransitionCampaign(ctx, campaignID, ledger.CampaignStatusRunning, ledger.CampaignStatusCompleted, campaign.AgentID); err != nil {
		slog.Error("executor: finish campaign transition failed", "campaign_id", campaignID, "error", err)
	}
}

// failExecutor marks a campaign failed when march itself cannot continue —
// the campaign or run state couldn't be loaded from the ledger — as opposed
// to a run simply finishing in a failed state, which finishCampaign counts
// but does not treat as campaign failure.
func (m *Manager) failExecutor(ctx context.Context, campaignID string, agentID *string) {
	if err := m.store.TransitionCampaign(ctx, campaignID, ledger.CampaignStatusRunning, ledger.CampaignStatusFailed, agentID); err != nil {
		slog.Error("executor: fail campaign transition failed", "campaign_id", campaignID, "error", err)
	}
}
