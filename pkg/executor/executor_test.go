package executor_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/codeready-toolchain/kitt/pkg/dispatch"
	"github.com/codeready-toolchain/kitt/pkg/eventbus"
	"github.com/codeready-toolchain/kitt/pkg/executor"
	"github.com/codeready-toolchain/kitt/pkg/ledger"
	testdb "github.com/codeready-toolchain/kitt/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T) (*ledger.Store, *dispatch.Queue, *eventbus.Bus, *executor.Manager) {
	t.Helper()
	client := testdb.NewTestClient(t)
	store := ledger.NewStore(client.DB())
	dq := dispatch.New()
	bus := eventbus.New()
	mgr := executor.New(store, dq, bus)
	return store, dq, bus, mgr
}

func setupRunningCampaign(t *testing.T, store *ledger.Store, runCount int) (string, []ledger.PlannedRun) {
	t.Helper()
	ctx := context.Background()

	campaignID, err := store.CreateCampaign(ctx, "c1", json.RawMessage(`{}`), nil)
	require.NoError(t, err)

	runs := make([]ledger.PlannedRun, runCount)
	for i := range runs {
		runs[i] = ledger.PlannedRun{
			CampaignID: campaignID, ModelRef: "m", EngineName: "e", EngineMode: "docker",
			BenchmarkName: "bench", Quant: "bf16", EstimatedSizeGB: float64(i),
		}
	}
	require.NoError(t, store.InsertPlannedRuns(ctx, runs))

	agent := "agent-1"
	require.NoError(t, store.TransitionCampaign(ctx, campaignID, ledger.CampaignStatusDraft, ledger.CampaignStatusQueued, nil))
	require.NoError(t, store.TransitionCampaign(ctx, campaignID, ledger.CampaignStatusQueued, ledger.CampaignStatusRunning, &agent))

	stored, err := store.ListRunsByCampaign(ctx, campaignID)
	require.NoError(t, err)
	return campaignID, stored
}

func awaitCondition(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for condition")
		default:
			if condition() {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestExecutorDispatchesAndCompletesOnAgentStatus(t *testing.T) {
	store, dq, bus, mgr := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	campaignID, runs := setupRunningCampaign(t, store, 1)

	mgr.Start(ctx, campaignID)
	defer mgr.Shutdown()

	var cmd dispatch.Command
	awaitCondition(t, 2*time.Second, func() bool {
		c, ok := dq.Dequeue("agent-1")
		if ok {
			cmd = c
			return true
		}
		return false
	})
	assert.Equal(t, runs[0].ID, cmd.RunID)

	statusPayload, err := json.Marshal(executor.StatusPayload{Status: ledger.RunStatusCompleted})
	require.NoError(t, err)
	bus.Publish(runs[0].ID, "status", statusPayload)

	awaitCondition(t, 2*time.Second, func() bool {
		c, err := store.GetCampaign(ctx, campaignID)
		require.NoError(t, err)
		return c.Status == ledger.CampaignStatusCompleted
	})

	run, err := store.GetRun(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RunStatusQueued, run.Status, "executor only dispatches; terminal transition is the agent callback's job")
}

func TestExecutorWatchdogFailsStaleRun(t *testing.T) {
	store, dq, _, mgr := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	campaignID, runs := setupRunningCampaign(t, store, 1)
	mgr.SetRunTimeout(50 * time.Millisecond)

	mgr.Start(ctx, campaignID)
	defer mgr.Shutdown()

	awaitCondition(t, time.Second, func() bool {
		_, ok := dq.Dequeue("agent-1")
		return ok
	})

	awaitCondition(t, 2*time.Second, func() bool {
		run, err := store.GetRun(ctx, runs[0].ID)
		require.NoError(t, err)
		return run.Status == ledger.RunStatusFailed
	})

	run, err := store.GetRun(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "watchdog", run.ErrorKind)
}

func TestExecutorStartIsIdempotent(t *testing.T) {
	store, _, _, mgr := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	campaignID, _ := setupRunningCampaign(t, store, 1)

	mgr.Start(ctx, campaignID)
	mgr.Start(ctx, campaignID)
	defer mgr.Shutdown()

	assert.True(t, mgr.Running(campaignID))
}
