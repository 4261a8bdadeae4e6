package ledger_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/codeready-toolchain/kitt/pkg/ledger"
	testdb "github.com/codeready-toolchain/kitt/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ledger.Store {
	t.Helper()
	client := testdb.NewTestClient(t)
	return ledger.NewStore(client.DB())
}

func TestCreateAndGetCampaign(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateCampaign(ctx, "nightly sweep", json.RawMessage(`{"models":["a"]}`), nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	c, err := store.GetCampaign(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "nightly sweep", c.Name)
	assert.Equal(t, ledger.CampaignStatusDraft, c.Status)
	assert.Equal(t, 0, c.TotalRuns)
}

func TestGetCampaignNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.GetCampaign(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestTransitionCampaignCompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateCampaign(ctx, "c1", json.RawMessage(`{}`), nil)
	require.NoError(t, err)

	agent := "agent-1"
	require.NoError(t, store.TransitionCampaign(ctx, id, ledger.CampaignStatusDraft, ledger.CampaignStatusQueued, nil))
	require.NoError(t, store.TransitionCampaign(ctx, id, ledger.CampaignStatusQueued, ledger.CampaignStatusRunning, &agent))

	c, err := store.GetCampaign(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.CampaignStatusRunning, c.Status)
	require.NotNil(t, c.AgentID)
	assert.Equal(t, agent, *c.AgentID)
	assert.NotNil(t, c.StartedAt)

	// Stale transition loses the race.
	err = store.TransitionCampaign(ctx, id, ledger.CampaignStatusQueued, ledger.CampaignStatusRunning, &agent)
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestInsertPlannedRunsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	campaignID, err := store.CreateCampaign(ctx, "c1", json.RawMessage(`{}`), nil)
	require.NoError(t, err)

	run := ledger.PlannedRun{
		CampaignID:      campaignID,
		ModelRef:        "llama-3-8b",
		EngineName:      "vllm",
		EngineMode:      "docker",
		BenchmarkName:   "mmlu",
		EstimatedSizeGB: 16,
	}

	require.NoError(t, store.InsertPlannedRuns(ctx, []ledger.PlannedRun{run}))
	// Replanning the same identity key must not duplicate the row.
	require.NoError(t, store.InsertPlannedRuns(ctx, []ledger.PlannedRun{run}))

	runs, err := store.ListRunsByCampaign(ctx, campaignID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, ledger.RunStatusPending, runs[0].Status)
}

func TestTransitionRunRejectsFromTerminal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	campaignID, err := store.CreateCampaign(ctx, "c1", json.RawMessage(`{}`), nil)
	require.NoError(t, err)
	require.NoError(t, store.InsertPlannedRuns(ctx, []ledger.PlannedRun{{
		CampaignID: campaignID, ModelRef: "m", EngineName: "e", EngineMode: "docker", BenchmarkName: "b",
	}}))
	runs, err := store.ListRunsByCampaign(ctx, campaignID)
	require.NoError(t, err)
	runID := runs[0].ID

	commandID := "cmd-1"
	require.NoError(t, store.TransitionRun(ctx, runID, ledger.RunStatusPending, ledger.RunStatusQueued, ledger.TransitionFields{}))
	require.NoError(t, store.TransitionRun(ctx, runID, ledger.RunStatusQueued, ledger.RunStatusDispatched, ledger.TransitionFields{CommandID: &commandID}))
	require.NoError(t, store.TransitionRun(ctx, runID, ledger.RunStatusDispatched, ledger.RunStatusRunning, ledger.TransitionFields{}))
	require.NoError(t, store.TransitionRun(ctx, runID, ledger.RunStatusRunning, ledger.RunStatusCompleted, ledger.TransitionFields{}))

	err = store.TransitionRun(ctx, runID, ledger.RunStatusCompleted, ledger.RunStatusRunning, ledger.TransitionFields{})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestInsertResultIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	campaignID, err := store.CreateCampaign(ctx, "c1", json.RawMessage(`{}`), nil)
	require.NoError(t, err)
	require.NoError(t, store.InsertPlannedRuns(ctx, []ledger.PlannedRun{{
		CampaignID: campaignID, ModelRef: "m", EngineName: "e", EngineMode: "docker", BenchmarkName: "b",
	}}))
	runs, err := store.ListRunsByCampaign(ctx, campaignID)
	require.NoError(t, err)
	runID := runs[0].ID

	first, err := store.InsertResult(ctx, ledger.Result{RunID: runID, Passed: true, Metrics: json.RawMessage(`{"score":0.9}`)})
	require.NoError(t, err)

	second, err := store.InsertResult(ctx, ledger.Result{RunID: runID, Passed: false})
	assert.ErrorIs(t, err, ledger.ErrDuplicate)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Passed, "duplicate write must not mutate the stored result")
}

func TestAppendLogAssignsMonotonicSequence(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	streamID := "run-stream-1"
	var last int64 = -1
	for i := 0; i < 5; i++ {
		evt, err := store.AppendLog(ctx, streamID, ledger.StreamEventKindLog, json.RawMessage(`{"line":"hello"}`))
		require.NoError(t, err)
		assert.Greater(t, evt.Sequence, last)
		last = evt.Sequence
	}

	events, err := store.ListLogSince(ctx, streamID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, int64(i+2), e.Sequence)
	}
}

func TestDeleteTerminalLogsOlderThan(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	campaignID, err := store.CreateCampaign(ctx, "c1", json.RawMessage(`{}`), nil)
	require.NoError(t, err)
	require.NoError(t, store.InsertPlannedRuns(ctx, []ledger.PlannedRun{{
		CampaignID: campaignID, ModelRef: "m", EngineName: "e", EngineMode: "docker", BenchmarkName: "b",
	}}))
	runs, err := store.ListRunsByCampaign(ctx, campaignID)
	require.NoError(t, err)
	runID := runs[0].ID

	_, err = store.AppendLog(ctx, runID, ledger.StreamEventKindLog, json.RawMessage(`{"line":"a"}`))
	require.NoError(t, err)

	// Run is still pending: the sweep must not touch its log.
	n, err := store.DeleteTerminalLogsOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, store.TransitionRun(ctx, runID, ledger.RunStatusPending, ledger.RunStatusCancelled, ledger.TransitionFields{}))

	n, err = store.DeleteTerminalLogsOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
