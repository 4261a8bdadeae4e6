package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/kitt/pkg/registry"
	testdb "github.com/codeready-toolchain/kitt/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *registry.Store {
	t.Helper()
	client := testdb.NewTestClient(t)
	return registry.NewStore(client.DB())
}

func TestProvisionAndVerify(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	agentID, token, err := store.Provision(ctx, "bench-node-1", "10.0.0.5", 7443)
	require.NoError(t, err)
	require.NotEmpty(t, agentID)
	require.NotEmpty(t, token)

	got, err := store.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, agentID, got)
}

func TestVerifyRejectsUnknownToken(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Verify(ctx, "not-a-real-token")
	assert.ErrorIs(t, err, registry.ErrUnauthorized)
}

func TestProvisionRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, _, err := store.Provision(ctx, "dup-node", "10.0.0.1", 1000)
	require.NoError(t, err)

	_, _, err = store.Provision(ctx, "dup-node", "10.0.0.2", 1001)
	assert.ErrorIs(t, err, registry.ErrNameTaken)
}

func TestHeartbeatMarksOnline(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	agentID, _, err := store.Provision(ctx, "bench-node-2", "10.0.0.6", 7443)
	require.NoError(t, err)

	require.NoError(t, store.Heartbeat(ctx, agentID, registry.HeartbeatDetails{
		CPUArch: "arm64", KittVersion: "0.1.0",
	}))

	a, err := store.Get(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusOnline, a.Status)
	assert.Equal(t, "arm64", a.CPUArch)
	require.NotNil(t, a.LastHeartbeat)
}

func TestHeartbeatUnknownAgentNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Heartbeat(ctx, "nonexistent", registry.HeartbeatDetails{})
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestListOnlineExcludesStaleAndUnregistered(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	fresh, _, err := store.Provision(ctx, "fresh-node", "10.0.0.7", 1)
	require.NoError(t, err)
	require.NoError(t, store.Heartbeat(ctx, fresh, registry.HeartbeatDetails{}))

	stale, _, err := store.Provision(ctx, "stale-node", "10.0.0.8", 2)
	require.NoError(t, err)
	require.NoError(t, store.Heartbeat(ctx, stale, registry.HeartbeatDetails{}))

	online, err := store.ListOnline(ctx, time.Hour)
	require.NoError(t, err)
	assert.Len(t, online, 2)

	require.NoError(t, store.Unregister(ctx, stale))

	online, err = store.ListOnline(ctx, time.Hour)
	require.NoError(t, err)
	assert.Len(t, online, 1)
	assert.Equal(t, fresh, online[0].ID)

	// A window shorter than "just now" makes the remaining agent stale.
	online, err = store.ListOnline(ctx, -time.Second)
	require.NoError(t, err)
	assert.Empty(t, online)
}

func TestMarkOfflineStaleDemotesAfterWindow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	agentID, _, err := store.Provision(ctx, "about-to-go-stale", "10.0.0.9", 3)
	require.NoError(t, err)
	require.NoError(t, store.Heartbeat(ctx, agentID, registry.HeartbeatDetails{}))

	// With a generous window nothing should be demoted yet.
	n, err := store.MarkOfflineStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	// A window shorter than "just now" demotes it immediately.
	n, err = store.MarkOfflineStale(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	a, err := store.Get(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusOffline, a.Status)
}

func TestUnregisterIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	agentID, _, err := store.Provision(ctx, "retiring-node", "10.0.0.10", 4)
	require.NoError(t, err)

	require.NoError(t, store.Unregister(ctx, agentID))
	err = store.Unregister(ctx, agentID)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}
