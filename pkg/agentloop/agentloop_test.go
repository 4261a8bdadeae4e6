package agentloop

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeArch(t *testing.T) {
	assert.Equal(t, "amd64", NormalizeArch("amd64"))
	assert.Equal(t, "amd64", NormalizeArch("386"))
	assert.Equal(t, "arm64", NormalizeArch("arm64"))
	assert.Equal(t, "riscv64", NormalizeArch("riscv64"))
}

func TestBuildRunSpecDockerMode(t *testing.T) {
	spec, err := buildRunSpec(RunPayload{EngineMode: "docker", EngineName: "vllm", Quant: "q4"}, "amd64", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "docker", spec.Program)
}

func TestBuildRunSpecNativeMode(t *testing.T) {
	spec, err := buildRunSpec(RunPayload{EngineMode: "native", EngineName: "ollama", ModelRef: "m"}, "arm64", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "ollama", spec.Program)
}

func TestBuildRunSpecRejectsUnknownMode(t *testing.T) {
	_, err := buildRunSpec(RunPayload{EngineMode: "vm"}, "amd64", time.Minute)
	assert.Error(t, err)
}

func TestWaitForHealthySucceedsImmediately(t *testing.T) {
	err := waitForHealthy(context.Background(), func(context.Context) error { return nil }, time.Second)
	assert.NoError(t, err)
}

func TestWaitForHealthyRespectsOverallCap(t *testing.T) {
	calls := 0
	err := waitForHealthy(context.Background(), func(context.Context) error {
		calls++
		return assert.AnError
	}, 50*time.Millisecond)
	assert.Error(t, err)
	assert.Greater(t, calls, 0)
}

func TestClientHeartbeatRetriesUntilServerRecovers(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"command": nil})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "agent-1", "tok")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := client.Heartbeat(ctx, "agent-id-1", Capabilities{CPUArch: "amd64"}, nil)
	require.NoError(t, err)
	assert.Nil(t, result.Command)
	assert.GreaterOrEqual(t, attempts, 3)
}

func TestLogRingBufferDropsOldest(t *testing.T) {
	buf := NewLogRingBuffer(2)
	buf.Append("a")
	buf.Append("b")
	buf.Append("c")
	assert.Equal(t, []string{"b", "c"}, buf.Lines())
}
