package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/kitt/pkg/api"
)

func doJSON(t *testing.T, s *api.Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreateCampaignRejectsInvalidConfig(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/campaigns", "test-admin-token", map[string]any{
		"name":   "bad",
		"config": map[string]any{"engines": []any{map[string]string{"name": "vllm", "mode": "not-a-mode"}}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAndFetchCampaign(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/campaigns", "test-admin-token", map[string]any{
		"name": "nightly sweep",
		"config": map[string]any{
			"name":       "nightly sweep",
			"models":     []any{map[string]any{"name": "llama-3-8b", "ollama_tag": "llama3:8b", "estimated_size_gb": 16}},
			"engines":    []any{map[string]any{"name": "ollama", "mode": "native"}},
			"benchmarks": []any{"mmlu"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created api.CreateCampaignResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = doJSON(t, s, http.MethodGet, "/campaigns/"+created.ID, "test-admin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap api.CampaignSnapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "nightly sweep", snap.Campaign.Name)
	assert.Equal(t, "draft", snap.Campaign.Status)
}

func TestCancelCampaignIsIdempotentOnTerminalState(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/campaigns", "test-admin-token", map[string]any{
		"name": "c1",
		"config": map[string]any{
			"name":       "c1",
			"models":     []any{map[string]any{"name": "llama-3-8b", "ollama_tag": "llama3:8b", "estimated_size_gb": 16}},
			"engines":    []any{map[string]any{"name": "ollama", "mode": "native"}},
			"benchmarks": []any{"mmlu"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created api.CreateCampaignResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, s, http.MethodPost, "/campaigns/"+created.ID+"/cancel", "test-admin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/campaigns/"+created.ID+"/cancel", "test-admin-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
