package planner_test

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/kitt/pkg/campaignconfig"
	"github.com/codeready-toolchain/kitt/pkg/ledger"
	"github.com/codeready-toolchain/kitt/pkg/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() campaignconfig.Config {
	return campaignconfig.Config{
		Name: "nightly",
		Models: []campaignconfig.Model{
			{Name: "llama-3-8b", SafetensorsRepo: "meta/llama-3-8b", EstimatedSizeGB: 16},
			{Name: "tinyllama", GGUFRepo: "tiny/tinyllama-gguf", EstimatedSizeGB: 2},
		},
		Engines: []campaignconfig.Engine{
			{Name: "vllm", Suite: "standard", Mode: campaignconfig.EngineModeDocker},
			{Name: "llama_cpp", Suite: "quick", Mode: campaignconfig.EngineModeNative},
		},
		Benchmarks: []string{"throughput", "latency"},
	}
}

func TestPlanCrossProductAndOrdering(t *testing.T) {
	cfg := baseConfig()
	runs, skipped, err := planner.Plan(context.Background(), "c1", cfg, nil)
	require.NoError(t, err)

	// vllm only matches llama-3-8b (safetensors); llama_cpp only matches
	// tinyllama (gguf) — each valid pairing produces len(benchmarks) runs,
	// and the two pairings with no compatible format are reported in skipped.
	assert.Len(t, runs, 4)
	assert.Len(t, skipped, 2)

	// Smallest estimated size first.
	assert.Equal(t, "tiny/tinyllama-gguf", runs[0].ModelRef)
	assert.Equal(t, "tiny/tinyllama-gguf", runs[1].ModelRef)
	assert.Equal(t, "meta/llama-3-8b", runs[2].ModelRef)
	assert.Equal(t, "meta/llama-3-8b", runs[3].ModelRef)

	// Within the same model/engine/quant, benchmarks sort lexically.
	assert.Equal(t, "latency", runs[0].BenchmarkName)
	assert.Equal(t, "throughput", runs[1].BenchmarkName)

	for _, r := range runs {
		assert.Equal(t, ledger.RunStatusPending, r.Status)
		assert.Equal(t, "c1", r.CampaignID)
	}
}

func TestPlanSkipsIncompatibleFormat(t *testing.T) {
	cfg := baseConfig()
	cfg.Models = []campaignconfig.Model{
		{Name: "ollama-only", OllamaTag: "llama3:8b", EstimatedSizeGB: 5},
	}
	cfg.Engines = []campaignconfig.Engine{
		{Name: "vllm", Mode: campaignconfig.EngineModeDocker},
	}

	runs, skipped, err := planner.Plan(context.Background(), "c1", cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, runs)
	require.Len(t, skipped, 1)
	assert.Equal(t, "no compatible format", skipped[0].Reason)
}

func TestPlanAppliesResourceLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.ResourceLimits.MaxModelSizeGB = 10

	runs, skipped, err := planner.Plan(context.Background(), "c1", cfg, nil)
	require.NoError(t, err)
	// Only the two format-incompatible pairings; the size limit skips runs, not pairs.
	assert.Len(t, skipped, 2)

	// llama-3-8b (16GB) still gets one PlannedRun per benchmark, but marked
	// skipped(size) rather than dropped; tinyllama (2GB) plans normally.
	var pending, overSize int
	for _, r := range runs {
		switch r.ModelRef {
		case "tiny/tinyllama-gguf":
			assert.Equal(t, ledger.RunStatusPending, r.Status)
			pending++
		case "meta/llama-3-8b":
			assert.Equal(t, ledger.RunStatusSkipped, r.Status)
			assert.Equal(t, string(ledger.ErrorKindResourceExceed), r.ErrorKind)
			assert.NotEmpty(t, r.ErrorMessage)
			overSize++
		}
	}
	assert.Equal(t, 2, pending)
	assert.Equal(t, 2, overSize)
	assert.Len(t, runs, 4)
}

func TestPlanQuantFilterSkipThenInclude(t *testing.T) {
	cfg := baseConfig()
	cfg.Models = []campaignconfig.Model{
		{Name: "m", SafetensorsRepo: "org/m", EstimatedSizeGB: 1},
	}
	cfg.Engines = []campaignconfig.Engine{{Name: "vllm", Mode: campaignconfig.EngineModeDocker}}
	cfg.Benchmarks = []string{"throughput"}
	cfg.QuantFilter = campaignconfig.QuantFilter{SkipPatterns: []string{"bf16"}}

	discoverer := fakeDiscoverer{quants: []planner.QuantCandidate{
		{Quant: "bf16", EstimatedGB: 1},
		{Quant: "q4_k_m", EstimatedGB: 0.5},
	}}

	runs, _, err := planner.Plan(context.Background(), "c1", cfg, discoverer)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "q4_k_m", runs[0].Quant)
}

func TestPlanIsIdempotentOnKeys(t *testing.T) {
	cfg := baseConfig()
	runsA, _, err := planner.Plan(context.Background(), "c1", cfg, nil)
	require.NoError(t, err)
	runsB, _, err := planner.Plan(context.Background(), "c1", cfg, nil)
	require.NoError(t, err)

	require.Len(t, runsA, len(runsB))
	for i := range runsA {
		assert.Equal(t, runsA[i].ModelRef, runsB[i].ModelRef)
		assert.Equal(t, runsA[i].EngineName, runsB[i].EngineName)
		assert.Equal(t, runsA[i].Quant, runsB[i].Quant)
		assert.Equal(t, runsA[i].BenchmarkName, runsB[i].BenchmarkName)
	}
}

type fakeDiscoverer struct {
	quants []planner.QuantCandidate
}

func (f fakeDiscoverer) Discover(_ context.Context, _ campaignconfig.Model, _ planner.Format) ([]planner.QuantCandidate, error) {
	return f.quants, nil
}
