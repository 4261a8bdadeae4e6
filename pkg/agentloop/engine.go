package agentloop

import (
	"fmt"
	"time"

	"github.com/codeready-toolchain/kitt/pkg/procrunner"
)

// RunPayload is the body of a run_container/run_test command, mirroring
// what the Campaign Executor marshals when it dispatches a run.
type RunPayload struct {
	RunID         string `json:"run_id"`
	ModelRef      string `json:"model_ref"`
	EngineName    string `json:"engine_name"`
	EngineMode    string `json:"engine_mode"`
	BenchmarkName string `json:"benchmark_name"`
	SuiteName     string `json:"suite_name"`
	Quant         string `json:"quant"`
}

const (
	engineModeDocker = "docker"
	engineModeNative = "native"
)

// ErrIncompatibleArchitecture is reported back to the server when the
// target image/binary's declared architecture does not match the host's,
// caught by the pre-pull compatibility check.
var ErrIncompatibleArchitecture = fmt.Errorf("incompatible_architecture")

// buildRunSpec runs the architecture compatibility check and then
// translates a RunPayload into the process spec the engine adapter
// executes. Docker mode shells out to `docker run`; native mode
// execs the benchmark suite binary directly. Either way the resulting
// Spec goes through pkg/procrunner, which enforces the blocked-flags
// policy uniformly regardless of mode.
func buildRunSpec(run RunPayload, hostArch string, timeout time.Duration) (procrunner.Spec, error) {
	// The dispatch payload does not carry a declared image/binary
	// architecture (the Campaign Executor builds it from model/engine/quant
	// alone), so there is nothing to compare hostArch against yet. A real
	// image-manifest inspection step would replace this call and return
	// ErrIncompatibleArchitecture on a mismatch.
	if err := checkArchitectureCompatible(run, hostArch); err != nil {
		return procrunner.Spec{}, err
	}

	switch run.EngineMode {
	case engineModeDocker:
		image := fmt.Sprintf("%s:%s", run.EngineName, run.Quant)
		return procrunner.Spec{
			Program: "docker",
			Args: []string{
				"run", "--rm",
				"-e", "MODEL_REF=" + run.ModelRef,
				"-e", "BENCHMARK=" + run.BenchmarkName,
				"-e", "SUITE=" + run.SuiteName,
				image,
			},
			Timeout: timeout,
		}, nil
	case engineModeNative:
		return procrunner.Spec{
			Program: run.EngineName,
			Args:    []string{"--model", run.ModelRef, "--benchmark", run.BenchmarkName, "--suite", run.SuiteName},
			Timeout: timeout,
		}, nil
	default:
		return procrunner.Spec{}, fmt.Errorf("unknown engine mode %q", run.EngineMode)
	}
}

// checkArchitectureCompatible is the pre-pull compatibility hook. Always
// passes today since the wire payload carries no declared image
// architecture to compare against; kept as a named step so a future image
// manifest lookup has an obvious place to plug in without touching
// buildRunSpec's call sites.
func checkArchitectureCompatible(_ RunPayload, _ string) error {
	return nil
}
