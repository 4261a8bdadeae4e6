package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/kitt/pkg/ledger"
	"github.com/codeready-toolchain/kitt/pkg/procrunner"
)

// DefaultRunTimeout bounds a single command's execution; the server side
// carries its own per-run watchdog independently (§5), so this is a local
// safety net rather than the source of truth.
const DefaultRunTimeout = 30 * time.Minute

// Worker executes exactly one dispatched command end to end: status
// callback, engine run, log streaming, terminal report. Mirrors the
// teacher's session worker (claim -> heartbeat goroutine -> execute ->
// report terminal status -> cleanup) generalized from an LLM alert session
// to a benchmark run.
type Worker struct {
	client   *Client
	hostArch string
	runLog   *LogRingBuffer
}

// NewWorker constructs a Worker bound to the agent's API client.
func NewWorker(client *Client, hostArch string) *Worker {
	return &Worker{client: client, hostArch: hostArch, runLog: NewLogRingBuffer(2000)}
}

// Execute runs cmd to completion, reporting running -> completed|failed
// back to the server. It never returns an error to the caller: every
// failure is translated into a results report instead, since there is no
// one else to propagate a Go error to once the command loop has already
// moved on to its next heartbeat.
func (w *Worker) Execute(ctx context.Context, cmd CommandPayload) {
	log := slog.With("command_id", cmd.CommandID)

	var run RunPayload
	if err := json.Unmarshal(cmd.Payload, &run); err != nil {
		log.Error("agentloop: malformed command payload", "error", err)
		w.reportTerminal(ctx, cmd.CommandID, ledger.RunStatusFailed, fmt.Sprintf("malformed command payload: %v", err))
		return
	}
	log = log.With("run_id", run.RunID, "model_ref", run.ModelRef, "engine", run.EngineName)

	if err := w.client.ReportResult(ctx, cmd.CommandID, ledger.RunStatusRunning, "", nil); err != nil {
		log.Warn("agentloop: running status report failed, continuing anyway", "error", err)
	}

	spec, err := buildRunSpec(run, w.hostArch, DefaultRunTimeout)
	if err != nil {
		log.Error("agentloop: cannot build run spec", "error", err)
		w.reportTerminal(ctx, cmd.CommandID, ledger.RunStatusFailed, err.Error())
		return
	}

	// No health endpoint is carried on the dispatch payload in this wire
	// format, so the health wait here is a single trivially-true check —
	// waitForHealthy itself is the reusable primitive an engine adapter
	// with a real health URL would call.
	if err := waitForHealthy(ctx, func(context.Context) error { return nil }, DefaultHealthCheckCap); err != nil {
		log.Error("agentloop: engine never became healthy", "error", err)
		w.reportTerminal(ctx, cmd.CommandID, ledger.RunStatusFailed, err.Error())
		return
	}

	result, err := procrunner.Run(ctx, spec, func(line string, stderr bool) {
		w.runLog.Append(line)
		if logErr := w.client.AppendLog(ctx, cmd.CommandID, line); logErr != nil {
			log.Warn("agentloop: log append failed", "error", logErr)
		}
	})
	if err != nil {
		log.Error("agentloop: run failed", "error", err)
		w.reportTerminal(ctx, cmd.CommandID, ledger.RunStatusFailed, err.Error())
		return
	}
	if result.ExitCode != 0 {
		w.reportTerminal(ctx, cmd.CommandID, ledger.RunStatusFailed, fmt.Sprintf("engine exited %d", result.ExitCode))
		return
	}

	resultPayload, _ := json.Marshal(map[string]any{"duration_seconds": result.Duration.Seconds()})
	w.reportCompleted(ctx, cmd.CommandID, resultPayload)
}

func (w *Worker) reportTerminal(ctx context.Context, commandID, status, errMsg string) {
	if err := w.client.ReportResult(ctx, commandID, status, errMsg, nil); err != nil {
		slog.Error("agentloop: terminal report failed", "command_id", commandID, "error", err)
	}
}

func (w *Worker) reportCompleted(ctx context.Context, commandID string, payload json.RawMessage) {
	if err := w.client.ReportResult(ctx, commandID, ledger.RunStatusCompleted, "", payload); err != nil {
		slog.Error("agentloop: completion report failed", "command_id", commandID, "error", err)
	}
}
