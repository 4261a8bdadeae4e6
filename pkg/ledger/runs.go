package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertPlannedRuns inserts the given runs, skipping any whose
// (campaign_id, model_ref, engine_name, quant, benchmark_name) key already
// exists — idempotent on replanning, per the Campaign Planner contract.
// Each run's ID is populated if empty.
func (s *Store) InsertPlannedRuns(ctx context.Context, runs []PlannedRun) error {
	if len(runs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert planned runs: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO planned_runs (
			run_id, campaign_id, model_ref, engine_name, engine_mode, benchmark_name,
			suite_name, quant, estimated_size_gb, status, error_message, error_kind
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (campaign_id, model_ref, engine_name, quant, benchmark_name) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("insert planned runs: %w", err)
	}
	defer stmt.Close()

	for i := range runs {
		if runs[i].ID == "" {
			runs[i].ID = uuid.NewString()
		}
		if runs[i].Status == "" {
			runs[i].Status = RunStatusPending
		}
		r := runs[i]
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.CampaignID, r.ModelRef, r.EngineName, r.EngineMode, r.BenchmarkName,
			r.SuiteName, r.Quant, r.EstimatedSizeGB, r.Status, r.ErrorMessage, r.ErrorKind,
		); err != nil {
			return fmt.Errorf("insert planned run %s/%s/%s: %w", r.ModelRef, r.EngineName, r.Quant, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert planned runs: %w", err)
	}
	return nil
}

// GetRun fetches a single PlannedRun.
func (s *Store) GetRun(ctx context.Context, runID string) (PlannedRun, error) {
	row := s.db.QueryRowContext(ctx, runSelectColumns+` WHERE run_id = $1`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PlannedRun{}, ErrNotFound
		}
		return PlannedRun{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRunsByCampaign returns every PlannedRun for a campaign in plan order
// (estimated_size_gb, model, engine, quant, benchmark — the Planner's own
// sort keys, applied here with an explicit ORDER BY).
func (s *Store) ListRunsByCampaign(ctx context.Context, campaignID string) ([]PlannedRun, error) {
	rows, err := s.db.QueryContext(ctx,
		runSelectColumns+` WHERE campaign_id = $1
		ORDER BY estimated_size_gb ASC, model_ref ASC, engine_name ASC, quant ASC, benchmark_name ASC`,
		campaignID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []PlannedRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListPendingRunsByCampaign returns runs still in "pending" status, in plan
// order — used by the Campaign Executor to rebuild its march iterator on
// resume.
func (s *Store) ListPendingRunsByCampaign(ctx context.Context, campaignID string) ([]PlannedRun, error) {
	rows, err := s.db.QueryContext(ctx,
		runSelectColumns+` WHERE campaign_id = $1 AND status = $2
		ORDER BY estimated_size_gb ASC, model_ref ASC, engine_name ASC, quant ASC, benchmark_name ASC`,
		campaignID, RunStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	defer rows.Close()

	var out []PlannedRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending runs: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListInFlightRuns returns runs in "dispatched" or "running" status across
// all campaigns. Nothing in the server calls it: startup recovery resumes
// executors through LoadOpenCampaigns only, and a resumed executor marches
// pending runs, so a run left in flight by a prior process gets no watchdog.
func (s *Store) ListInFlightRuns(ctx context.Context) ([]PlannedRun, error) {
	rows, err := s.db.QueryContext(ctx,
		runSelectColumns+` WHERE status IN ($1, $2)`,
		RunStatusDispatched, RunStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list in-flight runs: %w", err)
	}
	defer rows.Close()

	var out []PlannedRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list in-flight runs: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRunByCommandID fetches the PlannedRun a dispatched command_id belongs
// to — used by the results handler, which only ever sees a command_id, not
// a run_id.
func (s *Store) GetRunByCommandID(ctx context.Context, commandID string) (PlannedRun, error) {
	row := s.db.QueryRowContext(ctx, runSelectColumns+` WHERE command_id = $1`, commandID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PlannedRun{}, ErrNotFound
		}
		return PlannedRun{}, fmt.Errorf("get run by command id: %w", err)
	}
	return r, nil
}

// TransitionRun performs a compare-and-set status transition: it succeeds
// only if the run's current status equals "from" and "from" is not already
// terminal. fields carries any additional column updates to apply in the
// same statement (command_id, timestamps, error_message/kind).
//
// Every transition, the first included, is a single conditional UPDATE
// whose RowsAffected decides the compare-and-set — no row lock is held
// across a long-running op.
func (s *Store) TransitionRun(ctx context.Context, runID, from, to string, fields TransitionFields) error {
	if IsTerminalRunStatus(from) {
		return ErrConflict
	}

	setParts := []string{"status = $1"}
	args := []any{to}

	add := func(column string, val any) {
		args = append(args, val)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if fields.CommandID != nil {
		add("command_id", *fields.CommandID)
	}
	if fields.WatchdogDeadline != nil {
		add("watchdog_deadline", *fields.WatchdogDeadline)
	}
	if fields.QueuedAt != nil {
		add("queued_at", *fields.QueuedAt)
	}
	if fields.DispatchedAt != nil {
		add("dispatched_at", *fields.DispatchedAt)
	}
	if fields.StartedAt != nil {
		add("started_at", *fields.StartedAt)
	}
	if fields.CompletedAt != nil {
		add("completed_at", *fields.CompletedAt)
	}
	if fields.ErrorMessage != nil {
		add("error_message", *fields.ErrorMessage)
	}
	if fields.ErrorKind != nil {
		add("error_kind", *fields.ErrorKind)
	}

	whereRunID := len(args) + 1
	whereFrom := len(args) + 2
	query := fmt.Sprintf(`UPDATE planned_runs SET %s WHERE run_id = $%d AND status = $%d`,
		joinSet(setParts), whereRunID, whereFrom)
	args = append(args, runID, from)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition run %s: %w", runID, err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// CancelPendingRuns transitions every non-terminal run of a campaign to
// cancelled in one statement — used by campaign cancellation, which does
// not wait for the in-flight run's own watchdog to resolve it individually.
func (s *Store) CancelPendingRuns(ctx context.Context, campaignID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE planned_runs SET status = $1, completed_at = $2
		WHERE campaign_id = $3
		  AND status NOT IN ($4, $5, $6, $7)
	`, RunStatusCancelled, time.Now().UTC(), campaignID,
		RunStatusCompleted, RunStatusFailed, RunStatusSkipped, RunStatusCancelled)
	if err != nil {
		return fmt.Errorf("cancel pending runs: %w", err)
	}
	return nil
}

// SetWatchdogDeadline records on the run row when its current dispatch
// should be considered lost if no status update arrives. Unlike
// TransitionRun this does not change status. The executor's watchdog waits
// on its own in-memory copy of the deadline, not on this column.
func (s *Store) SetWatchdogDeadline(ctx context.Context, runID string, deadline time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE planned_runs SET watchdog_deadline = $1 WHERE run_id = $2
	`, deadline, runID)
	if err != nil {
		return fmt.Errorf("set watchdog deadline: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set watchdog deadline: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func joinSet(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

const runSelectColumns = `
	SELECT run_id, campaign_id, model_ref, engine_name, engine_mode, benchmark_name,
	       suite_name, quant, estimated_size_gb, status, command_id, watchdog_deadline,
	       queued_at, dispatched_at, started_at, completed_at, error_message, error_kind
	FROM planned_runs`

func scanRun(row rowScanner) (PlannedRun, error) {
	var r PlannedRun
	if err := row.Scan(
		&r.ID, &r.CampaignID, &r.ModelRef, &r.EngineName, &r.EngineMode, &r.BenchmarkName,
		&r.SuiteName, &r.Quant, &r.EstimatedSizeGB, &r.Status, &r.CommandID, &r.WatchdogDeadline,
		&r.QueuedAt, &r.DispatchedAt, &r.StartedAt, &r.CompletedAt, &r.ErrorMessage, &r.ErrorKind,
	); err != nil {
		return PlannedRun{}, err
	}
	return r, nil
}
