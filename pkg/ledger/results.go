package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertResult writes the terminal Result for a run. Write-once: a second
// call for the same run_id returns ErrDuplicate and has no effect, giving
// the "duplicate result report is a no-op" testable property for free.
func (s *Store) InsertResult(ctx context.Context, r Result) (Result, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.ReportedAt = time.Now().UTC()

	metrics := r.Metrics
	if metrics == nil {
		metrics = json.RawMessage("{}")
	}
	hw := r.HardwareSnapshot
	if hw == nil {
		hw = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (result_id, run_id, passed, metrics, raw_output_location, hardware_snapshot, reported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO NOTHING
	`, r.ID, r.RunID, r.Passed, []byte(metrics), r.RawOutputLocation, []byte(hw), r.ReportedAt)
	if err != nil {
		return Result{}, fmt.Errorf("insert result: %w", err)
	}

	existing, err := s.GetResult(ctx, r.RunID)
	if err != nil {
		return Result{}, err
	}
	if existing.ID != r.ID {
		return existing, ErrDuplicate
	}
	return existing, nil
}

// GetResult fetches the Result for a run, if any.
func (s *Store) GetResult(ctx context.Context, runID string) (Result, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT result_id, run_id, passed, metrics, raw_output_location, hardware_snapshot, reported_at
		FROM results WHERE run_id = $1
	`, runID)

	var res Result
	var metrics, hw []byte
	if err := row.Scan(&res.ID, &res.RunID, &res.Passed, &metrics, &res.RawOutputLocation, &hw, &res.ReportedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrNotFound
		}
		return Result{}, fmt.Errorf("get result: %w", err)
	}
	res.Metrics = metrics
	res.HardwareSnapshot = hw
	return res, nil
}
