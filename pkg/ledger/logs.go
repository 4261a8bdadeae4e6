package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendLog appends a LogLine or StatusEvent to stream_id's append-only log,
// assigning the next sequence number from a small per-stream cursor row.
// The cursor is read with INSERT ... ON CONFLICT DO UPDATE ... RETURNING,
// which creates the row on first use and row-locks it until the
// transaction ends, so concurrent appends to one stream get distinct
// sequence numbers.
func (s *Store) AppendLog(ctx context.Context, streamID, kind string, payload json.RawMessage) (StreamEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return StreamEvent{}, fmt.Errorf("append log: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextSeq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO stream_cursors (stream_id, next_seq) VALUES ($1, 0)
		ON CONFLICT (stream_id) DO UPDATE SET next_seq = stream_cursors.next_seq
		RETURNING next_seq
	`, streamID).Scan(&nextSeq)
	if err != nil {
		return StreamEvent{}, fmt.Errorf("append log: claim cursor: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE stream_cursors SET next_seq = next_seq + 1 WHERE stream_id = $1
	`, streamID); err != nil {
		return StreamEvent{}, fmt.Errorf("append log: advance cursor: %w", err)
	}

	evt := StreamEvent{
		ID:        uuid.NewString(),
		StreamID:  streamID,
		Sequence:  nextSeq,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stream_events (event_id, stream_id, sequence, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.ID, evt.StreamID, evt.Sequence, evt.Kind, []byte(evt.Payload), evt.CreatedAt); err != nil {
		return StreamEvent{}, fmt.Errorf("append log: insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return StreamEvent{}, fmt.Errorf("append log: %w", err)
	}
	return evt, nil
}

// ListLogSince returns stream events for stream_id with sequence > afterSeq,
// in order — used both by SSE catch-up (Last-Event-ID resume) and by the
// retention sweep's callers that need to inspect recent activity.
func (s *Store) ListLogSince(ctx context.Context, streamID string, afterSeq int64, limit int) ([]StreamEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, stream_id, sequence, kind, payload, created_at
		FROM stream_events
		WHERE stream_id = $1 AND sequence > $2
		ORDER BY sequence ASC
		LIMIT $3
	`, streamID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list log since: %w", err)
	}
	defer rows.Close()

	var out []StreamEvent
	for rows.Next() {
		var e StreamEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.StreamID, &e.Sequence, &e.Kind, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("list log since: %w", err)
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteTerminalLogsOlderThan deletes stream_events rows for runs that have
// reached a terminal status and whose events are older than cutoff. Used by
// pkg/retention; never touches streams for runs still in flight.
func (s *Store) DeleteTerminalLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM stream_events se
		USING planned_runs pr
		WHERE se.stream_id = pr.run_id
		  AND pr.status IN ('completed', 'failed', 'skipped', 'cancelled')
		  AND se.created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete terminal logs: %w", err)
	}
	return n, nil
}
