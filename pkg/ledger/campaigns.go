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

// CreateCampaign inserts a new draft Campaign and returns its id.
func (s *Store) CreateCampaign(ctx context.Context, name string, config json.RawMessage, createdBy *string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO campaigns (campaign_id, name, config, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, name, []byte(config), CampaignStatusDraft, createdBy, now)
	if err != nil {
		return "", fmt.Errorf("insert campaign: %w", err)
	}
	return id, nil
}

// GetCampaign fetches a single campaign by id.
func (s *Store) GetCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT campaign_id, name, config, status, agent_id, total_runs, succeeded,
		       failed, skipped, cancelled, created_by, created_at, started_at, completed_at
		FROM campaigns WHERE campaign_id = $1
	`, campaignID)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// TransitionCampaign moves a campaign between lifecycle states with an
// optional agent assignment, rejecting if the current status isn't "from".
func (s *Store) TransitionCampaign(ctx context.Context, campaignID, from, to string, agentID *string) error {
	now := time.Now().UTC()

	var setClause string
	var args []any
	switch to {
	case CampaignStatusRunning:
		setClause = "status = $1, agent_id = $2, started_at = $3"
		args = []any{to, agentID, now}
	case CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusCancelled:
		setClause = "status = $1, completed_at = $2"
		args = []any{to, now}
	default:
		setClause = "status = $1"
		args = []any{to}
	}

	query := fmt.Sprintf(`UPDATE campaigns SET %s WHERE campaign_id = $%d AND status = $%d`,
		setClause, len(args)+1, len(args)+2)
	args = append(args, campaignID, from)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition campaign: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// UpdateCampaignAggregates recomputes succeeded/failed/skipped/cancelled from
// the run rows, satisfying the guarantee that aggregates are always
// derivable from run state even though they are stored denormalized.
func (s *Store) UpdateCampaignAggregates(ctx context.Context, campaignID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET
			total_runs = sub.total,
			succeeded  = sub.succeeded,
			failed     = sub.failed,
			skipped    = sub.skipped,
			cancelled  = sub.cancelled
		FROM (
			SELECT
				COUNT(*) AS total,
				COUNT(*) FILTER (WHERE status = 'completed') AS succeeded,
				COUNT(*) FILTER (WHERE status = 'failed')    AS failed,
				COUNT(*) FILTER (WHERE status = 'skipped')   AS skipped,
				COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled
			FROM planned_runs WHERE campaign_id = $1
		) AS sub
		WHERE campaign_id = $1
	`, campaignID)
	if err != nil {
		return fmt.Errorf("update campaign aggregates: %w", err)
	}
	return nil
}

// SnapshotCampaign returns the campaign row plus every PlannedRun belonging
// to it, in plan order.
func (s *Store) SnapshotCampaign(ctx context.Context, campaignID string) (CampaignSnapshot, error) {
	c, err := s.GetCampaign(ctx, campaignID)
	if err != nil {
		return CampaignSnapshot{}, err
	}
	runs, err := s.ListRunsByCampaign(ctx, campaignID)
	if err != nil {
		return CampaignSnapshot{}, err
	}
	return CampaignSnapshot{Campaign: c, Runs: runs}, nil
}

// LoadOpenCampaigns returns every campaign in "running" status, used at
// startup to rehydrate Campaign Executors.
func (s *Store) LoadOpenCampaigns(ctx context.Context) ([]Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT campaign_id, name, config, status, agent_id, total_runs, succeeded,
		       failed, skipped, cancelled, created_by, created_at, started_at, completed_at
		FROM campaigns WHERE status = $1
	`, CampaignStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("load open campaigns: %w", err)
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("load open campaigns: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (Campaign, error) {
	var c Campaign
	var config []byte
	if err := row.Scan(
		&c.ID, &c.Name, &config, &c.Status, &c.AgentID, &c.TotalRuns, &c.Succeeded,
		&c.Failed, &c.Skipped, &c.Cancelled, &c.CreatedBy, &c.CreatedAt, &c.StartedAt, &c.CompletedAt,
	); err != nil {
		return Campaign{}, err
	}
	c.Config = config
	return c, nil
}
