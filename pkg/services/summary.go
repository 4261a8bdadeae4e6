// Package services hosts cross-cutting read models built on top of
// pkg/ledger's per-row tables: one query, grouped, straight into a
// response DTO.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/kitt/pkg/ledger"
)

// FailureKindCount is one row of the failure-kind breakdown: how many runs
// in the campaign failed with this ErrorKind.
type FailureKindCount struct {
	ErrorKind string `json:"error_kind"`
	Count     int    `json:"count"`
}

// CampaignSummary is the aggregate error-taxonomy view of a campaign,
// computed on demand rather than stored denormalized like the campaign's
// succeeded/failed/skipped/cancelled counters.
type CampaignSummary struct {
	CampaignID      string             `json:"campaign_id"`
	TopFailureKinds []FailureKindCount `json:"top_failure_kinds"`
}

// CampaignSummaryService computes derived views over a campaign's runs that
// don't belong on the hot write path in pkg/ledger.
type CampaignSummaryService struct {
	store *ledger.Store
}

// NewCampaignSummaryService wraps an already-constructed ledger store.
func NewCampaignSummaryService(store *ledger.Store) *CampaignSummaryService {
	return &CampaignSummaryService{store: store}
}

// Summarize returns the top three error_kind values among a campaign's
// failed runs, most frequent first, following the error handling design's
// taxonomy (pkg/ledger.ErrorKind*). Ties break on error_kind's lexical
// order for deterministic output.
func (s *CampaignSummaryService) Summarize(ctx context.Context, campaignID string) (CampaignSummary, error) {
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return CampaignSummary{}, ErrNotFound
		}
		return CampaignSummary{}, fmt.Errorf("summarize campaign: %w", err)
	}

	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT error_kind, COUNT(*) AS n
		FROM planned_runs
		WHERE campaign_id = $1 AND status = $2 AND error_kind != ''
		GROUP BY error_kind
		ORDER BY n DESC, error_kind ASC
		LIMIT 3
	`, campaignID, ledger.RunStatusFailed)
	if err != nil {
		return CampaignSummary{}, fmt.Errorf("summarize campaign: %w", err)
	}
	defer rows.Close()

	summary := CampaignSummary{CampaignID: campaignID, TopFailureKinds: []FailureKindCount{}}
	for rows.Next() {
		var fk FailureKindCount
		if err := rows.Scan(&fk.ErrorKind, &fk.Count); err != nil {
			return CampaignSummary{}, fmt.Errorf("summarize campaign: scan: %w", err)
		}
		summary.TopFailureKinds = append(summary.TopFailureKinds, fk)
	}
	if err := rows.Err(); err != nil {
		return CampaignSummary{}, fmt.Errorf("summarize campaign: %w", err)
	}
	return summary, nil
}
