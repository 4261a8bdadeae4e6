package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LivenessSweeper periodically demotes agents whose heartbeat has gone
// stale: a background goroutine started by the owning process, stopped via
// context cancellation.
type LivenessSweeper struct {
	store    *Store
	interval time.Duration
	window   time.Duration

	mu       sync.Mutex
	lastScan time.Time
	demoted  int64
}

// NewLivenessSweeper constructs a sweeper that runs every interval and
// considers an agent stale once its last heartbeat is older than window
// (recommended: 3x the agent's heartbeat interval).
func NewLivenessSweeper(store *Store, interval, window time.Duration) *LivenessSweeper {
	return &LivenessSweeper{store: store, interval: interval, window: window}
}

// Run blocks, sweeping on each tick until ctx is cancelled.
func (sw *LivenessSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sw.sweepOnce(ctx); err != nil {
				slog.Error("liveness sweep failed", "error", err)
			}
		}
	}
}

func (sw *LivenessSweeper) sweepOnce(ctx context.Context) error {
	n, err := sw.store.MarkOfflineStale(ctx, sw.window)
	if err != nil {
		return err
	}

	sw.mu.Lock()
	sw.lastScan = time.Now()
	sw.demoted += n
	sw.mu.Unlock()

	if n > 0 {
		slog.Warn("demoted stale agents to offline", "count", n)
	}
	return nil
}

// Stats reports sweeper activity for health endpoints.
type Stats struct {
	LastScan     time.Time
	TotalDemoted int64
}

func (sw *LivenessSweeper) Stats() Stats {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return Stats{LastScan: sw.lastScan, TotalDemoted: sw.demoted}
}
