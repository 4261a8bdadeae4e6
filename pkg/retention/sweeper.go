// Package retention runs the scheduled ledger retention sweep: terminal
// log lines older than a configured TTL are deleted so stream_events does
// not grow without bound.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/codeready-toolchain/kitt/pkg/ledger"
)

// DefaultSchedule runs the sweep once an hour.
const DefaultSchedule = "0 * * * *"

// DefaultTTL is how long a terminal run's log lines are kept before the
// sweep deletes them.
const DefaultTTL = 7 * 24 * time.Hour

// Sweeper periodically deletes terminal-run log lines older than TTL.
type Sweeper struct {
	store    *ledger.Store
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
}

// New constructs a Sweeper with DefaultSchedule and DefaultTTL.
func New(store *ledger.Store) *Sweeper {
	return &Sweeper{store: store, ttl: DefaultTTL, schedule: DefaultSchedule}
}

// SetTTL overrides DefaultTTL.
func (s *Sweeper) SetTTL(d time.Duration) { s.ttl = d }

// SetSchedule overrides DefaultSchedule with a standard five-field cron spec.
func (s *Sweeper) SetSchedule(spec string) { s.schedule = spec }

// Start registers the sweep job and begins running it in the background.
// Stop must be called to release the scheduler's goroutine.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() { s.runOnce(ctx) })
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce performs a single sweep immediately, independent of the schedule.
// Exposed for admin-triggered sweeps and tests.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.ttl)
	return s.store.DeleteTerminalLogsOlderThan(ctx, cutoff)
}

func (s *Sweeper) runOnce(ctx context.Context) {
	deleted, err := s.RunOnce(ctx)
	if err != nil {
		slog.Error("retention: sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("retention: swept terminal log lines", "deleted", deleted, "ttl", s.ttl)
	}
}
