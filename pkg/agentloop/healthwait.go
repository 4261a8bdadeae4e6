package agentloop

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// DefaultHealthCheckCap is the default overall budget for waitForHealthy:
// the total cap is configurable, defaulting to 10 minutes.
const DefaultHealthCheckCap = 10 * time.Minute

const healthCheckStepCap = 10 * time.Second

// HealthCheck reports whether the engine is ready to accept benchmark
// traffic. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// waitForHealthy polls check with exponential backoff (1s doubling per
// attempt, capped at 10s per attempt, each wait jittered into
// [wait/2, wait]) until it succeeds, ctx is cancelled, or totalCap elapses.
func waitForHealthy(ctx context.Context, check HealthCheck, totalCap time.Duration) error {
	if totalCap <= 0 {
		totalCap = DefaultHealthCheckCap
	}
	deadline := time.Now().Add(totalCap)

	attempt := 0
	for {
		if err := check(ctx); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("health check did not pass within %s", totalCap)
		}

		wait := time.Duration(1<<attempt) * time.Second
		if wait > healthCheckStepCap || wait <= 0 {
			wait = healthCheckStepCap
		}
		wait = wait/2 + time.Duration(rand.Int64N(int64(wait/2+1)))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		attempt++
	}
}
