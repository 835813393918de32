package tasks

import (
	"context"
	"time"
)

// newEvictionTask clears suppression history and rate-limiter state.
func newEvictionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "cache_eviction")

	return func(ctx context.Context) error {
		startTime := time.Now()
		for _, r := range deps.Resetters {
			r.Reset()
		}
		log.InfoContext(ctx, "Suppression and rate-limit state cleared", "duration", time.Since(startTime))
		return nil
	}
}
