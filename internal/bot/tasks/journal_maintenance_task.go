package tasks

import (
	"context"
	"fmt"
	"time"
)

// newJournalMaintenanceTask prunes journal rows past the retention window and
// then compacts the database.
func newJournalMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "journal_maintenance")
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting journal maintenance...")
		startTime := time.Now()

		if days := deps.Config.Database.RetentionDays; days > 0 {
			cutoff := now().AddDate(0, 0, -days)
			pruned, err := deps.Store.PruneAlerts(ctx, cutoff)
			if err != nil {
				log.ErrorContext(ctx, "Failed to prune journal", "error", err, "cutoff", cutoff)
				return fmt.Errorf("prune journal: %w", err)
			}
			log.InfoContext(ctx, "Pruned journal", "rows", pruned, "cutoff", cutoff)
		}

		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Journal maintenance completed", "duration", time.Since(startTime))
		return nil
	}
}
