package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/keywatch/internal/bot/tasks"
	"github.com/edgard/keywatch/internal/config"
)

// Scheduler runs the registered tasks on their cron schedules in the
// configured time zone.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	loc       *time.Location
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	now       func() time.Time
}

// NewScheduler creates a scheduler whose cron expressions are evaluated in loc.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, loc *time.Location, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		loc:       loc,
		taskMap:   taskMap,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}, nil
}

// Start schedules every enabled task and starts the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}

	names := make([]string, 0, len(s.cfg.Tasks))
	for name := range s.cfg.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	scheduledCount := 0
	for _, taskName := range names {
		taskConfig := s.cfg.Tasks[taskName]
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.Warn("Scheduled task configured but not registered, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, withSeconds(taskConfig.Schedule)),
			gocron.NewTask(s.run, s.ctx, taskName, taskFunc),
			gocron.WithName(taskName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule task %q (%s): %w", taskName, taskConfig.Schedule, err)
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started",
		"tasks_scheduled", scheduledCount,
		"timezone", s.loc.String(),
		"next_eviction", NextBoundary(s.now(), s.loc))

	return nil
}

// withSeconds reports whether expr carries a leading seconds field.
func withSeconds(expr string) bool {
	return len(strings.Fields(expr)) == 6
}

func (s *Scheduler) run(ctx context.Context, name string, task tasks.ScheduledTaskFunc) {
	s.logger.Info("Running scheduled task", "task_name", name)
	startTime := time.Now()
	if err := task(ctx); err != nil {
		s.logger.Error("Scheduled task failed", "task_name", name, "error", err)
	}
	s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped")
	}

	s.running = false
	return err
}

// NextBoundary returns the first local midnight in loc strictly after now.
// Where a DST transition skips midnight, the first instant of the day is used.
func NextBoundary(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	// time.Date may resolve a nonexistent midnight to the previous evening.
	wy, wm, wd := time.Date(y, m, d+1, 12, 0, 0, 0, loc).Date()
	if ny, nm, nd := next.Date(); ny != wy || nm != wm || nd != wd {
		_, next = next.ZoneBounds()
	}
	return next
}
