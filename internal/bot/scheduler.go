package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/surveybot/internal/bot/tasks"
	"github.com/edgard/surveybot/internal/config"
)

// Scheduler runs the registered tasks on their configured cron schedule or
// interval. A task never overlaps with itself: a run that is due while the
// previous one is still going is skipped.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler whose cron expressions are evaluated in loc.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc, loc *time.Location) (*Scheduler, error) {
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

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start schedules every enabled task and starts ticking. Tasks run with a
// context derived from ctx that is not cancelled on shutdown, so calls in
// flight finish; Stop waits for them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}

	taskCtx := context.WithoutCancel(ctx)

	var names []string
	if s.cfg != nil {
		for name := range s.cfg.Tasks {
			names = append(names, name)
		}
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
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		var definition gocron.JobDefinition
		var when string
		switch {
		case taskConfig.Schedule != "":
			definition = gocron.CronJob(taskConfig.Schedule, false)
			when = taskConfig.Schedule
		case taskConfig.Interval > 0:
			definition = gocron.DurationJob(taskConfig.Interval)
			when = "every " + taskConfig.Interval.String()
		default:
			s.logger.Warn("Scheduled task enabled but has neither schedule nor interval, skipping", "task_name", taskName)
			continue
		}

		name, fn := taskName, taskFunc
		_, err := s.scheduler.NewJob(
			definition,
			gocron.NewTask(func() { s.run(taskCtx, name, fn) }),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", taskName, err)
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "when", when)
		scheduledCount++
	}

	if scheduledCount == 0 {
		s.logger.Warn("No scheduler tasks configured.")
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", scheduledCount)
	return nil
}

// run wraps one task execution with logging. Frequent tasks log at debug so
// the poll loop does not flood the output.
func (s *Scheduler) run(ctx context.Context, name string, fn tasks.ScheduledTaskFunc) {
	log := s.logger.With("task_name", name)
	level := slog.LevelInfo
	if name == config.TaskPollUpdates || name == config.TaskLifecycleSweep {
		level = slog.LevelDebug
	}

	log.Log(ctx, level, "Running scheduled task")
	startTime := time.Now()
	if err := fn(ctx); err != nil {
		log.ErrorContext(ctx, "Scheduled task failed", "error", err)
	}
	log.Log(ctx, level, "Finished scheduled task", "duration", time.Since(startTime))
}

// JobNames returns the names of the scheduled jobs, sorted.
func (s *Scheduler) JobNames() []string {
	var names []string
	for _, j := range s.scheduler.Jobs() {
		names = append(names, j.Name())
	}
	sort.Strings(names)
	return names
}

// Stop stops scheduling and waits for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	s.logger.Debug("Stopping scheduler gracefully (waiting for jobs)...")
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
