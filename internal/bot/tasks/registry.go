package tasks

import (
	"context"

	"github.com/edgard/surveybot/internal/config"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The returned error is logged by the scheduler.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns every task keyed by the name used in the
// scheduler.tasks configuration section.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		config.TaskPollUpdates:    newPollUpdatesTask(deps),
		config.TaskLifecycleSweep: newLifecycleSweepTask(deps),
		config.TaskEventReminder:  newEventReminderTask(deps),
		config.TaskDigestSweep:    newDigestSweepTask(deps),
		config.TaskReplicaCleanup: newReplicaCleanupTask(deps),
		config.TaskSQLMaintenance: newSQLMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
