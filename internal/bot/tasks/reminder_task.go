package tasks

import (
	"context"
	"fmt"
)

func newEventReminderTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "event_reminder")

	return func(ctx context.Context) error {
		n, err := deps.Reminder.Run(ctx, deps.now())
		if err != nil {
			return fmt.Errorf("event reminder failed: %w", err)
		}
		log.InfoContext(ctx, "Event reminders processed", "events", n)
		return nil
	}
}
