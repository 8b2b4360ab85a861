package tasks

import "context"

func newPollUpdatesTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		return deps.Poller.Tick(ctx)
	}
}
