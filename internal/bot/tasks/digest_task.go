package tasks

import "context"

func newDigestSweepTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		return deps.Digests.Sweep(ctx)
	}
}
