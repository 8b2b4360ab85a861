package tasks

import (
	"context"
	"fmt"
)

func newLifecycleSweepTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		if _, err := deps.Lifecycle.Run(ctx, deps.now()); err != nil {
			return fmt.Errorf("lifecycle sweep failed: %w", err)
		}
		return nil
	}
}
