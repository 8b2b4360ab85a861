package tasks

import (
	"context"
	"fmt"
)

func newReplicaCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		if _, err := deps.Replicas.CleanupOrphans(ctx); err != nil {
			return fmt.Errorf("replica cleanup failed: %w", err)
		}
		return nil
	}
}
