// Package tasks implements the scheduled work of the survey bot: polling,
// lifecycle and reminder sweeps, digest refresh and housekeeping.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/surveybot/internal/database"
	"github.com/edgard/surveybot/internal/lifecycle"
	"github.com/edgard/surveybot/internal/reminder"
)

// Poller runs one update poll.
type Poller interface {
	Tick(ctx context.Context) error
}

// DigestSweeper refreshes the digest of every subscribed chat.
type DigestSweeper interface {
	Sweep(ctx context.Context) error
}

// OrphanCleaner removes replicas of deleted events.
type OrphanCleaner interface {
	CleanupOrphans(ctx context.Context) (int, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger    *slog.Logger
	Store     database.Store
	Poller    Poller
	Lifecycle *lifecycle.Sweeper
	Reminder  *reminder.Scheduler
	Digests   DigestSweeper
	Replicas  OrphanCleaner
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}
