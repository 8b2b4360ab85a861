// Package lifecycle closes events once their start time has passed.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/surveybot/internal/database"
	"github.com/edgard/surveybot/internal/eventtime"
)

// DigestSweeper refreshes every chat's digest.
type DigestSweeper interface {
	Sweep(ctx context.Context) error
}

type Sweeper struct {
	store   database.Store
	digests DigestSweeper
	loc     *time.Location
	logger  *slog.Logger
}

// NewSweeper returns a Sweeper. digests may be nil.
func NewSweeper(store database.Store, digests DigestSweeper, loc *time.Location, logger *slog.Logger) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:   store,
		digests: digests,
		loc:     loc,
		logger:  logger.With("component", "lifecycle"),
	}
}

// Run marks every upcoming event whose start instant is strictly before now
// as past and returns how many flipped. When any did, the digests are swept so
// they drop the closed events.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (int, error) {
	events, err := s.store.ListEventsByLifecycle(ctx, database.LifecycleUpcoming)
	if err != nil {
		return 0, fmt.Errorf("failed to list upcoming events: %w", err)
	}

	flipped := 0
	for _, ev := range events {
		start, err := eventtime.StartInstant(ev.Date, ev.TimeRange, s.loc)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping event with unparseable start", "event_id", ev.ID, "error", err)
			continue
		}
		if !now.After(start) {
			continue
		}
		changed, err := s.store.SetLifecycle(ctx, ev.ID, database.LifecyclePast)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to close event", "event_id", ev.ID, "error", err)
			continue
		}
		if changed {
			flipped++
			s.logger.InfoContext(ctx, "Event closed", "event_id", ev.ID, "start", start)
		}
	}

	if flipped > 0 && s.digests != nil {
		if err := s.digests.Sweep(ctx); err != nil {
			return flipped, fmt.Errorf("failed to refresh digests: %w", err)
		}
	}
	return flipped, nil
}
