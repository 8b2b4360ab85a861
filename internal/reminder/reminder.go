// Package reminder announces events a fixed number of days before they
// happen.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/surveybot/internal/database"
	"github.com/edgard/surveybot/internal/eventtime"
	"github.com/edgard/surveybot/internal/fanout"
)

// DueForReminder reports whether date minus daysBefore is today in loc.
func DueForReminder(date string, now time.Time, loc *time.Location, daysBefore int) (bool, error) {
	day, err := eventtime.ParseDate(date, loc)
	if err != nil {
		return false, err
	}
	return eventtime.SameDay(day.AddDate(0, 0, -daysBefore), now, loc), nil
}

type Scheduler struct {
	store      database.Store
	fanout     *fanout.Fanout
	loc        *time.Location
	daysBefore int
	logger     *slog.Logger
}

func NewScheduler(store database.Store, fan *fanout.Fanout, loc *time.Location, daysBefore int, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:      store,
		fanout:     fan,
		loc:        loc,
		daysBefore: daysBefore,
		logger:     logger.With("component", "reminder"),
	}
}

// Run announces every upcoming event due today and returns how many were
// announced. Events already announced in a chat are edited there instead of
// sent again, so a rerun on the same day is harmless.
func (s *Scheduler) Run(ctx context.Context, now time.Time) (int, error) {
	events, err := s.store.ListEventsByLifecycle(ctx, database.LifecycleUpcoming)
	if err != nil {
		return 0, fmt.Errorf("failed to list upcoming events: %w", err)
	}

	announced := 0
	for _, ev := range events {
		due, err := DueForReminder(ev.Date, now, s.loc, s.daysBefore)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping event with unparseable date", "event_id", ev.ID, "error", err)
			continue
		}
		if !due {
			continue
		}
		res, err := s.fanout.Announce(ctx, ev)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to announce event", "event_id", ev.ID, "error", err)
			continue
		}
		announced++
		s.logger.InfoContext(ctx, "Event reminder sent", "event_id", ev.ID, "date", ev.Date,
			"sent", res.Sent, "updated", res.Updated, "failed", res.Failed)
	}
	return announced, nil
}
