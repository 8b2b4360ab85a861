package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/edgard/surveybot/internal/database"
)

type countingSweeper struct{ calls int }

func (c *countingSweeper) Sweep(context.Context) error {
	c.calls++
	return nil
}

func TestRunFlipsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	loc := time.FixedZone("UTC-3", -3*3600)
	store := database.NewMemoryStore()

	events := []*database.Event{
		{Location: "started", Date: "20/3/2026", TimeRange: "07:30 - 09:30"},
		{Location: "starting now", Date: "20/3/2026", TimeRange: "08:00 – 10:00"},
		{Location: "later", Date: "21/3/2026", TimeRange: "07:00 - 08:00"},
		{Location: "broken", Date: "sometime", TimeRange: "07:00 - 08:00"},
	}
	for _, ev := range events {
		if err := store.CreateEvent(ctx, ev); err != nil {
			t.Fatalf("CreateEvent() error = %v", err)
		}
	}

	digests := &countingSweeper{}
	s := NewSweeper(store, digests, loc, nil)
	// 08:00 at UTC-3.
	now := time.Date(2026, 3, 20, 11, 0, 0, 0, time.UTC)

	n, err := s.Run(ctx, now)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Run() flipped %d, want 1", n)
	}
	if got, _ := store.GetEvent(ctx, events[0].ID); got.Lifecycle != database.LifecyclePast {
		t.Errorf("started event lifecycle = %s", got.Lifecycle)
	}
	if got, _ := store.GetEvent(ctx, events[1].ID); got.Lifecycle != database.LifecycleUpcoming {
		t.Error("event starting exactly now was closed")
	}
	if digests.calls != 1 {
		t.Errorf("digest sweeps = %d, want 1", digests.calls)
	}

	n, err = s.Run(ctx, now)
	if err != nil || n != 0 {
		t.Errorf("second Run() = %d, %v; want no-op", n, err)
	}
	if digests.calls != 1 {
		t.Error("no-op sweep refreshed digests")
	}
}
