package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/edgard/surveybot/internal/chatlog"
	"github.com/edgard/surveybot/internal/config"
	"github.com/edgard/surveybot/internal/database"
	"github.com/edgard/surveybot/internal/fanout"
	"github.com/edgard/surveybot/internal/i18n"
	"github.com/edgard/surveybot/internal/render"
	"github.com/edgard/surveybot/internal/telegram/telegramtest"
)

func TestDueForReminder(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+10", 10*3600)

	tests := []struct {
		name    string
		date    string
		now     time.Time
		want    bool
		wantErr bool
	}{
		{"two days ahead", "20/3/2026", time.Date(2026, 3, 18, 9, 0, 0, 0, loc), true, false},
		{"day before threshold", "20/3/2026", time.Date(2026, 3, 17, 9, 0, 0, 0, loc), false, false},
		{"day after threshold", "20/3/2026", time.Date(2026, 3, 19, 9, 0, 0, 0, loc), false, false},
		// 18 March 20:00 UTC is already 19 March at UTC+10.
		{"reference timezone decides the day", "20/3/2026", time.Date(2026, 3, 18, 20, 0, 0, 0, time.UTC), false, false},
		{"across month end", "1/4/2026", time.Date(2026, 3, 30, 0, 30, 0, 0, loc), true, false},
		{"bad date", "tomorrow", time.Date(2026, 3, 18, 9, 0, 0, 0, loc), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DueForReminder(tt.date, tt.now, loc, 2)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DueForReminder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DueForReminder() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunAnnouncesDueEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tr, err := i18n.NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	renderer := render.NewRenderer(tr, config.ButtonsConfig{JoinPrefix: "join_", LeavePrefix: "leave_"}, time.UTC)
	store := database.NewMemoryStore()
	tg := telegramtest.NewRecorder()
	fan := fanout.New(tg, store, renderer, chatlog.NewWriter(store, "bot1", time.UTC, nil), fanout.Options{TokenScope: "bot1"}, nil)

	for _, chatID := range []int64{1, 2} {
		_ = store.UpsertSubscriber(ctx, &database.Subscriber{ChatID: chatID, TokenScope: "bot1"})
	}
	due := &database.Event{Location: "Park A", Date: "20/3/2026", TimeRange: "07:30 - 09:30"}
	later := &database.Event{Location: "Park B", Date: "21/3/2026", TimeRange: "07:30 - 09:30"}
	_ = store.CreateEvent(ctx, due)
	_ = store.CreateEvent(ctx, later)

	s := NewScheduler(store, fan, time.UTC, 2, nil)
	now := time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)

	n, err := s.Run(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("Run() = %d, %v; want 1 event", n, err)
	}
	if replicas, _ := store.ListReplicas(ctx, due.ID); len(replicas) != 2 {
		t.Errorf("due event replicas = %d, want 2", len(replicas))
	}
	if replicas, _ := store.ListReplicas(ctx, later.ID); len(replicas) != 0 {
		t.Errorf("later event announced early")
	}

	// Running again the same day edits in place.
	if _, err := s.Run(ctx, now); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if sends := len(tg.Calls("sendMessage")); sends != 2 {
		t.Errorf("sendMessage calls = %d, want 2", sends)
	}
	if edits := len(tg.Calls("editMessageText")); edits != 2 {
		t.Errorf("editMessageText calls = %d, want 2", edits)
	}
}
