package chatlog

import (
	"context"
	"testing"
	"time"

	"github.com/edgard/surveybot/internal/database"
)

func TestWriter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()
	w := NewWriter(store, "bot1", time.FixedZone("UTC-5", -5*3600), nil)
	w.now = func() time.Time { return time.Date(2026, 3, 18, 2, 0, 0, 0, time.UTC) }

	w.User(ctx, 7, "hi")
	w.Bot(ctx, 7, "Date: 20/3/2026 (v1)", database.CategoryEventReminder, "20/3/2026")
	w.Bot(ctx, 7, "Date: 20/3/2026 (v2)", database.CategoryEventReminder, "20/3/2026")

	entries, err := store.ListChatLog(ctx, "bot1", 7)
	if err != nil {
		t.Fatalf("ListChatLog() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want 2", entries)
	}
	if entries[0].Sender != database.SenderUser || entries[0].Category != database.CategoryMessage {
		t.Errorf("user entry = %+v", entries[0])
	}
	if entries[1].Text != "Date: 20/3/2026 (v2)" {
		t.Errorf("reminder entry = %q, want latest text", entries[1].Text)
	}
	// 02:00 UTC is still 17 March at UTC-5.
	if entries[1].Date != "2026-03-17" {
		t.Errorf("entry date = %q, want reference-timezone day", entries[1].Date)
	}
}

func TestWriterKeepsEventsOnNeighbouringDatesApart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()
	w := NewWriter(store, "bot1", time.UTC, nil)

	w.Bot(ctx, 100, "Date: 12/3/2026", database.CategoryEventReminder, "12/3/2026")
	w.Bot(ctx, 100, "Date: 2/3/2026", database.CategoryEventReminder, "2/3/2026")
	w.Bot(ctx, 100, "Date: 2/3/2026 (edited)", database.CategoryEventReminder, "2/3/2026")

	entries, err := store.ListChatLog(ctx, "bot1", 100)
	if err != nil {
		t.Fatalf("ListChatLog() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want 2", entries)
	}
	texts := map[string]bool{entries[0].Text: true, entries[1].Text: true}
	if !texts["Date: 12/3/2026"] || !texts["Date: 2/3/2026 (edited)"] {
		t.Errorf("entries = %+v, want the 12/3 entry untouched and the 2/3 entry rewritten", entries)
	}
}
