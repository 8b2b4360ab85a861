package digest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/edgard/surveybot/internal/chatlog"
	"github.com/edgard/surveybot/internal/config"
	"github.com/edgard/surveybot/internal/database"
	apperrors "github.com/edgard/surveybot/internal/errors"
	"github.com/edgard/surveybot/internal/i18n"
	"github.com/edgard/surveybot/internal/render"
	"github.com/edgard/surveybot/internal/telegram/telegramtest"
)

const (
	scope = "bot1"
	label = "Upcoming events · March 2026"
)

func newReconciler(t *testing.T) (*Reconciler, database.Store, *telegramtest.Recorder) {
	t.Helper()
	ctx := context.Background()

	tr, err := i18n.NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	renderer := render.NewRenderer(tr, config.ButtonsConfig{}, time.UTC)
	store := database.NewMemoryStore()
	if err := store.CreateEvent(ctx, &database.Event{Location: "Park A", Date: "20/3/2026", TimeRange: "07:30 - 09:30", Organizer: "WWF-led"}); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	tg := telegramtest.NewRecorder()

	r := NewReconciler(tg, store, renderer, chatlog.NewWriter(store, scope, time.UTC, nil), scope, nil)
	r.now = func() time.Time { return time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC) }
	return r, store, tg
}

func cachedID(t *testing.T, store database.Store, chatID int64) int {
	t.Helper()
	rec, err := store.GetDigestRecord(context.Background(), chatID, database.DigestKindUpcoming)
	if err != nil {
		t.Fatalf("GetDigestRecord() error = %v", err)
	}
	if rec == nil {
		return 0
	}
	return rec.MessageID
}

func TestReconcileCachedEditSkipsGetChat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, store, tg := newReconciler(t)
	_ = store.SetDigestRecord(ctx, &database.DigestRecord{ChatID: 1, MessageID: 50})

	got, err := r.Reconcile(ctx, 1)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got != OutcomeCached {
		t.Errorf("Reconcile() = %v, want cached", got)
	}
	if n := len(tg.Calls("getChat")); n != 0 {
		t.Errorf("getChat called %d times", n)
	}
	text, _ := tg.Text(1, 50)
	if !strings.Contains(text, label) || !strings.Contains(text, "Park A") {
		t.Errorf("digest text = %q", text)
	}
}

func TestReconcileResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		record     int
		editErr    error
		pinnedID   int
		pinnedText string
		want       Outcome
		wantCached func(id int) bool
		wantSends  int
		wantUnpin  int
	}{
		{
			name:       "stale cache falls back to pinned lookup",
			record:     50,
			editErr:    apperrors.NewNotFoundError("editMessageText", nil),
			want:       OutcomeCreated,
			wantCached: func(id int) bool { return id > 1000 },
			wantSends:  1,
		},
		{
			name:       "pinned message with period header is adopted",
			pinnedID:   77,
			pinnedText: "🗓 " + label + "\n\nWWF-led",
			want:       OutcomeAdopted,
			wantCached: func(id int) bool { return id == 77 },
		},
		{
			name:       "pinned digest of another period is replaced and unpinned",
			pinnedID:   77,
			pinnedText: "🗓 Upcoming events · February 2026",
			want:       OutcomeCreated,
			wantCached: func(id int) bool { return id > 1000 },
			wantSends:  1,
			wantUnpin:  77,
		},
		{
			name:       "unrelated pinned message stays pinned",
			pinnedID:   78,
			pinnedText: "Welcome to the group",
			want:       OutcomeCreated,
			wantCached: func(id int) bool { return id > 1000 },
			wantSends:  1,
		},
		{
			name:       "no cache and nothing pinned",
			want:       OutcomeCreated,
			wantCached: func(id int) bool { return id > 1000 },
			wantSends:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			r, store, tg := newReconciler(t)
			const chatID = 9

			if tt.record != 0 {
				_ = store.SetDigestRecord(ctx, &database.DigestRecord{ChatID: chatID, MessageID: tt.record})
			}
			if tt.editErr != nil {
				tg.FailOn("editMessageText", chatID, tt.editErr)
			}
			if tt.pinnedID != 0 {
				tg.SetPinned(chatID, tt.pinnedID, tt.pinnedText)
			}

			got, err := r.Reconcile(ctx, chatID)
			if err != nil {
				t.Fatalf("Reconcile() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Reconcile() = %v, want %v", got, tt.want)
			}
			if n := len(tg.Calls("getChat")); n != 1 {
				t.Errorf("getChat calls = %d, want 1", n)
			}
			if id := cachedID(t, store, chatID); !tt.wantCached(id) {
				t.Errorf("cached message id = %d", id)
			}
			if n := len(tg.Calls("sendMessage")); n != tt.wantSends {
				t.Errorf("sendMessage calls = %d, want %d", n, tt.wantSends)
			}
			if tt.want == OutcomeCreated {
				pins := tg.Calls("pinChatMessage")
				if len(pins) != 1 || !pins[0].Silent {
					t.Errorf("pin calls = %+v, want one silent pin", pins)
				}
			}
			unpins := tg.Calls("unpinChatMessage")
			switch {
			case tt.wantUnpin == 0 && len(unpins) != 0:
				t.Errorf("unpin calls = %+v, want none", unpins)
			case tt.wantUnpin != 0 && (len(unpins) != 1 || unpins[0].MessageID != tt.wantUnpin):
				t.Errorf("unpin calls = %+v, want message %d", unpins, tt.wantUnpin)
			}
		})
	}
}

func TestReconcileStopsOnOtherEditError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, store, tg := newReconciler(t)
	_ = store.SetDigestRecord(ctx, &database.DigestRecord{ChatID: 1, MessageID: 50})
	tg.FailOn("editMessageText", 1, apperrors.NewTransportError("editMessageText", nil))

	if _, err := r.Reconcile(ctx, 1); !apperrors.IsTransport(err) {
		t.Fatalf("Reconcile() error = %v, want transport error", err)
	}
	if len(tg.Calls("getChat")) != 0 || len(tg.Calls("sendMessage")) != 0 {
		t.Error("reconcile continued after a non-not-found edit error")
	}
}

func TestReconcileRerunEditsSameMessage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, store, tg := newReconciler(t)

	if got, _ := r.Reconcile(ctx, 1); got != OutcomeCreated {
		t.Fatalf("first Reconcile() = %v", got)
	}
	first := cachedID(t, store, 1)
	if got, _ := r.Reconcile(ctx, 1); got != OutcomeCached {
		t.Fatalf("second Reconcile() = %v", got)
	}
	if cachedID(t, store, 1) != first || len(tg.Calls("sendMessage")) != 1 {
		t.Error("rerun created a second digest")
	}

	entries, _ := store.ListChatLog(ctx, scope, 1)
	if len(entries) != 1 || entries[0].Category != database.CategoryDigest {
		t.Errorf("chat log = %+v, want one digest entry", entries)
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, store, tg := newReconciler(t)
	for _, chatID := range []int64{1, 2, 3} {
		_ = store.UpsertSubscriber(ctx, &database.Subscriber{ChatID: chatID, TokenScope: scope})
	}
	tg.FailOn("sendMessage", 2, apperrors.NewForbiddenError("sendMessage", nil))

	if err := r.Sweep(ctx); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if cachedID(t, store, 1) == 0 || cachedID(t, store, 3) == 0 {
		t.Error("healthy chats not reconciled")
	}
	if cachedID(t, store, 2) != 0 {
		t.Error("failed chat cached a digest")
	}
}
