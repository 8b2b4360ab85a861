package handlers

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/surveybot/internal/chatlog"
	"github.com/edgard/surveybot/internal/config"
	"github.com/edgard/surveybot/internal/database"
	"github.com/edgard/surveybot/internal/digest"
	"github.com/edgard/surveybot/internal/dispatch"
	"github.com/edgard/surveybot/internal/fanout"
	"github.com/edgard/surveybot/internal/i18n"
	"github.com/edgard/surveybot/internal/registration"
	"github.com/edgard/surveybot/internal/render"
	"github.com/edgard/surveybot/internal/telegram/telegramtest"
)

type harness struct {
	store      database.Store
	tg         *telegramtest.Recorder
	deps       HandlerDeps
	dispatcher *dispatch.Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Telegram: config.TelegramConfig{Token: "4242:secret", TrainingLink: "https://example.org/training"},
		Buttons:  config.ButtonsConfig{JoinLabel: "Join", LeaveLabel: "Leave", JoinPrefix: "join_", LeavePrefix: "leave_"},
	}
	scope := cfg.Telegram.Scope()

	tr, err := i18n.NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	store := database.NewMemoryStore()
	tg := telegramtest.NewRecorder()
	renderer := render.NewRenderer(tr, cfg.Buttons, time.UTC)
	chatLog := chatlog.NewWriter(store, scope, time.UTC, logger)
	fan := fanout.New(tg, store, renderer, chatLog, fanout.Options{TokenScope: scope, Concurrency: 2}, logger)

	deps := HandlerDeps{
		Logger:       logger,
		Config:       cfg,
		Store:        store,
		Transport:    tg,
		Renderer:     renderer,
		ChatLog:      chatLog,
		Registration: registration.NewService(tg, store, fan, renderer, logger),
		Digests:      digest.NewReconciler(tg, store, renderer, chatLog, scope, logger),
	}
	d := dispatch.New(tg, RegisterAll(deps), dispatch.Options{
		Prefixes: dispatch.Prefixes{Join: cfg.Buttons.JoinPrefix, Leave: cfg.Buttons.LeavePrefix},
	}, logger)
	return &harness{store: store, tg: tg, deps: deps, dispatcher: d}
}

func command(id int64, chatID int64, text string) models.Update {
	return models.Update{ID: id, Message: &models.Message{
		ID:   int(id),
		Chat: models.Chat{ID: chatID, Type: "group", Title: "Birders"},
		From: &models.User{ID: 7, FirstName: "Ana"},
		Text: text,
	}}
}

func press(id int64, data string, chatID int64, messageID int, name string) models.Update {
	return models.Update{ID: id, CallbackQuery: &models.CallbackQuery{
		ID:   "cb" + data,
		From: models.User{ID: 8, FirstName: name},
		Data: data,
		Message: models.MaybeInaccessibleMessage{
			Message: &models.Message{ID: messageID, Chat: models.Chat{ID: chatID}},
		},
	}}
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	if err := h.dispatcher.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
}

func TestStartSubscribesAndWelcomes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	h.tg.QueueUpdates(command(1, -100, "/start@survey_bot"))
	h.tick(t)

	subs, _ := h.store.ListActiveSubscribers(ctx, "4242")
	if len(subs) != 1 || subs[0].ChatID != -100 || subs[0].Name != "Birders" || subs[0].ChatType != "group" {
		t.Fatalf("subscribers = %+v", subs)
	}
	sent := h.tg.Calls("sendMessage")
	if len(sent) != 1 || !strings.Contains(sent[0].Text, "https://example.org/training") {
		t.Errorf("welcome = %+v", sent)
	}

	// A second /start refreshes instead of duplicating.
	h.tg.QueueUpdates(command(2, -100, "/start"))
	h.tick(t)
	if subs, _ := h.store.ListActiveSubscribers(ctx, "4242"); len(subs) != 1 {
		t.Errorf("subscribers after second /start = %d", len(subs))
	}
}

func TestUpcomingReconcilesDigest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	_ = h.store.CreateEvent(ctx, &database.Event{Location: "Park A", Date: "20/3/2099", TimeRange: "07:30 - 09:30", Organizer: "WWF-led"})

	h.tg.QueueUpdates(command(1, -100, "/upcoming"))
	h.tick(t)
	h.tg.QueueUpdates(command(2, -100, "/upcoming"))
	h.tick(t)

	if n := len(h.tg.Calls("sendMessage")); n != 1 {
		t.Errorf("digest sends = %d, want 1", n)
	}
	if n := len(h.tg.Calls("editMessageText")); n != 1 {
		t.Errorf("digest edits = %d, want 1", n)
	}
	rec, _ := h.store.GetDigestRecord(ctx, -100, database.DigestKindUpcoming)
	if rec == nil {
		t.Fatal("digest not cached")
	}
	text, _ := h.tg.Text(-100, rec.MessageID)
	if !strings.Contains(text, "Park A") {
		t.Errorf("digest text = %q", text)
	}
}

func TestButtonPresses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	ev := &database.Event{Location: "Park A", Date: "20/3/2026", TimeRange: "07:30 - 09:30"}
	_ = h.store.CreateEvent(ctx, ev)
	_ = h.store.RecordReplica(ctx, &database.Replica{EventID: ev.ID, ChatID: -100, MessageID: 55})

	h.tg.QueueUpdates(
		press(1, "join_1", -100, 55, "Alice"),
		press(2, "join_1", -100, 55, "Alice"),
		press(3, "join_999", -100, 55, "Alice"),
		press(4, "join_abc", -100, 55, "Alice"),
		press(5, "leave_1", -100, 55, "Bob"),
	)
	h.tick(t)

	got, _ := h.store.GetEvent(ctx, ev.ID)
	if len(got.Participants) != 1 || got.Participants[0] != "Alice" {
		t.Errorf("roster = %v, want [Alice]", got.Participants)
	}

	var acks []string
	for _, c := range h.tg.Calls("answerCallbackQuery") {
		acks = append(acks, c.Text)
	}
	want := []string{
		"You have joined the event.",
		"You are already registered for this event.",
		"This event no longer exists.",
		"This button is no longer valid.",
		"You are not registered for this event.",
	}
	if strings.Join(acks, "|") != strings.Join(want, "|") {
		t.Errorf("acks = %q, want %q", acks, want)
	}
}

func TestTextIsLogged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	h.tg.QueueUpdates(command(1, -100, "see you at the park"))
	h.tick(t)

	entries, _ := h.store.ListChatLog(ctx, "4242", -100)
	if len(entries) != 1 || entries[0].Sender != database.SenderUser || entries[0].Text != "see you at the park" {
		t.Errorf("chat log = %+v", entries)
	}
}

func TestCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	cmds := Commands(h.deps)
	if len(cmds) != 2 || cmds[0].Name != "start" || cmds[1].Name != "upcoming" || cmds[1].Description == "" {
		t.Errorf("Commands() = %+v", cmds)
	}
}
