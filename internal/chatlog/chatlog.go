// Package chatlog writes the per-chat message log. Event and digest messages
// are edited many times, so their entries are rewritten in place by marker
// instead of appended.
package chatlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/surveybot/internal/database"
)

type Writer struct {
	store  database.Store
	scope  string
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

func NewWriter(store database.Store, tokenScope string, loc *time.Location, logger *slog.Logger) *Writer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		store:  store,
		scope:  tokenScope,
		loc:    loc,
		logger: logger.With("component", "chat_log"),
		now:    time.Now,
	}
}

// Bot logs a message the bot sent or edited. An empty marker always appends.
func (w *Writer) Bot(ctx context.Context, chatID int64, text, category, marker string) {
	w.write(ctx, &database.ChatLogEntry{ChatID: chatID, Text: text, Sender: database.SenderBot, Category: category}, marker)
}

// User appends a message received from a chat.
func (w *Writer) User(ctx context.Context, chatID int64, text string) {
	w.write(ctx, &database.ChatLogEntry{ChatID: chatID, Text: text, Sender: database.SenderUser, Category: database.CategoryMessage}, "")
}

// write never fails the caller; a lost log line is not worth a lost send.
func (w *Writer) write(ctx context.Context, entry *database.ChatLogEntry, marker string) {
	now := w.now()
	entry.TokenScope = w.scope
	entry.Timestamp = now.UTC()
	entry.Date = now.In(w.loc).Format(time.DateOnly)
	if err := w.store.UpsertOrAppendChatLog(ctx, entry, marker); err != nil {
		w.logger.WarnContext(ctx, "Failed to write chat log entry", "chat_id", entry.ChatID, "category", entry.Category, "error", err)
	}
}
