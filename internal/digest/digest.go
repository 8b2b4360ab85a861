// Package digest keeps one pinned "upcoming events" message per chat in step
// with the open events.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/surveybot/internal/chatlog"
	"github.com/edgard/surveybot/internal/database"
	apperrors "github.com/edgard/surveybot/internal/errors"
	"github.com/edgard/surveybot/internal/render"
	"github.com/edgard/surveybot/internal/telegram"
)

// Outcome tells how a chat's digest was resolved.
type Outcome int

const (
	// OutcomeCached means the cached message was edited.
	OutcomeCached Outcome = iota + 1
	// OutcomeAdopted means the pinned message carried the period header and
	// was edited and cached.
	OutcomeAdopted
	// OutcomeCreated means a new message was sent and pinned.
	OutcomeCreated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCached:
		return "cached"
	case OutcomeAdopted:
		return "adopted"
	case OutcomeCreated:
		return "created"
	default:
		return "unknown"
	}
}

type Reconciler struct {
	transport telegram.Transport
	store     database.Store
	renderer  *render.Renderer
	chatLog   *chatlog.Writer
	scope     string
	logger    *slog.Logger
	now       func() time.Time
}

func NewReconciler(transport telegram.Transport, store database.Store, renderer *render.Renderer, chatLog *chatlog.Writer, tokenScope string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		transport: transport,
		store:     store,
		renderer:  renderer,
		chatLog:   chatLog,
		scope:     tokenScope,
		logger:    logger.With("component", "digest"),
		now:       time.Now,
	}
}

// Reconcile renders the digest for chatID and writes it to the chat, trying
// in order: the cached message, the pinned message if it carries the current
// period header, and finally a new pinned message.
//
// Calls for the same chat must not overlap.
func (r *Reconciler) Reconcile(ctx context.Context, chatID int64) (Outcome, error) {
	events, err := r.store.ListEventsByLifecycle(ctx, database.LifecycleUpcoming)
	if err != nil {
		return 0, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	now := r.now()
	text := r.renderer.DigestText(events, now)
	label := r.renderer.PeriodLabel(now)

	record, err := r.store.GetDigestRecord(ctx, chatID, database.DigestKindUpcoming)
	if err != nil {
		return 0, fmt.Errorf("failed to get digest record: %w", err)
	}

	if record != nil {
		err := r.transport.EditMessageText(ctx, chatID, record.MessageID, text, nil)
		switch {
		case err == nil:
			r.chatLog.Bot(ctx, chatID, text, database.CategoryDigest, label)
			return OutcomeCached, nil
		case apperrors.IsNotFound(err):
			r.logger.DebugContext(ctx, "Cached digest message is gone", "chat_id", chatID, "message_id", record.MessageID)
		default:
			return 0, fmt.Errorf("failed to edit cached digest: %w", err)
		}
	}

	info, err := r.transport.GetChat(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to get chat: %w", err)
	}
	if info.PinnedMessageID != 0 && strings.Contains(info.PinnedText, label) {
		err := r.transport.EditMessageText(ctx, chatID, info.PinnedMessageID, text, nil)
		switch {
		case err == nil:
			if err := r.cache(ctx, chatID, info.PinnedMessageID); err != nil {
				return 0, err
			}
			r.chatLog.Bot(ctx, chatID, text, database.CategoryDigest, label)
			return OutcomeAdopted, nil
		case apperrors.IsNotFound(err):
			r.logger.DebugContext(ctx, "Pinned digest message is gone", "chat_id", chatID, "message_id", info.PinnedMessageID)
		default:
			return 0, fmt.Errorf("failed to edit pinned digest: %w", err)
		}
	}

	messageID, err := r.transport.SendMessage(ctx, chatID, text, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to send digest: %w", err)
	}
	if err := r.cache(ctx, chatID, messageID); err != nil {
		return 0, err
	}
	r.chatLog.Bot(ctx, chatID, text, database.CategoryDigest, label)

	if err := r.transport.PinMessage(ctx, chatID, messageID, true); err != nil {
		r.logger.WarnContext(ctx, "Failed to pin digest", "chat_id", chatID, "message_id", messageID, "error", err)
		return OutcomeCreated, nil
	}
	if r.isStaleDigest(info, label) {
		if err := r.transport.UnpinMessage(ctx, chatID, info.PinnedMessageID); err != nil {
			r.logger.WarnContext(ctx, "Failed to unpin previous digest", "chat_id", chatID, "message_id", info.PinnedMessageID, "error", err)
		}
	}
	return OutcomeCreated, nil
}

// isStaleDigest reports whether the pinned message is a digest of an earlier
// period.
func (r *Reconciler) isStaleDigest(info *telegram.ChatInfo, label string) bool {
	if info.PinnedMessageID == 0 || strings.Contains(info.PinnedText, label) {
		return false
	}
	return strings.Contains(info.PinnedText, r.renderer.DigestTitlePrefix())
}

func (r *Reconciler) cache(ctx context.Context, chatID int64, messageID int) error {
	err := r.store.SetDigestRecord(ctx, &database.DigestRecord{
		ChatID:    chatID,
		Kind:      database.DigestKindUpcoming,
		MessageID: messageID,
	})
	if err != nil {
		return fmt.Errorf("failed to cache digest message: %w", err)
	}
	return nil
}

// Sweep reconciles the digest of every active subscriber, one chat at a time.
// A failing chat is logged and skipped.
func (r *Reconciler) Sweep(ctx context.Context) error {
	subs, err := r.store.ListActiveSubscribers(ctx, r.scope)
	if err != nil {
		return fmt.Errorf("failed to list subscribers: %w", err)
	}

	counts := make(map[Outcome]int)
	failed := 0
	for _, sub := range subs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome, err := r.Reconcile(ctx, sub.ChatID)
		if err != nil {
			failed++
			r.logger.WarnContext(ctx, "Failed to reconcile digest", "chat_id", sub.ChatID, "error", err)
			continue
		}
		counts[outcome]++
	}

	r.logger.InfoContext(ctx, "Digest sweep completed",
		"chats", len(subs),
		"cached", counts[OutcomeCached],
		"adopted", counts[OutcomeAdopted],
		"created", counts[OutcomeCreated],
		"failed", failed)
	return nil
}
