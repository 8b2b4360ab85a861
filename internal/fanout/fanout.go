// Package fanout keeps every chat's copy of an event consistent with the
// event's roster.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/surveybot/internal/chatlog"
	"github.com/edgard/surveybot/internal/database"
	apperrors "github.com/edgard/surveybot/internal/errors"
	"github.com/edgard/surveybot/internal/render"
	"github.com/edgard/surveybot/internal/telegram"
)

// Result counts per-replica outcomes of one fan-out.
type Result struct {
	Updated int
	Sent    int
	Failed  int
}

type Options struct {
	TokenScope string
	// Concurrency bounds how many chats are written to at once. Writes to the
	// same chat are always sequential.
	Concurrency int
}

type Fanout struct {
	transport   telegram.Transport
	store       database.Store
	renderer    *render.Renderer
	chatLog     *chatlog.Writer
	scope       string
	concurrency int
	logger      *slog.Logger
}

func New(transport telegram.Transport, store database.Store, renderer *render.Renderer, chatLog *chatlog.Writer, opts Options, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Fanout{
		transport:   transport,
		store:       store,
		renderer:    renderer,
		chatLog:     chatLog,
		scope:       opts.TokenScope,
		concurrency: opts.Concurrency,
		logger:      logger.With("component", "fanout"),
	}
}

type counter struct {
	updated, sent, failed atomic.Int64
}

func (c *counter) result() Result {
	return Result{Updated: int(c.updated.Load()), Sent: int(c.sent.Load()), Failed: int(c.failed.Load())}
}

// Propagate re-renders ev into every recorded replica. The origin replica,
// the message whose button was pressed, is edited first. A failure on one
// replica is logged and counted and never stops the others; the error is
// only returned when the replicas cannot be listed.
func (f *Fanout) Propagate(ctx context.Context, ev database.Event, origin *database.Replica) (Result, error) {
	replicas, err := f.store.ListReplicas(ctx, ev.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list replicas of event %d: %w", ev.ID, err)
	}

	text := f.renderer.EventText(ev)
	markup := f.renderer.Keyboard(ev.ID)
	var c counter

	if origin != nil {
		f.edit(ctx, ev, *origin, text, markup, &c)
	}

	others := make([]database.Replica, 0, len(replicas))
	for _, r := range replicas {
		if origin != nil && r.ChatID == origin.ChatID && r.MessageID == origin.MessageID {
			continue
		}
		others = append(others, r)
	}

	f.forEachChat(groupByChat(others), func(chatID int64, group []database.Replica) {
		for _, r := range group {
			f.edit(ctx, ev, r, text, markup, &c)
		}
	})

	res := c.result()
	f.logger.InfoContext(ctx, "Propagated event", "event_id", ev.ID, "updated", res.Updated, "failed", res.Failed)
	return res, nil
}

// Broadcast sends ev as a fresh message to every active subscriber and
// records a replica per successful send.
func (f *Fanout) Broadcast(ctx context.Context, ev database.Event) (Result, error) {
	subs, err := f.store.ListActiveSubscribers(ctx, f.scope)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list subscribers: %w", err)
	}

	text := f.renderer.EventText(ev)
	markup := f.renderer.Keyboard(ev.ID)
	var c counter

	f.forEachChat(subscriberChats(subs), func(chatID int64, _ []database.Replica) {
		f.send(ctx, ev, chatID, text, markup, &c)
	})

	res := c.result()
	f.logger.InfoContext(ctx, "Broadcast event", "event_id", ev.ID, "sent", res.Sent, "failed", res.Failed)
	return res, nil
}

// Announce brings every subscriber up to date with ev: chats that already
// hold a replica are edited in place, chats without one get a fresh message.
// An event with no replicas at all is broadcast. Replicas whose message is
// gone are dropped, and a chat left without any is treated as having none.
func (f *Fanout) Announce(ctx context.Context, ev database.Event) (Result, error) {
	replicas, err := f.store.ListReplicas(ctx, ev.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list replicas of event %d: %w", ev.ID, err)
	}
	if len(replicas) == 0 {
		return f.Broadcast(ctx, ev)
	}
	subs, err := f.store.ListActiveSubscribers(ctx, f.scope)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list subscribers: %w", err)
	}

	byChat := groupByChat(replicas)
	subscribed := make(map[int64]bool, len(subs))
	for _, s := range subs {
		subscribed[s.ChatID] = true
		if _, ok := byChat[s.ChatID]; !ok {
			byChat[s.ChatID] = nil
		}
	}

	text := f.renderer.EventText(ev)
	markup := f.renderer.Keyboard(ev.ID)
	var c counter

	f.forEachChat(byChat, func(chatID int64, group []database.Replica) {
		gone := 0
		for _, r := range group {
			if err := f.edit(ctx, ev, r, text, markup, &c); apperrors.IsNotFound(err) {
				gone++
				f.dropReplica(ctx, r)
			}
		}
		if gone == len(group) && subscribed[chatID] {
			f.send(ctx, ev, chatID, text, markup, &c)
		}
	})

	res := c.result()
	f.logger.InfoContext(ctx, "Announced event", "event_id", ev.ID,
		"updated", res.Updated, "sent", res.Sent, "failed", res.Failed)
	return res, nil
}

// CleanupOrphans deletes the messages and rows of replicas whose event no
// longer exists. Replicas whose message could not be deleted for a transient
// reason are kept for the next run.
func (f *Fanout) CleanupOrphans(ctx context.Context) (int, error) {
	orphans, err := f.store.ListOrphanReplicas(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list orphan replicas: %w", err)
	}

	var removed atomic.Int64
	f.forEachChat(groupByChat(orphans), func(chatID int64, group []database.Replica) {
		for _, r := range group {
			err := f.transport.DeleteMessage(ctx, r.ChatID, r.MessageID)
			if err != nil && !apperrors.IsNotFound(err) && !apperrors.IsForbidden(err) {
				f.logger.WarnContext(ctx, "Failed to delete orphan replica message",
					"event_id", r.EventID, "chat_id", r.ChatID, "message_id", r.MessageID, "error", err)
				continue
			}
			if err := f.store.DeleteReplica(ctx, r.ID); err != nil {
				f.logger.ErrorContext(ctx, "Failed to delete orphan replica", "replica_id", r.ID, "error", err)
				continue
			}
			removed.Add(1)
		}
	})

	n := int(removed.Load())
	if n > 0 {
		f.logger.InfoContext(ctx, "Removed orphan replicas", "count", n)
	}
	return n, nil
}

func (f *Fanout) edit(ctx context.Context, ev database.Event, r database.Replica, text string, markup *models.InlineKeyboardMarkup, c *counter) error {
	if err := f.transport.EditMessageText(ctx, r.ChatID, r.MessageID, text, markup); err != nil {
		c.failed.Add(1)
		f.logger.WarnContext(ctx, "Failed to update replica",
			"event_id", ev.ID, "chat_id", r.ChatID, "message_id", r.MessageID, "error", err)
		return err
	}
	c.updated.Add(1)
	f.chatLog.Bot(ctx, r.ChatID, text, database.CategoryEventReminder, ev.Date)
	return nil
}

func (f *Fanout) dropReplica(ctx context.Context, r database.Replica) {
	if err := f.store.DeleteReplica(ctx, r.ID); err != nil {
		f.logger.ErrorContext(ctx, "Failed to drop replica", "replica_id", r.ID, "chat_id", r.ChatID, "error", err)
		return
	}
	f.logger.DebugContext(ctx, "Dropped replica whose message is gone",
		"event_id", r.EventID, "chat_id", r.ChatID, "message_id", r.MessageID)
}

func (f *Fanout) send(ctx context.Context, ev database.Event, chatID int64, text string, markup *models.InlineKeyboardMarkup, c *counter) {
	messageID, err := f.transport.SendMessage(ctx, chatID, text, markup)
	if err != nil {
		c.failed.Add(1)
		f.logger.WarnContext(ctx, "Failed to send event", "event_id", ev.ID, "chat_id", chatID, "error", err)
		if apperrors.IsForbidden(err) {
			if err := f.store.DeactivateSubscriber(ctx, f.scope, chatID); err != nil {
				f.logger.ErrorContext(ctx, "Failed to deactivate subscriber", "chat_id", chatID, "error", err)
			} else {
				f.logger.InfoContext(ctx, "Deactivated subscriber that blocked the bot", "chat_id", chatID)
			}
		}
		return
	}
	c.sent.Add(1)

	replica := &database.Replica{EventID: ev.ID, ChatID: chatID, MessageID: messageID}
	if err := f.store.RecordReplica(ctx, replica); err != nil {
		f.logger.ErrorContext(ctx, "Failed to record replica", "event_id", ev.ID, "chat_id", chatID, "error", err)
	}
	f.chatLog.Bot(ctx, chatID, text, database.CategoryEventReminder, ev.Date)
}

// forEachChat runs fn once per chat on a bounded pool. fn receives all the
// chat's replicas so it can write to them in order.
func (f *Fanout) forEachChat(chats map[int64][]database.Replica, fn func(chatID int64, group []database.Replica)) {
	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for chatID, group := range chats {
		g.Go(func() error {
			fn(chatID, group)
			return nil
		})
	}
	_ = g.Wait()
}

func groupByChat(replicas []database.Replica) map[int64][]database.Replica {
	out := make(map[int64][]database.Replica)
	for _, r := range replicas {
		out[r.ChatID] = append(out[r.ChatID], r)
	}
	return out
}

func subscriberChats(subs []database.Subscriber) map[int64][]database.Replica {
	out := make(map[int64][]database.Replica, len(subs))
	for _, s := range subs {
		out[s.ChatID] = nil
	}
	return out
}
