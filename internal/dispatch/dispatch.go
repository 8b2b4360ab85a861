// Package dispatch polls inbound updates, owns the poll cursor and routes each
// update to its handler.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"

	apperrors "github.com/edgard/surveybot/internal/errors"
	"github.com/edgard/surveybot/internal/telegram"
)

// HandlerFunc handles one raw update.
type HandlerFunc func(ctx context.Context, update *models.Update) error

// Middleware wraps per-update handling.
type Middleware func(next HandlerFunc) HandlerFunc

// Handlers receives the routed variants. Nil handlers drop their variant.
type Handlers struct {
	Start    func(ctx context.Context, cmd StartCommand) error
	Upcoming func(ctx context.Context, cmd UpcomingCommand) error
	Press    func(ctx context.Context, press ButtonPress) error
	Invalid  func(ctx context.Context, cb InvalidCallback) error
	Text     func(ctx context.Context, msg ChatText) error
}

type Options struct {
	Prefixes    Prefixes
	PollTimeout time.Duration
	Middlewares []Middleware
}

type Dispatcher struct {
	source      telegram.UpdateSource
	handlers    Handlers
	prefixes    Prefixes
	pollTimeout time.Duration
	handle      HandlerFunc
	logger      *slog.Logger

	mu     sync.Mutex
	cursor int64
}

func New(source telegram.UpdateSource, handlers Handlers, opts Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		source:      source,
		handlers:    handlers,
		prefixes:    opts.Prefixes,
		pollTimeout: opts.PollTimeout,
		logger:      logger.With("component", "dispatcher"),
	}

	d.handle = d.route
	for i := len(opts.Middlewares) - 1; i >= 0; i-- {
		d.handle = opts.Middlewares[i](d.handle)
	}
	return d
}

// Cursor returns the id of the last update taken for handling.
func (d *Dispatcher) Cursor() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// Tick fetches the updates after the cursor and handles them in order. The
// cursor moves past an update before it is handled, so a failing update is
// never fetched again. Ticks never overlap.
//
// A conflict (another poller holds the long poll) ends the tick quietly and
// leaves the cursor alone; any other fetch error is returned.
func (d *Dispatcher) Tick(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	updates, err := d.source.FetchUpdates(ctx, d.cursor+1, d.pollTimeout)
	if err != nil {
		if apperrors.IsConflict(err) {
			d.logger.DebugContext(ctx, "Another poller holds the update stream, skipping tick", "cursor", d.cursor)
			return nil
		}
		return fmt.Errorf("failed to fetch updates: %w", err)
	}

	for i := range updates {
		update := &updates[i]
		if update.ID == 0 || update.ID <= d.cursor {
			continue
		}
		d.cursor = update.ID
		d.dispatch(ctx, update)
	}
	return nil
}

// dispatch isolates one update: its error or panic is logged and dropped.
func (d *Dispatcher) dispatch(ctx context.Context, update *models.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "Panic while handling update",
				"update_id", update.ID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := d.handle(ctx, update); err != nil {
		d.logger.ErrorContext(ctx, "Failed to handle update", "update_id", update.ID, "error", err)
	}
}

func (d *Dispatcher) route(ctx context.Context, update *models.Update) error {
	switch v := Parse(update, d.prefixes).(type) {
	case StartCommand:
		return call(ctx, d.handlers.Start, v)
	case UpcomingCommand:
		return call(ctx, d.handlers.Upcoming, v)
	case ButtonPress:
		return call(ctx, d.handlers.Press, v)
	case InvalidCallback:
		d.logger.DebugContext(ctx, "Invalid callback", "data", v.Data, "reason", v.Reason)
		return call(ctx, d.handlers.Invalid, v)
	case ChatText:
		return call(ctx, d.handlers.Text, v)
	case Ignored:
		d.logger.DebugContext(ctx, "Ignoring update", "update_id", update.ID, "reason", v.Reason)
		return nil
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unhandled update variant %T", v), nil)
	}
}

func call[T any](ctx context.Context, fn func(context.Context, T) error, v T) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, v)
}
