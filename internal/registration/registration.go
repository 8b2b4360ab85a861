// Package registration applies Join and Leave button presses to an event's
// roster.
package registration

import (
	"context"
	"log/slog"

	"github.com/edgard/surveybot/internal/database"
	apperrors "github.com/edgard/surveybot/internal/errors"
	"github.com/edgard/surveybot/internal/fanout"
	"github.com/edgard/surveybot/internal/render"
	"github.com/edgard/surveybot/internal/telegram"
)

// Press is one Join or Leave button press.
type Press struct {
	CallbackID string
	EventID    int64
	ChatID     int64
	MessageID  int
	// Name is the display name added to or removed from the roster.
	Name string
}

type Service struct {
	transport telegram.Transport
	store     database.Store
	fanout    *fanout.Fanout
	renderer  *render.Renderer
	logger    *slog.Logger
}

func NewService(transport telegram.Transport, store database.Store, fan *fanout.Fanout, renderer *render.Renderer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		transport: transport,
		store:     store,
		fanout:    fan,
		renderer:  renderer,
		logger:    logger.With("component", "registration"),
	}
}

// Join adds p.Name to the roster. Pressing Join when already registered only
// acknowledges.
func (s *Service) Join(ctx context.Context, p Press) error {
	return s.apply(ctx, p, "join", func(r database.Roster) (database.Roster, bool) {
		if r.Contains(p.Name) {
			return r, false
		}
		return r.With(p.Name), true
	}, "ack_joined", "ack_already_joined")
}

// Leave removes p.Name from the roster. Pressing Leave when absent only
// acknowledges.
func (s *Service) Leave(ctx context.Context, p Press) error {
	return s.apply(ctx, p, "leave", func(r database.Roster) (database.Roster, bool) {
		if !r.Contains(p.Name) {
			return r, false
		}
		return r.Without(p.Name), true
	}, "ack_left", "ack_not_registered")
}

// apply runs one transition and answers the press exactly once. The returned
// error is the failure the user was told about, for logging by the caller.
func (s *Service) apply(ctx context.Context, p Press, action string, next func(database.Roster) (database.Roster, bool), doneKey, noopKey string) error {
	log := s.logger.With("action", action, "event_id", p.EventID, "chat_id", p.ChatID)

	ev, err := s.store.GetEvent(ctx, p.EventID)
	if err != nil {
		return s.fail(ctx, p, err)
	}

	roster, changed := next(ev.Participants)
	if !changed {
		log.DebugContext(ctx, "Roster unchanged")
		s.ack(ctx, p, noopKey)
		return nil
	}

	if err := s.store.SetParticipants(ctx, ev.ID, roster); err != nil {
		return s.fail(ctx, p, err)
	}
	ev.Participants = roster

	origin := &database.Replica{EventID: ev.ID, ChatID: p.ChatID, MessageID: p.MessageID}
	if _, err := s.fanout.Propagate(ctx, *ev, origin); err != nil {
		// The roster is saved; replicas catch up on the next change.
		log.WarnContext(ctx, "Failed to propagate roster change", "error", err)
	}

	log.InfoContext(ctx, "Roster changed", "participants", len(roster))
	s.ack(ctx, p, doneKey)
	return nil
}

func (s *Service) fail(ctx context.Context, p Press, err error) error {
	if apperrors.IsNotFound(err) {
		s.ack(ctx, p, "ack_event_not_found")
		return err
	}
	s.ack(ctx, p, "ack_error")
	return err
}

func (s *Service) ack(ctx context.Context, p Press, key string) {
	if err := s.transport.AnswerCallback(ctx, p.CallbackID, s.renderer.T(key), false); err != nil {
		s.logger.WarnContext(ctx, "Failed to answer callback", "callback_id", p.CallbackID, "error", err)
	}
}

// Invalid answers a press whose payload could not be parsed.
func (s *Service) Invalid(ctx context.Context, callbackID string) {
	s.ack(ctx, Press{CallbackID: callbackID}, "ack_invalid")
}
