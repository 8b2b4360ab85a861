package handlers

import (
	"context"

	"github.com/edgard/surveybot/internal/dispatch"
	apperrors "github.com/edgard/surveybot/internal/errors"
	"github.com/edgard/surveybot/internal/registration"
)

// buttonHandler applies Join and Leave presses.
type buttonHandler struct {
	deps HandlerDeps
}

func (h buttonHandler) Handle(ctx context.Context, press dispatch.ButtonPress) error {
	p := registration.Press{
		CallbackID: press.CallbackID,
		EventID:    press.EventID,
		ChatID:     press.ChatID,
		MessageID:  press.MessageID,
		Name:       press.Name,
	}

	var err error
	switch press.Action {
	case dispatch.ActionJoin:
		err = h.deps.Registration.Join(ctx, p)
	case dispatch.ActionLeave:
		err = h.deps.Registration.Leave(ctx, p)
	default:
		h.deps.Registration.Invalid(ctx, press.CallbackID)
		return apperrors.NewValidationError("unknown button action "+press.Action.String(), nil)
	}

	// The user has been told; a vanished event is not an operator problem.
	if apperrors.IsNotFound(err) {
		h.deps.Logger.InfoContext(ctx, "Button pressed for missing event", "event_id", press.EventID, "chat_id", press.ChatID)
		return nil
	}
	return err
}

func (h buttonHandler) HandleInvalid(ctx context.Context, cb dispatch.InvalidCallback) error {
	h.deps.Registration.Invalid(ctx, cb.CallbackID)
	return nil
}
