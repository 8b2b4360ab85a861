package telegram

import (
	"context"
	"errors"
	"strings"

	"github.com/go-telegram/bot"

	apperrors "github.com/edgard/surveybot/internal/errors"
)

// classify maps a Bot API failure to a typed error. The platform reports most
// conditions as HTTP 400 with a description, so the description decides.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	desc := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTransportError(method+" timed out", err)
	case errors.Is(err, bot.ErrorConflict):
		return apperrors.NewConflictError(method, err)
	case strings.Contains(desc, "message is not modified"):
		return apperrors.NewContentUnchangedError(method, err)
	case errors.Is(err, bot.ErrorForbidden),
		strings.Contains(desc, "bot was blocked"),
		strings.Contains(desc, "bot was kicked"),
		strings.Contains(desc, "not enough rights"),
		strings.Contains(desc, "have no rights"):
		return apperrors.NewForbiddenError(method, err)
	case errors.Is(err, bot.ErrorNotFound),
		strings.Contains(desc, "not found"),
		strings.Contains(desc, "message can't be edited"),
		strings.Contains(desc, "message can't be deleted"):
		return apperrors.NewNotFoundError(method, err)
	default:
		return apperrors.NewTransportError(method, err)
	}
}

func isContentUnchanged(err error) bool {
	return apperrors.IsContentUnchanged(err)
}
