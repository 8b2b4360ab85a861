package handlers

import (
	"context"

	"github.com/edgard/surveybot/internal/dispatch"
)

// textHandler keeps plain chat messages in the chat log.
type textHandler struct {
	deps HandlerDeps
}

func (h textHandler) Handle(ctx context.Context, msg dispatch.ChatText) error {
	h.deps.ChatLog.User(ctx, msg.ChatID, msg.Text)
	return nil
}
