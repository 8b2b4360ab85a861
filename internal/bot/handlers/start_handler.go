package handlers

import (
	"context"
	"fmt"

	"github.com/edgard/surveybot/internal/database"
	"github.com/edgard/surveybot/internal/dispatch"
)

// startHandler subscribes the chat and sends the welcome message.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, cmd dispatch.StartCommand) error {
	log := h.deps.Logger.With("handler", "start", "chat_id", cmd.ChatID)

	sub := &database.Subscriber{
		ChatID:     cmd.ChatID,
		Name:       cmd.ChatName,
		ChatType:   cmd.ChatType,
		TokenScope: h.deps.Config.Telegram.Scope(),
	}
	if err := h.deps.Store.UpsertSubscriber(ctx, sub); err != nil {
		return fmt.Errorf("failed to save subscriber: %w", err)
	}
	log.InfoContext(ctx, "Chat subscribed", "chat_type", cmd.ChatType)

	welcome := h.deps.Renderer.Welcome(h.deps.Config.Telegram.TrainingLink)
	if _, err := h.deps.Transport.SendMessage(ctx, cmd.ChatID, welcome, nil); err != nil {
		return fmt.Errorf("failed to send welcome message: %w", err)
	}
	h.deps.ChatLog.Bot(ctx, cmd.ChatID, welcome, database.CategoryMessage, "")
	return nil
}
