package handlers

import (
	"context"
	"fmt"

	"github.com/edgard/surveybot/internal/dispatch"
)

// upcomingHandler refreshes the chat's digest on demand.
type upcomingHandler struct {
	deps HandlerDeps
}

func (h upcomingHandler) Handle(ctx context.Context, cmd dispatch.UpcomingCommand) error {
	outcome, err := h.deps.Digests.Reconcile(ctx, cmd.ChatID)
	if err != nil {
		return fmt.Errorf("failed to reconcile digest: %w", err)
	}
	h.deps.Logger.DebugContext(ctx, "Digest reconciled", "handler", "upcoming", "chat_id", cmd.ChatID, "outcome", outcome.String())
	return nil
}
