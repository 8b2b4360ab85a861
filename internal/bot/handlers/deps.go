// Package handlers turns routed updates into subscriber, roster and digest
// changes.
package handlers

import (
	"log/slog"

	"github.com/edgard/surveybot/internal/chatlog"
	"github.com/edgard/surveybot/internal/config"
	"github.com/edgard/surveybot/internal/database"
	"github.com/edgard/surveybot/internal/digest"
	"github.com/edgard/surveybot/internal/registration"
	"github.com/edgard/surveybot/internal/render"
	"github.com/edgard/surveybot/internal/telegram"
)

// HandlerDeps provides dependencies for the update handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Store        database.Store
	Transport    telegram.Transport
	Renderer     *render.Renderer
	ChatLog      *chatlog.Writer
	Registration *registration.Service
	Digests      *digest.Reconciler
}
