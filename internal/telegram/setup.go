// Package telegram is the typed transport over the Telegram Bot API.
// It carries no business logic; platform failures surface as the typed
// errors of internal/errors.
package telegram

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
)

// NewTelegramBot creates a go-telegram/bot instance that is only used for
// outbound calls. Its own long-poll loop is never started.
func NewTelegramBot(token, apiURL string, httpClient *http.Client, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	base := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithServerURL(strings.TrimRight(apiURL, "/")),
		bot.WithHTTPClient(0, httpClient),
	}
	b, err := bot.New(token, append(base, opts...)...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	botID, _, _ := strings.Cut(token, ":")
	log.Info("Telegram bot instance created successfully", "bot_id", botID)
	return b, nil
}

func newHTTPClient(requestTimeout, pollTimeout time.Duration) *http.Client {
	return &http.Client{Timeout: requestTimeout + pollTimeout}
}
