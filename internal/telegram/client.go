package telegram

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/surveybot/internal/config"
)

// ChatInfo is the part of getChat the bot cares about.
type ChatInfo struct {
	PinnedMessageID int
	PinnedText      string
}

// Transport is the outbound surface of the Bot API used by the domain
// packages. A nil markup sends a message without buttons.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) (int, error)
	// EditMessageText treats an unchanged-content rejection as success.
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *models.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	PinMessage(ctx context.Context, chatID int64, messageID int, silent bool) error
	UnpinMessage(ctx context.Context, chatID int64, messageID int) error
	GetChat(ctx context.Context, chatID int64) (*ChatInfo, error)
}

// UpdateSource fetches inbound updates after a cursor.
type UpdateSource interface {
	FetchUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]models.Update, error)
}

// Client implements Transport and UpdateSource. Every call is blocking,
// bounded by the configured request timeout and never retried.
type Client struct {
	bot            *bot.Bot
	httpClient     *http.Client
	apiURL         string
	token          string
	requestTimeout time.Duration
	logger         *slog.Logger
}

var (
	_ Transport    = (*Client)(nil)
	_ UpdateSource = (*Client)(nil)
)

// NewClient builds a Client from the telegram section of the configuration.
func NewClient(cfg config.TelegramConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := newHTTPClient(cfg.RequestTimeout, cfg.PollTimeout)
	b, err := NewTelegramBot(cfg.Token, cfg.APIURL, httpClient, logger)
	if err != nil {
		return nil, err
	}
	return &Client{
		bot:            b,
		httpClient:     httpClient,
		apiURL:         strings.TrimRight(cfg.APIURL, "/"),
		token:          cfg.Token,
		requestTimeout: cfg.RequestTimeout,
		logger:         logger.With("component", "telegram_client"),
	}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.requestTimeout)
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) (int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	msg, err := c.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, classify("sendMessage", err)
	}
	return msg.ID, nil
}

func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *models.InlineKeyboardMarkup) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := c.bot.EditMessageText(ctx, params); err != nil {
		err = classify("editMessageText", err)
		if isContentUnchanged(err) {
			c.logger.DebugContext(ctx, "Edit skipped, content unchanged", "chat_id", chatID, "message_id", messageID)
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		return classify("answerCallbackQuery", err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		return classify("deleteMessage", err)
	}
	return nil
}

func (c *Client) PinMessage(ctx context.Context, chatID int64, messageID int, silent bool) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.bot.PinChatMessage(ctx, &bot.PinChatMessageParams{
		ChatID:              chatID,
		MessageID:           messageID,
		DisableNotification: silent,
	})
	if err != nil {
		return classify("pinChatMessage", err)
	}
	return nil
}

func (c *Client) UnpinMessage(ctx context.Context, chatID int64, messageID int) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.bot.UnpinChatMessage(ctx, &bot.UnpinChatMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		return classify("unpinChatMessage", err)
	}
	return nil
}

func (c *Client) GetChat(ctx context.Context, chatID int64) (*ChatInfo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	chat, err := c.bot.GetChat(ctx, &bot.GetChatParams{ChatID: chatID})
	if err != nil {
		return nil, classify("getChat", err)
	}
	info := &ChatInfo{}
	if chat.PinnedMessage != nil {
		info.PinnedMessageID = chat.PinnedMessage.ID
		info.PinnedText = chat.PinnedMessage.Text
	}
	return info, nil
}

// Command is one entry of the bot's command menu.
type Command struct {
	Name        string
	Description string
}

// SetCommands replaces the bot's command menu.
func (c *Client) SetCommands(ctx context.Context, commands []Command) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	botCommands := make([]models.BotCommand, 0, len(commands))
	for _, cmd := range commands {
		botCommands = append(botCommands, models.BotCommand{Command: cmd.Name, Description: cmd.Description})
	}
	if _, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: botCommands}); err != nil {
		return classify("setMyCommands", err)
	}
	return nil
}
