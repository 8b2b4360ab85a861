package dispatch

import (
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
)

// Variant is one classified inbound update. The set of implementations is
// closed: StartCommand, UpcomingCommand, ButtonPress, InvalidCallback,
// ChatText and Ignored.
type Variant interface {
	variant()
}

// StartCommand subscribes a chat.
type StartCommand struct {
	ChatID   int64
	ChatName string
	ChatType string
}

// UpcomingCommand asks for the chat's digest.
type UpcomingCommand struct {
	ChatID int64
}

type Action int

const (
	ActionJoin Action = iota + 1
	ActionLeave
)

func (a Action) String() string {
	switch a {
	case ActionJoin:
		return "join"
	case ActionLeave:
		return "leave"
	default:
		return "unknown"
	}
}

// ButtonPress is a Join or Leave press on an event message.
type ButtonPress struct {
	Action     Action
	CallbackID string
	EventID    int64
	ChatID     int64
	MessageID  int
	Name       string
}

// InvalidCallback is a callback query that cannot be routed. It still has
// to be answered.
type InvalidCallback struct {
	CallbackID string
	Data       string
	Reason     string
}

// ChatText is a plain message kept in the chat log.
type ChatText struct {
	ChatID int64
	Text   string
}

// Ignored is anything else.
type Ignored struct {
	Reason string
}

func (StartCommand) variant()    {}
func (UpcomingCommand) variant() {}
func (ButtonPress) variant()     {}
func (InvalidCallback) variant() {}
func (ChatText) variant()        {}
func (Ignored) variant()         {}

// Prefixes are the callback-data prefixes of the two buttons.
type Prefixes struct {
	Join  string
	Leave string
}

// Parse classifies an update.
func Parse(u *models.Update, p Prefixes) Variant {
	switch {
	case u.CallbackQuery != nil:
		return parseCallback(u.CallbackQuery, p)
	case u.Message != nil:
		return parseMessage(u.Message)
	default:
		return Ignored{Reason: "unsupported update type"}
	}
}

func parseMessage(m *models.Message) Variant {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return Ignored{Reason: "message without text"}
	}
	if !strings.HasPrefix(text, "/") {
		return ChatText{ChatID: m.Chat.ID, Text: text}
	}

	command, _, _ := strings.Cut(strings.Fields(text)[0], "@")
	switch strings.ToLower(strings.TrimPrefix(command, "/")) {
	case "start":
		return StartCommand{ChatID: m.Chat.ID, ChatName: chatName(m), ChatType: string(m.Chat.Type)}
	case "upcoming":
		return UpcomingCommand{ChatID: m.Chat.ID}
	default:
		return Ignored{Reason: "unknown command " + command}
	}
}

func parseCallback(q *models.CallbackQuery, p Prefixes) Variant {
	invalid := func(reason string) Variant {
		return InvalidCallback{CallbackID: q.ID, Data: q.Data, Reason: reason}
	}

	var chatID int64
	var messageID int
	switch {
	case q.Message.Message != nil:
		chatID, messageID = q.Message.Message.Chat.ID, q.Message.Message.ID
	case q.Message.InaccessibleMessage != nil:
		chatID, messageID = q.Message.InaccessibleMessage.Chat.ID, q.Message.InaccessibleMessage.MessageID
	default:
		return invalid("callback without message")
	}

	// Try the longer prefix first so one prefix may extend the other.
	candidates := []struct {
		prefix string
		action Action
	}{{p.Join, ActionJoin}, {p.Leave, ActionLeave}}
	if len(p.Leave) > len(p.Join) {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}

	for _, c := range candidates {
		if c.prefix == "" || !strings.HasPrefix(q.Data, c.prefix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(q.Data, c.prefix), 10, 64)
		if err != nil || id <= 0 {
			return invalid("malformed event id")
		}
		name := userName(q.From)
		if name == "" {
			return invalid("sender has no name")
		}
		return ButtonPress{
			Action:     c.action,
			CallbackID: q.ID,
			EventID:    id,
			ChatID:     chatID,
			MessageID:  messageID,
			Name:       name,
		}
	}
	return invalid("unknown callback prefix")
}

// userName is the display name put on rosters.
func userName(u models.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		name = u.Username
	}
	return name
}

func chatName(m *models.Message) string {
	if m.Chat.Title != "" {
		return m.Chat.Title
	}
	if m.From != nil {
		if name := userName(*m.From); name != "" {
			return name
		}
	}
	return strings.TrimSpace(m.Chat.FirstName + " " + m.Chat.LastName)
}
