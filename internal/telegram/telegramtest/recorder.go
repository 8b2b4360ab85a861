// Package telegramtest provides an in-memory telegram.Transport for tests.
package telegramtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/surveybot/internal/telegram"
)

// Call records one transport invocation.
type Call struct {
	Method     string
	ChatID     int64
	MessageID  int
	Text       string
	Markup     *models.InlineKeyboardMarkup
	CallbackID string
	Alert      bool
	Silent     bool
}

// Recorder is a goroutine-safe fake that remembers every call, hands out
// increasing message ids and returns errors programmed per method and chat.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	nextID   int
	errs     map[string]error
	pinned   map[int64]telegram.ChatInfo
	messages map[int64]map[int]string

	updates  [][]models.Update
	fetchErr error
	offsets  []int64
}

var (
	_ telegram.Transport    = (*Recorder)(nil)
	_ telegram.UpdateSource = (*Recorder)(nil)
)

func NewRecorder() *Recorder {
	return &Recorder{
		nextID:   1000,
		errs:     make(map[string]error),
		pinned:   make(map[int64]telegram.ChatInfo),
		messages: make(map[int64]map[int]string),
	}
}

func errKey(method string, chatID int64) string {
	return fmt.Sprintf("%s/%d", method, chatID)
}

// FailOn makes every call of method targeting chatID return err.
// chatID 0 matches every chat.
func (r *Recorder) FailOn(method string, chatID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[errKey(method, chatID)] = err
}

// ClearFailures removes every programmed error.
func (r *Recorder) ClearFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = make(map[string]error)
}

// SetPinned sets what GetChat reports as the pinned message of chatID.
func (r *Recorder) SetPinned(chatID int64, messageID int, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pinned[chatID] = telegram.ChatInfo{PinnedMessageID: messageID, PinnedText: text}
}

// QueueUpdates appends one batch returned by the next FetchUpdates call.
func (r *Recorder) QueueUpdates(batch ...models.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, batch)
}

// FailFetch makes FetchUpdates return err until cleared with nil.
func (r *Recorder) FailFetch(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchErr = err
}

// Offsets returns every offset FetchUpdates was called with.
func (r *Recorder) Offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.offsets...)
}

// Calls returns the recorded calls, optionally filtered by method.
func (r *Recorder) Calls(method string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Text returns the current text of a message sent or edited through the
// recorder, and whether it exists.
func (r *Recorder) Text(chatID int64, messageID int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	text, ok := r.messages[chatID][messageID]
	return text, ok
}

// record stores the call and returns the programmed error, if any.
func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if err, ok := r.errs[errKey(c.Method, c.ChatID)]; ok {
		return err
	}
	if err, ok := r.errs[errKey(c.Method, 0)]; ok {
		return err
	}
	return nil
}

func (r *Recorder) setText(chatID int64, messageID int, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messages[chatID] == nil {
		r.messages[chatID] = make(map[int]string)
	}
	r.messages[chatID][messageID] = text
}

func (r *Recorder) SendMessage(_ context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) (int, error) {
	if err := r.record(Call{Method: "sendMessage", ChatID: chatID, Text: text, Markup: markup}); err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.mu.Unlock()
	r.setText(chatID, id, text)
	return id, nil
}

func (r *Recorder) EditMessageText(_ context.Context, chatID int64, messageID int, text string, markup *models.InlineKeyboardMarkup) error {
	if err := r.record(Call{Method: "editMessageText", ChatID: chatID, MessageID: messageID, Text: text, Markup: markup}); err != nil {
		return err
	}
	r.setText(chatID, messageID, text)
	return nil
}

func (r *Recorder) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	return r.record(Call{Method: "answerCallbackQuery", CallbackID: callbackID, Text: text, Alert: alert})
}

func (r *Recorder) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	if err := r.record(Call{Method: "deleteMessage", ChatID: chatID, MessageID: messageID}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages[chatID], messageID)
	return nil
}

func (r *Recorder) PinMessage(_ context.Context, chatID int64, messageID int, silent bool) error {
	if err := r.record(Call{Method: "pinChatMessage", ChatID: chatID, MessageID: messageID, Silent: silent}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pinned[chatID] = telegram.ChatInfo{PinnedMessageID: messageID, PinnedText: r.messages[chatID][messageID]}
	return nil
}

func (r *Recorder) UnpinMessage(_ context.Context, chatID int64, messageID int) error {
	if err := r.record(Call{Method: "unpinChatMessage", ChatID: chatID, MessageID: messageID}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pinned[chatID].PinnedMessageID == messageID {
		delete(r.pinned, chatID)
	}
	return nil
}

func (r *Recorder) GetChat(_ context.Context, chatID int64) (*telegram.ChatInfo, error) {
	if err := r.record(Call{Method: "getChat", ChatID: chatID}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.pinned[chatID]
	return &info, nil
}

func (r *Recorder) FetchUpdates(_ context.Context, offset int64, _ time.Duration) ([]models.Update, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offsets = append(r.offsets, offset)
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if len(r.updates) == 0 {
		return nil, nil
	}
	batch := r.updates[0]
	r.updates = r.updates[1:]
	return batch, nil
}
