package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Lifecycle is the open/closed flag of an event.
type Lifecycle string

const (
	LifecycleUpcoming Lifecycle = "upcoming"
	LifecyclePast     Lifecycle = "past"
)

// Sender kinds of chat log entries.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Chat log categories. Entries in every category except CategoryMessage are
// updated in place when their marker matches an earlier entry.
const (
	CategoryMessage       = "message"
	CategoryEventReminder = "event_reminder"
	CategoryDigest        = "digest"
)

// DigestKindUpcoming is the only digest kind kept per chat.
const DigestKindUpcoming = "upcoming_events"

// Roster is the ordered, duplicate-free list of participant display names.
// It is stored as a JSON array.
type Roster []string

// Contains reports whether name is in the roster. Comparison is exact.
func (r Roster) Contains(name string) bool {
	for _, n := range r {
		if n == name {
			return true
		}
	}
	return false
}

// Without returns a copy of the roster with name removed.
func (r Roster) Without(name string) Roster {
	out := make(Roster, 0, len(r))
	for _, n := range r {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// With returns a copy of the roster with name appended.
func (r Roster) With(name string) Roster {
	out := make(Roster, 0, len(r)+1)
	out = append(out, r...)
	return append(out, name)
}

func (r Roster) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *Roster) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = Roster{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Roster", src)
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return fmt.Errorf("invalid roster json: %w", err)
	}
	*r = names
	return nil
}

// Event is one survey event. Date is day precision in d/m/yyyy form and
// TimeRange is "HH:MM - HH:MM", both interpreted in the reference timezone.
type Event struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Location     string    `db:"location"`
	Date         string    `db:"date"`
	TimeRange    string    `db:"time_range"`
	Organizer    string    `db:"organizer"`
	Lifecycle    Lifecycle `db:"lifecycle"`
	Participants Roster    `db:"participants"`
}

// Replica links an event to one concrete editable chat message.
type Replica struct {
	ID        int64     `db:"id"`
	EventID   int64     `db:"event_id"`
	ChatID    int64     `db:"chat_id"`
	MessageID int       `db:"message_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Subscriber is a chat that receives broadcasts for one bot token scope.
type Subscriber struct {
	ID         int64     `db:"id"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
	ChatID     int64     `db:"chat_id"`
	Name       string    `db:"name"`
	ChatType   string    `db:"chat_type"`
	TokenScope string    `db:"token_scope"`
	Active     bool      `db:"active"`
}

// DigestRecord caches the message id of a chat's pinned digest.
type DigestRecord struct {
	ChatID    int64     `db:"chat_id"`
	Kind      string    `db:"kind"`
	MessageID int       `db:"message_id"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ChatLogEntry is one logged message exchanged with a chat.
type ChatLogEntry struct {
	ID         string    `db:"id"`
	TokenScope string    `db:"token_scope"`
	ChatID     int64     `db:"chat_id"`
	Date       string    `db:"date"`
	Text       string    `db:"text"`
	Sender     string    `db:"sender"`
	Category   string    `db:"category"`
	Timestamp  time.Time `db:"timestamp"`
}
