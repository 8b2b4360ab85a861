package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/edgard/surveybot/internal/errors"
)

type subscriberKey struct {
	chatID int64
	scope  string
}

type digestKey struct {
	chatID int64
	kind   string
}

// memoryStore is a process-local Store used by tests and by the "memory"
// database driver. Everything is lost on restart.
type memoryStore struct {
	mu sync.RWMutex

	nextEventID   int64
	nextReplicaID int64
	nextSubID     int64

	events      map[int64]Event
	replicas    []Replica
	subscribers map[subscriberKey]Subscriber
	digests     map[digestKey]DigestRecord
	chatLog     []ChatLogEntry
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{
		events:      make(map[int64]Event),
		subscribers: make(map[subscriberKey]Subscriber),
		digests:     make(map[digestKey]DigestRecord),
	}
}

func (m *memoryStore) Ping(context.Context) error { return nil }

func copyEvent(e Event) Event {
	e.Participants = append(Roster{}, e.Participants...)
	return e
}

func (m *memoryStore) CreateEvent(_ context.Context, event *Event) error {
	if event == nil {
		return apperrors.NewValidationError("cannot save nil event", nil)
	}
	if event.Date == "" || event.TimeRange == "" {
		return apperrors.NewValidationError("event must have date and time range", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.Lifecycle == "" {
		event.Lifecycle = LifecycleUpcoming
	}
	if event.Participants == nil {
		event.Participants = Roster{}
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now
	m.nextEventID++
	event.ID = m.nextEventID
	m.events[event.ID] = copyEvent(*event)
	return nil
}

func (m *memoryStore) DeleteEvent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, id)
	return nil
}

func (m *memoryStore) GetEvent(_ context.Context, id int64) (*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("event %d not found", id), nil)
	}
	e = copyEvent(e)
	return &e, nil
}

func (m *memoryStore) ListEventsByLifecycle(_ context.Context, lifecycle Lifecycle) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Event
	for _, e := range m.events {
		if e.Lifecycle == lifecycle {
			out = append(out, copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) SetParticipants(_ context.Context, id int64, names Roster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("event %d not found", id), nil)
	}
	e.Participants = append(Roster{}, names...)
	e.UpdatedAt = time.Now().UTC()
	m.events[id] = e
	return nil
}

func (m *memoryStore) SetLifecycle(_ context.Context, id int64, lifecycle Lifecycle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || e.Lifecycle == lifecycle {
		return false, nil
	}
	e.Lifecycle = lifecycle
	e.UpdatedAt = time.Now().UTC()
	m.events[id] = e
	return true, nil
}

func (m *memoryStore) UpsertSubscriber(_ context.Context, sub *Subscriber) error {
	if sub == nil || sub.ChatID == 0 || sub.TokenScope == "" {
		return apperrors.NewValidationError("subscriber must have chat id and token scope", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	key := subscriberKey{chatID: sub.ChatID, scope: sub.TokenScope}
	existing, ok := m.subscribers[key]
	if ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		m.nextSubID++
		sub.ID = m.nextSubID
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	sub.Active = true
	m.subscribers[key] = *sub
	return nil
}

func (m *memoryStore) ListActiveSubscribers(_ context.Context, tokenScope string) ([]Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Subscriber
	for _, s := range m.subscribers {
		if s.TokenScope == tokenScope && s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (m *memoryStore) DeactivateSubscriber(_ context.Context, tokenScope string, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subscriberKey{chatID: chatID, scope: tokenScope}
	if s, ok := m.subscribers[key]; ok {
		s.Active = false
		s.UpdatedAt = time.Now().UTC()
		m.subscribers[key] = s
	}
	return nil
}

func (m *memoryStore) RecordReplica(_ context.Context, replica *Replica) error {
	if replica == nil || replica.EventID == 0 || replica.ChatID == 0 || replica.MessageID == 0 {
		return apperrors.NewValidationError("replica must have event, chat and message ids", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.replicas {
		if r.EventID == replica.EventID && r.ChatID == replica.ChatID && r.MessageID == replica.MessageID {
			return nil
		}
	}
	m.nextReplicaID++
	replica.ID = m.nextReplicaID
	replica.CreatedAt = time.Now().UTC()
	m.replicas = append(m.replicas, *replica)
	return nil
}

func (m *memoryStore) ListReplicas(_ context.Context, eventID int64) ([]Replica, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Replica
	for _, r := range m.replicas {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) ListOrphanReplicas(context.Context) ([]Replica, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Replica
	for _, r := range m.replicas {
		if _, ok := m.events[r.EventID]; !ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) DeleteReplica(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.replicas {
		if r.ID == id {
			m.replicas = append(m.replicas[:i], m.replicas[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memoryStore) GetDigestRecord(_ context.Context, chatID int64, kind string) (*DigestRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.digests[digestKey{chatID: chatID, kind: kind}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memoryStore) SetDigestRecord(_ context.Context, record *DigestRecord) error {
	if record == nil || record.ChatID == 0 || record.MessageID == 0 {
		return apperrors.NewValidationError("digest record must have chat and message ids", nil)
	}
	if record.Kind == "" {
		record.Kind = DigestKindUpcoming
	}
	record.UpdatedAt = time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.digests[digestKey{chatID: record.ChatID, kind: record.Kind}] = *record
	return nil
}

func (m *memoryStore) UpsertOrAppendChatLog(_ context.Context, entry *ChatLogEntry, marker string) error {
	if entry == nil || entry.ChatID == 0 {
		return apperrors.NewValidationError("chat log entry must have a chat id", nil)
	}
	prepareChatLogEntry(entry)

	m.mu.Lock()
	defer m.mu.Unlock()

	if marker != "" && entry.Category != CategoryMessage {
		match := -1
		for i, e := range m.chatLog {
			if e.TokenScope != entry.TokenScope || e.ChatID != entry.ChatID || e.Category != entry.Category {
				continue
			}
			if !containsMarker(e.Text, marker) {
				continue
			}
			if match < 0 || !e.Timestamp.Before(m.chatLog[match].Timestamp) {
				match = i
			}
		}
		if match >= 0 {
			entry.ID = m.chatLog[match].ID
			m.chatLog[match] = *entry
			return nil
		}
	}

	m.chatLog = append(m.chatLog, *entry)
	return nil
}

func (m *memoryStore) ListChatLog(_ context.Context, tokenScope string, chatID int64) ([]ChatLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ChatLogEntry
	for _, e := range m.chatLog {
		if e.TokenScope == tokenScope && e.ChatID == chatID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memoryStore) RunSQLMaintenance(context.Context) error { return nil }
