package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/edgard/surveybot/internal/errors"
)

// Store defines the storage collaborator used by every domain component.
// Implementations must be safe for concurrent use.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// CreateEvent inserts an event and sets its ID. Events are normally
	// created by the external CRUD surface; this exists for seeding.
	CreateEvent(ctx context.Context, event *Event) error
	// DeleteEvent removes an event. Its replicas become orphans.
	DeleteEvent(ctx context.Context, id int64) error
	// GetEvent returns a NotFound error when the event does not exist.
	GetEvent(ctx context.Context, id int64) (*Event, error)
	ListEventsByLifecycle(ctx context.Context, lifecycle Lifecycle) ([]Event, error)
	SetParticipants(ctx context.Context, id int64, names Roster) error
	// SetLifecycle reports whether the flag actually changed.
	SetLifecycle(ctx context.Context, id int64, lifecycle Lifecycle) (bool, error)

	// UpsertSubscriber inserts or supersedes the record for (ChatID, TokenScope)
	// and marks it active.
	UpsertSubscriber(ctx context.Context, sub *Subscriber) error
	ListActiveSubscribers(ctx context.Context, tokenScope string) ([]Subscriber, error)
	DeactivateSubscriber(ctx context.Context, tokenScope string, chatID int64) error

	// RecordReplica appends a replica; recording the same triple twice is a no-op.
	RecordReplica(ctx context.Context, replica *Replica) error
	ListReplicas(ctx context.Context, eventID int64) ([]Replica, error)
	// ListOrphanReplicas returns replicas whose event no longer exists.
	ListOrphanReplicas(ctx context.Context) ([]Replica, error)
	DeleteReplica(ctx context.Context, id int64) error

	// GetDigestRecord returns nil, nil if the chat has no cached digest.
	GetDigestRecord(ctx context.Context, chatID int64, kind string) (*DigestRecord, error)
	SetDigestRecord(ctx context.Context, record *DigestRecord) error

	// UpsertOrAppendChatLog appends entry, unless marker is non-empty and the
	// entry's category is not CategoryMessage: then the latest entry of the
	// same scope, chat and category containing marker as a whole token is
	// rewritten.
	UpsertOrAppendChatLog(ctx context.Context, entry *ChatLogEntry, marker string) error
	ListChatLog(ctx context.Context, tokenScope string, chatID int64) ([]ChatLogEntry, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) CreateEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return apperrors.NewValidationError("cannot save nil event", nil)
	}
	if event.Date == "" || event.TimeRange == "" {
		return apperrors.NewValidationError("event must have date and time range", nil)
	}
	if event.Lifecycle == "" {
		event.Lifecycle = LifecycleUpcoming
	}
	if event.Participants == nil {
		event.Participants = Roster{}
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	query := `
        INSERT INTO events (location, date, time_range, organizer, lifecycle, participants, created_at, updated_at)
        VALUES (:location, :date, :time_range, :organizer, :lifecycle, :participants, :created_at, :updated_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving event", "date", event.Date, "error", err)
		return apperrors.NewDatabaseError("failed to save event", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return apperrors.NewDatabaseError("failed to read event id", err)
	}
	event.ID = id

	s.logger.DebugContext(ctx, "Event saved", "event_id", id)
	return nil
}

func (s *sqlxStore) DeleteEvent(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting event", "event_id", id, "error", err)
		return apperrors.NewDatabaseError(fmt.Sprintf("failed to delete event %d", id), err)
	}
	return nil
}

const eventColumns = `id, created_at, updated_at, location, date, time_range, organizer, lifecycle, participants`

func (s *sqlxStore) GetEvent(ctx context.Context, id int64) (*Event, error) {
	var event Event
	err := s.db.GetContext(ctx, &event, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("event %d not found", id), nil)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting event", "event_id", id, "error", err)
		return nil, apperrors.NewDatabaseError(fmt.Sprintf("failed to get event %d", id), err)
	}
	return &event, nil
}

func (s *sqlxStore) ListEventsByLifecycle(ctx context.Context, lifecycle Lifecycle) ([]Event, error) {
	var events []Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE lifecycle = ? ORDER BY id`
	if err := s.db.SelectContext(ctx, &events, query, lifecycle); err != nil {
		s.logger.ErrorContext(ctx, "Error listing events", "lifecycle", lifecycle, "error", err)
		return nil, apperrors.NewDatabaseError("failed to list events", err)
	}
	return events, nil
}

func (s *sqlxStore) SetParticipants(ctx context.Context, id int64, names Roster) error {
	if names == nil {
		names = Roster{}
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE events SET participants = ?, updated_at = ? WHERE id = ?`,
		names, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating participants", "event_id", id, "error", err)
		return apperrors.NewDatabaseError(fmt.Sprintf("failed to update participants of event %d", id), err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("event %d not found", id), nil)
	}
	return nil
}

func (s *sqlxStore) SetLifecycle(ctx context.Context, id int64, lifecycle Lifecycle) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE events SET lifecycle = ?, updated_at = ? WHERE id = ? AND lifecycle <> ?`,
		lifecycle, time.Now().UTC(), id, lifecycle)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating lifecycle", "event_id", id, "error", err)
		return false, apperrors.NewDatabaseError(fmt.Sprintf("failed to update lifecycle of event %d", id), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewDatabaseError("failed to read affected rows", err)
	}
	return affected > 0, nil
}

func (s *sqlxStore) UpsertSubscriber(ctx context.Context, sub *Subscriber) error {
	if sub == nil || sub.ChatID == 0 || sub.TokenScope == "" {
		return apperrors.NewValidationError("subscriber must have chat id and token scope", nil)
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	sub.Active = true

	query := `
        INSERT INTO subscribers (chat_id, name, chat_type, token_scope, active, created_at, updated_at)
        VALUES (:chat_id, :name, :chat_type, :token_scope, 1, :created_at, :updated_at)
        ON CONFLICT (chat_id, token_scope) DO UPDATE SET
            name = excluded.name,
            chat_type = excluded.chat_type,
            active = 1,
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, sub); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting subscriber", "chat_id", sub.ChatID, "error", err)
		return apperrors.NewDatabaseError(fmt.Sprintf("failed to upsert subscriber %d", sub.ChatID), err)
	}
	return nil
}

func (s *sqlxStore) ListActiveSubscribers(ctx context.Context, tokenScope string) ([]Subscriber, error) {
	var subs []Subscriber
	query := `
        SELECT id, created_at, updated_at, chat_id, name, chat_type, token_scope, active
        FROM subscribers
        WHERE token_scope = ? AND active = 1
        ORDER BY chat_id;
    `
	if err := s.db.SelectContext(ctx, &subs, query, tokenScope); err != nil {
		s.logger.ErrorContext(ctx, "Error listing subscribers", "error", err)
		return nil, apperrors.NewDatabaseError("failed to list subscribers", err)
	}
	return subs, nil
}

func (s *sqlxStore) DeactivateSubscriber(ctx context.Context, tokenScope string, chatID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET active = 0, updated_at = ? WHERE token_scope = ? AND chat_id = ?`,
		time.Now().UTC(), tokenScope, chatID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deactivating subscriber", "chat_id", chatID, "error", err)
		return apperrors.NewDatabaseError(fmt.Sprintf("failed to deactivate subscriber %d", chatID), err)
	}
	return nil
}

func (s *sqlxStore) RecordReplica(ctx context.Context, replica *Replica) error {
	if replica == nil || replica.EventID == 0 || replica.ChatID == 0 || replica.MessageID == 0 {
		return apperrors.NewValidationError("replica must have event, chat and message ids", nil)
	}
	replica.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO replicas (event_id, chat_id, message_id, created_at)
        VALUES (:event_id, :chat_id, :message_id, :created_at)
        ON CONFLICT (event_id, chat_id, message_id) DO NOTHING;
    `
	result, err := s.db.NamedExecContext(ctx, query, replica)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording replica",
			"event_id", replica.EventID, "chat_id", replica.ChatID, "error", err)
		return apperrors.NewDatabaseError("failed to record replica", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 1 {
		if id, err := result.LastInsertId(); err == nil {
			replica.ID = id
		}
	}
	return nil
}

const replicaColumns = `id, event_id, chat_id, message_id, created_at`

func (s *sqlxStore) ListReplicas(ctx context.Context, eventID int64) ([]Replica, error) {
	var replicas []Replica
	query := `SELECT ` + replicaColumns + ` FROM replicas WHERE event_id = ? ORDER BY id`
	if err := s.db.SelectContext(ctx, &replicas, query, eventID); err != nil {
		s.logger.ErrorContext(ctx, "Error listing replicas", "event_id", eventID, "error", err)
		return nil, apperrors.NewDatabaseError(fmt.Sprintf("failed to list replicas of event %d", eventID), err)
	}
	return replicas, nil
}

func (s *sqlxStore) ListOrphanReplicas(ctx context.Context) ([]Replica, error) {
	var replicas []Replica
	query := `
        SELECT r.id, r.event_id, r.chat_id, r.message_id, r.created_at
        FROM replicas r
        LEFT JOIN events e ON e.id = r.event_id
        WHERE e.id IS NULL
        ORDER BY r.id;
    `
	if err := s.db.SelectContext(ctx, &replicas, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing orphan replicas", "error", err)
		return nil, apperrors.NewDatabaseError("failed to list orphan replicas", err)
	}
	return replicas, nil
}

func (s *sqlxStore) DeleteReplica(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM replicas WHERE id = ?`, id); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting replica", "replica_id", id, "error", err)
		return apperrors.NewDatabaseError(fmt.Sprintf("failed to delete replica %d", id), err)
	}
	return nil
}

func (s *sqlxStore) GetDigestRecord(ctx context.Context, chatID int64, kind string) (*DigestRecord, error) {
	var record DigestRecord
	err := s.db.GetContext(ctx, &record,
		`SELECT chat_id, kind, message_id, updated_at FROM digest_records WHERE chat_id = ? AND kind = ?`,
		chatID, kind)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting digest record", "chat_id", chatID, "error", err)
		return nil, apperrors.NewDatabaseError(fmt.Sprintf("failed to get digest record for chat %d", chatID), err)
	}
	return &record, nil
}

func (s *sqlxStore) SetDigestRecord(ctx context.Context, record *DigestRecord) error {
	if record == nil || record.ChatID == 0 || record.MessageID == 0 {
		return apperrors.NewValidationError("digest record must have chat and message ids", nil)
	}
	if record.Kind == "" {
		record.Kind = DigestKindUpcoming
	}
	record.UpdatedAt = time.Now().UTC()

	query := `
        INSERT INTO digest_records (chat_id, kind, message_id, updated_at)
        VALUES (:chat_id, :kind, :message_id, :updated_at)
        ON CONFLICT (chat_id, kind) DO UPDATE SET
            message_id = excluded.message_id,
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, record); err != nil {
		s.logger.ErrorContext(ctx, "Error saving digest record", "chat_id", record.ChatID, "error", err)
		return apperrors.NewDatabaseError(fmt.Sprintf("failed to save digest record for chat %d", record.ChatID), err)
	}
	return nil
}

func (s *sqlxStore) UpsertOrAppendChatLog(ctx context.Context, entry *ChatLogEntry, marker string) error {
	if entry == nil || entry.ChatID == 0 {
		return apperrors.NewValidationError("chat log entry must have a chat id", nil)
	}
	prepareChatLogEntry(entry)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for chat log", "chat_id", entry.ChatID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	if marker != "" && entry.Category != CategoryMessage {
		var candidates []ChatLogEntry
		err := tx.SelectContext(ctx, &candidates, `
            SELECT id, text FROM chat_log
            WHERE token_scope = ? AND chat_id = ? AND category = ? AND instr(text, ?) > 0
            ORDER BY timestamp DESC;
        `, entry.TokenScope, entry.ChatID, entry.Category, marker)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error looking up chat log entry", "chat_id", entry.ChatID, "error", err)
			return apperrors.NewDatabaseError("failed to look up chat log entry", err)
		}
		for _, c := range candidates {
			if !containsMarker(c.Text, marker) {
				continue
			}
			entry.ID = c.ID
			_, err = tx.NamedExecContext(ctx, `
                UPDATE chat_log SET text = :text, date = :date, sender = :sender, timestamp = :timestamp
                WHERE id = :id;
            `, entry)
			if err != nil {
				s.logger.ErrorContext(ctx, "Error updating chat log entry", "chat_id", entry.ChatID, "error", err)
				return apperrors.NewDatabaseError("failed to update chat log entry", err)
			}
			return s.commit(ctx, &tx)
		}
	}

	_, err = tx.NamedExecContext(ctx, `
        INSERT INTO chat_log (id, token_scope, chat_id, date, text, sender, category, timestamp)
        VALUES (:id, :token_scope, :chat_id, :date, :text, :sender, :category, :timestamp);
    `, entry)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error appending chat log entry", "chat_id", entry.ChatID, "error", err)
		return apperrors.NewDatabaseError("failed to append chat log entry", err)
	}
	return s.commit(ctx, &tx)
}

func (s *sqlxStore) commit(ctx context.Context, tx **sqlx.Tx) error {
	if err := (*tx).Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	*tx = nil
	return nil
}

func (s *sqlxStore) ListChatLog(ctx context.Context, tokenScope string, chatID int64) ([]ChatLogEntry, error) {
	var entries []ChatLogEntry
	query := `
        SELECT id, token_scope, chat_id, date, text, sender, category, timestamp
        FROM chat_log
        WHERE token_scope = ? AND chat_id = ?
        ORDER BY timestamp, id;
    `
	if err := s.db.SelectContext(ctx, &entries, query, tokenScope, chatID); err != nil {
		s.logger.ErrorContext(ctx, "Error listing chat log", "chat_id", chatID, "error", err)
		return nil, apperrors.NewDatabaseError(fmt.Sprintf("failed to list chat log for chat %d", chatID), err)
	}
	return entries, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return apperrors.NewDatabaseError("failed to execute VACUUM", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

// prepareChatLogEntry fills the id, timestamp and defaults shared by both
// store implementations.
func prepareChatLogEntry(entry *ChatLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Date == "" {
		entry.Date = entry.Timestamp.Format(time.DateOnly)
	}
	if entry.Category == "" {
		entry.Category = CategoryMessage
	}
	if entry.Sender == "" {
		entry.Sender = SenderBot
	}
}

// containsMarker reports whether marker occurs in text as a whole token: a
// letter or digit on either side of the match extends it into a different
// token, so "2/3/2026" does not match inside "12/3/2026".
func containsMarker(text, marker string) bool {
	first, _ := utf8.DecodeRuneInString(marker)
	last, _ := utf8.DecodeLastRuneInString(marker)
	for from := 0; from <= len(text); {
		i := strings.Index(text[from:], marker)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(marker)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWordRune(before) || !isWordRune(first)) &&
			(end == len(text) || !isWordRune(after) || !isWordRune(last)) {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
