package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

// EventLogStore implements domain.EventLogStore. Entries are keyed by event
// id; appending an id twice keeps the first row.
type EventLogStore struct {
	s *Store
}

func (es *EventLogStore) AppendEventLog(ctx context.Context, entry *domain.EventLogEntry) error {
	if entry == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = domain.EventID(uuid.NewString())
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := es.s.exec(ctx,
		es.s.insertIgnore("event_logs",
			"id, user_id, task_id, event_type, event_data, created_at",
			"?, ?, ?, ?, ?, ?"),
		string(entry.ID), string(entry.UserID), string(entry.TaskID),
		string(entry.EventType), entry.EventData, naiveAt(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event log %s: %w", entry.ID, err)
	}
	return nil
}

// ListEventLogsByUser returns the last `limit` entries for a user, oldest
// first. If limit <= 0, returns all.
func (es *EventLogStore) ListEventLogsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.EventLogEntry, error) {
	query := `SELECT id, user_id, task_id, event_type, event_data, created_at
		FROM event_logs WHERE user_id = ? ORDER BY seq DESC`
	args := []any{string(userID)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := es.s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list event logs: %w", err)
	}
	defer rows.Close()

	var newestFirst []*domain.EventLogEntry
	for rows.Next() {
		var (
			e                         domain.EventLogEntry
			id, user, task, eventType string
			createdAt                 naiveTime
		)
		if err := rows.Scan(&id, &user, &task, &eventType, &e.EventData, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event log: %w", err)
		}
		e.ID = domain.EventID(id)
		e.UserID = domain.UserID(user)
		e.TaskID = domain.TaskID(task)
		e.EventType = domain.TaskEventType(eventType)
		e.CreatedAt = createdAt.orZero()
		newestFirst = append(newestFirst, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list event logs: %w", err)
	}

	out := make([]*domain.EventLogEntry, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, nil
}
