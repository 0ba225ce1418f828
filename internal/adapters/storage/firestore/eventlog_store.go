package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

type eventLogDoc struct {
	UserID    string    `firestore:"user_id"`
	TaskID    string    `firestore:"task_id"`
	EventType string    `firestore:"event_type"`
	EventData string    `firestore:"event_data"`
	CreatedAt time.Time `firestore:"created_at"`
}

func (s *Store) eventLogsCol() *firestore.CollectionRef {
	return s.client.Collection("event_logs")
}

// AppendEventLog writes the entry under its id. A redelivered event keeps
// the first document.
func (s *Store) AppendEventLog(ctx context.Context, entry *domain.EventLogEntry) error {
	if entry == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = domain.EventID(uuid.NewString())
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.eventLogsCol().Doc(string(entry.ID)).Create(ctx, eventLogDoc{
		UserID:    string(entry.UserID),
		TaskID:    string(entry.TaskID),
		EventType: string(entry.EventType),
		EventData: entry.EventData,
		CreatedAt: entry.CreatedAt,
	})
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("firestore AppendEventLog: %w", err)
	}
	return nil
}

// ListEventLogsByUser returns the last `limit` entries for a user, oldest
// first.
func (s *Store) ListEventLogsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.EventLogEntry, error) {
	q := s.eventLogsCol().Where("user_id", "==", string(userID)).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var newestFirst []*domain.EventLogEntry
	err := each(q.Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		var doc eventLogDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode eventLogDoc: %w", err)
		}
		newestFirst = append(newestFirst, &domain.EventLogEntry{
			ID:        domain.EventID(snap.Ref.ID),
			UserID:    domain.UserID(doc.UserID),
			TaskID:    domain.TaskID(doc.TaskID),
			EventType: domain.TaskEventType(doc.EventType),
			EventData: doc.EventData,
			CreatedAt: doc.CreatedAt.UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("firestore ListEventLogsByUser: %w", err)
	}

	out := make([]*domain.EventLogEntry, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, nil
}
