package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

// EventLogStore is a simple in-memory implementation of domain.EventLogStore.
// It is NOT persistent and is only suitable for development / local mode.
type EventLogStore struct {
	mu       sync.RWMutex
	entries  map[domain.EventID]*domain.EventLogEntry
	byUserID map[domain.UserID][]domain.EventID
}

func NewEventLogStore() *EventLogStore {
	return &EventLogStore{
		entries:  make(map[domain.EventID]*domain.EventLogEntry),
		byUserID: make(map[domain.UserID][]domain.EventID),
	}
}

// AppendEventLog saves a new entry. Appending an id twice is a no-op, so
// redelivered events are logged once.
func (s *EventLogStore) AppendEventLog(_ context.Context, entry *domain.EventLogEntry) error {
	if entry == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = domain.EventID(uuid.NewString())
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, dup := s.entries[entry.ID]; dup {
		return nil
	}

	cp := *entry
	s.entries[entry.ID] = &cp
	s.byUserID[entry.UserID] = append(s.byUserID[entry.UserID], entry.ID)

	return nil
}

// ListEventLogsByUser returns the last `limit` entries for a user, oldest
// first. If limit <= 0, returns all.
func (s *EventLogStore) ListEventLogsByUser(_ context.Context, userID domain.UserID, limit int) ([]*domain.EventLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUserID[userID]
	if len(ids) == 0 {
		return []*domain.EventLogEntry{}, nil
	}

	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}
	selected := ids[len(ids)-limit:]

	out := make([]*domain.EventLogEntry, 0, len(selected))
	for _, id := range selected {
		if e, ok := s.entries[id]; ok {
			cp := *e
			out = append(out, &cp)
		}
	}

	return out, nil
}
