package audit

import (
	"context"
	"fmt"

	"github.com/PabloGalante/todo-agent/internal/domain"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

const DefaultListLimit = 20

// Service records task events to the audit trail and reads them back.
type Service struct {
	store domain.EventLogStore
}

// NewService creates an audit service from an EventLogStore.
func NewService(store domain.EventLogStore) *Service {
	return &Service{
		store: store,
	}
}

// Record appends the event to the trail. The entry id is the event id, so a
// redelivered event is recorded once.
func (s *Service) Record(ctx context.Context, ev domain.TaskEvent) error {
	if s.store == nil {
		return nil
	}

	entry := &domain.EventLogEntry{
		ID:        ev.EventID,
		UserID:    ev.UserID,
		TaskID:    ev.TaskID,
		EventType: ev.EventType,
		EventData: string(ev.Payload),
		CreatedAt: ev.Timestamp.UTC(),
	}
	if err := s.store.AppendEventLog(ctx, entry); err != nil {
		return fmt.Errorf("record event %s: %w", ev.EventID, err)
	}

	observability.LoggerFromContext(ctx).Debug("event recorded",
		"event_id", ev.EventID,
		"event_type", ev.EventType,
		"user_id", ev.UserID,
	)
	return nil
}

// ListUserEvents returns the last `limit` entries for a user.
// If limit <= 0, DefaultListLimit is used.
func (s *Service) ListUserEvents(
	ctx context.Context,
	userID domain.UserID,
	limit int,
) ([]*domain.EventLogEntry, error) {

	if s.store == nil {
		return []*domain.EventLogEntry{}, nil
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}

	return s.store.ListEventLogsByUser(ctx, userID, limit)
}
