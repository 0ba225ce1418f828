package domain

import "time"

// EventLogEntry is one row of the audit trail of task operations.
type EventLogEntry struct {
	ID        EventID       `json:"id"`
	UserID    UserID        `json:"user_id"`
	TaskID    TaskID        `json:"task_id,omitempty"`
	EventType TaskEventType `json:"event_type"`
	EventData string        `json:"event_data,omitempty"` // JSON
	CreatedAt time.Time     `json:"created_at"`
}
