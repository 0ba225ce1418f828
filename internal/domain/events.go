package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TaskEventType string

const (
	TaskCreated            TaskEventType = "task.created"
	TaskUpdated            TaskEventType = "task.updated"
	TaskDeleted            TaskEventType = "task.deleted"
	TaskCompleted          TaskEventType = "task.completed"
	TaskRecurringGenerated TaskEventType = "task.recurring.generated"
	TaskReminderScheduled  TaskEventType = "task.reminder.scheduled"

	// LegacyTaskCompleted is still emitted by older publishers.
	LegacyTaskCompleted TaskEventType = "completed"
)

// Topic names on the pub/sub transport.
const (
	TopicTaskEvents  = "task-events"
	TopicReminders   = "reminders"
	TopicTaskUpdates = "task-updates"
)

// TaskEvent is the envelope published for every task lifecycle change.
type TaskEvent struct {
	EventID       EventID         `json:"event_id"`
	EventType     TaskEventType   `json:"event_type"`
	UserID        UserID          `json:"user_id"`
	TaskID        TaskID          `json:"task_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	CausationID   string          `json:"causation_id,omitempty"`
}

// NewTaskEvent stamps a fresh event id and encodes payload.
func NewTaskEvent(typ TaskEventType, userID UserID, taskID TaskID, at time.Time, payload any) (TaskEvent, error) {
	ev := TaskEvent{
		EventID:   EventID(uuid.NewString()),
		EventType: typ,
		UserID:    userID,
		TaskID:    taskID,
		Timestamp: at.UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return TaskEvent{}, fmt.Errorf("encode %s payload: %w", typ, err)
		}
		ev.Payload = raw
	}
	return ev, nil
}

// IsCompletion reports whether the event announces a completed task.
func (e TaskEvent) IsCompletion() bool {
	return e.EventType == TaskCompleted || e.EventType == LegacyTaskCompleted
}

// CompletionPayload is carried by task.completed events. It is a snapshot of
// the task at completion time.
type CompletionPayload struct {
	IsRecurring       bool              `json:"is_recurring"`
	RecurrencePattern RecurrencePattern `json:"recurrence_pattern,omitempty"`
	DueDate           *time.Time        `json:"due_date,omitempty"`
	RemindAt          *time.Time        `json:"remind_at,omitempty"`
	Title             string            `json:"title"`
	Description       string            `json:"description,omitempty"`
	Priority          Priority          `json:"priority,omitempty"`
	Tags              string            `json:"tags,omitempty"`
	CompletedAt       time.Time         `json:"completed_at"`
}

// Completion decodes the payload of a completion event.
func (e TaskEvent) Completion() (CompletionPayload, error) {
	var p CompletionPayload
	if len(e.Payload) == 0 {
		return p, fmt.Errorf("event %s has no payload", e.EventID)
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("decode completion payload: %w", err)
	}
	return p, nil
}

// OccurrencePayload is carried by task.recurring.generated events.
type OccurrencePayload struct {
	ParentTaskID      TaskID            `json:"parent_task_id"`
	NewTaskID         TaskID            `json:"new_task_id"`
	RecurrencePattern RecurrencePattern `json:"recurrence_pattern"`
	NextDueDate       time.Time         `json:"calculated_next_date"`
}

// ReminderPayload is carried by task.reminder.scheduled events.
type ReminderPayload struct {
	ScheduledTime time.Time `json:"scheduled_time"`
	Message       string    `json:"message"`
	Channel       string    `json:"channel"`
}

// TaskPayload is carried by task.created, task.updated and task.deleted
// events.
type TaskPayload struct {
	Title             string            `json:"title"`
	Description       string            `json:"description,omitempty"`
	IsCompleted       bool              `json:"is_completed"`
	DueDate           *time.Time        `json:"due_date,omitempty"`
	RemindAt          *time.Time        `json:"remind_at,omitempty"`
	Priority          Priority          `json:"priority,omitempty"`
	Tags              string            `json:"tags,omitempty"`
	IsRecurring       bool              `json:"is_recurring"`
	RecurrencePattern RecurrencePattern `json:"recurrence_pattern,omitempty"`
	ParentTaskID      *TaskID           `json:"parent_task_id,omitempty"`
}

func PayloadFromTask(t *Task) TaskPayload {
	return TaskPayload{
		Title:             t.Title,
		Description:       t.Description,
		IsCompleted:       t.IsCompleted,
		DueDate:           t.DueDate,
		RemindAt:          t.RemindAt,
		Priority:          t.Priority,
		Tags:              t.Tags,
		IsRecurring:       t.IsRecurring,
		RecurrencePattern: t.RecurrencePattern,
		ParentTaskID:      t.ParentTaskID,
	}
}

// CompletionFromTask snapshots t for a task.completed event.
func CompletionFromTask(t *Task, at time.Time) CompletionPayload {
	return CompletionPayload{
		IsRecurring:       t.IsRecurring,
		RecurrencePattern: t.RecurrencePattern,
		DueDate:           t.DueDate,
		RemindAt:          t.RemindAt,
		Title:             t.Title,
		Description:       t.Description,
		Priority:          t.Priority,
		Tags:              t.Tags,
		CompletedAt:       at.UTC(),
	}
}

// Recurs reports whether the completed task should produce a successor.
// Older publishers omit is_recurring and only send the pattern.
func (p CompletionPayload) Recurs() bool {
	return p.IsRecurring || p.RecurrencePattern != ""
}

// DeliveryStatus is a consumer's answer to the pub/sub transport.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "SUCCESS"
	DeliveryRetry   DeliveryStatus = "RETRY"
	DeliveryDrop    DeliveryStatus = "DROP"
)
