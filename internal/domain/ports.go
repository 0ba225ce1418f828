package domain

import (
	"context"
	"time"
)

// LLMClient defines how the core application interacts with an LLM service.
type LLMClient interface {
	GenerateReply(ctx context.Context, prompt string, convCtx ConversationContext) (string, error)
}

// ConversationContext gives the LLM minimal context about the conversation.
type ConversationContext struct {
	SessionID SessionID
	UserID    UserID
	History   []*Message // last N messages, oldest first
}

// SessionStore defines session persistence.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	UpdateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	ListSessionsByUser(ctx context.Context, userID UserID, limit int) ([]*Session, error)
}

// MessageStore defines message persistence.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *Message) error
	GetMessagesBySession(ctx context.Context, sessionID SessionID, limit int) ([]*Message, error)
}

// TaskStore defines task persistence.
//
// CreateTask must enforce uniqueness of (ParentTaskID, DueDate) for generated
// occurrences and report a violation as ErrDuplicateOccurrence.
type TaskStore interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id TaskID) (*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, id TaskID) error
	ListTasksByUser(ctx context.Context, userID UserID, opts TaskListOptions) (*TaskPage, error)

	// FindOccurrence returns ErrTaskNotFound when no occurrence exists.
	FindOccurrence(ctx context.Context, parentID TaskID, dueDate time.Time) (*Task, error)
}

// EventLogStore persists the audit trail.
type EventLogStore interface {
	AppendEventLog(ctx context.Context, entry *EventLogEntry) error
	ListEventLogsByUser(ctx context.Context, userID UserID, limit int) ([]*EventLogEntry, error)
}

// EventPublisher hands task events to the pub/sub transport.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, ev TaskEvent) error
}
