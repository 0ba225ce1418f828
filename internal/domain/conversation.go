package domain

// Message represents any message in a conversation timeline (user or agent)
type Message struct {
	ID        MessageID
	SessionID SessionID
	Author    Role
	Text      string
	CreatedAt Timestamp

	// Metadata holds additional information about the message
	Tags        []string
	ReplyTo     *MessageID
	ContentType string // e.g., "text", "task_list", "clarification"
}

// Session is one chat conversation between a user and the assistant.
type Session struct {
	ID        SessionID
	UserID    UserID
	CreatedAt Timestamp
	UpdatedAt Timestamp

	Title string
}
