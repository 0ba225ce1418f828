package domain

import "time"

type SessionID string
type UserID string
type MessageID string
type TaskID string
type EventID string

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

type Timestamp = time.Time
