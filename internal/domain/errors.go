package domain

import "errors"

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrTaskExists      = errors.New("task already exists")
	ErrForbidden       = errors.New("not authorized to access this task")
	ErrValidation      = errors.New("validation failed")

	// ErrDuplicateOccurrence is returned by TaskStore.CreateTask when a
	// generated occurrence with the same (parent_task_id, due_date) exists.
	ErrDuplicateOccurrence = errors.New("occurrence already generated")

	ErrInvalidTaskRef    = errors.New("invalid task identifier")
	ErrShortIDOutOfRange = errors.New("short id out of range")
)
