package domain

import (
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority accepts an empty string as "no priority".
func ParsePriority(s string) (Priority, bool) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", true
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	default:
		return "", false
	}
}

type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
	RecurrenceYearly  RecurrencePattern = "yearly"
)

// Valid reports whether p is one of the four known patterns.
func (p RecurrencePattern) Valid() bool {
	switch p {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

// ParseRecurrencePattern normalizes case and whitespace.
func ParseRecurrencePattern(s string) (RecurrencePattern, bool) {
	p := RecurrencePattern(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// StatusFilter selects tasks by completion state.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusPending   StatusFilter = "pending"
	StatusCompleted StatusFilter = "completed"
)

func ParseStatusFilter(s string) StatusFilter {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending
	case StatusCompleted:
		return StatusCompleted
	default:
		return StatusAll
	}
}

// Matches reports whether t passes the filter.
func (f StatusFilter) Matches(t *Task) bool {
	switch f {
	case StatusPending:
		return !t.IsCompleted
	case StatusCompleted:
		return t.IsCompleted
	default:
		return true
	}
}

// Task is a todo item owned by a user.
//
// DueDate and RemindAt are always UTC in memory; storage adapters persist them
// as naive timestamps.
type Task struct {
	ID          TaskID
	UserID      UserID
	Title       string
	Description string
	IsCompleted bool
	CreatedAt   Timestamp
	UpdatedAt   Timestamp

	DueDate  *time.Time
	Priority Priority
	Tags     string // comma separated

	IsRecurring       bool
	RecurrencePattern RecurrencePattern
	RemindAt          *time.Time

	// ParentTaskID links a generated occurrence to the task whose completion
	// produced it.
	ParentTaskID *TaskID
}

// Clone returns a deep copy so stores never share pointers with callers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.RemindAt != nil {
		r := *t.RemindAt
		c.RemindAt = &r
	}
	if t.ParentTaskID != nil {
		p := *t.ParentTaskID
		c.ParentTaskID = &p
	}
	return &c
}

// TaskListOptions drives paginated listing. Results are ordered by creation
// time, oldest first.
type TaskListOptions struct {
	Status StatusFilter
	Limit  int // <= 0 means no limit
	Offset int
}

// TaskPage is one page of a user's tasks plus the unpaginated total.
type TaskPage struct {
	Tasks  []*Task
	Total  int
	Limit  int
	Offset int
}

// UTCPtr normalizes an optional time to UTC.
func UTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
