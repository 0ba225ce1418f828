package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/PabloGalante/todo-agent/internal/domain"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

// Store is the slice of domain.TaskStore the engine needs.
type Store interface {
	GetTask(ctx context.Context, id domain.TaskID) (*domain.Task, error)
	FindOccurrence(ctx context.Context, parentID domain.TaskID, dueDate time.Time) (*domain.Task, error)
	CreateTask(ctx context.Context, task *domain.Task) error
}

type Outcome string

const (
	Generated Outcome = "generated"
	Skipped   Outcome = "skipped"
	Aborted   Outcome = "aborted"
)

// Result reports what HandleCompletion did. Task is the new occurrence when
// Generated, or the existing one when Skipped and it could be loaded.
type Result struct {
	Outcome  Outcome
	Task     *domain.Task
	DueDate  time.Time
	RemindAt *time.Time
	Reason   string
}

// Snapshot is an immutable copy of a recurring task taken when it was
// completed.
type Snapshot struct {
	ParentID    domain.TaskID
	UserID      domain.UserID
	Title       string
	Description string
	DueDate     *time.Time
	RemindAt    *time.Time
	Priority    domain.Priority
	Tags        string
	Pattern     domain.RecurrencePattern

	// CompletedAt is the base for the next due date when DueDate is nil.
	CompletedAt time.Time
}

func SnapshotFromTask(t *domain.Task) Snapshot {
	return Snapshot{
		ParentID:    t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     domain.UTCPtr(t.DueDate),
		RemindAt:    domain.UTCPtr(t.RemindAt),
		Priority:    t.Priority,
		Tags:        t.Tags,
		Pattern:     t.RecurrencePattern,
		CompletedAt: completedAt(t),
	}
}

func completedAt(t *domain.Task) time.Time {
	if !t.IsCompleted {
		return time.Time{}
	}
	return t.UpdatedAt.UTC()
}

// SnapshotFromEvent rebuilds a snapshot from a task.completed event.
func SnapshotFromEvent(ev domain.TaskEvent) (Snapshot, error) {
	p, err := ev.Completion()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ParentID:    ev.TaskID,
		UserID:      ev.UserID,
		Title:       p.Title,
		Description: p.Description,
		DueDate:     domain.UTCPtr(p.DueDate),
		RemindAt:    domain.UTCPtr(p.RemindAt),
		Priority:    p.Priority,
		Tags:        p.Tags,
		Pattern:     p.RecurrencePattern,
		CompletedAt: p.CompletedAt.UTC(),
	}, nil
}

// Engine creates successor occurrences. It never retries; transient store
// errors are returned to the caller, which owns redelivery.
type Engine struct {
	store Store
	now   func() time.Time
	group singleflight.Group
}

type Option func(*Engine)

// WithClock overrides the time source used when a snapshot carries neither a
// due date nor a completion time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// occurrenceNamespace seeds deterministic occurrence ids so that two
// deliveries of the same completion race on the same primary key.
var occurrenceNamespace = uuid.MustParse("6f1c2a52-8d0e-4d8c-9b51-3c7f4f0b2a11")

// OccurrenceID is the id of the occurrence generated for (parent, due).
func OccurrenceID(parent domain.TaskID, due time.Time) domain.TaskID {
	key := string(parent) + "|" + due.UTC().Format(time.RFC3339Nano)
	return domain.TaskID(uuid.NewSHA1(occurrenceNamespace, []byte(key)).String())
}

// HandleCompletion generates the successor of snap, or skips when it exists.
func (e *Engine) HandleCompletion(ctx context.Context, snap Snapshot) (Result, error) {
	log := observability.LoggerFromContext(ctx).With(
		"parent_task_id", snap.ParentID,
		"recurrence_pattern", snap.Pattern,
	)

	if _, err := e.store.GetTask(ctx, snap.ParentID); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			log.Warn("parent task missing, not generating occurrence")
			return Result{Outcome: Aborted, Reason: "parent task not found"}, nil
		}
		return Result{}, fmt.Errorf("load parent task %s: %w", snap.ParentID, err)
	}

	var base time.Time
	switch {
	case snap.DueDate != nil:
		base = snap.DueDate.UTC()
	case !snap.CompletedAt.IsZero():
		base = snap.CompletedAt.UTC()
	default:
		base = e.now().UTC()
	}
	next, ok := NextDueDate(base, snap.Pattern)
	if !ok {
		log.Warn("unknown recurrence pattern, falling back to daily")
	}
	remind := NextRemindAt(snap.DueDate, snap.RemindAt, next)

	key := string(snap.ParentID) + "|" + next.Format(time.RFC3339Nano)
	ran := false
	v, err, shared := e.group.Do(key, func() (any, error) {
		ran = true
		return e.generate(ctx, snap, next, remind)
	})
	if err != nil {
		log.Error("failed to generate occurrence", "error", err, "next_due_date", next)
		return Result{}, err
	}
	res := v.(Result)
	// only the caller that ran the closure created the occurrence
	if !ran && res.Outcome == Generated {
		res.Outcome = Skipped
		res.Reason = "occurrence already generated"
	}
	log.Info("recurrence handled",
		"outcome", res.Outcome,
		"next_due_date", next,
		"coalesced", shared,
	)
	return res, nil
}

func (e *Engine) generate(ctx context.Context, snap Snapshot, next time.Time, remind *time.Time) (Result, error) {
	existing, err := e.store.FindOccurrence(ctx, snap.ParentID, next)
	switch {
	case err == nil:
		return Result{Outcome: Skipped, Task: existing, DueDate: next, RemindAt: remind, Reason: "occurrence already generated"}, nil
	case !errors.Is(err, domain.ErrTaskNotFound):
		return Result{}, fmt.Errorf("find occurrence: %w", err)
	}

	now := e.now().UTC()
	parent := snap.ParentID
	due := next
	pattern := snap.Pattern
	if !pattern.Valid() {
		pattern = domain.RecurrenceDaily
	}
	task := &domain.Task{
		ID:                OccurrenceID(snap.ParentID, next),
		UserID:            snap.UserID,
		Title:             snap.Title,
		Description:       snap.Description,
		IsCompleted:       false,
		CreatedAt:         now,
		UpdatedAt:         now,
		DueDate:           &due,
		Priority:          snap.Priority,
		Tags:              snap.Tags,
		IsRecurring:       true,
		RecurrencePattern: pattern,
		RemindAt:          remind,
		ParentTaskID:      &parent,
	}

	if err := e.store.CreateTask(ctx, task); err != nil {
		if errors.Is(err, domain.ErrDuplicateOccurrence) {
			return Result{Outcome: Skipped, DueDate: next, RemindAt: remind, Reason: "occurrence already generated"}, nil
		}
		return Result{}, fmt.Errorf("create occurrence: %w", err)
	}
	return Result{Outcome: Generated, Task: task, DueDate: next, RemindAt: remind}, nil
}
