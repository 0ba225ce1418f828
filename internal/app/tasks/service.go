// Package tasks implements task CRUD, completion and short-id resolution on
// top of a domain.TaskStore, publishing a domain.TaskEvent for every change.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/PabloGalante/todo-agent/internal/domain"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000

	DefaultListLimit = 50
	MaxListLimit     = 100
)

type Service struct {
	store     domain.TaskStore
	publisher domain.EventPublisher
	topic     string
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTopic sets the topic task events are published to.
func WithTopic(topic string) Option {
	return func(s *Service) { s.topic = topic }
}

// NewService wires a task service. publisher may be nil, in which case no
// events are emitted.
func NewService(store domain.TaskStore, publisher domain.EventPublisher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		publisher: publisher,
		topic:     domain.TopicTaskEvents,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	Title             string
	Description       string
	DueDate           *time.Time
	RemindAt          *time.Time
	Priority          string
	Tags              string
	IsRecurring       bool
	RecurrencePattern string
}

func (s *Service) Create(ctx context.Context, userID domain.UserID, in CreateInput) (*domain.Task, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID)

	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := validateDescription(in.Description); err != nil {
		return nil, err
	}
	priority, ok := domain.ParsePriority(in.Priority)
	if !ok {
		return nil, fmt.Errorf("%w: priority must be low, medium or high", domain.ErrValidation)
	}
	recurring, pattern, err := validateRecurrence(in.IsRecurring, in.RecurrencePattern)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &domain.Task{
		ID:                domain.TaskID(uuid.NewString()),
		UserID:            userID,
		Title:             title,
		Description:       in.Description,
		CreatedAt:         now,
		UpdatedAt:         now,
		DueDate:           domain.UTCPtr(in.DueDate),
		RemindAt:          domain.UTCPtr(in.RemindAt),
		Priority:          priority,
		Tags:              normalizeTags(in.Tags),
		IsRecurring:       recurring,
		RecurrencePattern: pattern,
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		log.Error("failed to create task", "error", err)
		return nil, fmt.Errorf("create task: %w", err)
	}
	log.Info("task created", "task_id", task.ID, "is_recurring", task.IsRecurring)

	s.publish(ctx, domain.TaskCreated, task, domain.PayloadFromTask(task))
	return task, nil
}

type ListOptions struct {
	Status domain.StatusFilter
	Limit  int
	Offset int
}

// List returns a page of the user's tasks, oldest first.
func (s *Service) List(ctx context.Context, userID domain.UserID, opts ListOptions) (*domain.TaskPage, error) {
	limit := opts.Limit
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	status := opts.Status
	if status == "" {
		status = domain.StatusAll
	}

	page, err := s.store.ListTasksByUser(ctx, userID, domain.TaskListOptions{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to list tasks", "user_id", userID, "error", err)
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return page, nil
}

func (s *Service) Get(ctx context.Context, userID domain.UserID, id domain.TaskID) (*domain.Task, error) {
	return s.load(ctx, userID, id)
}

// UpdateInput is a patch: nil fields are left unchanged.
type UpdateInput struct {
	Title             *string
	Description       *string
	DueDate           *time.Time
	ClearDueDate      bool
	RemindAt          *time.Time
	ClearRemindAt     bool
	Priority          *string
	Tags              *string
	IsRecurring       *bool
	RecurrencePattern *string
	IsCompleted       *bool
}

func (s *Service) Update(ctx context.Context, userID domain.UserID, id domain.TaskID, in UpdateInput) (*domain.Task, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID, "task_id", id)

	task, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	wasCompleted := task.IsCompleted

	if in.Title != nil {
		title, err := validateTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		task.Title = title
	}
	if in.Description != nil {
		if err := validateDescription(*in.Description); err != nil {
			return nil, err
		}
		task.Description = *in.Description
	}
	switch {
	case in.ClearDueDate:
		task.DueDate = nil
	case in.DueDate != nil:
		task.DueDate = domain.UTCPtr(in.DueDate)
	}
	switch {
	case in.ClearRemindAt:
		task.RemindAt = nil
	case in.RemindAt != nil:
		task.RemindAt = domain.UTCPtr(in.RemindAt)
	}
	if in.Priority != nil {
		p, ok := domain.ParsePriority(*in.Priority)
		if !ok {
			return nil, fmt.Errorf("%w: priority must be low, medium or high", domain.ErrValidation)
		}
		task.Priority = p
	}
	if in.Tags != nil {
		task.Tags = normalizeTags(*in.Tags)
	}
	if in.IsRecurring != nil || in.RecurrencePattern != nil {
		recurring := task.IsRecurring
		if in.IsRecurring != nil {
			recurring = *in.IsRecurring
		}
		raw := string(task.RecurrencePattern)
		if in.RecurrencePattern != nil {
			raw = *in.RecurrencePattern
		}
		if in.IsRecurring != nil && !recurring && in.RecurrencePattern == nil {
			raw = ""
		}
		task.IsRecurring, task.RecurrencePattern, err = validateRecurrence(recurring, raw)
		if err != nil {
			return nil, err
		}
	}
	if in.IsCompleted != nil {
		task.IsCompleted = *in.IsCompleted
	}
	task.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateTask(ctx, task); err != nil {
		log.Error("failed to update task", "error", err)
		return nil, fmt.Errorf("update task: %w", err)
	}
	log.Info("task updated")

	s.publishChange(ctx, task, wasCompleted)
	return task, nil
}

// SetCompleted marks the task done or not done.
func (s *Service) SetCompleted(ctx context.Context, userID domain.UserID, id domain.TaskID, completed bool) (*domain.Task, error) {
	return s.Update(ctx, userID, id, UpdateInput{IsCompleted: &completed})
}

// ToggleCompletion flips the completion state.
func (s *Service) ToggleCompletion(ctx context.Context, userID domain.UserID, id domain.TaskID) (*domain.Task, error) {
	task, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.SetCompleted(ctx, userID, id, !task.IsCompleted)
}

// Delete removes the task and returns what was deleted.
func (s *Service) Delete(ctx context.Context, userID domain.UserID, id domain.TaskID) (*domain.Task, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID, "task_id", id)

	task, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		log.Error("failed to delete task", "error", err)
		return nil, fmt.Errorf("delete task: %w", err)
	}
	log.Info("task deleted")

	s.publish(ctx, domain.TaskDeleted, task, domain.PayloadFromTask(task))
	return task, nil
}

// ResolveRef turns a chat reference into a task. A UUID is looked up
// directly; a number is a 1-based position in the user's tasks ordered by
// creation time, recomputed on every call.
func (s *Service) ResolveRef(ctx context.Context, userID domain.UserID, ref string) (*domain.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrInvalidTaskRef
	}

	if isDigits(ref) {
		n, err := strconv.Atoi(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrShortIDOutOfRange, ref)
		}
		if n < 1 {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTaskRef, ref)
		}
		all, err := s.store.ListTasksByUser(ctx, userID, domain.TaskListOptions{Status: domain.StatusAll})
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		if n > len(all.Tasks) {
			return nil, fmt.Errorf("%w: task %d (you have %d tasks)", domain.ErrShortIDOutOfRange, n, len(all.Tasks))
		}
		return all.Tasks[n-1], nil
	}

	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTaskRef, ref)
	}
	return s.load(ctx, userID, domain.TaskID(id.String()))
}

// ShortIDs maps each of the user's task ids to its current short id.
func (s *Service) ShortIDs(ctx context.Context, userID domain.UserID) (map[domain.TaskID]int, error) {
	all, err := s.store.ListTasksByUser(ctx, userID, domain.TaskListOptions{Status: domain.StatusAll})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make(map[domain.TaskID]int, len(all.Tasks))
	for i, t := range all.Tasks {
		out[t.ID] = i + 1
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, userID domain.UserID, id domain.TaskID) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return task, nil
}

func (s *Service) publishChange(ctx context.Context, task *domain.Task, wasCompleted bool) {
	if task.IsCompleted && !wasCompleted {
		s.publish(ctx, domain.TaskCompleted, task, domain.CompletionFromTask(task, task.UpdatedAt))
		return
	}
	s.publish(ctx, domain.TaskUpdated, task, domain.PayloadFromTask(task))
}

// publish never fails the caller: the change is already committed.
func (s *Service) publish(ctx context.Context, typ domain.TaskEventType, task *domain.Task, payload any) {
	if s.publisher == nil {
		return
	}
	log := observability.LoggerFromContext(ctx).With("event_type", typ, "task_id", task.ID)

	ev, err := domain.NewTaskEvent(typ, task.UserID, task.ID, s.now(), payload)
	if err != nil {
		log.Error("failed to build task event", "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, s.topic, ev); err != nil {
		log.Error("failed to publish task event", "error", err, "event_id", ev.EventID)
		return
	}
	log.Debug("task event published", "event_id", ev.EventID)
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", fmt.Errorf("%w: title must be at most %d characters", domain.ErrValidation, MaxTitleLength)
	}
	return title, nil
}

func validateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return fmt.Errorf("%w: description must be at most %d characters", domain.ErrValidation, MaxDescriptionLength)
	}
	return nil
}

// validateRecurrence: a pattern implies recurring, and recurring requires a
// pattern.
func validateRecurrence(recurring bool, raw string) (bool, domain.RecurrencePattern, error) {
	if strings.TrimSpace(raw) == "" {
		if recurring {
			return false, "", fmt.Errorf("%w: recurring tasks need a recurrence pattern", domain.ErrValidation)
		}
		return false, "", nil
	}
	p, ok := domain.ParseRecurrencePattern(raw)
	if !ok {
		return false, "", fmt.Errorf("%w: recurrence pattern must be daily, weekly, monthly or yearly", domain.ErrValidation)
	}
	return true, p, nil
}

func normalizeTags(raw string) string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, ",")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
