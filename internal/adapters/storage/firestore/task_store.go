package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

type taskDoc struct {
	UserID            string     `firestore:"user_id"`
	Title             string     `firestore:"title"`
	Description       string     `firestore:"description"`
	IsCompleted       bool       `firestore:"is_completed"`
	CreatedAt         time.Time  `firestore:"created_at"`
	UpdatedAt         time.Time  `firestore:"updated_at"`
	DueDate           *time.Time `firestore:"due_date"`
	Priority          string     `firestore:"priority"`
	Tags              string     `firestore:"tags"`
	IsRecurring       bool       `firestore:"is_recurring"`
	RecurrencePattern string     `firestore:"recurrence_pattern"`
	RemindAt          *time.Time `firestore:"remind_at"`
	ParentTaskID      *string    `firestore:"parent_task_id"`
}

func toTaskDoc(t *domain.Task) taskDoc {
	doc := taskDoc{
		UserID:            string(t.UserID),
		Title:             t.Title,
		Description:       t.Description,
		IsCompleted:       t.IsCompleted,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		DueDate:           t.DueDate,
		Priority:          string(t.Priority),
		Tags:              t.Tags,
		IsRecurring:       t.IsRecurring,
		RecurrencePattern: string(t.RecurrencePattern),
		RemindAt:          t.RemindAt,
	}
	if t.ParentTaskID != nil {
		p := string(*t.ParentTaskID)
		doc.ParentTaskID = &p
	}
	return doc
}

func (d taskDoc) toDomain(id string) *domain.Task {
	t := &domain.Task{
		ID:                domain.TaskID(id),
		UserID:            domain.UserID(d.UserID),
		Title:             d.Title,
		Description:       d.Description,
		IsCompleted:       d.IsCompleted,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
		DueDate:           domain.UTCPtr(d.DueDate),
		Priority:          domain.Priority(d.Priority),
		Tags:              d.Tags,
		IsRecurring:       d.IsRecurring,
		RecurrencePattern: domain.RecurrencePattern(d.RecurrencePattern),
		RemindAt:          domain.UTCPtr(d.RemindAt),
	}
	if d.ParentTaskID != nil {
		p := domain.TaskID(*d.ParentTaskID)
		t.ParentTaskID = &p
	}
	return t
}

func decodeTask(snap *firestore.DocumentSnapshot) (*domain.Task, error) {
	var doc taskDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode taskDoc: %w", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (s *Store) tasksCol() *firestore.CollectionRef {
	return s.client.Collection("tasks")
}

func (s *Store) occurrenceQuery(parentID domain.TaskID, due time.Time) firestore.Query {
	return s.tasksCol().
		Where("parent_task_id", "==", string(parentID)).
		Where("due_date", "==", due.UTC()).
		Limit(1)
}

// CreateTask inserts task. Occurrences are checked and written in one
// transaction so two generators racing on different ids still produce one
// row.
func (s *Store) CreateTask(ctx context.Context, task *domain.Task) error {
	ref := s.tasksCol().Doc(string(task.ID))
	doc := toTaskDoc(task)

	if task.ParentTaskID == nil || task.DueDate == nil {
		if _, err := ref.Create(ctx, doc); err != nil {
			if isAlreadyExists(err) {
				return domain.ErrTaskExists
			}
			return fmt.Errorf("firestore CreateTask: %w", err)
		}
		return nil
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(s.occurrenceQuery(*task.ParentTaskID, *task.DueDate)).GetAll()
		if err != nil {
			return err
		}
		if len(snaps) > 0 {
			return domain.ErrDuplicateOccurrence
		}
		return tx.Create(ref, doc)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrDuplicateOccurrence), isAlreadyExists(err):
		return domain.ErrDuplicateOccurrence
	default:
		return fmt.Errorf("firestore CreateTask: %w", err)
	}
}

func (s *Store) GetTask(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	snap, err := s.tasksCol().Doc(string(id)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("firestore GetTask: %w", err)
	}
	return decodeTask(snap)
}

func (s *Store) UpdateTask(ctx context.Context, task *domain.Task) error {
	doc := toTaskDoc(task)
	_, err := s.tasksCol().Doc(string(task.ID)).Update(ctx, []firestore.Update{
		{Path: "title", Value: doc.Title},
		{Path: "description", Value: doc.Description},
		{Path: "is_completed", Value: doc.IsCompleted},
		{Path: "updated_at", Value: doc.UpdatedAt},
		{Path: "due_date", Value: doc.DueDate},
		{Path: "priority", Value: doc.Priority},
		{Path: "tags", Value: doc.Tags},
		{Path: "is_recurring", Value: doc.IsRecurring},
		{Path: "recurrence_pattern", Value: doc.RecurrencePattern},
		{Path: "remind_at", Value: doc.RemindAt},
		{Path: "parent_task_id", Value: doc.ParentTaskID},
	})
	if err != nil {
		if isNotFound(err) {
			return domain.ErrTaskNotFound
		}
		return fmt.Errorf("firestore UpdateTask: %w", err)
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id domain.TaskID) error {
	_, err := s.tasksCol().Doc(string(id)).Delete(ctx, firestore.Exists)
	if err != nil {
		if isNotFound(err) {
			return domain.ErrTaskNotFound
		}
		return fmt.Errorf("firestore DeleteTask: %w", err)
	}
	return nil
}

// ListTasksByUser returns the user's tasks oldest first.
func (s *Store) ListTasksByUser(ctx context.Context, userID domain.UserID, opts domain.TaskListOptions) (*domain.TaskPage, error) {
	q := s.tasksCol().Where("user_id", "==", string(userID))
	switch opts.Status {
	case domain.StatusPending:
		q = q.Where("is_completed", "==", false)
	case domain.StatusCompleted:
		q = q.Where("is_completed", "==", true)
	}

	res, err := q.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore count tasks: %w", err)
	}
	total := 0
	if v, ok := res["total"].(*firestorepb.Value); ok {
		total = int(v.GetIntegerValue())
	}

	q = q.OrderBy("created_at", firestore.Asc)
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	page := &domain.TaskPage{Tasks: make([]*domain.Task, 0), Total: total, Limit: opts.Limit, Offset: opts.Offset}
	err = each(q.Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		t, err := decodeTask(snap)
		if err != nil {
			return err
		}
		page.Tasks = append(page.Tasks, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("firestore ListTasksByUser: %w", err)
	}
	return page, nil
}

func (s *Store) FindOccurrence(ctx context.Context, parentID domain.TaskID, dueDate time.Time) (*domain.Task, error) {
	snaps, err := s.occurrenceQuery(parentID, dueDate).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore FindOccurrence: %w", err)
	}
	if len(snaps) == 0 {
		return nil, domain.ErrTaskNotFound
	}
	return decodeTask(snaps[0])
}
