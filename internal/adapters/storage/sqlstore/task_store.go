package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

// TaskStore implements domain.TaskStore. The unique index on
// (parent_task_id, due_date) backs occurrence idempotency.
type TaskStore struct {
	s *Store
}

const taskColumns = `id, user_id, title, description, is_completed, created_at, updated_at,
	due_date, priority, tags, is_recurring, recurrence_pattern, remind_at, parent_task_id`

func (ts *TaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	_, err := ts.s.exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(task.ID),
		string(task.UserID),
		task.Title,
		task.Description,
		task.IsCompleted,
		naiveAt(task.CreatedAt),
		naiveAt(task.UpdatedAt),
		naive(task.DueDate),
		string(task.Priority),
		task.Tags,
		task.IsRecurring,
		string(task.RecurrencePattern),
		naive(task.RemindAt),
		parentArg(task.ParentTaskID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			if task.ParentTaskID != nil {
				return domain.ErrDuplicateOccurrence
			}
			return domain.ErrTaskExists
		}
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}
	return nil
}

func (ts *TaskStore) GetTask(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	row := ts.s.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, string(id))
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

func (ts *TaskStore) UpdateTask(ctx context.Context, task *domain.Task) error {
	res, err := ts.s.exec(ctx,
		`UPDATE tasks SET title = ?, description = ?, is_completed = ?, updated_at = ?,
			due_date = ?, priority = ?, tags = ?, is_recurring = ?, recurrence_pattern = ?,
			remind_at = ?, parent_task_id = ?
		WHERE id = ?`,
		task.Title,
		task.Description,
		task.IsCompleted,
		naiveAt(task.UpdatedAt),
		naive(task.DueDate),
		string(task.Priority),
		task.Tags,
		task.IsRecurring,
		string(task.RecurrencePattern),
		naive(task.RemindAt),
		parentArg(task.ParentTaskID),
		string(task.ID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateOccurrence
		}
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	return requireOne(res, domain.ErrTaskNotFound)
}

func (ts *TaskStore) DeleteTask(ctx context.Context, id domain.TaskID) error {
	res, err := ts.s.exec(ctx, `DELETE FROM tasks WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return requireOne(res, domain.ErrTaskNotFound)
}

// ListTasksByUser returns the user's tasks oldest first.
func (ts *TaskStore) ListTasksByUser(ctx context.Context, userID domain.UserID, opts domain.TaskListOptions) (*domain.TaskPage, error) {
	where := `WHERE user_id = ?`
	args := []any{string(userID)}
	switch opts.Status {
	case domain.StatusPending:
		where += ` AND is_completed = ?`
		args = append(args, false)
	case domain.StatusCompleted:
		where += ` AND is_completed = ?`
		args = append(args, true)
	}

	page := &domain.TaskPage{Limit: opts.Limit, Offset: opts.Offset}
	if err := ts.s.queryRow(ctx, `SELECT COUNT(*) FROM tasks `+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	// sqlite reads -1 and postgres reads NULL as no limit
	var limit any = opts.Limit
	if opts.Limit <= 0 {
		limit = -1
		if ts.s.dialect == Postgres {
			limit = nil
		}
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := ts.s.query(ctx,
		`SELECT `+taskColumns+` FROM tasks `+where+` ORDER BY created_at ASC, seq ASC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	page.Tasks = make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		page.Tasks = append(page.Tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return page, nil
}

func (ts *TaskStore) FindOccurrence(ctx context.Context, parentID domain.TaskID, dueDate time.Time) (*domain.Task, error) {
	row := ts.s.queryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE parent_task_id = ? AND due_date = ?`,
		string(parentID), naiveAt(dueDate),
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find occurrence of %s: %w", parentID, err)
	}
	return task, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (*domain.Task, error) {
	var (
		t                    domain.Task
		id, userID           string
		priority, pattern    string
		createdAt, updatedAt naiveTime
		dueDate, remindAt    naiveTime
		parent               sql.NullString
	)
	if err := sc.Scan(
		&id, &userID, &t.Title, &t.Description, &t.IsCompleted, &createdAt, &updatedAt,
		&dueDate, &priority, &t.Tags, &t.IsRecurring, &pattern, &remindAt, &parent,
	); err != nil {
		return nil, err
	}
	t.ID = domain.TaskID(id)
	t.UserID = domain.UserID(userID)
	t.CreatedAt = createdAt.orZero()
	t.UpdatedAt = updatedAt.orZero()
	t.DueDate = dueDate.t
	t.RemindAt = remindAt.t
	t.Priority = domain.Priority(priority)
	t.RecurrencePattern = domain.RecurrencePattern(pattern)
	if parent.Valid {
		p := domain.TaskID(parent.String)
		t.ParentTaskID = &p
	}
	return &t, nil
}

func parentArg(p *domain.TaskID) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func requireOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
