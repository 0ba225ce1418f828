package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/PabloGalante/todo-agent/internal/app/tasks"
	"github.com/PabloGalante/todo-agent/internal/domain"
)

// Tool names, shared by the chat agent and the MCP server.
const (
	AddTaskName      = "add_task"
	ListTasksName    = "list_tasks"
	CompleteTaskName = "complete_task"
	DeleteTaskName   = "delete_task"
	UpdateTaskName   = "update_task"
)

// TaskService is what the task tools need from tasks.Service.
type TaskService interface {
	Create(ctx context.Context, userID domain.UserID, in tasks.CreateInput) (*domain.Task, error)
	List(ctx context.Context, userID domain.UserID, opts tasks.ListOptions) (*domain.TaskPage, error)
	ResolveRef(ctx context.Context, userID domain.UserID, ref string) (*domain.Task, error)
	SetCompleted(ctx context.Context, userID domain.UserID, id domain.TaskID, completed bool) (*domain.Task, error)
	Update(ctx context.Context, userID domain.UserID, id domain.TaskID, in tasks.UpdateInput) (*domain.Task, error)
	Delete(ctx context.Context, userID domain.UserID, id domain.TaskID) (*domain.Task, error)
	ShortIDs(ctx context.Context, userID domain.UserID) (map[domain.TaskID]int, error)
}

// NewTaskTools returns the five task tools backed by svc.
func NewTaskTools(svc TaskService) []Tool {
	return []Tool{
		&AddTaskTool{svc: svc},
		&ListTasksTool{svc: svc},
		&CompleteTaskTool{svc: svc},
		&DeleteTaskTool{svc: svc},
		&UpdateTaskTool{svc: svc},
	}
}

func userOf(tctx ToolContext) (domain.UserID, error) {
	if tctx.UserID == "" {
		return "", &Error{Message: "missing user id"}
	}
	return domain.UserID(tctx.UserID), nil
}

// friendly translates service errors into messages for the chat user.
func friendly(ref string, err error) error {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound), errors.Is(err, domain.ErrForbidden):
		return &Error{Message: fmt.Sprintf("Task %s not found", ref), Err: err}
	case errors.Is(err, domain.ErrShortIDOutOfRange):
		return &Error{Message: fmt.Sprintf("Task %s not found. Ask me to list your tasks to see their numbers", ref), Err: err}
	case errors.Is(err, domain.ErrInvalidTaskRef):
		return &Error{Message: fmt.Sprintf("%q is not a valid task number or id", ref), Err: err}
	case errors.Is(err, domain.ErrValidation):
		return &Error{Message: err.Error(), Err: err}
	default:
		return &Error{Message: "could not reach your task list, please try again", Err: err}
	}
}

func taskResult(t *domain.Task, status string) map[string]any {
	return map[string]any{
		"task_id": string(t.ID),
		"status":  status,
		"title":   t.Title,
	}
}

// AddTaskTool creates a task.
//
// Input: {"title": "...", "description"?, "due_date"? (RFC 3339),
// "priority"?, "tags"?, "recurrence_pattern"?}
type AddTaskTool struct{ svc TaskService }

func (t *AddTaskTool) Name() string { return AddTaskName }

func (t *AddTaskTool) Description() string {
	return "Create a new task for the user"
}

func (t *AddTaskTool) Call(ctx context.Context, tctx ToolContext, input map[string]any) (map[string]any, error) {
	user, err := userOf(tctx)
	if err != nil {
		return nil, err
	}

	in := tasks.CreateInput{
		Title:             getString(input, "title"),
		Description:       getString(input, "description"),
		Priority:          getString(input, "priority"),
		Tags:              getString(input, "tags"),
		RecurrencePattern: getString(input, "recurrence_pattern"),
	}
	if raw := getString(input, "due_date"); raw != "" {
		due, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, &Error{Message: "due_date must look like 2024-01-31T09:00:00Z", Err: err}
		}
		in.DueDate = &due
	}

	task, err := t.svc.Create(ctx, user, in)
	if err != nil {
		return nil, friendly("", err)
	}
	return taskResult(task, "created"), nil
}

// ListTasksTool lists tasks with their short ids.
//
// Input: {"status": "all"|"pending"|"completed"}
type ListTasksTool struct{ svc TaskService }

func (t *ListTasksTool) Name() string { return ListTasksName }

func (t *ListTasksTool) Description() string {
	return "List the user's tasks, optionally only pending or completed ones"
}

func (t *ListTasksTool) Call(ctx context.Context, tctx ToolContext, input map[string]any) (map[string]any, error) {
	user, err := userOf(tctx)
	if err != nil {
		return nil, err
	}
	status := domain.ParseStatusFilter(getString(input, "status"))

	page, err := t.svc.List(ctx, user, tasks.ListOptions{Status: status, Limit: tasks.MaxListLimit})
	if err != nil {
		return nil, friendly("", err)
	}
	shortIDs, err := t.svc.ShortIDs(ctx, user)
	if err != nil {
		return nil, friendly("", err)
	}

	items := make([]map[string]any, 0, len(page.Tasks))
	for _, task := range page.Tasks {
		items = append(items, map[string]any{
			"id":          string(task.ID),
			"short_id":    shortIDs[task.ID],
			"title":       task.Title,
			"description": task.Description,
			"completed":   task.IsCompleted,
		})
	}
	return map[string]any{
		"status": string(status),
		"tasks":  items,
		"total":  page.Total,
	}, nil
}

// CompleteTaskTool marks a task as done.
//
// Input: {"task_id": "<uuid or short id>"}
type CompleteTaskTool struct{ svc TaskService }

func (t *CompleteTaskTool) Name() string { return CompleteTaskName }

func (t *CompleteTaskTool) Description() string {
	return "Mark a task as completed, by short id or task id"
}

func (t *CompleteTaskTool) Call(ctx context.Context, tctx ToolContext, input map[string]any) (map[string]any, error) {
	user, err := userOf(tctx)
	if err != nil {
		return nil, err
	}
	ref := refOf(input)

	task, err := t.svc.ResolveRef(ctx, user, ref)
	if err != nil {
		return nil, friendly(ref, err)
	}
	task, err = t.svc.SetCompleted(ctx, user, task.ID, true)
	if err != nil {
		return nil, friendly(ref, err)
	}
	return taskResult(task, "completed"), nil
}

// DeleteTaskTool removes a task.
//
// Input: {"task_id": "<uuid or short id>"}
type DeleteTaskTool struct{ svc TaskService }

func (t *DeleteTaskTool) Name() string { return DeleteTaskName }

func (t *DeleteTaskTool) Description() string {
	return "Delete a task, by short id or task id"
}

func (t *DeleteTaskTool) Call(ctx context.Context, tctx ToolContext, input map[string]any) (map[string]any, error) {
	user, err := userOf(tctx)
	if err != nil {
		return nil, err
	}
	ref := refOf(input)

	task, err := t.svc.ResolveRef(ctx, user, ref)
	if err != nil {
		return nil, friendly(ref, err)
	}
	task, err = t.svc.Delete(ctx, user, task.ID)
	if err != nil {
		return nil, friendly(ref, err)
	}
	return taskResult(task, "deleted"), nil
}

// UpdateTaskTool changes a task's title and/or description.
//
// Input: {"task_id": "<uuid or short id>", "title"?, "description"?}
type UpdateTaskTool struct{ svc TaskService }

func (t *UpdateTaskTool) Name() string { return UpdateTaskName }

func (t *UpdateTaskTool) Description() string {
	return "Change the title or description of a task, by short id or task id"
}

func (t *UpdateTaskTool) Call(ctx context.Context, tctx ToolContext, input map[string]any) (map[string]any, error) {
	user, err := userOf(tctx)
	if err != nil {
		return nil, err
	}
	ref := refOf(input)

	task, err := t.svc.ResolveRef(ctx, user, ref)
	if err != nil {
		return nil, friendly(ref, err)
	}

	patch := tasks.UpdateInput{
		Title:       getOptString(input, "title"),
		Description: getOptString(input, "description"),
	}
	if patch.Title == nil && patch.Description == nil {
		return taskResult(task, "no_changes"), nil
	}

	task, err = t.svc.Update(ctx, user, task.ID, patch)
	if err != nil {
		return nil, friendly(ref, err)
	}
	return taskResult(task, "updated"), nil
}

// refOf accepts task_id as a string or a JSON number.
func refOf(input map[string]any) string {
	switch v := input["task_id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}
