package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/PabloGalante/todo-agent/internal/app/tasks"
	"github.com/PabloGalante/todo-agent/internal/domain"
)

// optionalTime tells an absent field apart from an explicit null.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// taskRequest accepts snake_case and the camelCase aliases older clients
// send.
type taskRequest struct {
	Title            *string      `json:"title"`
	Description      *string      `json:"description"`
	DueDate          optionalTime `json:"due_date"`
	DueDateAlias     optionalTime `json:"dueDate"`
	Priority         *string      `json:"priority"`
	Tags             *string      `json:"tags"`
	IsRecurring      *bool        `json:"is_recurring"`
	IsRecurringAlias *bool        `json:"isRecurring"`
	Pattern          *string      `json:"recurrence_pattern"`
	PatternAlias     *string      `json:"recurrencePattern"`
	RemindAt         optionalTime `json:"remind_at"`
	RemindAtAlias    optionalTime `json:"remindAt"`
	IsCompleted      *bool        `json:"is_completed"`
}

func (r *taskRequest) merge() {
	if !r.DueDate.Set {
		r.DueDate = r.DueDateAlias
	}
	if !r.RemindAt.Set {
		r.RemindAt = r.RemindAtAlias
	}
	if r.IsRecurring == nil {
		r.IsRecurring = r.IsRecurringAlias
	}
	if r.Pattern == nil {
		r.Pattern = r.PatternAlias
	}
}

type completeRequest struct {
	Completed   *bool `json:"completed"`
	IsCompleted *bool `json:"is_completed"`
}

type taskResponse struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	IsCompleted       bool       `json:"is_completed"`
	UserID            string     `json:"user_id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DueDate           *time.Time `json:"due_date"`
	Priority          *string    `json:"priority"`
	Tags              *string    `json:"tags"`
	IsRecurring       bool       `json:"is_recurring"`
	RecurrencePattern *string    `json:"recurrence_pattern"`
	RemindAt          *time.Time `json:"remind_at"`
	ParentTaskID      *string    `json:"parent_task_id"`
}

type taskListResponse struct {
	Tasks  []taskResponse `json:"tasks"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toTaskResponse(t *domain.Task) taskResponse {
	resp := taskResponse{
		ID:                string(t.ID),
		Title:             t.Title,
		Description:       t.Description,
		IsCompleted:       t.IsCompleted,
		UserID:            string(t.UserID),
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		DueDate:           t.DueDate,
		Priority:          strOrNil(string(t.Priority)),
		Tags:              strOrNil(t.Tags),
		IsRecurring:       t.IsRecurring,
		RecurrencePattern: strOrNil(string(t.RecurrencePattern)),
		RemindAt:          t.RemindAt,
	}
	if t.ParentTaskID != nil {
		resp.ParentTaskID = strOrNil(string(*t.ParentTaskID))
	}
	return resp
}

func decodeTaskRequest(r *http.Request) (*taskRequest, error) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	req.merge()
	return &req, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTaskRequest(r)
	if err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	in := tasks.CreateInput{
		Title:             deref(req.Title),
		Description:       deref(req.Description),
		DueDate:           req.DueDate.Value,
		RemindAt:          req.RemindAt.Value,
		Priority:          deref(req.Priority),
		Tags:              deref(req.Tags),
		RecurrencePattern: deref(req.Pattern),
	}
	if req.IsRecurring != nil {
		in.IsRecurring = *req.IsRecurring
	}

	task, err := s.tasks.Create(r.Context(), domain.UserID(r.PathValue("user_id")), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		badRequest(w, "limit must be an integer")
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil || offset < 0 {
		badRequest(w, "offset must be a non-negative integer")
		return
	}

	page, err := s.tasks.List(r.Context(), domain.UserID(r.PathValue("user_id")), tasks.ListOptions{
		Status: domain.ParseStatusFilter(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := taskListResponse{
		Tasks:  make([]taskResponse, 0, len(page.Tasks)),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	for _, t := range page.Tasks {
		resp.Tasks = append(resp.Tasks, toTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(r.Context(), domain.UserID(r.PathValue("user_id")), domain.TaskID(r.PathValue("task_id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTaskRequest(r)
	if err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	in := tasks.UpdateInput{
		Title:             req.Title,
		Description:       req.Description,
		Priority:          req.Priority,
		Tags:              req.Tags,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.Pattern,
		IsCompleted:       req.IsCompleted,
	}
	if req.DueDate.Set {
		in.DueDate = req.DueDate.Value
		in.ClearDueDate = req.DueDate.Value == nil
	}
	if req.RemindAt.Set {
		in.RemindAt = req.RemindAt.Value
		in.ClearRemindAt = req.RemindAt.Value == nil
	}

	task, err := s.tasks.Update(r.Context(), domain.UserID(r.PathValue("user_id")), domain.TaskID(r.PathValue("task_id")), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// handleCompleteTask sets completion from the body, or toggles it when the
// body is empty.
func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid JSON body")
		return
	}

	userID := domain.UserID(r.PathValue("user_id"))
	id := domain.TaskID(r.PathValue("task_id"))

	var (
		task *domain.Task
		err  error
	)
	switch {
	case req.Completed != nil:
		task, err = s.tasks.SetCompleted(r.Context(), userID, id, *req.Completed)
	case req.IsCompleted != nil:
		task, err = s.tasks.SetCompleted(r.Context(), userID, id, *req.IsCompleted)
	default:
		task, err = s.tasks.ToggleCompletion(r.Context(), userID, id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	_, err := s.tasks.Delete(r.Context(), domain.UserID(r.PathValue("user_id")), domain.TaskID(r.PathValue("task_id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
