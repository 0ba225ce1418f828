package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

func seedTasks(t *testing.T, s *TaskStore, user domain.UserID, n int) []*domain.Task {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var out []*domain.Task
	for i := 0; i < n; i++ {
		task := &domain.Task{
			ID:          domain.TaskID(fmt.Sprintf("%s-%d", user, i)),
			UserID:      user,
			Title:       fmt.Sprintf("task %d", i),
			IsCompleted: i%2 == 1,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateTask(context.Background(), task))
		out = append(out, task)
	}
	return out
}

func TestTaskStoreListOrdersAndPaginates(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	seedTasks(t, s, "bob", 5)
	seedTasks(t, s, "alice", 2)

	page, err := s.ListTasksByUser(ctx, "bob", domain.TaskListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Tasks, 2)
	assert.Equal(t, domain.TaskID("bob-1"), page.Tasks[0].ID)
	assert.Equal(t, domain.TaskID("bob-2"), page.Tasks[1].ID)

	page, err = s.ListTasksByUser(ctx, "bob", domain.TaskListOptions{Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = s.ListTasksByUser(ctx, "bob", domain.TaskListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Tasks)
	assert.Equal(t, 5, page.Total)
}

func TestTaskStoreOccurrenceUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	parent := domain.TaskID("p")
	due := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

	first := &domain.Task{ID: "o1", UserID: "u", Title: "x", ParentTaskID: &parent, DueDate: &due}
	require.NoError(t, s.CreateTask(ctx, first))

	dup := &domain.Task{ID: "o2", UserID: "u", Title: "x", ParentTaskID: &parent, DueDate: &due}
	assert.ErrorIs(t, s.CreateTask(ctx, dup), domain.ErrDuplicateOccurrence)
	assert.ErrorIs(t, s.CreateTask(ctx, first), domain.ErrDuplicateOccurrence)

	found, err := s.FindOccurrence(ctx, parent, due.In(time.FixedZone("X", 7200)))
	require.NoError(t, err)
	assert.Equal(t, domain.TaskID("o1"), found.ID)

	require.NoError(t, s.DeleteTask(ctx, "o1"))
	_, err = s.FindOccurrence(ctx, parent, due)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.NoError(t, s.CreateTask(ctx, dup))
}

func TestTaskStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	tasks := seedTasks(t, s, "bob", 1)

	tasks[0].Title = "mutated"
	got, err := s.GetTask(ctx, tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "task 0", got.Title)

	got.Title = "changed"
	require.NoError(t, s.UpdateTask(ctx, got))
	again, err := s.GetTask(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", again.Title)

	assert.ErrorIs(t, s.UpdateTask(ctx, &domain.Task{ID: "missing"}), domain.ErrTaskNotFound)
	assert.ErrorIs(t, s.DeleteTask(ctx, "missing"), domain.ErrTaskNotFound)
}
