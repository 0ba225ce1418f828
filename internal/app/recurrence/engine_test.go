package recurrence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/todo-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/todo-agent/internal/domain"
)

var fixedNow = date(2024, 3, 10, 15)

func newParent(t *testing.T, store *memory.TaskStore, pattern domain.RecurrencePattern, due, remind *time.Time) *domain.Task {
	t.Helper()
	parent := &domain.Task{
		ID:                "parent-1",
		UserID:            "user-1",
		Title:             "Water plants",
		Description:       "balcony",
		IsCompleted:       true,
		CreatedAt:         fixedNow.Add(-48 * time.Hour),
		UpdatedAt:         fixedNow,
		DueDate:           due,
		RemindAt:          remind,
		Priority:          domain.PriorityHigh,
		Tags:              "home,garden",
		IsRecurring:       true,
		RecurrencePattern: pattern,
	}
	require.NoError(t, store.CreateTask(context.Background(), parent))
	return parent
}

func newEngine(store Store) *Engine {
	return NewEngine(store, WithClock(func() time.Time { return fixedNow }))
}

func TestHandleCompletionGeneratesDaily(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTaskStore()
	due := date(2024, 1, 31, 9)
	parent := newParent(t, store, domain.RecurrenceDaily, &due, nil)

	res, err := newEngine(store).HandleCompletion(ctx, SnapshotFromTask(parent))
	require.NoError(t, err)
	require.Equal(t, Generated, res.Outcome)

	next := res.Task
	require.NotNil(t, next)
	assert.Equal(t, date(2024, 2, 1, 9), *next.DueDate)
	assert.Nil(t, next.RemindAt)
	assert.Equal(t, parent.Title, next.Title)
	assert.Equal(t, parent.Description, next.Description)
	assert.Equal(t, parent.Priority, next.Priority)
	assert.Equal(t, parent.Tags, next.Tags)
	assert.Equal(t, parent.UserID, next.UserID)
	assert.Equal(t, domain.RecurrenceDaily, next.RecurrencePattern)
	assert.True(t, next.IsRecurring)
	assert.False(t, next.IsCompleted)
	require.NotNil(t, next.ParentTaskID)
	assert.Equal(t, parent.ID, *next.ParentTaskID)

	stored, err := store.GetTask(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, next.DueDate.UTC(), stored.DueDate.UTC())
}

func TestHandleCompletionMonthlyClamps(t *testing.T) {
	store := memory.NewTaskStore()
	due := date(2024, 1, 31, 0)
	parent := newParent(t, store, domain.RecurrenceMonthly, &due, nil)

	res, err := newEngine(store).HandleCompletion(context.Background(), SnapshotFromTask(parent))
	require.NoError(t, err)
	assert.Equal(t, Generated, res.Outcome)
	assert.Equal(t, date(2024, 2, 29, 0), res.DueDate)
}

func TestHandleCompletionKeepsReminderOffset(t *testing.T) {
	store := memory.NewTaskStore()
	due := date(2024, 1, 31, 9)
	remind := due.Add(-2 * time.Hour)
	parent := newParent(t, store, domain.RecurrenceWeekly, &due, &remind)

	res, err := newEngine(store).HandleCompletion(context.Background(), SnapshotFromTask(parent))
	require.NoError(t, err)
	require.Equal(t, Generated, res.Outcome)
	require.NotNil(t, res.Task.RemindAt)
	assert.Equal(t, res.Task.DueDate.Add(-2*time.Hour), *res.Task.RemindAt)
}

func TestHandleCompletionWithoutDueDateUsesCompletionTime(t *testing.T) {
	store := memory.NewTaskStore()
	remind := fixedNow.Add(-time.Hour)
	parent := newParent(t, store, domain.RecurrenceDaily, nil, &remind)

	res, err := newEngine(store).HandleCompletion(context.Background(), SnapshotFromTask(parent))
	require.NoError(t, err)
	assert.Equal(t, fixedNow.AddDate(0, 0, 1), res.DueDate)
	assert.Nil(t, res.Task.RemindAt, "no reminder without a parent due date")
}

func TestHandleCompletionWithoutDueDateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTaskStore()
	parent := newParent(t, store, domain.RecurrenceDaily, nil, nil)
	snap := SnapshotFromTask(parent)

	var mu sync.Mutex
	now := fixedNow.Add(time.Minute)
	engine := NewEngine(store, WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(5 * time.Second)
		return now
	}))

	first, err := engine.HandleCompletion(ctx, snap)
	require.NoError(t, err)
	second, err := engine.HandleCompletion(ctx, snap)
	require.NoError(t, err)

	assert.Equal(t, Generated, first.Outcome)
	assert.Equal(t, Skipped, second.Outcome)
	assert.Equal(t, fixedNow.AddDate(0, 0, 1), first.DueDate)
	assert.Equal(t, first.DueDate, second.DueDate)

	page, err := store.ListTasksByUser(ctx, parent.UserID, domain.TaskListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestHandleCompletionFallsBackToClock(t *testing.T) {
	store := memory.NewTaskStore()
	parent := newParent(t, store, domain.RecurrenceWeekly, nil, nil)
	snap := SnapshotFromTask(parent)
	snap.CompletedAt = time.Time{}

	res, err := NewEngine(store, WithClock(func() time.Time { return fixedNow.Add(time.Hour) })).
		HandleCompletion(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(time.Hour).AddDate(0, 0, 7), res.DueDate)
}

func TestHandleCompletionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTaskStore()
	due := date(2024, 1, 31, 9)
	parent := newParent(t, store, domain.RecurrenceDaily, &due, nil)
	engine := newEngine(store)
	snap := SnapshotFromTask(parent)

	first, err := engine.HandleCompletion(ctx, snap)
	require.NoError(t, err)
	second, err := engine.HandleCompletion(ctx, snap)
	require.NoError(t, err)

	assert.Equal(t, Generated, first.Outcome)
	assert.Equal(t, Skipped, second.Outcome)
	assert.Equal(t, first.Task.ID, second.Task.ID)

	page, err := store.ListTasksByUser(ctx, parent.UserID, domain.TaskListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total, "parent plus exactly one successor")
}

func TestHandleCompletionConcurrentDeliveries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTaskStore()
	due := date(2024, 1, 31, 9)
	parent := newParent(t, store, domain.RecurrenceDaily, &due, nil)
	snap := SnapshotFromTask(parent)

	// separate engines share no singleflight group; only the store
	// constraint stands between them
	const n = 16
	var wg sync.WaitGroup
	outcomes := make([]Outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := newEngine(store).HandleCompletion(ctx, snap)
			assert.NoError(t, err)
			outcomes[i] = res.Outcome
		}(i)
	}
	wg.Wait()

	generated := 0
	for _, o := range outcomes {
		if o == Generated {
			generated++
		} else {
			assert.Equal(t, Skipped, o)
		}
	}
	assert.Equal(t, 1, generated)

	page, err := store.ListTasksByUser(ctx, parent.UserID, domain.TaskListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

// slowStore holds FindOccurrence open so concurrent callers overlap.
type slowStore struct {
	*memory.TaskStore
	delay time.Duration
}

func (s *slowStore) FindOccurrence(ctx context.Context, parentID domain.TaskID, due time.Time) (*domain.Task, error) {
	time.Sleep(s.delay)
	return s.TaskStore.FindOccurrence(ctx, parentID, due)
}

func TestHandleCompletionSharedEngineCoalescedIsSkip(t *testing.T) {
	ctx := context.Background()
	store := &slowStore{TaskStore: memory.NewTaskStore(), delay: 50 * time.Millisecond}
	due := date(2024, 1, 31, 9)
	parent := newParent(t, store.TaskStore, domain.RecurrenceDaily, &due, nil)
	snap := SnapshotFromTask(parent)
	engine := newEngine(store)

	const n = 4
	var wg sync.WaitGroup
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := engine.HandleCompletion(ctx, snap)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	generated := 0
	for _, res := range results {
		if res.Outcome == Generated {
			generated++
			continue
		}
		assert.Equal(t, Skipped, res.Outcome)
		require.NotNil(t, res.Task)
		assert.Equal(t, OccurrenceID(parent.ID, date(2024, 2, 1, 9)), res.Task.ID)
	}
	assert.Equal(t, 1, generated)

	page, err := store.ListTasksByUser(ctx, parent.UserID, domain.TaskListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestHandleCompletionParentMissing(t *testing.T) {
	store := memory.NewTaskStore()
	due := date(2024, 1, 31, 9)
	snap := Snapshot{ParentID: "gone", UserID: "user-1", Title: "x", DueDate: &due, Pattern: domain.RecurrenceDaily}

	res, err := newEngine(store).HandleCompletion(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, Aborted, res.Outcome)
	assert.NotEmpty(t, res.Reason)
	assert.Nil(t, res.Task)
}

func TestHandleCompletionUnknownPatternFallsBackToDaily(t *testing.T) {
	store := memory.NewTaskStore()
	due := date(2024, 1, 31, 9)
	parent := newParent(t, store, domain.RecurrencePattern("hourly"), &due, nil)

	res, err := newEngine(store).HandleCompletion(context.Background(), SnapshotFromTask(parent))
	require.NoError(t, err)
	assert.Equal(t, Generated, res.Outcome)
	assert.Equal(t, date(2024, 2, 1, 9), res.DueDate)
	assert.Equal(t, domain.RecurrenceDaily, res.Task.RecurrencePattern, "stored pattern is normalized")
}

type flakyStore struct {
	*memory.TaskStore
	createErr   error
	dupOnCreate bool
}

func (f *flakyStore) FindOccurrence(ctx context.Context, parentID domain.TaskID, due time.Time) (*domain.Task, error) {
	if f.dupOnCreate {
		// simulate a concurrent writer that has not committed yet
		return nil, domain.ErrTaskNotFound
	}
	return f.TaskStore.FindOccurrence(ctx, parentID, due)
}

func (f *flakyStore) CreateTask(ctx context.Context, task *domain.Task) error {
	if f.createErr != nil && task.ParentTaskID != nil {
		return f.createErr
	}
	if f.dupOnCreate && task.ParentTaskID != nil {
		return domain.ErrDuplicateOccurrence
	}
	return f.TaskStore.CreateTask(ctx, task)
}

func TestHandleCompletionConstraintViolationIsSkip(t *testing.T) {
	store := &flakyStore{TaskStore: memory.NewTaskStore()}
	due := date(2024, 1, 31, 9)
	parent := newParent(t, store.TaskStore, domain.RecurrenceDaily, &due, nil)
	store.dupOnCreate = true

	res, err := newEngine(store).HandleCompletion(context.Background(), SnapshotFromTask(parent))
	require.NoError(t, err)
	assert.Equal(t, Skipped, res.Outcome)
}

func TestHandleCompletionReturnsTransientErrors(t *testing.T) {
	boom := errors.New("connection reset")
	store := &flakyStore{TaskStore: memory.NewTaskStore()}
	due := date(2024, 1, 31, 9)
	parent := newParent(t, store.TaskStore, domain.RecurrenceDaily, &due, nil)
	store.createErr = boom

	_, err := newEngine(store).HandleCompletion(context.Background(), SnapshotFromTask(parent))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSnapshotFromEvent(t *testing.T) {
	due := date(2024, 1, 31, 9)
	remind := due.Add(-time.Hour)
	ev, err := domain.NewTaskEvent(domain.TaskCompleted, "user-1", "task-9", fixedNow, domain.CompletionPayload{
		IsRecurring:       true,
		RecurrencePattern: domain.RecurrenceMonthly,
		DueDate:           &due,
		RemindAt:          &remind,
		Title:             "Pay rent",
		Priority:          domain.PriorityMedium,
		CompletedAt:       fixedNow,
	})
	require.NoError(t, err)

	snap, err := SnapshotFromEvent(ev)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskID("task-9"), snap.ParentID)
	assert.Equal(t, domain.UserID("user-1"), snap.UserID)
	assert.Equal(t, "Pay rent", snap.Title)
	assert.Equal(t, domain.RecurrenceMonthly, snap.Pattern)
	assert.True(t, due.Equal(*snap.DueDate))
	assert.True(t, remind.Equal(*snap.RemindAt))
	assert.True(t, fixedNow.Equal(snap.CompletedAt))
}

func TestOccurrenceIDIsDeterministic(t *testing.T) {
	due := date(2024, 2, 1, 9)
	assert.Equal(t, OccurrenceID("p", due), OccurrenceID("p", due.In(time.FixedZone("X", 3600))))
	assert.NotEqual(t, OccurrenceID("p", due), OccurrenceID("q", due))
	assert.NotEqual(t, OccurrenceID("p", due), OccurrenceID("p", due.Add(time.Second)))
}
