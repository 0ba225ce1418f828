package tasks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/todo-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/todo-agent/internal/domain"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []domain.TaskEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, ev domain.TaskEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []domain.TaskEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.TaskEventType
	for _, ev := range p.events {
		out = append(out, ev.EventType)
	}
	return out
}

// tick returns a clock that advances one second per call so creation order
// is unambiguous.
func tick() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestService() (*Service, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewService(memory.NewTaskStore(), pub, WithClock(tick())), pub
}

func TestCreateValidates(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"empty title", CreateInput{Title: "   "}},
		{"long title", CreateInput{Title: strings.Repeat("x", MaxTitleLength+1)}},
		{"long description", CreateInput{Title: "ok", Description: strings.Repeat("d", MaxDescriptionLength+1)}},
		{"bad priority", CreateInput{Title: "ok", Priority: "urgent"}},
		{"recurring without pattern", CreateInput{Title: "ok", IsRecurring: true}},
		{"bad pattern", CreateInput{Title: "ok", RecurrencePattern: "hourly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "u1", tt.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Empty(t, pub.types())
}

func TestCreateNormalizesAndPublishes(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()
	due := time.Date(2024, 5, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))

	task, err := svc.Create(ctx, "u1", CreateInput{
		Title:             "  Pay rent ",
		Priority:          "HIGH",
		Tags:              " bills, ,home ",
		RecurrencePattern: "Monthly",
		DueDate:           &due,
	})
	require.NoError(t, err)

	assert.Equal(t, "Pay rent", task.Title)
	assert.Equal(t, domain.PriorityHigh, task.Priority)
	assert.Equal(t, "bills,home", task.Tags)
	assert.True(t, task.IsRecurring)
	assert.Equal(t, domain.RecurrenceMonthly, task.RecurrencePattern)
	assert.Equal(t, time.UTC, task.DueDate.Location())
	assert.True(t, due.Equal(*task.DueDate))

	assert.Equal(t, []domain.TaskEventType{domain.TaskCreated}, pub.types())
	assert.Equal(t, domain.TopicTaskEvents, pub.topics[0])
	assert.Equal(t, task.ID, pub.events[0].TaskID)
}

func TestListAppliesLimits(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		_, err := svc.Create(ctx, "u1", CreateInput{Title: "t"})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, "u1", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, page.Tasks, DefaultListLimit)
	assert.Equal(t, 120, page.Total)

	page, err = svc.List(ctx, "u1", ListOptions{Limit: 500, Offset: -3})
	require.NoError(t, err)
	assert.Len(t, page.Tasks, MaxListLimit)
	assert.Equal(t, 0, page.Offset)
}

func TestCompletionPublishesCompletedEvent(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()
	due := time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)

	task, err := svc.Create(ctx, "u1", CreateInput{Title: "Water plants", RecurrencePattern: "daily", DueDate: &due})
	require.NoError(t, err)

	done, err := svc.ToggleCompletion(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.True(t, done.IsCompleted)

	undone, err := svc.ToggleCompletion(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.False(t, undone.IsCompleted)

	assert.Equal(t, []domain.TaskEventType{domain.TaskCreated, domain.TaskCompleted, domain.TaskUpdated}, pub.types())

	payload, err := pub.events[1].Completion()
	require.NoError(t, err)
	assert.True(t, payload.Recurs())
	assert.Equal(t, domain.RecurrenceDaily, payload.RecurrencePattern)
	assert.True(t, due.Equal(*payload.DueDate))
	assert.Equal(t, "Water plants", payload.Title)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	svc, pub := newTestService()
	pub.err = errors.New("sidecar down")

	task, err := svc.Create(context.Background(), "u1", CreateInput{Title: "still saved"})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "still saved", got.Title)
}

func TestOwnership(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	task, err := svc.Create(ctx, "owner", CreateInput{Title: "private"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "intruder", task.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.Delete(ctx, "intruder", task.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.Get(ctx, "owner", "nope")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestUpdatePatch(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	task, err := svc.Create(ctx, "u1", CreateInput{Title: "old", Description: "keep", RecurrencePattern: "weekly"})
	require.NoError(t, err)

	title := "new"
	off := false
	updated, err := svc.Update(ctx, "u1", task.ID, UpdateInput{Title: &title, IsRecurring: &off})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "keep", updated.Description)
	assert.False(t, updated.IsRecurring)
	assert.Empty(t, updated.RecurrencePattern)
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt))

	blank := " "
	_, err = svc.Update(ctx, "u1", task.ID, UpdateInput{Title: &blank})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolveRef(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	var created []*domain.Task
	for _, title := range []string{"first", "second", "third"} {
		task, err := svc.Create(ctx, "u1", CreateInput{Title: title})
		require.NoError(t, err)
		created = append(created, task)
	}
	_, err := svc.Create(ctx, "u2", CreateInput{Title: "someone else"})
	require.NoError(t, err)

	got, err := svc.ResolveRef(ctx, "u1", "2")
	require.NoError(t, err)
	assert.Equal(t, created[1].ID, got.ID)

	got, err = svc.ResolveRef(ctx, "u1", strings.ToUpper(string(created[2].ID)))
	require.NoError(t, err)
	assert.Equal(t, "third", got.Title)

	_, err = svc.ResolveRef(ctx, "u1", "4")
	assert.ErrorIs(t, err, domain.ErrShortIDOutOfRange)
	_, err = svc.ResolveRef(ctx, "u1", "0")
	assert.ErrorIs(t, err, domain.ErrInvalidTaskRef)
	_, err = svc.ResolveRef(ctx, "u1", "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidTaskRef)
	_, err = svc.ResolveRef(ctx, "u1", "99999999999999999999999")
	assert.ErrorIs(t, err, domain.ErrShortIDOutOfRange)

	// short ids shift after a delete
	_, err = svc.Delete(ctx, "u1", created[0].ID)
	require.NoError(t, err)
	got, err = svc.ResolveRef(ctx, "u1", "1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Title)

	ids, err := svc.ShortIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[domain.TaskID]int{created[1].ID: 1, created[2].ID: 2}, ids)
}
