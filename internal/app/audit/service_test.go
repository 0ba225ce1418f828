package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/todo-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/todo-agent/internal/domain"
)

func TestRecordIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewEventLogStore())

	ev, err := domain.NewTaskEvent(domain.TaskCreated, "u1", "t1", time.Now(), map[string]string{"title": "Buy milk"})
	require.NoError(t, err)

	require.NoError(t, svc.Record(ctx, ev))
	require.NoError(t, svc.Record(ctx, ev))

	entries, err := svc.ListUserEvents(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ev.EventID, entries[0].ID)
	assert.Equal(t, domain.TaskCreated, entries[0].EventType)
	assert.JSONEq(t, `{"title":"Buy milk"}`, entries[0].EventData)
}

func TestListUserEventsLimit(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewEventLogStore())

	for i := 0; i < DefaultListLimit+5; i++ {
		ev, err := domain.NewTaskEvent(domain.TaskUpdated, "u1", "t1", time.Now(), nil)
		require.NoError(t, err)
		require.NoError(t, svc.Record(ctx, ev))
	}

	entries, err := svc.ListUserEvents(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, DefaultListLimit)

	entries, err = svc.ListUserEvents(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = svc.ListUserEvents(ctx, "other", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNilStore(t *testing.T) {
	svc := NewService(nil)
	ev, err := domain.NewTaskEvent(domain.TaskDeleted, "u1", "t1", time.Now(), nil)
	require.NoError(t, err)

	assert.NoError(t, svc.Record(context.Background(), ev))
	entries, err := svc.ListUserEvents(context.Background(), "u1", 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
