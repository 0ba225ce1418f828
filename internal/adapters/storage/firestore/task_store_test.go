package firestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

func TestTaskDocRoundTrip(t *testing.T) {
	zone := time.FixedZone("ART", -3*3600)
	due := time.Date(2024, 1, 31, 6, 0, 0, 0, zone)
	remind := due.Add(-time.Hour)
	parent := domain.TaskID("parent")
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	task := &domain.Task{
		ID:                "child",
		UserID:            "u1",
		Title:             "Pay rent",
		Description:       "landlord",
		CreatedAt:         created,
		UpdatedAt:         created,
		DueDate:           &due,
		RemindAt:          &remind,
		Priority:          domain.PriorityMedium,
		Tags:              "home",
		IsRecurring:       true,
		RecurrencePattern: domain.RecurrenceMonthly,
		ParentTaskID:      &parent,
	}

	got := toTaskDoc(task).toDomain("child")

	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, parent, *got.ParentTaskID)
	assert.Equal(t, time.UTC, got.DueDate.Location())
	assert.True(t, got.DueDate.Equal(due))
	assert.True(t, got.RemindAt.Equal(remind))
	assert.Equal(t, domain.RecurrenceMonthly, got.RecurrencePattern)

	plain := toTaskDoc(&domain.Task{ID: "x", UserID: "u1", Title: "t"})
	assert.Nil(t, plain.ParentTaskID)
	assert.Nil(t, plain.DueDate)
}

func TestStatusHelpers(t *testing.T) {
	assert.False(t, isNotFound(nil))
	assert.False(t, isAlreadyExists(assert.AnError))
}
