// Package eventflow consumes task events: it records them to the audit trail
// and hands completions of recurring tasks to the recurrence engine.
package eventflow

import (
	"context"
	"fmt"
	"time"

	"github.com/PabloGalante/todo-agent/internal/app/recurrence"
	"github.com/PabloGalante/todo-agent/internal/domain"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

// ReminderChannel is the channel named in task.reminder.scheduled payloads.
const ReminderChannel = "in_app"

type Recorder interface {
	Record(ctx context.Context, ev domain.TaskEvent) error
}

type Recurrer interface {
	HandleCompletion(ctx context.Context, snap recurrence.Snapshot) (recurrence.Result, error)
}

type Consumer struct {
	recorder  Recorder
	engine    Recurrer
	publisher domain.EventPublisher
	topic     string
	now       func() time.Time
}

type Option func(*Consumer)

func WithClock(now func() time.Time) Option {
	return func(c *Consumer) { c.now = now }
}

// WithTopic sets the topic task.recurring.generated is published to.
func WithTopic(topic string) Option {
	return func(c *Consumer) { c.topic = topic }
}

// NewConsumer wires the consumer. recorder and publisher may be nil.
func NewConsumer(recorder Recorder, engine Recurrer, publisher domain.EventPublisher, opts ...Option) *Consumer {
	c := &Consumer{
		recorder:  recorder,
		engine:    engine,
		publisher: publisher,
		topic:     domain.TopicTaskEvents,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes one delivery and tells the transport what to do with it.
func (c *Consumer) Handle(ctx context.Context, ev domain.TaskEvent) domain.DeliveryStatus {
	log := observability.LoggerFromContext(ctx).With(
		"event_id", ev.EventID,
		"event_type", ev.EventType,
		"task_id", ev.TaskID,
	)

	if c.recorder != nil {
		if err := c.recorder.Record(ctx, ev); err != nil {
			log.Error("failed to record event", "error", err)
			return domain.DeliveryRetry
		}
	}

	if !ev.IsCompletion() {
		return domain.DeliverySuccess
	}

	payload, err := ev.Completion()
	if err != nil {
		log.Warn("dropping completion with unreadable payload", "error", err)
		return domain.DeliveryDrop
	}
	if !payload.Recurs() {
		log.Debug("completed task is not recurring")
		return domain.DeliverySuccess
	}

	snap, err := recurrence.SnapshotFromEvent(ev)
	if err != nil {
		log.Warn("dropping completion with unreadable payload", "error", err)
		return domain.DeliveryDrop
	}

	res, err := c.engine.HandleCompletion(ctx, snap)
	if err != nil {
		log.Error("recurrence failed, asking for redelivery", "error", err)
		return domain.DeliveryRetry
	}

	if res.Outcome == recurrence.Generated {
		c.announce(ctx, ev, snap, res)
	}
	return domain.DeliverySuccess
}

// announce publishes the follow-up events of a generated occurrence. Publish
// failures are logged; the occurrence already exists.
func (c *Consumer) announce(ctx context.Context, cause domain.TaskEvent, snap recurrence.Snapshot, res recurrence.Result) {
	if c.publisher == nil || res.Task == nil {
		return
	}
	log := observability.LoggerFromContext(ctx).With(
		"parent_task_id", snap.ParentID,
		"new_task_id", res.Task.ID,
	)

	generated, err := c.followUp(cause, domain.TaskRecurringGenerated, res.Task.ID, domain.OccurrencePayload{
		ParentTaskID:      snap.ParentID,
		NewTaskID:         res.Task.ID,
		RecurrencePattern: res.Task.RecurrencePattern,
		NextDueDate:       res.DueDate,
	})
	if err == nil {
		err = c.publisher.Publish(ctx, c.topic, generated)
	}
	if err != nil {
		log.Error("failed to publish recurring.generated", "error", err)
	}

	if res.RemindAt == nil {
		return
	}
	reminder, err := c.followUp(cause, domain.TaskReminderScheduled, res.Task.ID, domain.ReminderPayload{
		ScheduledTime: res.RemindAt.UTC(),
		Message:       fmt.Sprintf("Reminder: %s", res.Task.Title),
		Channel:       ReminderChannel,
	})
	if err == nil {
		err = c.publisher.Publish(ctx, domain.TopicReminders, reminder)
	}
	if err != nil {
		log.Error("failed to publish reminder.scheduled", "error", err)
	}
}

func (c *Consumer) followUp(cause domain.TaskEvent, typ domain.TaskEventType, taskID domain.TaskID, payload any) (domain.TaskEvent, error) {
	ev, err := domain.NewTaskEvent(typ, cause.UserID, taskID, c.now(), payload)
	if err != nil {
		return domain.TaskEvent{}, err
	}
	ev.CorrelationID = cause.CorrelationID
	if ev.CorrelationID == "" {
		ev.CorrelationID = string(cause.EventID)
	}
	ev.CausationID = string(cause.EventID)
	return ev, nil
}
