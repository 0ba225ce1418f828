package dapr

import (
	"encoding/json"
	"fmt"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

// TaskEventsRoute is where the sidecar delivers task-events.
const TaskEventsRoute = "/events/task-events"

// Subscription is one entry of the GET /dapr/subscribe answer.
type Subscription struct {
	PubsubName string `json:"pubsubname"`
	Topic      string `json:"topic"`
	Route      string `json:"route"`
}

// Subscriptions lists the topics this service consumes.
func Subscriptions(pubsubName, topic string) []Subscription {
	return []Subscription{{PubsubName: pubsubName, Topic: topic, Route: TaskEventsRoute}}
}

// DeliveryResponse is the body returned to the sidecar.
type DeliveryResponse struct {
	Status domain.DeliveryStatus `json:"status"`
}

// DecodeEvent unwraps a CloudEvents envelope. Raw events without a "data"
// field are accepted as-is.
func DecodeEvent(body []byte) (domain.TaskEvent, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.TaskEvent{}, fmt.Errorf("decode delivery: %w", err)
	}

	raw := []byte(envelope.Data)
	switch {
	case len(raw) == 0 || string(raw) == "null":
		raw = body
	case raw[0] == '"':
		// some components deliver data as a JSON string
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return domain.TaskEvent{}, fmt.Errorf("decode string data: %w", err)
		}
		raw = []byte(s)
	}

	var ev domain.TaskEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return domain.TaskEvent{}, fmt.Errorf("decode task event: %w", err)
	}
	if ev.EventType == "" {
		return domain.TaskEvent{}, fmt.Errorf("decode task event: missing event_type")
	}
	return ev, nil
}
