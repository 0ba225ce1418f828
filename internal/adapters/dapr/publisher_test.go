package dapr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

func testEvent(t *testing.T) domain.TaskEvent {
	t.Helper()
	ev, err := domain.NewTaskEvent(domain.TaskCompleted, "u1", "t1", time.Now(), domain.CompletionPayload{Title: "x"})
	require.NoError(t, err)
	return ev
}

func TestPublishPostsToSidecar(t *testing.T) {
	var gotPath, gotType string
	var got domain.TaskEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewPublisher(Config{Endpoint: srv.URL + "/", PubsubName: "kafka-pubsub"}, srv.Client())
	ev := testEvent(t)

	require.NoError(t, p.Publish(context.Background(), "task-events", ev))
	assert.Equal(t, "/v1.0/publish/kafka-pubsub/task-events", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, ev.EventID, got.EventID)
	assert.Equal(t, domain.TaskCompleted, got.EventType)
}

func TestPublishRetriesWithBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "ERR_PUBSUB_NOT_FOUND", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPublisher(Config{Endpoint: srv.URL}, srv.Client())
	var delays []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	require.NoError(t, p.Publish(context.Background(), "task-events", testEvent(t)))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestPublishGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPublisher(Config{Endpoint: srv.URL, MaxRetries: 2}, srv.Client())
	p.sleep = func(context.Context, time.Duration) error { return nil }

	err := p.Publish(context.Background(), "task-events", testEvent(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestPublishStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewPublisher(Config{Endpoint: srv.URL}, srv.Client())
	p.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepCtx(ctx, d)
	}

	err := p.Publish(ctx, "task-events", testEvent(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeEvent(t *testing.T) {
	ev := testEvent(t)
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	cloud, err := json.Marshal(map[string]any{
		"specversion": "1.0",
		"type":        "com.dapr.event.sent",
		"data":        json.RawMessage(raw),
	})
	require.NoError(t, err)
	stringData, err := json.Marshal(map[string]any{"data": string(raw)})
	require.NoError(t, err)

	for name, body := range map[string][]byte{"cloudevent": cloud, "string data": stringData, "raw": raw} {
		t.Run(name, func(t *testing.T) {
			got, err := DecodeEvent(body)
			require.NoError(t, err)
			assert.Equal(t, ev.EventID, got.EventID)
			assert.Equal(t, ev.TaskID, got.TaskID)
		})
	}

	_, err = DecodeEvent([]byte(`{"data": {"task_id": "x"}}`))
	assert.Error(t, err)
	_, err = DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestSubscriptions(t *testing.T) {
	subs := Subscriptions("pubsub", domain.TopicTaskEvents)
	raw, err := json.Marshal(subs)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"pubsubname":"pubsub","topic":"task-events","route":"/events/task-events"}]`, string(raw))
}
