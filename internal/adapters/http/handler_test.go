package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/PabloGalante/todo-agent/internal/adapters/http"
	"github.com/PabloGalante/todo-agent/internal/adapters/llm"
	"github.com/PabloGalante/todo-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/todo-agent/internal/app/agentflow"
	"github.com/PabloGalante/todo-agent/internal/app/audit"
	"github.com/PabloGalante/todo-agent/internal/app/conversation"
	"github.com/PabloGalante/todo-agent/internal/app/eventflow"
	"github.com/PabloGalante/todo-agent/internal/app/intent"
	"github.com/PabloGalante/todo-agent/internal/app/recurrence"
	"github.com/PabloGalante/todo-agent/internal/app/tasks"
	"github.com/PabloGalante/todo-agent/internal/app/tools"
	"github.com/PabloGalante/todo-agent/internal/domain"
)

type testEnv struct {
	handler http.Handler
	store   *memory.TaskStore
	tasks   *tasks.Service
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	taskStore := memory.NewTaskStore()
	taskSvc := tasks.NewService(taskStore, nil)
	auditSvc := audit.NewService(memory.NewEventLogStore())

	orch := agentflow.NewDefaultOrchestrator(
		llm.NewMockLLM(),
		intent.NewExtractor(),
		tools.NewRegistry(tools.NewTaskTools(taskSvc)...),
	)
	convSvc := conversation.NewService(memory.NewSessionStore(), memory.NewMessageStore(), orch)
	consumer := eventflow.NewConsumer(auditSvc, recurrence.NewEngine(taskStore), nil)

	return &testEnv{
		handler: httpadapter.NewServer(httpadapter.Deps{
			Conversations: convSvc,
			Tasks:         taskSvc,
			Audit:         auditSvc,
			OnEvent:       consumer.Handle,
		}),
		store: taskStore,
		tasks: taskSvc,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestCreateSessionAndSendMessage(t *testing.T) {
	env := newTestServer(t)

	// Create session
	body := []byte(`{"user_id":"test-user","title":"Test"}`)
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	req = req.WithContext(context.Background())
	w := httptest.NewRecorder()

	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}

	created := decode[struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		Welcome *struct {
			Text string `json:"text"`
		} `json:"welcome_message"`
	}](t, w)
	if created.Welcome == nil || created.Welcome.Text == "" {
		t.Fatalf("expected welcome message")
	}

	w = env.do(t, http.MethodPost, "/sessions/"+created.Session.ID+"/messages",
		`{"user_id":"test-user","text":"add task buy milk"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	sent := decode[struct {
		AgentMessage struct {
			Text string `json:"text"`
		} `json:"agent_message"`
		ToolCalls []agentflow.ToolCall `json:"tool_calls"`
	}](t, w)
	assert.Equal(t, "✅ Added task: Buy milk", sent.AgentMessage.Text)
	require.Len(t, sent.ToolCalls, 1)
	assert.Equal(t, tools.AddTaskName, sent.ToolCalls[0].Name)

	w = env.do(t, http.MethodGet, "/sessions/"+created.Session.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	timeline := decode[struct {
		Messages []json.RawMessage `json:"messages"`
	}](t, w)
	assert.Len(t, timeline.Messages, 3)

	w = env.do(t, http.MethodGet, "/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/sessions/"+created.Session.ID+"/messages", `{"user_id":"intruder","text":"list tasks"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestChatCreatesConversation(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/u1/chat", `{"message":"add task water plants"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[struct {
		ConversationID string               `json:"conversation_id"`
		Response       string               `json:"response"`
		ToolCalls      []agentflow.ToolCall `json:"tool_calls"`
	}](t, w)
	require.NotEmpty(t, first.ConversationID)
	assert.Equal(t, "✅ Added task: Water plants", first.Response)

	w = env.do(t, http.MethodPost, "/api/u1/chat",
		`{"conversation_id":"`+first.ConversationID+`","message":"show my tasks"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode[struct {
		ConversationID string `json:"conversation_id"`
		Response       string `json:"response"`
	}](t, w)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Contains(t, second.Response, "1. [○] Water plants")

	w = env.do(t, http.MethodPost, "/api/u1/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskCRUD(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodPost, "/api/u1/tasks",
		`{"title":"Pay rent","priority":"high","dueDate":"2030-01-31T09:00:00Z","isRecurring":true,"recurrencePattern":"monthly"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	id := created["id"].(string)
	assert.Equal(t, "Pay rent", created["title"])
	assert.Equal(t, "monthly", created["recurrence_pattern"])
	assert.Equal(t, "2030-01-31T09:00:00Z", created["due_date"])
	assert.Nil(t, created["parent_task_id"])

	w = env.do(t, http.MethodGet, "/api/u1/tasks/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/u2/tasks/"+id, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPut, "/api/u1/tasks/"+id, `{"title":"Pay the rent","due_date":null}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[map[string]any](t, w)
	assert.Equal(t, "Pay the rent", updated["title"])
	assert.Nil(t, updated["due_date"])

	w = env.do(t, http.MethodPut, "/api/u1/tasks/"+id, `{"title":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPatch, "/api/u1/tasks/"+id+"/complete", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode[map[string]any](t, w)["is_completed"])

	w = env.do(t, http.MethodPatch, "/api/u1/tasks/"+id+"/complete", `{"completed":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["is_completed"])

	w = env.do(t, http.MethodDelete, "/api/u1/tasks/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/u1/tasks/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTasks(t *testing.T) {
	env := newTestServer(t)
	for _, title := range []string{"one", "two", "three"} {
		w := env.do(t, http.MethodPost, "/api/u1/tasks", `{"title":"`+title+`"}`)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/u1/tasks?limit=2&offset=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[struct {
		Tasks []struct {
			Title string `json:"title"`
		} `json:"tasks"`
		Total  int `json:"total"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}](t, w)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 1, page.Offset)
	require.Len(t, page.Tasks, 2)
	assert.Equal(t, "two", page.Tasks[0].Title)

	w = env.do(t, http.MethodGet, "/api/u1/tasks?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodGet, "/api/u1/tasks?offset=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDaprSubscriptionAndDelivery(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodGet, "/dapr/subscribe", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"pubsubname":"pubsub","topic":"task-events","route":"/events/task-events"}]`, w.Body.String())

	due := time.Date(2030, 1, 31, 9, 0, 0, 0, time.UTC)
	parent, err := env.tasks.Create(context.Background(), "u1", tasks.CreateInput{
		Title: "Pay rent", DueDate: &due, IsRecurring: true, RecurrencePattern: "monthly",
	})
	require.NoError(t, err)

	ev, err := domain.NewTaskEvent(domain.TaskCompleted, "u1", parent.ID, time.Now(), domain.CompletionFromTask(parent, time.Now()))
	require.NoError(t, err)
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	cloud := `{"specversion":"1.0","type":"com.dapr.event.sent","data":` + string(raw) + `}`

	w = env.do(t, http.MethodPost, "/events/task-events", cloud)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"SUCCESS"}`, w.Body.String())

	_, err = env.store.FindOccurrence(context.Background(), parent.ID, time.Date(2030, 2, 28, 9, 0, 0, 0, time.UTC))
	assert.NoError(t, err)

	w = env.do(t, http.MethodPost, "/events/task-events", `{"data":{"task_id":"x"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"DROP"}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/u1/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	events := decode[struct {
		Events []struct {
			ID        string `json:"id"`
			EventType string `json:"event_type"`
		} `json:"events"`
	}](t, w)
	require.Len(t, events.Events, 1)
	assert.Equal(t, string(ev.EventID), events.Events[0].ID)
	assert.Equal(t, "task.completed", events.Events[0].EventType)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestServer(t)
	w := env.do(t, http.MethodOptions, "/api/u1/tasks", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}
