package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/PabloGalante/todo-agent/internal/app/agentflow"
	"github.com/PabloGalante/todo-agent/internal/app/audit"
	"github.com/PabloGalante/todo-agent/internal/app/conversation"
	"github.com/PabloGalante/todo-agent/internal/app/tasks"
	"github.com/PabloGalante/todo-agent/internal/domain"
)

// EventHandler consumes one event delivered by the pub/sub sidecar.
type EventHandler func(ctx context.Context, ev domain.TaskEvent) domain.DeliveryStatus

type Deps struct {
	Conversations *conversation.Service
	Tasks         *tasks.Service
	Audit         *audit.Service

	// OnEvent receives deliveries on /events/task-events. Nil disables the
	// Dapr endpoints.
	OnEvent     EventHandler
	PubsubName  string
	EventsTopic string

	CORSOrigins []string
}

type Server struct {
	conv    *conversation.Service
	tasks   *tasks.Service
	audit   *audit.Service
	onEvent EventHandler
	pubsub  string
	topic   string
}

func NewServer(deps Deps) http.Handler {
	s := &Server{
		conv:    deps.Conversations,
		tasks:   deps.Tasks,
		audit:   deps.Audit,
		onEvent: deps.OnEvent,
		pubsub:  deps.PubsubName,
		topic:   deps.EventsTopic,
	}
	if s.pubsub == "" {
		s.pubsub = "pubsub"
	}
	if s.topic == "" {
		s.topic = domain.TopicTaskEvents
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	// chat sessions
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /sessions/{id}/messages", s.handleSendMessage)
	mux.HandleFunc("POST /api/{user_id}/chat", s.handleChat)

	// tasks
	mux.HandleFunc("POST /api/{user_id}/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/{user_id}/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/{user_id}/tasks/{task_id}", s.handleGetTask)
	mux.HandleFunc("PUT /api/{user_id}/tasks/{task_id}", s.handleUpdateTask)
	mux.HandleFunc("PATCH /api/{user_id}/tasks/{task_id}/complete", s.handleCompleteTask)
	mux.HandleFunc("DELETE /api/{user_id}/tasks/{task_id}", s.handleDeleteTask)

	// events
	mux.HandleFunc("GET /api/{user_id}/events", s.handleListEvents)
	mux.HandleFunc("GET /dapr/subscribe", s.handleDaprSubscribe)
	mux.HandleFunc("POST /events/task-events", s.handleTaskEvent)

	return chainMiddlewares(mux,
		withRecovery,
		withLogging,
		withCORS(deps.CORSOrigins),
		withRequestID,
	)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title,omitempty"`
}

type createSessionResponse struct {
	Session sessionResponse  `json:"session"`
	Welcome *messageResponse `json:"welcome_message,omitempty"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageResponse struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	ContentType string    `json:"content_type,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type sendMessageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	UserMessage  messageResponse      `json:"user_message"`
	AgentMessage messageResponse      `json:"agent_message"`
	ToolCalls    []agentflow.ToolCall `json:"tool_calls"`
}

type getSessionResponse struct {
	Session  sessionResponse   `json:"session"`
	Messages []messageResponse `json:"messages"`
}

type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID string               `json:"conversation_id"`
	Response       string               `json:"response"`
	ToolCalls      []agentflow.ToolCall `json:"tool_calls"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}

	out, err := s.conv.StartSession(
		r.Context(),
		conversation.StartSessionInput{
			UserID: domain.UserID(req.UserID),
			Title:  req.Title,
		},
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// the welcome message is the only message of a fresh session
	_, msgs, err := s.conv.GetSessionTimeline(r.Context(), out.Session.ID, 5)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var welcome *messageResponse
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		if last.Author == domain.RoleAgent {
			m := toMessageResponse(last)
			welcome = &m
		}
	}

	resp := createSessionResponse{
		Session: toSessionResponse(out.Session),
		Welcome: welcome,
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := domain.SessionID(r.PathValue("id"))

	session, msgs, err := s.conv.GetSessionTimeline(r.Context(), id, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := getSessionResponse{
		Session:  toSessionResponse(session),
		Messages: toMessagesResponse(msgs),
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "text is required")
		return
	}

	out, err := s.conv.SendMessage(
		r.Context(),
		conversation.SendMessageInput{
			SessionID: domain.SessionID(r.PathValue("id")),
			UserID:    domain.UserID(req.UserID),
			Text:      req.Text,
		},
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := sendMessageResponse{
		UserMessage:  toMessageResponse(out.UserMessage),
		AgentMessage: toMessageResponse(out.AgentMessage),
		ToolCalls:    nonNilCalls(out.ToolCalls),
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}

	out, err := s.conv.Chat(r.Context(), conversation.ChatInput{
		UserID:    domain.UserID(r.PathValue("user_id")),
		SessionID: domain.SessionID(req.ConversationID),
		Text:      req.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: string(out.SessionID),
		Response:       out.Reply,
		ToolCalls:      nonNilCalls(out.ToolCalls),
	})
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:        string(s.ID),
		UserID:    string(s.UserID),
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:          string(m.ID),
		SessionID:   string(m.SessionID),
		Author:      string(m.Author),
		Text:        m.Text,
		ContentType: m.ContentType,
		Tags:        m.Tags,
		CreatedAt:   m.CreatedAt,
	}
}

func toMessagesResponse(msgs []*domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func nonNilCalls(calls []agentflow.ToolCall) []agentflow.ToolCall {
	if calls == nil {
		return []agentflow.ToolCall{}
	}
	return calls
}
