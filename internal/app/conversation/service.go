package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/PabloGalante/todo-agent/internal/app/agentflow"
	"github.com/PabloGalante/todo-agent/internal/app/tools"
	"github.com/PabloGalante/todo-agent/internal/domain"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

const (
	DefaultHistoryLimit = 20
	maxTitleRunes       = 50
	welcomeText         = "Hi! I can help you manage your tasks. Try 'add task buy milk' or 'list my tasks'."
)

type Service struct {
	sessionStore domain.SessionStore
	messageStore domain.MessageStore
	orchestrator *agentflow.Orchestrator
	historyLimit int
	now          func() time.Time
}

type Option func(*Service)

// WithHistoryLimit sets how many past messages are handed to the agents.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	sessionStore domain.SessionStore,
	messageStore domain.MessageStore,
	orchestrator *agentflow.Orchestrator,
	opts ...Option,
) *Service {
	s := &Service{
		sessionStore: sessionStore,
		messageStore: messageStore,
		orchestrator: orchestrator,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type StartSessionInput struct {
	UserID domain.UserID
	Title  string
}

type StartSessionOutput struct {
	Session *domain.Session
}

func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	session, err := s.createSession(ctx, in.UserID, in.Title)
	if err != nil {
		return nil, err
	}

	welcome := &domain.Message{
		ID:          newMessageID(),
		SessionID:   session.ID,
		Author:      domain.RoleAgent,
		Text:        welcomeText,
		CreatedAt:   session.CreatedAt,
		ContentType: "text",
	}
	if err := s.messageStore.AppendMessage(ctx, welcome); err != nil {
		observability.LoggerFromContext(ctx).Error("failed to append welcome message", "error", err)
		return nil, err
	}

	return &StartSessionOutput{Session: session}, nil
}

func (s *Service) createSession(ctx context.Context, userID domain.UserID, title string) (*domain.Session, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID)
	log.Info("starting new session")

	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	now := s.now().UTC()
	session := &domain.Session{
		ID:        domain.SessionID(uuid.NewString()),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Title:     title,
	}
	if err := s.sessionStore.CreateSession(ctx, session); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}

	log.Info("session started", "session_id", session.ID)
	return session, nil
}

type SendMessageInput struct {
	SessionID domain.SessionID
	UserID    domain.UserID
	Text      string
}

type SendMessageOutput struct {
	UserMessage  *domain.Message
	AgentMessage *domain.Message
	ToolCalls    []agentflow.ToolCall
}

func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text is required", domain.ErrValidation)
	}

	session, err := s.sessionStore.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if in.UserID != "" && in.UserID != session.UserID {
		return nil, domain.ErrForbidden
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", session.ID,
		"user_id", session.UserID,
	)
	log.Info("sending message")

	// history is loaded before the new message so it is not sent twice
	history, err := s.messageStore.GetMessagesBySession(ctx, session.ID, s.historyLimit)
	if err != nil {
		log.Error("failed to load history", "error", err)
		return nil, err
	}

	userMsg := &domain.Message{
		ID:          newMessageID(),
		SessionID:   session.ID,
		Author:      domain.RoleUser,
		Text:        text,
		CreatedAt:   s.now().UTC(),
		ContentType: "text",
	}
	if err := s.messageStore.AppendMessage(ctx, userMsg); err != nil {
		log.Error("failed to append user message", "error", err)
		return nil, err
	}

	convCtx := domain.ConversationContext{
		SessionID: session.ID,
		UserID:    session.UserID,
		History:   history,
	}

	result, err := s.orchestrator.Run(ctx, text, convCtx)
	if err != nil {
		log.Error("orchestrator failed", "error", err)
		return nil, err
	}

	agentMsg := &domain.Message{
		ID:          newMessageID(),
		SessionID:   session.ID,
		Author:      domain.RoleAgent,
		Text:        result.Reply,
		CreatedAt:   s.now().UTC(),
		ReplyTo:     &userMsg.ID,
		ContentType: contentTypeFor(result),
	}
	for _, c := range result.ToolCalls {
		agentMsg.Tags = append(agentMsg.Tags, c.Name)
	}

	if err := s.messageStore.AppendMessage(ctx, agentMsg); err != nil {
		log.Error("failed to append agent message", "error", err)
		return nil, err
	}

	session.UpdatedAt = s.now().UTC()
	if err := s.sessionStore.UpdateSession(ctx, session); err != nil {
		log.Error("failed to update session", "error", err)
		return nil, err
	}

	log.Info("send message completed", "agent", result.Agent, "tool_calls", len(result.ToolCalls))

	return &SendMessageOutput{
		UserMessage:  userMsg,
		AgentMessage: agentMsg,
		ToolCalls:    result.ToolCalls,
	}, nil
}

type ChatInput struct {
	UserID    domain.UserID
	SessionID domain.SessionID // empty starts a new conversation
	Text      string
}

type ChatOutput struct {
	SessionID domain.SessionID
	Reply     string
	ToolCalls []agentflow.ToolCall
}

// Chat sends a message, creating the conversation on first use.
func (s *Service) Chat(ctx context.Context, in ChatInput) (*ChatOutput, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: message text is required", domain.ErrValidation)
	}

	sessionID := in.SessionID
	if sessionID == "" {
		session, err := s.createSession(ctx, in.UserID, titleFrom(in.Text))
		if err != nil {
			return nil, err
		}
		sessionID = session.ID
	}

	out, err := s.SendMessage(ctx, SendMessageInput{
		SessionID: sessionID,
		UserID:    in.UserID,
		Text:      in.Text,
	})
	if err != nil {
		return nil, err
	}

	return &ChatOutput{
		SessionID: sessionID,
		Reply:     out.AgentMessage.Text,
		ToolCalls: out.ToolCalls,
	}, nil
}

func (s *Service) GetSessionTimeline(
	ctx context.Context,
	sessionID domain.SessionID,
	limit int,
) (*domain.Session, []*domain.Message, error) {

	log := observability.LoggerFromContext(ctx).With(
		"session_id", sessionID,
		"limit", limit,
	)

	session, err := s.sessionStore.GetSession(ctx, sessionID)
	if err != nil {
		log.Error("failed to get session", "error", err)
		return nil, nil, err
	}

	msgs, err := s.messageStore.GetMessagesBySession(ctx, sessionID, limit)
	if err != nil {
		log.Error("failed to get messages", "error", err)
		return nil, nil, err
	}

	log.Info("fetched session timeline", "message_count", len(msgs))

	return session, msgs, nil
}

func contentTypeFor(r agentflow.Result) string {
	for _, c := range r.ToolCalls {
		if c.Error != "" {
			return "clarification"
		}
		if c.Name == tools.ListTasksName {
			return "task_list"
		}
	}
	return "text"
}

func titleFrom(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxTitleRunes {
		return text
	}
	return string([]rune(text)[:maxTitleRunes]) + "…"
}

func newMessageID() domain.MessageID {
	return domain.MessageID(uuid.NewString())
}
