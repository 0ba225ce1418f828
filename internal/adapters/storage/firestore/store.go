package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

// Store implements the session, message, task and event log stores on
// Firestore.
type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for projectID (TODO_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) messagesCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionDoc(sessionID).Collection("messages")
}

func (s *Store) messageDoc(sessionID domain.SessionID, msgID domain.MessageID) *firestore.DocumentRef {
	return s.messagesCol(sessionID).Doc(string(msgID))
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// each runs fn over every document of iter.
func each(iter *firestore.DocumentIterator, fn func(*firestore.DocumentSnapshot) error) error {
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	UserID    string    `firestore:"user_id"`
	Title     string    `firestore:"title"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

type messageDoc struct {
	SessionID   string    `firestore:"session_id"`
	Author      string    `firestore:"author"`
	Text        string    `firestore:"text"`
	CreatedAt   time.Time `firestore:"created_at"`
	Tags        []string  `firestore:"tags"`
	ReplyTo     *string   `firestore:"reply_to"`
	ContentType string    `firestore:"content_type"`
}

func (d sessionDoc) toDomain(id domain.SessionID) *domain.Session {
	return &domain.Session{
		ID:        id,
		UserID:    domain.UserID(d.UserID),
		Title:     d.Title,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	doc := sessionDoc{
		UserID:    string(session.UserID),
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}

	_, err := s.sessionDoc(session.ID).Create(ctx, doc)
	if err != nil {
		if isAlreadyExists(err) {
			return domain.ErrSessionExists
		}
		return fmt.Errorf("firestore CreateSession: %w", err)
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.sessionDoc(session.ID).Update(ctx, []firestore.Update{
		{Path: "title", Value: session.Title},
		{Path: "updated_at", Value: session.UpdatedAt},
	})
	if err != nil {
		if isNotFound(err) {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("firestore UpdateSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("firestore GetSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetSession decode: %w", err)
	}
	return doc.toDomain(id), nil
}

// ListSessionsByUser returns the most recently updated sessions first.
func (s *Store) ListSessionsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Session, error) {
	q := s.sessionsCol().Where("user_id", "==", string(userID)).OrderBy("updated_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	out := make([]*domain.Session, 0)
	err := each(q.Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode sessionDoc: %w", err)
		}
		out = append(out, doc.toDomain(domain.SessionID(snap.Ref.ID)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("firestore ListSessionsByUser: %w", err)
	}
	return out, nil
}

// ─────────────────────────────────────────
// MessageStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(ctx context.Context, msg *domain.Message) error {
	var replyTo *string
	if msg.ReplyTo != nil {
		v := string(*msg.ReplyTo)
		replyTo = &v
	}

	doc := messageDoc{
		SessionID:   string(msg.SessionID),
		Author:      string(msg.Author),
		Text:        msg.Text,
		CreatedAt:   msg.CreatedAt,
		Tags:        msg.Tags,
		ReplyTo:     replyTo,
		ContentType: msg.ContentType,
	}

	_, err := s.messageDoc(msg.SessionID, msg.ID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

// GetMessagesBySession returns the last `limit` messages, oldest first.
func (s *Store) GetMessagesBySession(ctx context.Context, sessionID domain.SessionID, limit int) ([]*domain.Message, error) {
	q := s.messagesCol(sessionID).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var newestFirst []*domain.Message
	err := each(q.Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode messageDoc: %w", err)
		}

		var replyTo *domain.MessageID
		if doc.ReplyTo != nil {
			id := domain.MessageID(*doc.ReplyTo)
			replyTo = &id
		}

		newestFirst = append(newestFirst, &domain.Message{
			ID:          domain.MessageID(snap.Ref.ID),
			SessionID:   sessionID,
			Author:      domain.Role(doc.Author),
			Text:        doc.Text,
			CreatedAt:   doc.CreatedAt.UTC(),
			Tags:        doc.Tags,
			ReplyTo:     replyTo,
			ContentType: doc.ContentType,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("firestore GetMessagesBySession: %w", err)
	}

	out := make([]*domain.Message, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, nil
}
