package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

type SessionStore struct {
	s *Store
}

func (ss *SessionStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := ss.s.exec(ctx,
		`INSERT INTO sessions (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		string(session.ID), string(session.UserID), session.Title,
		naiveAt(session.CreatedAt), naiveAt(session.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSessionExists
		}
		return fmt.Errorf("insert session %s: %w", session.ID, err)
	}
	return nil
}

func (ss *SessionStore) UpdateSession(ctx context.Context, session *domain.Session) error {
	res, err := ss.s.exec(ctx,
		`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`,
		session.Title, naiveAt(session.UpdatedAt), string(session.ID),
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", session.ID, err)
	}
	return requireOne(res, domain.ErrSessionNotFound)
}

func (ss *SessionStore) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	row := ss.s.queryRow(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM sessions WHERE id = ?`, string(id))
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessionsByUser returns the most recently updated sessions first.
func (ss *SessionStore) ListSessionsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Session, error) {
	query := `SELECT id, user_id, title, created_at, updated_at FROM sessions
		WHERE user_id = ? ORDER BY updated_at DESC`
	args := []any{string(userID)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return ss.list(ctx, query, args...)
}

func (ss *SessionStore) list(ctx context.Context, query string, args ...any) ([]*domain.Session, error) {
	rows, err := ss.s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(sc scanner) (*domain.Session, error) {
	var (
		sess                 domain.Session
		id, userID           string
		createdAt, updatedAt naiveTime
	)
	if err := sc.Scan(&id, &userID, &sess.Title, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	sess.ID = domain.SessionID(id)
	sess.UserID = domain.UserID(userID)
	sess.CreatedAt = createdAt.orZero()
	sess.UpdatedAt = updatedAt.orZero()
	return &sess, nil
}

type MessageStore struct {
	s *Store
}

func (ms *MessageStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	tags, err := json.Marshal(msg.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	var replyTo any
	if msg.ReplyTo != nil {
		replyTo = string(*msg.ReplyTo)
	}

	_, err = ms.s.exec(ctx,
		`INSERT INTO messages (id, session_id, author, text, created_at, tags, reply_to, content_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(msg.ID), string(msg.SessionID), string(msg.Author), msg.Text,
		naiveAt(msg.CreatedAt), string(tags), replyTo, msg.ContentType,
	)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", msg.ID, err)
	}
	return nil
}

// GetMessagesBySession returns the last `limit` messages, oldest first.
func (ms *MessageStore) GetMessagesBySession(ctx context.Context, sessionID domain.SessionID, limit int) ([]*domain.Message, error) {
	query := `SELECT id, session_id, author, text, created_at, tags, reply_to, content_type
		FROM messages WHERE session_id = ? ORDER BY seq DESC`
	args := []any{string(sessionID)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := ms.s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var newestFirst []*domain.Message
	for rows.Next() {
		var (
			m                  domain.Message
			id, sessID, author string
			tags               string
			replyTo            sql.NullString
			createdAt          naiveTime
		)
		if err := rows.Scan(&id, &sessID, &author, &m.Text, &createdAt, &tags, &replyTo, &m.ContentType); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ID = domain.MessageID(id)
		m.SessionID = domain.SessionID(sessID)
		m.Author = domain.Role(author)
		m.CreatedAt = createdAt.orZero()
		if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of message %s: %w", id, err)
		}
		if replyTo.Valid {
			r := domain.MessageID(replyTo.String)
			m.ReplyTo = &r
		}
		newestFirst = append(newestFirst, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]*domain.Message, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, nil
}
