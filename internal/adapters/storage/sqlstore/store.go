// Package sqlstore implements the domain stores on database/sql, with SQLite
// for local runs and PostgreSQL for deployments.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/PabloGalante/todo-agent/internal/observability"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// Store owns the connection pool. The per-entity stores share it.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects, applies pragmas for SQLite and creates missing tables.
// For SQLite dsn is a file path.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	var db *sql.DB
	var err error

	switch dialect {
	case SQLite:
		if dsn == "" {
			dsn = "todo.db"
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
		db, err = sql.Open(string(SQLite), dsn+"?_busy_timeout=5000&_foreign_keys=on")
		if err != nil {
			return nil, fmt.Errorf("open sqlite3: %w", err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case Postgres:
		if dsn == "" {
			return nil, errors.New("postgres requires a database url")
		}
		db, err = sql.Open(string(Postgres), dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	observability.WithFields("component", "sqlstore", "dialect", dialect).Info("sql store ready")
	return s, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Tasks() *TaskStore         { return &TaskStore{s: s} }
func (s *Store) Sessions() *SessionStore   { return &SessionStore{s: s} }
func (s *Store) Messages() *MessageStore   { return &MessageStore{s: s} }
func (s *Store) EventLogs() *EventLogStore { return &EventLogStore{s: s} }

func (s *Store) init(ctx context.Context) error {
	if s.dialect == SQLite {
		for _, q := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;"} {
			if _, err := s.db.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("set pragma %q: %w", q, err)
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema(s.dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// schema creates missing tables. Timestamps are naive UTC.
func schema(d Dialect) []string {
	serial, ts := "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT"
	if d == Postgres {
		serial, ts = "BIGSERIAL PRIMARY KEY", "TIMESTAMP"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			seq ` + serial + `,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL,
			due_date ` + ts + `,
			priority TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '',
			is_recurring BOOLEAN NOT NULL DEFAULT FALSE,
			recurrence_pattern TEXT NOT NULL DEFAULT '',
			remind_at ` + ts + `,
			parent_task_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks (user_id, created_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_occurrence ON tasks (parent_task_id, due_date)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq ` + serial + `,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			author TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			reply_to TEXT,
			content_type TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, seq)`,
		`CREATE TABLE IF NOT EXISTS event_logs (
			seq ` + serial + `,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			task_id TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL,
			event_data TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_logs_user ON event_logs (user_id, seq)`,
	}
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// insertIgnore is INSERT that silently skips rows violating a unique key.
func (s *Store) insertIgnore(table, cols, values string) string {
	if s.dialect == Postgres {
		return "INSERT INTO " + table + " (" + cols + ") VALUES (" + values + ") ON CONFLICT DO NOTHING"
	}
	return "INSERT OR IGNORE INTO " + table + " (" + cols + ") VALUES (" + values + ")"
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}
