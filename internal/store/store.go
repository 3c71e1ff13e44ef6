// Package store keeps the history of finished game and zen sessions in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schema string

// ErrDuplicate is returned when a session id is recorded twice.
var ErrDuplicate = errors.New("session already recorded")

// Kind tells game sessions from zen sessions.
type Kind string

const (
	KindGame Kind = "GAME"
	KindZen  Kind = "ZEN"
)

// Session is one finished play session.
type Session struct {
	ID        string
	Kind      Kind
	StartedAt time.Time
	EndedAt   time.Time
	Score     int
	Reason    string
}

// Duration is how long the session ran.
func (s Session) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// Store persists sessions in SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens the database at path and creates the schema if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one finished session.
func (s *Store) Record(ctx context.Context, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(sess.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if sess.Kind != KindGame && sess.Kind != KindZen {
		return fmt.Errorf("unknown session kind %q", sess.Kind)
	}
	if sess.EndedAt.IsZero() {
		sess.EndedAt = time.Now()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = sess.EndedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, kind, started_at, ended_at, score, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, string(sess.Kind), toMillis(sess.StartedAt), toMillis(sess.EndedAt), sess.Score, sess.Reason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// Recent returns up to limit sessions, most recently ended first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, started_at, ended_at, score, reason
		 FROM sessions ORDER BY ended_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess           Session
			kind           string
			started, ended int64
		)
		if err := rows.Scan(&sess.ID, &kind, &started, &ended, &sess.Score, &sess.Reason); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Kind = Kind(kind)
		sess.StartedAt = fromMillis(started)
		sess.EndedAt = fromMillis(ended)
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// HighScore returns the best game score on record, 0 when none.
func (s *Store) HighScore(ctx context.Context) (int, error) {
	var best sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(score) FROM sessions WHERE kind = ?`, string(KindGame)).Scan(&best)
	if err != nil {
		return 0, fmt.Errorf("query high score: %w", err)
	}
	return int(best.Int64), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
