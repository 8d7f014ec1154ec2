package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a queried session does not exist.
var ErrNotFound = errors.New("session not found")

// Session is one kernel process lifetime.
type Session struct {
	ID        string
	Banner    string
	StartedAt time.Time
}

// Execution is one stored cell execution.
type Execution struct {
	ID             int64
	Session        string
	ExecutionCount int
	Code           string
	Status         string
	Stdout         string
	Stderr         string
	ExecutedAt     time.Time
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database. driver is "sqlite" or
// "mysql". For sqlite, dsn is a file path; use ":memory:" in tests.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite":
		return openSQLite(dsn)
	case "mysql":
		return openMySQL(dsn)
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}
}

func openSQLite(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating history dir for %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db %s: %w", path, err)
	}

	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// One connection: SQLite has a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

func openMySQL(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to MySQL: %w", err)
	}
	for _, stmt := range mysqlSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w; check that MySQL/MariaDB is running and the DSN is correct", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession records the start of a kernel session.
func (s *Store) StartSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, banner, started_at) VALUES (?, ?, ?)`,
		sess.ID, nullString(sess.Banner), sess.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", sess.ID, err)
	}
	return nil
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, banner, started_at FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return sess, nil
}

// LatestSession returns the most recently started session.
func (s *Store) LatestSession(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, banner, started_at FROM sessions ORDER BY started_at DESC, id DESC LIMIT 1`)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest session: %w", err)
	}
	return sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, banner, started_at FROM sessions ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// RecordExecution appends an execution to the history.
func (s *Store) RecordExecution(ctx context.Context, e *Execution) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (session, execution_count, code, status, stdout, stderr, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Session, e.ExecutionCount, e.Code, e.Status,
		nullString(e.Stdout), nullString(e.Stderr), e.ExecutedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("recording execution %d of session %s: %w", e.ExecutionCount, e.Session, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// ListExecutions returns up to limit executions of a session, newest first.
// A limit of zero or less returns all of them.
func (s *Store) ListExecutions(ctx context.Context, session string, limit int) ([]*Execution, error) {
	query := `SELECT id, session, execution_count, code, status, stdout, stderr, executed_at
		 FROM executions WHERE session = ? ORDER BY id DESC`
	args := []any{session}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing executions for %s: %w", session, err)
	}
	defer rows.Close()

	var entries []*Execution
	for rows.Next() {
		var e Execution
		var stdout, stderr sql.NullString
		var ts int64
		if err := rows.Scan(&e.ID, &e.Session, &e.ExecutionCount, &e.Code, &e.Status, &stdout, &stderr, &ts); err != nil {
			return nil, err
		}
		e.Stdout = stdout.String
		e.Stderr = stderr.String
		e.ExecutedAt = time.Unix(ts, 0)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var banner sql.NullString
	var startedAt int64
	if err := row.Scan(&sess.ID, &banner, &startedAt); err != nil {
		return nil, err
	}
	sess.Banner = banner.String
	sess.StartedAt = time.Unix(startedAt, 0)
	return &sess, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
