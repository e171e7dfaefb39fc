// Package store persists chat transcripts to SQLite so past sessions can be
// listed and replayed with `pdfchat sessions`.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pdfchat/internal/conversation"
	"pdfchat/internal/logging"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure-Go driver, registered as "sqlite"
)

// ErrSessionNotFound is returned when a session id has no transcript.
var ErrSessionNotFound = errors.New("session not found")

// SessionInfo summarizes one saved session.
type SessionInfo struct {
	ID           string
	BaseURL      string
	StartedAt    time.Time
	LastActivity time.Time
	Messages     int
}

// Transcript is a SQLite-backed transcript store.
type Transcript struct {
	db     *sql.DB
	path   string
	driver string
	mu     sync.RWMutex
}

// Open creates or opens the transcript database at path using driver
// ("sqlite" or "sqlite3").
func Open(driver, path string) (*Transcript, error) {
	dsn, err := dataSourceName(driver, path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps SQLite free of lock contention between TUI saves.
	db.SetMaxOpenConns(1)

	t := &Transcript{db: db, path: path, driver: driver}
	if err := t.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("transcript store opened: driver=%s path=%s", driver, path)
	return t, nil
}

func dataSourceName(driver, path string) (string, error) {
	switch driver {
	case "sqlite3":
		return path + "?_journal_mode=WAL&_busy_timeout=5000", nil
	case "sqlite":
		return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

// Close closes the database connection.
func (t *Transcript) Close() error {
	return t.db.Close()
}

// Path returns the database file path.
func (t *Transcript) Path() string { return t.path }

// Driver returns the database/sql driver name in use.
func (t *Transcript) Driver() string { return t.driver }

// initSchema creates the database schema.
func (t *Transcript) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		base_url TEXT NOT NULL,
		started_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		request_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
	`
	_, err := t.db.Exec(schema)
	return err
}

// StartSession records a session. Starting an existing session is a no-op.
func (t *Transcript) StartSession(id, baseURL string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.db.Exec(
		`INSERT OR IGNORE INTO sessions (id, base_url, started_at) VALUES (?, ?, ?)`,
		id, baseURL, at.UnixNano(),
	)
	if err != nil {
		logging.StoreError("failed to start session %s: %v", id, err)
		return fmt.Errorf("failed to start session: %w", err)
	}
	logging.StoreDebug("session started: id=%s base_url=%s", id, baseURL)
	return nil
}

// SaveMessage inserts m or updates its status if it was saved before.
// m.Seq orders the transcript; messages without one go after the last saved.
func (t *Transcript) SaveMessage(sessionID string, m conversation.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errText sql.NullString
	if m.Err != nil {
		errText = sql.NullString{String: m.Err.Error(), Valid: true}
	}
	var seq sql.NullInt64
	if m.Seq > 0 {
		seq = sql.NullInt64{Int64: int64(m.Seq), Valid: true}
	}

	_, err := t.db.Exec(
		`INSERT INTO messages (id, session_id, seq, role, content, status, error, request_id, created_at)
		 VALUES (?, ?, COALESCE(?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?)), ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, error = excluded.error`,
		m.ID, sessionID, seq, sessionID, string(m.Role), m.Content, m.Status.String(), errText,
		int64(m.RequestID), m.Time.UnixNano(),
	)
	if err != nil {
		logging.StoreError("failed to save message: session=%s id=%s: %v", sessionID, m.ID, err)
		return fmt.Errorf("failed to save message: %w", err)
	}

	logging.StoreDebug("message saved: session=%s role=%s status=%s", sessionID, m.Role, m.Status)
	return nil
}

// ListSessions returns saved sessions, most recent first. limit <= 0 means 50.
func (t *Transcript) ListSessions(limit int) ([]SessionInfo, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ListSessions")
	defer timer.Stop()

	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := t.db.Query(
		`SELECT s.id, s.base_url, s.started_at,
		        COALESCE(MAX(m.created_at), s.started_at), COUNT(m.id)
		 FROM sessions s
		 LEFT JOIN messages m ON m.session_id = s.id
		 GROUP BY s.id, s.base_url, s.started_at
		 ORDER BY s.started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		logging.StoreError("failed to list sessions: %v", err)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var started, last int64
		if err := rows.Scan(&info.ID, &info.BaseURL, &started, &last, &info.Messages); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		info.StartedAt = time.Unix(0, started)
		info.LastActivity = time.Unix(0, last)
		out = append(out, info)
	}
	return out, rows.Err()
}

// LoadMessages returns a session's messages in history order.
func (t *Transcript) LoadMessages(sessionID string) ([]conversation.Message, error) {
	timer := logging.StartTimer(logging.CategoryStore, "LoadMessages")
	defer timer.Stop()

	t.mu.RLock()
	defer t.mu.RUnlock()

	var exists int
	err := t.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	rows, err := t.db.Query(
		`SELECT id, seq, role, content, status, error, request_id, created_at
		 FROM messages
		 WHERE session_id = ?
		 ORDER BY seq ASC, created_at ASC`,
		sessionID,
	)
	if err != nil {
		logging.StoreError("failed to load messages for %s: %v", sessionID, err)
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var out []conversation.Message
	for rows.Next() {
		var (
			m         conversation.Message
			role      string
			status    string
			errText   sql.NullString
			requestID int64
			created   int64
		)
		if err := rows.Scan(&m.ID, &m.Seq, &role, &m.Content, &status, &errText, &requestID, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = conversation.Role(role)
		m.Status = parseStatus(status)
		if errText.Valid {
			m.Err = errors.New(errText.String)
		}
		m.RequestID = uint64(requestID)
		m.Time = time.Unix(0, created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func parseStatus(s string) conversation.Status {
	switch s {
	case "confirmed":
		return conversation.StatusConfirmed
	case "failed":
		return conversation.StatusFailed
	default:
		return conversation.StatusPending
	}
}
