// Package store persists ask conversations in SQLite. One active
// session per kind holds an ordered list of user/assistant turns.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"orbit/internal/logging"
)

// Message is one persisted conversation turn.
type Message struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Session groups the turns of one conversation.
type Session struct {
	ID        string
	Kind      string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Store wraps the SQLite conversation database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// New initializes the SQLite database at the given path.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		ended_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_kind ON sessions(kind);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(session_id) REFERENCES sessions(id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// GetOrCreateActive returns the active (not yet ended) session of the
// given kind, creating one if none exists.
func (s *Store) GetOrCreateActive(kind string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	err := s.db.QueryRow(
		`SELECT id FROM sessions WHERE kind = ? AND ended_at IS NULL ORDER BY started_at DESC LIMIT 1`,
		kind,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		logging.StoreError("failed to query active session: %v", err)
		return "", err
	}

	id = uuid.NewString()
	if _, err := s.db.Exec(`INSERT INTO sessions (id, kind) VALUES (?, ?)`, id, kind); err != nil {
		logging.StoreError("failed to create session: %v", err)
		return "", err
	}

	logging.Store("created %s session %s", kind, id)
	return id, nil
}

// AddMessage appends a turn to a session.
func (s *Store) AddMessage(sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("adding message: session=%s role=%s len=%d", sessionID, role, len(content))

	_, err := s.db.Exec(
		`INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)`,
		sessionID, role, content,
	)
	if err != nil {
		logging.StoreError("failed to add message to %s: %v", sessionID, err)
		return err
	}
	return nil
}

// UpdateLastAssistantMessage replaces the content of the most recent
// assistant turn in a session. The enhancement pipeline uses this to
// swap in the enriched response.
func (s *Store) UpdateLastAssistantMessage(sessionID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE messages SET content = ?
		 WHERE id = (SELECT id FROM messages WHERE session_id = ? AND role = 'assistant' ORDER BY id DESC LIMIT 1)`,
		content, sessionID,
	)
	if err != nil {
		logging.StoreError("failed to update assistant message in %s: %v", sessionID, err)
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("no assistant message in session %s", sessionID)
	}
	return nil
}

// GetMessages returns a session's turns in chronological order.
func (s *Store) GetMessages(sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, session_id, role, content, created_at FROM messages
		 WHERE session_id = ? ORDER BY id ASC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		logging.StoreError("failed to query messages for %s: %v", sessionID, err)
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			continue
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// EndSession marks a session as ended. Ending an already-ended session
// is a no-op.
func (s *Store) EndSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at = CURRENT_TIMESTAMP WHERE id = ? AND ended_at IS NULL`,
		sessionID,
	)
	if err != nil {
		logging.StoreError("failed to end session %s: %v", sessionID, err)
		return err
	}
	logging.Store("ended session %s", sessionID)
	return nil
}

// GetSession returns a session's metadata.
func (s *Store) GetSession(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sess Session
	var ended sql.NullTime
	err := s.db.QueryRow(
		`SELECT id, kind, started_at, ended_at FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&sess.ID, &sess.Kind, &sess.StartedAt, &ended)
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		sess.EndedAt = &ended.Time
	}
	return &sess, nil
}
