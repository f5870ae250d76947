// Package store persists conversation identifiers and model choices
// across application restarts. Only ids and model names are stored;
// conversation history is not.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed session store keyed by workspace root and
// provider kind.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the store at dbPath. Enables WAL mode and a
// busy timeout; creates parent directories if needed.
func New(ctx context.Context, dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing. A shared cache
// lets multiple connections see the same database.
func NewMemory(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		workspace_root TEXT NOT NULL,
		provider_kind TEXT NOT NULL,
		session_id TEXT NOT NULL,
		model TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (workspace_root, provider_kind)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession upserts the session id for a workspace/provider pair.
func (s *Store) SaveSession(ctx context.Context, root, kind, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (workspace_root, provider_kind, session_id, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(workspace_root, provider_kind) DO UPDATE SET
			session_id = excluded.session_id,
			updated_at = CURRENT_TIMESTAMP
	`, root, kind, sessionID)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession returns the stored session id, or a wrapped
// sql.ErrNoRows when none exists.
func (s *Store) GetSession(ctx context.Context, root, kind string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var sessionID string
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id FROM sessions
		WHERE workspace_root = ? AND provider_kind = ?
	`, root, kind).Scan(&sessionID)

	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no session for %s/%s: %w", root, kind, err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query session: %w", err)
	}
	return sessionID, nil
}

// DeleteSession removes a workspace/provider session row. Deleting a
// missing row is not an error.
func (s *Store) DeleteSession(ctx context.Context, root, kind string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE workspace_root = ? AND provider_kind = ?
	`, root, kind); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SaveModel records the chosen model for a workspace/provider pair,
// creating the row if the session id is not yet known.
func (s *Store) SaveModel(ctx context.Context, root, kind, model string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (workspace_root, provider_kind, session_id, model, updated_at)
		VALUES (?, ?, '', ?, CURRENT_TIMESTAMP)
		ON CONFLICT(workspace_root, provider_kind) DO UPDATE SET
			model = excluded.model,
			updated_at = CURRENT_TIMESTAMP
	`, root, kind, model)
	if err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}

// GetModel returns the stored model name, empty when none was chosen.
func (s *Store) GetModel(ctx context.Context, root, kind string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var model sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT model FROM sessions
		WHERE workspace_root = ? AND provider_kind = ?
	`, root, kind).Scan(&model)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query model: %w", err)
	}
	return model.String, nil
}
