// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides key mapping persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Fire-and-forget persistence can race a request's upsert.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS key_mappings (
			fingerprint TEXT PRIMARY KEY,
			comment     TEXT NOT NULL DEFAULT '',
			agent       TEXT NOT NULL,
			sign_count  INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_key_mappings_agent ON key_mappings(agent);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// ListMappings returns all mappings ordered by fingerprint.
func (s *SQLiteStore) ListMappings(ctx context.Context) ([]*KeyMapping, error) {
	query := `
		SELECT fingerprint, comment, agent, sign_count, created_at, updated_at
		FROM key_mappings
		ORDER BY fingerprint
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*KeyMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mappings: %w", err)
	}
	return mappings, nil
}

// GetMapping retrieves a mapping by fingerprint.
// Returns ErrNotFound if no mapping exists.
func (s *SQLiteStore) GetMapping(ctx context.Context, fingerprint string) (*KeyMapping, error) {
	query := `
		SELECT fingerprint, comment, agent, sign_count, created_at, updated_at
		FROM key_mappings
		WHERE fingerprint = ?
	`

	m, err := scanMapping(s.db.QueryRowContext(ctx, query, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UpsertMapping inserts a mapping or updates its agent and comment.
// The sign count is incremented on every call. An empty comment does not
// overwrite a stored one.
func (s *SQLiteStore) UpsertMapping(ctx context.Context, m *KeyMapping) error {
	if m.Fingerprint == "" || m.Agent == "" {
		return fmt.Errorf("mapping requires fingerprint and agent")
	}

	now := time.Now().UTC()
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = m.UpdatedAt
	}

	query := `
		INSERT INTO key_mappings (fingerprint, comment, agent, sign_count, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			comment = CASE WHEN excluded.comment = '' THEN key_mappings.comment ELSE excluded.comment END,
			agent = excluded.agent,
			sign_count = key_mappings.sign_count + 1,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		m.Fingerprint,
		m.Comment,
		m.Agent,
		m.CreatedAt.UTC().Format(time.RFC3339Nano),
		m.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting mapping: %w", err)
	}

	s.logger.Debug("saved mapping", "fingerprint", m.Fingerprint, "agent", m.Agent)
	return nil
}

// DeleteMapping removes a mapping by fingerprint.
// Returns ErrNotFound if no mapping exists.
func (s *SQLiteStore) DeleteMapping(ctx context.Context, fingerprint string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM key_mappings WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("deleting mapping: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted mapping", "fingerprint", fingerprint)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (*KeyMapping, error) {
	var m KeyMapping
	var createdAtStr, updatedAtStr string

	err := row.Scan(&m.Fingerprint, &m.Comment, &m.Agent, &m.SignCount, &createdAtStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning mapping: %w", err)
	}

	m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	m.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &m, nil
}
