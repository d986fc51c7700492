// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Opens the database, applies pragmas and creates the schema on first use

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is used for every TEXT timestamp column.
const timeLayout = time.RFC3339Nano

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. ":memory:" opens a private
// in-memory database limited to a single connection.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	inMemory := path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// busy_timeout and foreign_keys are per-connection, so they ride on the DSN
	// and apply to every pooled connection.
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if inMemory {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
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
		CREATE TABLE IF NOT EXISTS users (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			email              TEXT NOT NULL UNIQUE,
			first_name         TEXT NOT NULL,
			last_name          TEXT NOT NULL,
			preferred_language TEXT NOT NULL DEFAULT 'en',
			is_support         INTEGER NOT NULL DEFAULT 0,
			is_active          INTEGER NOT NULL DEFAULT 1,
			is_deleted         INTEGER NOT NULL DEFAULT 0,
			created_at         TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id  INTEGER NOT NULL REFERENCES users(id),
			agent_id   INTEGER REFERENCES users(id),
			is_chat    INTEGER NOT NULL DEFAULT 1,
			is_closed  INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_client ON conversations(client_id);
		CREATE INDEX IF NOT EXISTS idx_conversations_agent ON conversations(agent_id);

		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			sender_id       INTEGER NOT NULL REFERENCES users(id),
			message         TEXT NOT NULL,
			sent_at         TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
		CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(conversation_id, sender_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}
