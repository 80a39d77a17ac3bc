package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lexcodex/leadline/framework"
)

// SQLiteSessionStore persists session snapshots in a SQLite database so
// conversations survive process restarts.
type SQLiteSessionStore struct {
	db *sql.DB
}

// NewSQLiteSessionStore opens/creates the database at dbPath.
func NewSQLiteSessionStore(dbPath string) (*SQLiteSessionStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, err
	}
	store := &SQLiteSessionStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteSessionStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		snapshot BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteSessionStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load implements SessionStore.
func (s *SQLiteSessionStore) Load(ctx context.Context, sessionID string) (*framework.ConversationState, int64, error) {
	var snapshot []byte
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot, version FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&snapshot, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrSessionNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	var state framework.ConversationState
	if err := json.Unmarshal(snapshot, &state); err != nil {
		return nil, 0, err
	}
	return &state, version, nil
}

// Save implements SessionStore.
func (s *SQLiteSessionStore) Save(ctx context.Context, sessionID string, state *framework.ConversationState, expected int64) (int64, error) {
	snapshot, err := json.Marshal(state)
	if err != nil {
		return 0, err
	}
	next := expected + 1
	now := time.Now().UTC()

	if expected == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (session_id, version, snapshot, updated_at) VALUES (?, ?, ?, ?)`,
			sessionID, next, snapshot, now,
		)
		if err != nil {
			if s.exists(ctx, sessionID) {
				return 0, ErrVersionConflict
			}
			return 0, err
		}
		return next, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET version = ?, snapshot = ?, updated_at = ? WHERE session_id = ? AND version = ?`,
		next, snapshot, now, sessionID, expected,
	)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		if s.exists(ctx, sessionID) {
			return 0, ErrVersionConflict
		}
		return 0, ErrSessionNotFound
	}
	return next, nil
}

func (s *SQLiteSessionStore) exists(ctx context.Context, sessionID string) bool {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&one)
	return err == nil
}

// Delete implements SessionStore.
func (s *SQLiteSessionStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	return err
}
