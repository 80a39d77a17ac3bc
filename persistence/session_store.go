// Package persistence stores conversation snapshots keyed by an opaque
// session id. Saves are guarded by an optimistic version check so two
// writers racing on the same session cannot silently lose an update.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/lexcodex/leadline/framework"
)

// ErrSessionNotFound means no snapshot exists for the session id.
var ErrSessionNotFound = errors.New("session not found")

// ErrVersionConflict means the caller's expected version no longer matches
// the stored one; reload and retry.
var ErrVersionConflict = errors.New("session version conflict")

// SessionStore persists conversation snapshots.
type SessionStore interface {
	// Load returns the snapshot and its current version.
	Load(ctx context.Context, sessionID string) (*framework.ConversationState, int64, error)
	// Save persists the snapshot when expected matches the stored version.
	// expected 0 creates the session; creating an existing session is a
	// version conflict. Returns the new version.
	Save(ctx context.Context, sessionID string, state *framework.ConversationState, expected int64) (int64, error)
	// Delete removes the session. Deleting an absent session is not an error.
	Delete(ctx context.Context, sessionID string) error
}

type memoryRow struct {
	version  int64
	snapshot []byte
}

// MemorySessionStore keeps snapshots in RAM. Rows hold serialized JSON, the
// exact bytes SQLite would hold, so both stores round-trip identically.
type MemorySessionStore struct {
	mu   sync.RWMutex
	rows map[string]memoryRow
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{rows: make(map[string]memoryRow)}
}

// Load implements SessionStore.
func (s *MemorySessionStore) Load(ctx context.Context, sessionID string) (*framework.ConversationState, int64, error) {
	s.mu.RLock()
	row, ok := s.rows[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, 0, ErrSessionNotFound
	}
	var state framework.ConversationState
	if err := json.Unmarshal(row.snapshot, &state); err != nil {
		return nil, 0, err
	}
	return &state, row.version, nil
}

// Save implements SessionStore.
func (s *MemorySessionStore) Save(ctx context.Context, sessionID string, state *framework.ConversationState, expected int64) (int64, error) {
	snapshot, err := json.Marshal(state)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[sessionID]
	switch {
	case !ok && expected != 0:
		return 0, ErrSessionNotFound
	case ok && row.version != expected:
		return 0, ErrVersionConflict
	}
	next := expected + 1
	s.rows[sessionID] = memoryRow{version: next, snapshot: snapshot}
	return next, nil
}

// Delete implements SessionStore.
func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, sessionID)
	return nil
}
