// Package server is the transport boundary: a websocket gateway speaking the
// chat event protocol, a couple of plain HTTP endpoints, and the registry of
// live sessions behind them.
package server

import (
	"sync"

	"github.com/lexcodex/leadline/framework"
)

// Session is one live conversation. Its mutex serializes turns: a second
// inbound event for the same session waits for the first to finish, while
// distinct sessions run concurrently.
type Session struct {
	ID      string
	mu      sync.Mutex
	State   *framework.ConversationState
	Version int64
}

// Lock takes the per-session turn lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-session turn lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// SessionRegistry owns the live sessions. Creation and destruction are
// explicit; lookups of unknown ids simply miss.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Create registers a live session, replacing any previous entry for the id
// (a reconnect supersedes the old connection's entry).
func (r *SessionRegistry) Create(id string, state *framework.ConversationState, version int64) *Session {
	sess := &Session{ID: id, State: state, Version: version}
	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()
	return sess
}

// Get looks up a live session.
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Destroy removes a live session. The stored snapshot is untouched.
func (r *SessionRegistry) Destroy(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
