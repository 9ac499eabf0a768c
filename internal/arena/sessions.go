package arena

import (
	"github.com/trophy-arena/internal/domain"
)

// SessionTable holds the set of currently active sessions, keyed by
// session id, with a secondary index from connection id to session id.
// Like the queue it has no lock of its own; the coordinator is its sole
// owner.
type SessionTable struct {
	sessions map[string]*domain.Session
	byConn   map[string]string
}

// NewSessionTable creates an empty session table
func NewSessionTable() *SessionTable {
	return &SessionTable{
		sessions: make(map[string]*domain.Session),
		byConn:   make(map[string]string),
	}
}

// Insert adds an active session. Both participant connections are
// indexed; a connection may appear in at most one active session, which
// the coordinator guarantees by rejecting enqueues from connections that
// are already playing.
func (t *SessionTable) Insert(s *domain.Session) {
	t.sessions[s.ID] = s
	t.byConn[s.Participants[0].ConnID] = s.ID
	t.byConn[s.Participants[1].ConnID] = s.ID
}

// Get returns the session with the given id, or false if absent
func (t *SessionTable) Get(sessionID string) (*domain.Session, bool) {
	s, ok := t.sessions[sessionID]
	return s, ok
}

// GetByConn returns the active session containing connID, or false
func (t *SessionTable) GetByConn(connID string) (*domain.Session, bool) {
	id, ok := t.byConn[connID]
	if !ok {
		return nil, false
	}
	return t.Get(id)
}

// Remove deletes a session and both connection index entries. No-op for
// unknown ids.
func (t *SessionTable) Remove(sessionID string) {
	s, ok := t.sessions[sessionID]
	if !ok {
		return
	}
	delete(t.byConn, s.Participants[0].ConnID)
	delete(t.byConn, s.Participants[1].ConnID)
	delete(t.sessions, sessionID)
}

// ContainsConn reports whether connID is part of an active session
func (t *SessionTable) ContainsConn(connID string) bool {
	_, ok := t.byConn[connID]
	return ok
}

// ContainsPlayer reports whether playerID participates in any active
// session.
func (t *SessionTable) ContainsPlayer(playerID string) bool {
	for _, s := range t.sessions {
		if _, ok := s.ParticipantByPlayer(playerID); ok {
			return true
		}
	}
	return false
}

// Count returns the number of active sessions
func (t *SessionTable) Count() int {
	return len(t.sessions)
}
