package store

import (
	"sync"

	"orchestrator-service/src/models"
)

// SessionStore is the in-memory table of pending and active sessions.
// Map operations are atomic across session IDs; transitions for one session
// are serialized through Acquire, which hands the caller an exclusive lock
// on that session's entry.
type SessionStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	session *models.Session
	removed bool
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		entries: make(map[string]*entry),
	}
}

// Put inserts a new session. The caller must have already established that
// no live session exists for either party.
func (s *SessionStore) Put(session *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[session.SessionID] = &entry{session: session}
}

// Acquire locks the session for a transition and returns it together with a
// release function. Returns models.ErrSessionNotFound if the session does
// not exist or was removed while waiting for the lock.
func (s *SessionStore) Acquire(sessionID string) (*models.Session, func(), error) {
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, models.ErrSessionNotFound
	}

	e.mu.Lock()
	if e.removed {
		// Lost the race against a terminal transition.
		e.mu.Unlock()
		return nil, nil, models.ErrSessionNotFound
	}
	return e.session, e.mu.Unlock, nil
}

// Remove deletes the session from the table. The caller must hold the
// entry lock obtained from Acquire; later acquirers observe the removal.
func (s *SessionStore) Remove(sessionID string) {
	s.mu.Lock()
	e, ok := s.entries[sessionID]
	if ok {
		e.removed = true
		delete(s.entries, sessionID)
	}
	s.mu.Unlock()
}

// FindByParty returns the ID of the live session the party participates in,
// if any. A party has at most one by the busy invariant.
func (s *SessionStore) FindByParty(partyID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, e := range s.entries {
		if e.session.PayerID == partyID || e.session.ProviderID == partyID {
			return id, true
		}
	}
	return "", false
}

// List returns value snapshots of all live sessions, for the admin surface.
// Entry locks are taken one at a time after releasing the map lock, so a
// snapshot never blocks an in-flight terminal transition.
func (s *SessionStore) List() []models.Session {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]models.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			out = append(out, *e.session)
		}
		e.mu.Unlock()
	}
	return out
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
