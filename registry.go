/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import "sync"

// SessionRegistry maps session id to live session. It is the single
// source of truth for "is this player currently in a match", together
// with each Player's own SessionID field, which the session keeps in
// lockstep.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

func (r *SessionRegistry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *SessionRegistry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// GetByPlayer scans for the session a player participates in.
func (r *SessionRegistry) GetByPlayer(uid string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		for _, p := range s.players {
			if p.UID == uid {
				return s
			}
		}
	}
	return nil
}

func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
