/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Player is the connection-scoped view of a user: the persisted profile
// fields it was hydrated with, the live socket, and the mutable match
// state its current session drives.
//
// Lives, Answer and SessionID are owned by the session the player is in
// and are only touched under that session's lock. The recent-opponents
// window is guarded by the queue (appends happen at match end, reads
// during pairing, both inside queue/session critical sections).
type Player struct {
	UID     string
	Name    string
	Rating  int
	Wins    int
	Country string
	Kind    string // cosmetic type

	SessionID string
	Lives     int
	Answer    *int

	recent []string // most recent last

	conn *websocket.Conn
	send chan any
	once sync.Once
}

func newPlayer(profile Profile, conn *websocket.Conn) *Player {
	return &Player{
		UID:     profile.UID,
		Name:    profile.Name,
		Rating:  profile.Rating,
		Wins:    profile.Wins,
		Country: profile.Country,
		Kind:    profile.Kind,
		conn:    conn,
		send:    make(chan any, 16),
	}
}

// Send queues an event for delivery. Delivery is best-effort: a full
// buffer (stalled or dead socket) drops the event rather than blocking
// the session that produced it.
func (p *Player) Send(v any) {
	select {
	case p.send <- v:
	default:
	}
}

// Close shuts the outbound channel exactly once; writePump then closes
// the socket itself.
func (p *Player) Close() {
	p.once.Do(func() { close(p.send) })
}

// Public returns the opponent-visible profile slice.
func (p *Player) Public() PublicProfile {
	return PublicProfile{
		UID:     p.UID,
		Name:    p.Name,
		Rating:  p.Rating,
		Country: p.Country,
		Kind:    p.Kind,
	}
}

// RecentlyPlayed reports whether uid is in the recent-opponents window.
func (p *Player) RecentlyPlayed(uid string) bool {
	for _, r := range p.recent {
		if r == uid {
			return true
		}
	}
	return false
}

// RecordOpponent appends uid to the recent-opponents window, evicting
// the oldest entry past the window size.
func (p *Player) RecordOpponent(uid string, window int) {
	p.recent = append(p.recent, uid)
	if window > 0 && len(p.recent) > window {
		p.recent = p.recent[len(p.recent)-window:]
	}
}

// ping probes the underlying socket. Players without a socket (tests)
// always pass.
func (p *Player) ping(deadline time.Duration) error {
	if p.conn == nil {
		return nil
	}
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(deadline))
}

func (p *Player) writePump(heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-p.send:
			if !ok {
				return
			}
			if err := p.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := p.ping(heartbeat); err != nil {
				return
			}
		}
	}
}

var errAlreadyConnected = errors.New("player already has an active connection")

// PlayerRegistry is the authoritative map of currently-connected
// players. At most one live connection per identity.
type PlayerRegistry struct {
	mu      sync.RWMutex
	players map[string]*Player
}

func NewPlayerRegistry() *PlayerRegistry {
	return &PlayerRegistry{players: make(map[string]*Player)}
}

// Add registers a player, rejecting a second concurrent connection for
// the same identity.
func (r *PlayerRegistry) Add(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[p.UID]; ok {
		return errAlreadyConnected
	}
	r.players[p.UID] = p
	return nil
}

// Remove drops a player only if it is still the registered connection
// for that identity, so a late cleanup cannot evict a fresh reconnect.
func (r *PlayerRegistry) Remove(p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.players[p.UID] == p {
		delete(r.players, p.UID)
	}
}

func (r *PlayerRegistry) Get(uid string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players[uid]
}

// Count reports how many players are connected (queueing or playing).
func (r *PlayerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Snapshot returns the current player set for iteration outside the
// lock (the sweep pings sockets, which must not happen under it).
func (r *PlayerRegistry) Snapshot() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out
}
