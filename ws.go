/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveWS authenticates the caller, hydrates their profile, registers
// the connection and enqueues them for matchmaking. The handler then
// becomes the connection's read pump until the socket closes.
func serveWS(cfg *Config, auth *Auth, store PlayerStore, players *PlayerRegistry,
	sessions *SessionRegistry, queue *MatchQueue) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		user, err := auth.ParseToken(tokenFromRequest(r))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// Reject a second concurrent connection instead of creating
		// ghost state for the first one.
		if players.Get(user.UID) != nil {
			http.Error(w, "already connected", http.StatusConflict)
			return
		}

		profile, err := store.GetOrCreate(r.Context(), user.UID, user.Name, countryFromRequest(r))
		if err != nil {
			log.Printf("ERROR: fetching profile for %s: %v", user.UID, err)
			http.Error(w, "profile unavailable", http.StatusBadGateway)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ERROR: websocket upgrade: %v", err)
			return
		}

		p := newPlayer(profile, conn)
		if err := players.Add(p); err != nil {
			// Lost a connect race for the same identity.
			_ = conn.WriteJSON(ErrorMessage{Type: "error", Message: "already connected"})
			_ = conn.Close()
			return
		}

		go p.writePump(cfg.heartbeatInterval)
		queue.Enqueue(p)

		logf(cfg, "CONN: %s (%s) connected from %s", p.Name, p.UID, realIP(r))

		readPump(cfg, p, players, sessions, queue)
	}
}

// readPump routes inbound messages to the player's session for as long
// as the socket lives, then tears the player down: out of the queue,
// out of the registry, and counted as a disconnect in any live match.
func readPump(cfg *Config, p *Player, players *PlayerRegistry, sessions *SessionRegistry, queue *MatchQueue) {
	defer func() {
		queue.Dequeue(p)
		players.Remove(p)
		if s := sessions.GetByPlayer(p.UID); s != nil {
			s.HandleDisconnect(p.UID)
		}
		p.Close()
		logf(cfg, "CONN: %s disconnected", p.UID)
	}()

	for {
		var msg ClientMessage
		if err := p.conn.ReadJSON(&msg); err != nil {
			return
		}

		if s := sessions.GetByPlayer(p.UID); s != nil {
			s.HandleMessage(p.UID, msg)
			continue
		}

		// Not in a match yet: only the keepalive is meaningful.
		if msg.Type == "ping" {
			p.Send(PongMessage{Type: "pong", ID: msg.ID})
		}
	}
}
