/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"context"
	"time"
)

// Matchmaker periodically drains the queue into new sessions and sweeps
// the player registry for dead connections.
type Matchmaker struct {
	cfg      *Config
	policy   RatingPolicy
	store    PlayerStore
	bank     *QuestionBank
	queue    *MatchQueue
	players  *PlayerRegistry
	sessions *SessionRegistry
}

func NewMatchmaker(cfg *Config, policy RatingPolicy, store PlayerStore, bank *QuestionBank,
	queue *MatchQueue, players *PlayerRegistry, sessions *SessionRegistry) *Matchmaker {
	return &Matchmaker{
		cfg:      cfg,
		policy:   policy,
		store:    store,
		bank:     bank,
		queue:    queue,
		players:  players,
		sessions: sessions,
	}
}

// Run pops at most one pair per tick and starts a session for it.
func (m *Matchmaker) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.queueTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Matchmaker) tick() {
	p1, p2 := m.queue.TryPopPair()
	if p1 == nil {
		return
	}

	questions := m.bank.Sample(m.cfg.questionCount, "")
	s := NewSession(m.cfg, m.policy, m.store, m.sessions, m.queue, p1, p2, questions)
	m.sessions.Add(s)
	s.Start()

	logf(m.cfg, "MATCH: %s paired %s (%d) vs %s (%d)", s.ID, p1.Name, p1.Rating, p2.Name, p2.Rating)
}

// Sweep probes every registered connection on an interval and evicts
// players whose probe fails, so unreachable entries cannot sit in the
// queue blocking future pairing.
func (m *Matchmaker) Sweep(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Matchmaker) sweep() {
	for _, p := range m.players.Snapshot() {
		if err := p.ping(m.cfg.sweepInterval); err == nil {
			continue
		}

		logf(m.cfg, "SWEEP: evicting unreachable player %s", p.UID)

		m.queue.Dequeue(p)
		m.players.Remove(p)
		if s := m.sessions.GetByPlayer(p.UID); s != nil {
			s.HandleDisconnect(p.UID)
		}
		p.Close()
	}
}
