/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"sort"
	"sync"
)

// MatchQueue orders waiting players by rating so the matchmaker can
// pair nearest neighbors. Every read-modify-write runs under one lock;
// callers include new arrivals, disconnect cleanup and the matchmaker
// tick, any of which may race.
type MatchQueue struct {
	mu      sync.Mutex
	waiting []*Player

	recentWindow  int // recent-opponents history size
	fallbackDepth int // min queued players before the starvation fallback engages
}

func NewMatchQueue(recentWindow, fallbackDepth int) *MatchQueue {
	if fallbackDepth < 2 {
		fallbackDepth = 2
	}
	return &MatchQueue{recentWindow: recentWindow, fallbackDepth: fallbackDepth}
}

// Enqueue adds a player once; re-adding the same identity is a no-op.
// The queue is kept sorted by rating ascending.
func (q *MatchQueue) Enqueue(p *Player) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, w := range q.waiting {
		if w.UID == p.UID {
			return
		}
	}
	q.waiting = append(q.waiting, p)
	sort.SliceStable(q.waiting, func(i, j int) bool {
		return q.waiting[i].Rating < q.waiting[j].Rating
	})
}

// Dequeue removes a player if present. Removing a player that was never
// queued, or was already paired, is a silent no-op.
func (q *MatchQueue) Dequeue(p *Player) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, w := range q.waiting {
		if w.UID == p.UID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return
		}
	}
}

// Len reports how many players are waiting.
func (q *MatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// TryPopPair removes and returns a pairable duo, or nil.
//
// The head (lowest rating) is paired with the nearest queued player
// neither side has faced recently. If no eligible pair exists but the
// queue is at least fallbackDepth deep, the two lowest-rating entries
// are paired anyway so low-population queues cannot starve.
func (q *MatchQueue) TryPopPair() (*Player, *Player) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.waiting) < 2 {
		return nil, nil
	}

	head := q.waiting[0]
	for i := 1; i < len(q.waiting); i++ {
		cand := q.waiting[i]
		if head.RecentlyPlayed(cand.UID) || cand.RecentlyPlayed(head.UID) {
			continue
		}
		q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
		q.waiting = q.waiting[1:]
		return head, cand
	}

	if len(q.waiting) < q.fallbackDepth {
		return nil, nil
	}

	cand := q.waiting[1]
	q.waiting = q.waiting[2:]
	return head, cand
}

// RecordOpponents stamps both players into each other's recent-opponent
// history, bounded by the configured window.
func (q *MatchQueue) RecordOpponents(a, b *Player) {
	q.mu.Lock()
	defer q.mu.Unlock()

	a.RecordOpponent(b.UID, q.recentWindow)
	b.RecordOpponent(a.UID, q.recentWindow)
}
