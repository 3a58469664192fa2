/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatchmaker(cfg *Config) (*Matchmaker, *MatchQueue, *SessionRegistry) {
	cfg.questionCount = 3
	bank := &QuestionBank{questions: makeQuestions(10)}
	queue := NewMatchQueue(4, 2)
	players := NewPlayerRegistry()
	sessions := NewSessionRegistry()
	m := NewMatchmaker(cfg, classicPolicy(), newMemoryStore(), bank, queue, players, sessions)
	return m, queue, sessions
}

func TestTickPairsAndStartsSession(t *testing.T) {
	m, queue, sessions := newTestMatchmaker(testConfig())
	p1 := testPlayer("alice", 1200)
	p2 := testPlayer("bob", 1250)
	queue.Enqueue(p1)
	queue.Enqueue(p2)

	m.tick()

	assert.Equal(t, 0, queue.Len())
	require.Equal(t, 1, sessions.Count())

	s := sessions.GetByPlayer("alice")
	require.NotNil(t, s)
	assert.Same(t, s, sessions.GetByPlayer("bob"))
	assert.Equal(t, s.ID, p1.SessionID)
	assert.Equal(t, s.ID, p2.SessionID)

	found := awaitGame(t, p1, "found")
	fe, ok := found.Extra.(FoundExtra)
	require.True(t, ok)
	assert.Equal(t, s.ID, fe.SessionID)
	awaitGame(t, p2, "found")
}

func TestTickWithoutPairIsNoop(t *testing.T) {
	m, queue, sessions := newTestMatchmaker(testConfig())
	queue.Enqueue(testPlayer("alice", 1200))

	m.tick()

	assert.Equal(t, 1, queue.Len())
	assert.Equal(t, 0, sessions.Count())
}

func TestTickedMatchPlaysToCompletion(t *testing.T) {
	m, queue, sessions := newTestMatchmaker(testConfig())
	p1 := testPlayer("alice", 1200)
	p2 := testPlayer("bob", 1200)
	queue.Enqueue(p1)
	queue.Enqueue(p2)

	m.tick()

	s := sessions.GetByPlayer("alice")
	require.NotNil(t, s)

	for round := 0; round < 3; round++ {
		awaitGame(t, p1, "question")
		s.HandleMessage("alice", ClientMessage{Type: "answer", Choice: intp(0)})
		s.HandleMessage("bob", ClientMessage{Type: "answer", Choice: intp(0)})
		awaitGame(t, p1, "reveal")
	}

	end := awaitGame(t, p1, "end")
	ee, ok := end.Extra.(EndExtra)
	require.True(t, ok)
	assert.Equal(t, ReasonNoMoreQuestions, ee.Reason)
	assert.Nil(t, ee.Winner)

	// Session deregistered and the pairing recorded, so the next tick
	// will not immediately rematch these two.
	assert.Equal(t, 0, sessions.Count())
	assert.True(t, p1.RecentlyPlayed("bob"))
}

func intp(v int) *int { return &v }
