// Trividuel game session
//
// One Session is the state machine for a single two-player duel:
//
//	AwaitingStart -> RoundActive -> RoundResolving -> (RoundActive | MatchEnded)
//
// A session owns a private, shuffled question draw and both players'
// match state (lives, pending answers). Everything mutable lives behind
// one mutex; timer callbacks and socket-driven routing both serialize
// through it. At any moment at most one wakeup is scheduled (the
// found->start delay, the start->first-round delay, the round timeout,
// or the reveal delay), so a single timer slot suffices and ending the
// match by any path cancels whatever is pending.
//
// Round resolution fires exactly once per round: either both players
// answered (which stops the timeout) or the timeout fired first, never
// both. The resolved flag and a round generation counter make the loser
// of that race a no-op. Match end is latched the same way, which also
// makes disconnect handling idempotent: the second disconnect
// notification for a session (the survivor's own teardown) is ignored,
// and ratings are computed and persisted exactly once.

package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Extra delay before ending on a deciding reveal, so clients can show
// the final life loss before the end screen.
const matchEndGrace = time.Second

type Session struct {
	ID      string
	players [2]*Player

	cfg      *Config
	policy   RatingPolicy
	store    PlayerStore
	registry *SessionRegistry
	queue    *MatchQueue

	questions []Question

	mu       sync.Mutex
	index    int // current question, -1 before the first round
	roundGen int
	resolved bool
	ended    bool
	history  []RoundRecord
	timer    *time.Timer
}

func NewSession(cfg *Config, policy RatingPolicy, store PlayerStore, registry *SessionRegistry,
	queue *MatchQueue, p1, p2 *Player, questions []Question) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		players:   [2]*Player{p1, p2},
		cfg:       cfg,
		policy:    policy,
		store:     store,
		registry:  registry,
		queue:     queue,
		questions: questions,
		index:     -1,
	}
	return s
}

// Start transitions AwaitingStart: announces the match, then after the
// room-transition delays begins the first round. A disconnect can end
// the session before Start runs (the read pump races the matchmaker
// tick), in which case starting would resurrect the dead session's id
// on both players.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}

	for _, p := range s.players {
		p.SessionID = s.ID
		p.Lives = s.cfg.startLives
		p.Answer = nil
	}

	s.broadcastLocked(gameEvent("found", FoundExtra{SessionID: s.ID}))
	s.scheduleLocked(s.cfg.foundDelay, s.sendStart)
}

func (s *Session) sendStart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}

	s.broadcastLocked(gameEvent("start", StartExtra{
		Players: []PublicProfile{s.players[0].Public(), s.players[1].Public()},
		Lives:   s.livesLocked(),
	}))
	s.scheduleLocked(s.cfg.startDelay, s.nextRound)
}

func (s *Session) nextRound() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}

	s.index++
	if s.index >= len(s.questions) {
		s.endLocked(ReasonNoMoreQuestions)
		return
	}

	for _, p := range s.players {
		p.Answer = nil
	}
	s.resolved = false
	s.roundGen++
	gen := s.roundGen

	q := s.questions[s.index]
	s.broadcastLocked(gameEvent("question", QuestionExtra{
		Index:           s.index,
		Question:        q.Text,
		Choices:         q.Choices,
		QuestionTimeout: int(s.cfg.roundTimeout / time.Second),
	}))
	s.scheduleLocked(s.cfg.roundTimeout, func() { s.timeoutRound(gen) })
}

// timeoutRound resolves the round with whatever answers are present.
// A stale generation means the round already resolved early.
func (s *Session) timeoutRound(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || s.resolved || gen != s.roundGen {
		return
	}
	s.resolveLocked()
}

// recordAnswer stores a player's choice for the active round. A repeat
// answer overwrites the first (client retries are expected). When both
// players have answered, the timeout is cancelled and the round
// resolves immediately.
func (s *Session) recordAnswer(uid string, choice int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || s.resolved || s.index < 0 || s.index >= len(s.questions) {
		return
	}
	if choice < 0 || choice >= len(s.questions[s.index].Choices) {
		return
	}

	for _, p := range s.players {
		if p.UID == uid {
			c := choice
			p.Answer = &c
		}
	}

	for _, p := range s.players {
		if p.Answer == nil {
			return
		}
	}
	s.stopTimerLocked()
	s.resolveLocked()
}

func (s *Session) resolveLocked() {
	s.resolved = true

	q := s.questions[s.index]
	answers := make(map[string]*int, 2)
	results := make(map[string]bool, 2)
	eliminated := false

	for _, p := range s.players {
		correct := p.Answer != nil && *p.Answer == q.Answer
		if !correct {
			p.Lives--
		}
		answers[p.UID] = p.Answer
		results[p.UID] = correct
		if p.Lives <= 0 {
			eliminated = true
		}
	}

	s.history = append(s.history, RoundRecord{
		Question: q.Text,
		Choices:  q.Choices,
		Correct:  q.Answer,
		Results:  results,
	})

	s.broadcastLocked(gameEvent("reveal", RevealExtra{
		Correct: q.Answer,
		Answers: answers,
		Lives:   s.livesLocked(),
	}))

	if eliminated {
		s.scheduleLocked(s.cfg.revealDelay+matchEndGrace, func() { s.finish(ReasonLifeZero) })
	} else {
		s.scheduleLocked(s.cfg.revealDelay, s.nextRound)
	}
}

func (s *Session) finish(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	s.endLocked(reason)
}

// endLocked resolves the match outcome from remaining lives: equal
// lives is a tie (no rating change), otherwise more lives wins.
func (s *Session) endLocked(reason string) {
	a, b := s.players[0], s.players[1]
	switch {
	case a.Lives > b.Lives:
		s.concludeLocked(a, b, reason)
	case b.Lives > a.Lives:
		s.concludeLocked(b, a, reason)
	default:
		s.concludeLocked(nil, nil, reason)
	}
}

// HandleDisconnect ends the match in favor of the remaining player. The
// first notification wins; later ones (including the survivor's own
// connection teardown) hit the ended latch and are ignored.
func (s *Session) HandleDisconnect(leaverUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}

	winner, loser := s.players[0], s.players[1]
	if winner.UID == leaverUID {
		winner, loser = loser, winner
	}
	s.concludeLocked(winner, loser, ReasonOpponentLeft)
}

// concludeLocked is the single exit path: latches the end, cancels any
// pending wakeup, applies and persists ratings (for decisive outcomes),
// broadcasts the end event and deregisters the session.
func (s *Session) concludeLocked(winner, loser *Player, reason string) {
	s.ended = true
	s.stopTimerLocked()

	extra := EndExtra{
		Reason:    reason,
		EloDelta:  []int{0, 0},
		Questions: s.history,
	}

	if winner != nil {
		winnerNew, loserNew := s.policy.Rate(winner.Rating, loser.Rating)
		extra.Winner = &winner.UID
		extra.EloDelta = []int{winnerNew - winner.Rating, loserNew - loser.Rating}

		winner.Rating = winnerNew
		winner.Wins++
		loser.Rating = loserNew

		s.persist(winner, loser)
	}

	s.broadcastLocked(gameEvent("end", extra))
	s.cleanupLocked()
}

// persist writes both new ratings fire-and-forget. The in-memory
// outcome is authoritative for the session; a failed write is logged
// and not retried, the rating record may lag.
func (s *Session) persist(winner, loser *Player) {
	wu := map[string]any{"elo": winner.Rating, "total_won": winner.Wins}
	lu := map[string]any{"elo": loser.Rating}
	wUID, lUID := winner.UID, loser.UID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.store.Update(ctx, wUID, wu); err != nil {
			log.Printf("ERROR: persisting rating for %s: %v", wUID, err)
		}
		if err := s.store.Update(ctx, lUID, lu); err != nil {
			log.Printf("ERROR: persisting rating for %s: %v", lUID, err)
		}
	}()
}

func (s *Session) cleanupLocked() {
	for _, p := range s.players {
		p.SessionID = ""
	}
	s.queue.RecordOpponents(s.players[0], s.players[1])
	s.registry.Remove(s.ID)
}

// HandleMessage routes one inbound client message. Every branch is a
// no-op once the session has ended.
func (s *Session) HandleMessage(uid string, msg ClientMessage) {
	if s.isEnded() {
		return
	}

	switch msg.Type {
	case "answer":
		if msg.Choice == nil {
			return
		}
		s.recordAnswer(uid, *msg.Choice)

	case "quit":
		s.HandleDisconnect(uid)

	case "ping":
		if p := s.player(uid); p != nil {
			p.Send(PongMessage{Type: "pong", ID: msg.ID})
		}

	case "chat":
		// Truncate by runes, not bytes, so the cut cannot mangle a
		// multibyte character.
		text := msg.Text
		if utf8.RuneCountInString(text) > s.cfg.chatMaxLen {
			text = string([]rune(text)[:s.cfg.chatMaxLen])
		}
		s.mu.Lock()
		if !s.ended {
			s.broadcastLocked(ChatMessage{Type: "chat", From: uid, Text: text})
		}
		s.mu.Unlock()

	default:
		if p := s.player(uid); p != nil {
			p.Send(ErrorMessage{Type: "error", Message: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

func (s *Session) player(uid string) *Player {
	for _, p := range s.players {
		if p.UID == uid {
			return p
		}
	}
	return nil
}

func (s *Session) isEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Session) livesLocked() map[string][]any {
	lives := make(map[string][]any, 2)
	for _, p := range s.players {
		lives[p.UID] = []any{p.Name, p.Lives}
	}
	return lives
}

// broadcastLocked pushes an event to both players. Sends are
// best-effort; a dead socket never aborts delivery to the other player.
func (s *Session) broadcastLocked(v any) {
	for _, p := range s.players {
		p.Send(v)
	}
}

func (s *Session) scheduleLocked(d time.Duration, fn func()) {
	s.stopTimerLocked()
	s.timer = time.AfterFunc(d, fn)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
