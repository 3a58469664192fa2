/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

// Match-end reasons carried in the `end` event.
const (
	ReasonNoMoreQuestions = "no_more_questions"
	ReasonLifeZero        = "life_zero"
	ReasonOpponentLeft    = "opponent_left"
)

// ClientMessage is every message a client may send over the socket.
// Unused fields stay at their zero value depending on Type.
type ClientMessage struct {
	Type   string `json:"type"`             // "answer", "quit", "ping", "chat"
	Choice *int   `json:"choice,omitempty"` // answer
	ID     any    `json:"id,omitempty"`     // ping
	Text   string `json:"text,omitempty"`   // chat
}

// GameEvent is the envelope for all session lifecycle events.
type GameEvent struct {
	Type    string `json:"type"` // always "game"
	Message string `json:"message"`
	Extra   any    `json:"extra"`
}

func gameEvent(message string, extra any) GameEvent {
	return GameEvent{Type: "game", Message: message, Extra: extra}
}

// PublicProfile is the opponent-visible slice of a player.
type PublicProfile struct {
	UID     string `json:"uid"`
	Name    string `json:"name"`
	Rating  int    `json:"elo"`
	Country string `json:"country"`
	Kind    string `json:"type"`
}

type FoundExtra struct {
	SessionID string `json:"session_id"`
}

// Lives maps uid -> [display name, remaining lives].
type StartExtra struct {
	Players []PublicProfile  `json:"players"`
	Lives   map[string][]any `json:"lives"`
}

type QuestionExtra struct {
	Index           int      `json:"index"`
	Question        string   `json:"question"`
	Choices         []string `json:"choices"`
	QuestionTimeout int      `json:"question_timeout"` // seconds
}

type RevealExtra struct {
	Correct int              `json:"correct"`
	Answers map[string]*int  `json:"answers"` // nil choice = no answer
	Lives   map[string][]any `json:"lives"`
}

type RoundRecord struct {
	Question string          `json:"question"`
	Choices  []string        `json:"choices"`
	Correct  int             `json:"correct"`
	Results  map[string]bool `json:"results"` // uid -> answered correctly
}

type EndExtra struct {
	Winner    *string       `json:"winner"` // nil on a tie
	Reason    string        `json:"reason"`
	EloDelta  []int         `json:"elo_delta"` // [winner delta, loser delta]
	Questions []RoundRecord `json:"questions"`
}

type PongMessage struct {
	Type string `json:"type"` // "pong"
	ID   any    `json:"id"`
}

type ChatMessage struct {
	Type string `json:"type"` // "chat"
	From string `json:"from"`
	Text string `json:"text"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
