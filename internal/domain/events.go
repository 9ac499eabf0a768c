package domain

import "encoding/json"

// Inbound event types (client -> core)
const (
	EventQueueJoin     = "queue.join"
	EventQueueLeave    = "queue.leave"
	EventSessionAction = "session.action"
	EventSessionResult = "session.result"
)

// Outbound event types (core -> client)
const (
	EventQueueJoined          = "queue.joined"
	EventSessionFound         = "session.found"
	EventOpponentAction       = "session.opponent_action"
	EventSessionEnded         = "session.ended"
	EventOpponentDisconnected = "session.opponent_disconnected"
	EventError                = "error"
)

// QueueJoinedPayload acknowledges a queue.join with the 1-based position
type QueueJoinedPayload struct {
	Position int `json:"position"`
}

// OpponentInfo is the subset of the opponent's snapshot shared with a
// client when a match is found: enough for client-side combat
// simulation, nothing more.
type OpponentInfo struct {
	DisplayName string          `json:"display_name"`
	Rating      int             `json:"rating"`
	Stats       json.RawMessage `json:"stats,omitempty"`
}

// SessionFoundPayload notifies both participants of a new session
type SessionFoundPayload struct {
	SessionID string       `json:"session_id"`
	Opponent  OpponentInfo `json:"opponent"`
}

// OpponentActionPayload carries a relayed combat action, verbatim
type OpponentActionPayload struct {
	Payload json.RawMessage `json:"payload"`
}

// SessionEndedPayload carries each participant's outcome. RatingDelta is
// positive for the winner and negative for the loser.
type SessionEndedPayload struct {
	Won         bool `json:"won"`
	RatingDelta int  `json:"rating_delta"`
}
