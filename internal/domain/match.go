package domain

import (
	"encoding/json"
	"time"
)

// SessionState represents the lifecycle state of a match session
type SessionState string

const (
	SessionStateActive    SessionState = "active"
	SessionStateConcluded SessionState = "concluded"
)

// Session is a live two-player matchup. It is created atomically at
// pairing time and removed from the session table immediately on
// conclusion or on either participant's disconnect.
type Session struct {
	ID           string         `json:"id"`
	Participants [2]Participant `json:"participants"`
	CreatedAt    time.Time      `json:"created_at"`
	State        SessionState   `json:"state"`
}

// Opponent returns the participant whose connection is not connID, and
// whether connID belongs to the session at all.
func (s *Session) Opponent(connID string) (Participant, bool) {
	if s.Participants[0].ConnID == connID {
		return s.Participants[1], true
	}
	if s.Participants[1].ConnID == connID {
		return s.Participants[0], true
	}
	return Participant{}, false
}

// ParticipantByPlayer returns the participant with the given player id.
func (s *Session) ParticipantByPlayer(playerID string) (Participant, bool) {
	if s.Participants[0].PlayerID == playerID {
		return s.Participants[0], true
	}
	if s.Participants[1].PlayerID == playerID {
		return s.Participants[1], true
	}
	return Participant{}, false
}

// MatchRecord is the durable record of a concluded match
type MatchRecord struct {
	ID           string    `json:"id"`
	Player1ID    string    `json:"player1_id"`
	Player2ID    string    `json:"player2_id"`
	WinnerID     string    `json:"winner_id"`
	Player1Delta int       `json:"player1_delta"`
	Player2Delta int       `json:"player2_delta"`
	CreatedAt    time.Time `json:"created_at"`
}

// Outcome is the trophy adjustment computed for a concluded match.
// LoserLoss is a positive magnitude; it is reported to the loser as a
// negative delta.
type Outcome struct {
	WinnerGain int `json:"winner_gain"`
	LoserLoss  int `json:"loser_loss"`
}

// RatingUpdateRequest is the body of the client-facing stats endpoint
type RatingUpdateRequest struct {
	Delta int `json:"delta"`
}

// ArenaStats is a diagnostics snapshot of the matchmaking core
type ArenaStats struct {
	QueueDepth     int `json:"queue_depth"`
	ActiveSessions int `json:"active_sessions"`
	Connections    int `json:"connections"`
}

// LeaderboardEntry represents a single entry in the trophy leaderboard
type LeaderboardEntry struct {
	Rank        int64  `json:"rank"`
	PlayerID    string `json:"player_id"`
	Trophies    int64  `json:"trophies"`
	DisplayName string `json:"display_name,omitempty"`
}

// MatchEvent is the message published to Kafka when a match concludes
type MatchEvent struct {
	MatchID      string    `json:"match_id"`
	Player1ID    string    `json:"player1_id"`
	Player2ID    string    `json:"player2_id"`
	WinnerID     string    `json:"winner_id"`
	Player1Delta int       `json:"player1_delta"`
	Player2Delta int       `json:"player2_delta"`
	Timestamp    time.Time `json:"timestamp"`
}

// ValidStats reports whether a stats snapshot is empty or well-formed
// JSON. The blob is opaque to the core and echoed verbatim to the
// opponent; only its framing is checked at the boundary.
func ValidStats(stats json.RawMessage) bool {
	if len(stats) == 0 {
		return true
	}
	return json.Valid(stats)
}
