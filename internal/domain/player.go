package domain

import (
	"encoding/json"
	"time"
)

// Player represents a player profile in the system
type Player struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Trophies    int       `json:"trophies"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WaitingPlayer is a queue entry for a player seeking an opponent.
// Rating and stats are snapshots captured at queue time; they are never
// re-read from persistence while a match is in flight.
type WaitingPlayer struct {
	PlayerID    string          `json:"player_id"`
	ConnID      string          `json:"-"`
	DisplayName string          `json:"display_name"`
	Rating      int             `json:"rating"`
	Stats       json.RawMessage `json:"stats,omitempty"`
}

// Participant is one side of an active session. Symmetric with the other
// participant; there is no host.
type Participant struct {
	PlayerID    string          `json:"player_id"`
	ConnID      string          `json:"-"`
	DisplayName string          `json:"display_name"`
	Rating      int             `json:"rating"`
	Stats       json.RawMessage `json:"stats,omitempty"`
}
