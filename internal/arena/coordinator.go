package arena

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trophy-arena/internal/domain"
)

// Sender delivers an outbound event to a single connection. Delivery is
// best-effort; the transport owns buffering and drop policy.
type Sender interface {
	Send(connID, msgType string, data interface{})
}

// MatchStore is the persistence gateway surface the coordinator needs:
// a durable, failure-tolerant match record write.
type MatchStore interface {
	PersistMatch(ctx context.Context, record domain.MatchRecord) error
}

// EventPublisher emits match-completed events to downstream consumers.
// Fire-and-forget, never on the critical path.
type EventPublisher interface {
	PublishMatchEvent(event domain.MatchEvent)
}

const persistTimeout = 10 * time.Second

// Coordinator orchestrates pairing, in-session relay, result resolution
// and disconnect teardown. It is the single writer for the matchmaking
// queue and the session table: every entry point takes the one mutex, so
// all mutations are serialized and FIFO relay order per sender is
// preserved by the hub's ordered per-connection channel.
type Coordinator struct {
	mu       sync.Mutex
	queue    *Queue
	sessions *SessionTable

	pairing   PairPolicy
	outcome   OutcomePolicy
	sender    Sender
	store     MatchStore
	publisher EventPublisher
	logger    *slog.Logger
}

// NewCoordinator creates a coordinator with the baseline FIFO pairing
// policy. The publisher may be nil when Kafka is disabled.
func NewCoordinator(
	sender Sender,
	store MatchStore,
	outcome OutcomePolicy,
	publisher EventPublisher,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		queue:     NewQueue(),
		sessions:  NewSessionTable(),
		pairing:   FIFOPolicy{},
		outcome:   outcome,
		sender:    sender,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// SetPairPolicy swaps the pairing policy. Intended for wiring time, not
// for use while events are flowing.
func (c *Coordinator) SetPairPolicy(p PairPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairing = p
}

// JoinQueue enqueues a waiting player, acknowledges the queue position
// and pairs waiting players while the queue holds at least two entries.
// A player who is already inside an active session is rejected.
func (c *Coordinator) JoinQueue(p domain.WaitingPlayer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessions.ContainsConn(p.ConnID) || c.sessions.ContainsPlayer(p.PlayerID) {
		c.logger.Warn("queue.join rejected, player already in session",
			"player_id", p.PlayerID)
		return domain.ErrAlreadyInSession
	}

	position := c.queue.Enqueue(p)
	c.sender.Send(p.ConnID, domain.EventQueueJoined, domain.QueueJoinedPayload{
		Position: position,
	})
	c.logger.Debug("player joined queue",
		"player_id", p.PlayerID, "position", position, "depth", c.queue.Depth())

	for {
		a, b, ok := c.pairing.NextPair(c.queue)
		if !ok {
			break
		}
		c.createSession(a, b)
	}
	return nil
}

// LeaveQueue removes the waiting entry for a connection; no-op when the
// connection is not queued.
func (c *Coordinator) LeaveQueue(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue.RemoveByConn(connID) {
		c.logger.Debug("player left queue", "conn_id", connID, "depth", c.queue.Depth())
	}
}

// createSession pairs two waiting players into a new active session and
// notifies both. Callers hold the coordinator lock, so the session is
// never observable half-formed.
func (c *Coordinator) createSession(a, b domain.WaitingPlayer) {
	session := &domain.Session{
		ID: uuid.New().String(),
		Participants: [2]domain.Participant{
			{PlayerID: a.PlayerID, ConnID: a.ConnID, DisplayName: a.DisplayName, Rating: a.Rating, Stats: a.Stats},
			{PlayerID: b.PlayerID, ConnID: b.ConnID, DisplayName: b.DisplayName, Rating: b.Rating, Stats: b.Stats},
		},
		CreatedAt: time.Now(),
		State:     domain.SessionStateActive,
	}
	c.sessions.Insert(session)

	c.sender.Send(a.ConnID, domain.EventSessionFound, domain.SessionFoundPayload{
		SessionID: session.ID,
		Opponent:  domain.OpponentInfo{DisplayName: b.DisplayName, Rating: b.Rating, Stats: b.Stats},
	})
	c.sender.Send(b.ConnID, domain.EventSessionFound, domain.SessionFoundPayload{
		SessionID: session.ID,
		Opponent:  domain.OpponentInfo{DisplayName: a.DisplayName, Rating: a.Rating, Stats: a.Stats},
	})

	c.logger.Info("session created",
		"session_id", session.ID,
		"player1", a.PlayerID,
		"player2", b.PlayerID,
		"active_sessions", c.sessions.Count())
}

// RelayAction forwards a combat payload verbatim to the sender's
// opponent. Unknown sessions and connections outside the session are
// silently dropped: the match may already have concluded from the
// sender's perspective.
func (c *Coordinator) RelayAction(sessionID, fromConn string, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions.Get(sessionID)
	if !ok {
		return
	}
	opponent, ok := session.Opponent(fromConn)
	if !ok {
		return
	}
	c.sender.Send(opponent.ConnID, domain.EventOpponentAction, domain.OpponentActionPayload{
		Payload: payload,
	})
}

// ReportResult resolves a session into trophy deltas, notifies both
// participants and tears the session down. Unknown session ids are a
// no-op, which makes the first honored report the only one: the session
// is deleted before the lock is released, so duplicate or late reports
// find nothing.
func (c *Coordinator) ReportResult(sessionID, winnerID string, loserRating int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions.Get(sessionID)
	if !ok {
		return
	}

	winner, ok := session.ParticipantByPlayer(winnerID)
	if !ok {
		c.logger.Warn("session.result with unknown winner, ignoring",
			"session_id", sessionID, "winner_id", winnerID)
		return
	}
	loser, _ := session.Opponent(winner.ConnID)

	outcome := c.outcome.ComputeOutcome(loserRating)

	c.sender.Send(winner.ConnID, domain.EventSessionEnded, domain.SessionEndedPayload{
		Won:         true,
		RatingDelta: outcome.WinnerGain,
	})
	c.sender.Send(loser.ConnID, domain.EventSessionEnded, domain.SessionEndedPayload{
		Won:         false,
		RatingDelta: -outcome.LoserLoss,
	})

	session.State = domain.SessionStateConcluded
	c.sessions.Remove(sessionID)

	record := domain.MatchRecord{
		ID:        sessionID,
		Player1ID: session.Participants[0].PlayerID,
		Player2ID: session.Participants[1].PlayerID,
		WinnerID:  winnerID,
		CreatedAt: time.Now(),
	}
	if session.Participants[0].PlayerID == winnerID {
		record.Player1Delta = outcome.WinnerGain
		record.Player2Delta = -outcome.LoserLoss
	} else {
		record.Player1Delta = -outcome.LoserLoss
		record.Player2Delta = outcome.WinnerGain
	}

	// Off the critical path: the notifications above are already out and
	// are never rolled back on a failed write.
	go c.persistMatch(record)

	c.logger.Info("session concluded",
		"session_id", sessionID,
		"winner_id", winnerID,
		"winner_gain", outcome.WinnerGain,
		"loser_loss", outcome.LoserLoss)
}

// persistMatch writes the match record and publishes the match event,
// both best-effort.
func (c *Coordinator) persistMatch(record domain.MatchRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := c.store.PersistMatch(ctx, record); err != nil {
		c.logger.Error("failed to persist match record",
			"match_id", record.ID, "error", err)
	}

	if c.publisher != nil {
		c.publisher.PublishMatchEvent(domain.MatchEvent{
			MatchID:      record.ID,
			Player1ID:    record.Player1ID,
			Player2ID:    record.Player2ID,
			WinnerID:     record.WinnerID,
			Player1Delta: record.Player1Delta,
			Player2Delta: record.Player2Delta,
			Timestamp:    record.CreatedAt,
		})
	}
}

// HandleDisconnect cleans up after a dropped connection: any queue entry
// is removed, and an active session containing the connection is torn
// down immediately with the survivor notified. Disconnect is terminal
// for the session; there is no reconnection window.
func (c *Coordinator) HandleDisconnect(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue.RemoveByConn(connID)

	session, ok := c.sessions.GetByConn(connID)
	if !ok {
		return
	}
	survivor, _ := session.Opponent(connID)
	c.sender.Send(survivor.ConnID, domain.EventOpponentDisconnected, struct{}{})
	c.sessions.Remove(session.ID)

	c.logger.Info("session torn down on disconnect",
		"session_id", session.ID,
		"disconnected_conn", connID,
		"survivor", survivor.PlayerID)
}

// QueueDepth returns the number of waiting players. Diagnostics access
// goes through the coordinator to preserve the single-writer invariant.
func (c *Coordinator) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Depth()
}

// ActiveSessions returns the number of active sessions
func (c *Coordinator) ActiveSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions.Count()
}
