package arena

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trophy-arena/internal/domain"
)

type sentMessage struct {
	Type string
	Data interface{}
}

// fakeSender records every outbound event per connection
type fakeSender struct {
	mu       sync.Mutex
	messages map[string][]sentMessage
}

func newFakeSender() *fakeSender {
	return &fakeSender{messages: make(map[string][]sentMessage)}
}

func (s *fakeSender) Send(connID, msgType string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[connID] = append(s.messages[connID], sentMessage{Type: msgType, Data: data})
}

func (s *fakeSender) sent(connID string) []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentMessage, len(s.messages[connID]))
	copy(out, s.messages[connID])
	return out
}

func (s *fakeSender) last(connID string) (sentMessage, bool) {
	msgs := s.sent(connID)
	if len(msgs) == 0 {
		return sentMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

// fakeStore captures persisted match records on a channel so tests can
// wait for the asynchronous write.
type fakeStore struct {
	records chan domain.MatchRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(chan domain.MatchRecord, 8)}
}

func (s *fakeStore) PersistMatch(_ context.Context, record domain.MatchRecord) error {
	s.records <- record
	return nil
}

func (s *fakeStore) wait(t *testing.T) domain.MatchRecord {
	t.Helper()
	select {
	case record := <-s.records:
		return record
	case <-time.After(2 * time.Second):
		t.Fatal("no match record persisted")
		return domain.MatchRecord{}
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.MatchEvent
}

func (p *fakePublisher) PublishMatchEvent(event domain.MatchEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// fixedOutcome removes randomness from conclusion tests
type fixedOutcome struct {
	gain int
	loss int
}

func (o fixedOutcome) ComputeOutcome(int) domain.Outcome {
	return domain.Outcome{WinnerGain: o.gain, LoserLoss: o.loss}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeSender, *fakeStore) {
	t.Helper()
	sender := newFakeSender()
	store := newFakeStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewCoordinator(sender, store, fixedOutcome{gain: 20, loss: 7}, nil, logger)
	return c, sender, store
}

func TestJoinQueueAcksPosition(t *testing.T) {
	c, sender, _ := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))

	msg, ok := sender.last("c1")
	require.True(t, ok)
	assert.Equal(t, domain.EventQueueJoined, msg.Type)
	assert.Equal(t, domain.QueueJoinedPayload{Position: 1}, msg.Data)
	assert.Equal(t, 1, c.QueueDepth())
	assert.Equal(t, 0, c.ActiveSessions())
}

func TestTwoJoinsCreateSession(t *testing.T) {
	c, sender, _ := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p2", "c2", 200)))

	assert.Equal(t, 0, c.QueueDepth())
	assert.Equal(t, 1, c.ActiveSessions())

	m1, ok := sender.last("c1")
	require.True(t, ok)
	require.Equal(t, domain.EventSessionFound, m1.Type)
	found1 := m1.Data.(domain.SessionFoundPayload)
	assert.NotEmpty(t, found1.SessionID)
	assert.Equal(t, "name-p2", found1.Opponent.DisplayName)
	assert.Equal(t, 200, found1.Opponent.Rating)

	m2, ok := sender.last("c2")
	require.True(t, ok)
	require.Equal(t, domain.EventSessionFound, m2.Type)
	found2 := m2.Data.(domain.SessionFoundPayload)
	assert.Equal(t, found1.SessionID, found2.SessionID)
	assert.Equal(t, "name-p1", found2.Opponent.DisplayName)
}

func TestThirdJoinWaits(t *testing.T) {
	c, sender, _ := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p2", "c2", 200)))
	require.NoError(t, c.JoinQueue(waiting("p3", "c3", 300)))

	assert.Equal(t, 1, c.QueueDepth())
	assert.Equal(t, 1, c.ActiveSessions())

	msg, ok := sender.last("c3")
	require.True(t, ok)
	assert.Equal(t, domain.EventQueueJoined, msg.Type)
}

func TestJoinQueueRejectedWhileInSession(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p2", "c2", 200)))

	err := c.JoinQueue(waiting("p1", "c1", 100))
	assert.ErrorIs(t, err, domain.ErrAlreadyInSession)
	assert.Equal(t, 0, c.QueueDepth())
}

func TestRequeueDoesNotSelfPair(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 120)))

	assert.Equal(t, 1, c.QueueDepth())
	assert.Equal(t, 0, c.ActiveSessions())
}

func TestLeaveQueue(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	c.LeaveQueue("c1")
	assert.Equal(t, 0, c.QueueDepth())

	// Leaving while not queued is a no-op
	c.LeaveQueue("c1")
}

func TestRelayActionForwardsToOpponent(t *testing.T) {
	c, sender, _ := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p2", "c2", 200)))
	m, _ := sender.last("c1")
	sessionID := m.Data.(domain.SessionFoundPayload).SessionID

	payload := json.RawMessage(`{"move":"attack","damage":12}`)
	c.RelayAction(sessionID, "c1", payload)

	m2, ok := sender.last("c2")
	require.True(t, ok)
	require.Equal(t, domain.EventOpponentAction, m2.Type)
	assert.Equal(t, payload, m2.Data.(domain.OpponentActionPayload).Payload)

	// The sender's own stream gets nothing back
	m1, _ := sender.last("c1")
	assert.Equal(t, domain.EventSessionFound, m1.Type)
}

func TestRelayActionPreservesSenderOrder(t *testing.T) {
	c, sender, _ := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p2", "c2", 200)))
	m, _ := sender.last("c1")
	sessionID := m.Data.(domain.SessionFoundPayload).SessionID

	payloads := []json.RawMessage{
		json.RawMessage(`{"move":"atk1"}`),
		json.RawMessage(`{"move":"atk2"}`),
		json.RawMessage(`{"move":"block"}`),
		json.RawMessage(`{"move":"atk3"}`),
	}
	for _, p := range payloads {
		c.RelayAction(sessionID, "c1", p)
	}

	var relayed []json.RawMessage
	for _, msg := range sender.sent("c2") {
		if msg.Type == domain.EventOpponentAction {
			relayed = append(relayed, msg.Data.(domain.OpponentActionPayload).Payload)
		}
	}
	require.Len(t, relayed, len(payloads))
	for i, p := range payloads {
		assert.Equal(t, p, relayed[i])
	}
}

func TestRelayActionDropsUnknownSession(t *testing.T) {
	c, sender, _ := newTestCoordinator(t)

	c.RelayAction("no-such-session", "c1", json.RawMessage(`{}`))
	assert.Empty(t, sender.sent("c1"))
}

func TestRelayActionDropsOutsideConnection(t *testing.T) {
	c, sender, _ := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p2", "c2", 200)))
	m, _ := sender.last("c1")
	sessionID := m.Data.(domain.SessionFoundPayload).SessionID

	before1 := len(sender.sent("c1"))
	before2 := len(sender.sent("c2"))
	c.RelayAction(sessionID, "c99", json.RawMessage(`{}`))
	assert.Len(t, sender.sent("c1"), before1)
	assert.Len(t, sender.sent("c2"), before2)
}

func TestReportResultResolvesSession(t *testing.T) {
	c, sender, store := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p2", "c2", 200)))
	m, _ := sender.last("c1")
	sessionID := m.Data.(domain.SessionFoundPayload).SessionID

	c.ReportResult(sessionID, "p2", 100)

	winner, ok := sender.last("c2")
	require.True(t, ok)
	require.Equal(t, domain.EventSessionEnded, winner.Type)
	assert.Equal(t, domain.SessionEndedPayload{Won: true, RatingDelta: 20}, winner.Data)

	loser, ok := sender.last("c1")
	require.True(t, ok)
	require.Equal(t, domain.EventSessionEnded, loser.Type)
	assert.Equal(t, domain.SessionEndedPayload{Won: false, RatingDelta: -7}, loser.Data)

	assert.Equal(t, 0, c.ActiveSessions())

	record := store.wait(t)
	assert.Equal(t, sessionID, record.ID)
	assert.Equal(t, "p1", record.Player1ID)
	assert.Equal(t, "p2", record.Player2ID)
	assert.Equal(t, "p2", record.WinnerID)
	assert.Equal(t, -7, record.Player1Delta)
	assert.Equal(t, 20, record.Player2Delta)
}

func TestReportResultIdempotent(t *testing.T) {
	c, sender, store := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p2", "c2", 200)))
	m, _ := sender.last("c1")
	sessionID := m.Data.(domain.SessionFoundPayload).SessionID

	c.ReportResult(sessionID, "p1", 200)
	store.wait(t)

	before1 := len(sender.sent("c1"))
	before2 := len(sender.sent("c2"))

	// The duplicate and the conflicting late report both find nothing
	c.ReportResult(sessionID, "p1", 200)
	c.ReportResult(sessionID, "p2", 100)

	assert.Len(t, sender.sent("c1"), before1)
	assert.Len(t, sender.sent("c2"), before2)

	select {
	case record := <-store.records:
		t.Fatalf("unexpected second persist: %+v", record)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReportResultUnknownWinnerIgnored(t *testing.T) {
	c, sender, _ := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p2", "c2", 200)))
	m, _ := sender.last("c1")
	sessionID := m.Data.(domain.SessionFoundPayload).SessionID

	c.ReportResult(sessionID, "p99", 100)

	// Session stays active and can still be resolved properly
	assert.Equal(t, 1, c.ActiveSessions())
	c.ReportResult(sessionID, "p1", 200)
	assert.Equal(t, 0, c.ActiveSessions())
}

func TestRelayAfterConcludeDropped(t *testing.T) {
	c, sender, store := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p2", "c2", 200)))
	m, _ := sender.last("c1")
	sessionID := m.Data.(domain.SessionFoundPayload).SessionID

	c.ReportResult(sessionID, "p1", 200)
	store.wait(t)

	before := len(sender.sent("c2"))
	c.RelayAction(sessionID, "c1", json.RawMessage(`{"move":"late"}`))
	assert.Len(t, sender.sent("c2"), before)
}

func TestDisconnectRemovesQueueEntry(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	c.HandleDisconnect("c1")
	assert.Equal(t, 0, c.QueueDepth())
}

func TestDisconnectTearsDownSession(t *testing.T) {
	c, sender, _ := newTestCoordinator(t)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p2", "c2", 200)))

	c.HandleDisconnect("c1")

	survivor, ok := sender.last("c2")
	require.True(t, ok)
	assert.Equal(t, domain.EventOpponentDisconnected, survivor.Type)
	assert.Equal(t, 0, c.ActiveSessions())

	// A result reported for the dead session is ignored
	before := len(sender.sent("c2"))
	c.ReportResult("gone", "p2", 100)
	assert.Len(t, sender.sent("c2"), before)
}

func TestDisconnectUnknownConnection(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	// Neither queued nor in a session
	c.HandleDisconnect("c9")
	assert.Equal(t, 0, c.QueueDepth())
	assert.Equal(t, 0, c.ActiveSessions())
}

func TestPublisherReceivesMatchEvent(t *testing.T) {
	sender := newFakeSender()
	store := newFakeStore()
	publisher := &fakePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewCoordinator(sender, store, fixedOutcome{gain: 18, loss: 5}, publisher, logger)

	require.NoError(t, c.JoinQueue(waiting("p1", "c1", 100)))
	require.NoError(t, c.JoinQueue(waiting("p2", "c2", 200)))
	m, _ := sender.last("c1")
	sessionID := m.Data.(domain.SessionFoundPayload).SessionID

	c.ReportResult(sessionID, "p1", 50)
	store.wait(t)

	require.Eventually(t, func() bool {
		publisher.mu.Lock()
		defer publisher.mu.Unlock()
		return len(publisher.events) == 1
	}, 2*time.Second, 10*time.Millisecond)

	publisher.mu.Lock()
	event := publisher.events[0]
	publisher.mu.Unlock()
	assert.Equal(t, sessionID, event.MatchID)
	assert.Equal(t, "p1", event.WinnerID)
	assert.Equal(t, 18, event.Player1Delta)
	assert.Equal(t, -5, event.Player2Delta)
}
