package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trophy-arena/internal/domain"
)

type dispatchCall struct {
	method string
	player domain.WaitingPlayer
	conn   string
	winner string
}

type fakeDispatcher struct {
	calls   []dispatchCall
	joinErr error
}

func (d *fakeDispatcher) JoinQueue(p domain.WaitingPlayer) error {
	d.calls = append(d.calls, dispatchCall{method: "join", player: p})
	return d.joinErr
}

func (d *fakeDispatcher) LeaveQueue(connID string) {
	d.calls = append(d.calls, dispatchCall{method: "leave", conn: connID})
}

func (d *fakeDispatcher) RelayAction(sessionID, fromConn string, payload json.RawMessage) {
	d.calls = append(d.calls, dispatchCall{method: "relay", conn: fromConn})
}

func (d *fakeDispatcher) ReportResult(sessionID, winnerID string, loserRating int) {
	d.calls = append(d.calls, dispatchCall{method: "result", winner: winnerID})
}

func newTestClient(dispatcher Dispatcher) *Client {
	return &Client{
		id:         "conn-1",
		dispatcher: dispatcher,
		send:       make(chan []byte, 8),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// lastError drains the client's send buffer and returns the last error
// envelope, if any.
func lastError(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	var msg Message
	found := false
	for {
		select {
		case raw := <-c.send:
			require.NoError(t, json.Unmarshal(raw, &msg))
			found = msg.Type == domain.EventError
		default:
			return msg, found
		}
	}
}

func TestHandleMessageQueueJoin(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestClient(d)

	c.handleMessage(&ClientMessage{
		Type:        domain.EventQueueJoin,
		PlayerID:    "p1",
		DisplayName: "Phoenix1",
		Rating:      200,
		Stats:       json.RawMessage(`{"wins":3}`),
	})

	require.Len(t, d.calls, 1)
	assert.Equal(t, "join", d.calls[0].method)
	assert.Equal(t, "p1", d.calls[0].player.PlayerID)
	assert.Equal(t, "conn-1", d.calls[0].player.ConnID)
	assert.Equal(t, 200, d.calls[0].player.Rating)
}

func TestHandleMessageQueueJoinMissingFields(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestClient(d)

	c.handleMessage(&ClientMessage{Type: domain.EventQueueJoin, PlayerID: "p1"})

	assert.Empty(t, d.calls)
	_, gotErr := lastError(t, c)
	assert.True(t, gotErr)
}

func TestHandleMessageQueueJoinInvalidStats(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestClient(d)

	c.handleMessage(&ClientMessage{
		Type:        domain.EventQueueJoin,
		PlayerID:    "p1",
		DisplayName: "Phoenix1",
		Stats:       json.RawMessage(`{"wins":`),
	})

	assert.Empty(t, d.calls)
	_, gotErr := lastError(t, c)
	assert.True(t, gotErr)
}

func TestHandleMessageQueueJoinRejectionSurfaced(t *testing.T) {
	d := &fakeDispatcher{joinErr: domain.ErrAlreadyInSession}
	c := newTestClient(d)

	c.handleMessage(&ClientMessage{
		Type:        domain.EventQueueJoin,
		PlayerID:    "p1",
		DisplayName: "Phoenix1",
	})

	require.Len(t, d.calls, 1)
	_, gotErr := lastError(t, c)
	assert.True(t, gotErr)
}

func TestHandleMessageQueueLeave(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestClient(d)

	c.handleMessage(&ClientMessage{Type: domain.EventQueueLeave})

	require.Len(t, d.calls, 1)
	assert.Equal(t, "leave", d.calls[0].method)
	assert.Equal(t, "conn-1", d.calls[0].conn)
}

func TestHandleMessageSessionActionRequiresFields(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestClient(d)

	c.handleMessage(&ClientMessage{Type: domain.EventSessionAction, SessionID: "s1"})
	assert.Empty(t, d.calls)

	c.handleMessage(&ClientMessage{
		Type:      domain.EventSessionAction,
		SessionID: "s1",
		Payload:   json.RawMessage(`{"move":"atk1"}`),
	})
	require.Len(t, d.calls, 1)
	assert.Equal(t, "relay", d.calls[0].method)
}

func TestHandleMessageSessionResultRequiresFields(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestClient(d)

	c.handleMessage(&ClientMessage{Type: domain.EventSessionResult, SessionID: "s1"})
	assert.Empty(t, d.calls)

	c.handleMessage(&ClientMessage{
		Type:        domain.EventSessionResult,
		SessionID:   "s1",
		WinnerID:    "p1",
		LoserRating: 50,
	})
	require.Len(t, d.calls, 1)
	assert.Equal(t, "result", d.calls[0].method)
	assert.Equal(t, "p1", d.calls[0].winner)
}

func TestHandleMessageUnknownTypeIgnored(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestClient(d)

	c.handleMessage(&ClientMessage{Type: "no.such.event"})
	assert.Empty(t, d.calls)
}
