package arena

import (
	"github.com/trophy-arena/internal/domain"
)

// Queue is the ordered waiting list of players seeking an opponent.
// It is not safe for concurrent use: the coordinator owns it exclusively
// and serializes every mutation behind its own lock.
type Queue struct {
	entries []domain.WaitingPlayer
}

// NewQueue creates an empty matchmaking queue
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue inserts the player at the tail and returns the 1-based queue
// position. If an entry for the same player id already exists it is
// removed first, so only the latest snapshot survives a re-queue.
func (q *Queue) Enqueue(p domain.WaitingPlayer) int {
	q.Remove(p.PlayerID)
	q.entries = append(q.entries, p)
	return len(q.entries)
}

// Dequeue removes and returns the head entry. The second return value
// is false when the queue is empty.
func (q *Queue) Dequeue() (domain.WaitingPlayer, bool) {
	if len(q.entries) == 0 {
		return domain.WaitingPlayer{}, false
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	return head, true
}

// Remove deletes the entry for playerID if present; no-op otherwise
func (q *Queue) Remove(playerID string) bool {
	for i, e := range q.entries {
		if e.PlayerID == playerID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveByConn deletes the entry holding connID if present; no-op
// otherwise. Used for explicit leave and disconnect cleanup, which are
// connection-scoped events.
func (q *Queue) RemoveByConn(connID string) bool {
	for i, e := range q.entries {
		if e.ConnID == connID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether playerID has an entry in the queue
func (q *Queue) Contains(playerID string) bool {
	for _, e := range q.entries {
		if e.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Position returns the 1-based position of playerID, or 0 if absent
func (q *Queue) Position(playerID string) int {
	for i, e := range q.entries {
		if e.PlayerID == playerID {
			return i + 1
		}
	}
	return 0
}

// Depth returns the number of waiting players
func (q *Queue) Depth() int {
	return len(q.entries)
}

// PairPolicy selects the next pair of waiting players to match.
// The baseline policy is plain FIFO; rating-proximity matching can be
// substituted here without touching the coordinator.
type PairPolicy interface {
	NextPair(q *Queue) (domain.WaitingPlayer, domain.WaitingPlayer, bool)
}

// FIFOPolicy pairs the two longest-waiting players
type FIFOPolicy struct{}

// NextPair dequeues the two head entries when the queue holds at least
// two players.
func (FIFOPolicy) NextPair(q *Queue) (domain.WaitingPlayer, domain.WaitingPlayer, bool) {
	if q.Depth() < 2 {
		return domain.WaitingPlayer{}, domain.WaitingPlayer{}, false
	}
	a, _ := q.Dequeue()
	b, _ := q.Dequeue()
	return a, b, true
}
