package player

import (
	"sync"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
)

// maxQueuedMoves bounds the move queue. The original is unbounded; this
// port caps it and drops the oldest entry on overflow, as the spec
// explicitly permits (resolved open question: move-queue bound).
const maxQueuedMoves = 16

// movePair is one (previous, current) move request.
type movePair struct {
	Previous gamemap.Point
	Current  gamemap.Point
}

// moveQueue is a small FIFO guarded by a mutex: enqueued by the player's
// inbound reader goroutine, drained by the tick loop at one entry per turn.
type moveQueue struct {
	mu    sync.Mutex
	items []movePair
}

func (q *moveQueue) Enqueue(prev, current gamemap.Point) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, movePair{Previous: prev, Current: current})
	if len(q.items) > maxQueuedMoves {
		q.items = q.items[len(q.items)-maxQueuedMoves:]
	}
}

// Dequeue pops the oldest entry, non-blocking. ok is false when empty.
func (q *moveQueue) Dequeue() (pair movePair, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return movePair{}, false
	}
	pair, q.items = q.items[0], q.items[1:]
	return pair, true
}

func (q *moveQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
