package room

import (
	"context"
	"sync"
)

// readinessGate is a broadcast wakeup signal, the channel-based stand-in
// for asyncio.Condition's notify_all: every waiter blocks on the current
// channel; broadcast closes it (waking everyone) and installs a fresh one
// for the next round.
type readinessGate struct {
	mu sync.Mutex
	ch chan struct{}
}

func newReadinessGate() *readinessGate {
	return &readinessGate{ch: make(chan struct{})}
}

// wait blocks until the next broadcast or ctx is done.
func (g *readinessGate) wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// broadcast wakes every current waiter.
func (g *readinessGate) broadcast() {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.ch)
	g.ch = make(chan struct{})
}
