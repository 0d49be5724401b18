package tcode

import (
	"context"
	"sync"
)

// RequestState is the state of the request gate. At most one request may be
// in flight: a request is built, sent, and its response must arrive before
// the next one begins.
type RequestState uint32

const (
	// RequestIdle means no request is being built or awaiting a response.
	RequestIdle RequestState = iota
	// RequestBuilding means records are being added to a request.
	RequestBuilding
	// RequestPending means a request was sent and its response is awaited.
	RequestPending
)

func (st RequestState) String() string {
	switch st {
	case RequestIdle:
		return "idle"
	case RequestBuilding:
		return "building"
	case RequestPending:
		return "pending"
	default:
		return "unknown"
	}
}

// requestGate tracks the request state and wakes waiters whenever the gate
// returns to idle.
type requestGate struct {
	mu    sync.Mutex
	state RequestState
	idle  chan struct{} // closed while state is RequestIdle
}

func newRequestGate() *requestGate {
	g := &requestGate{idle: make(chan struct{})}
	close(g.idle)
	return g
}

func (g *requestGate) Get() RequestState {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.state
}

func (g *requestGate) IsIdle() bool     { return g.Get() == RequestIdle }
func (g *requestGate) IsBuilding() bool { return g.Get() == RequestBuilding }
func (g *requestGate) IsPending() bool  { return g.Get() == RequestPending }

// ToBuilding moves idle to building.
func (g *requestGate) ToBuilding() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != RequestIdle {
		return false
	}
	g.state = RequestBuilding
	g.idle = make(chan struct{})

	return true
}

// ToPending moves building to pending.
func (g *requestGate) ToPending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != RequestBuilding {
		return false
	}
	g.state = RequestPending

	return true
}

// ToIdle moves any state to idle and returns the previous state.
func (g *requestGate) ToIdle() RequestState {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev := g.state
	if prev != RequestIdle {
		g.state = RequestIdle
		close(g.idle)
	}

	return prev
}

// CompleteResponse moves pending to idle.
func (g *requestGate) CompleteResponse() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != RequestPending {
		return false
	}
	g.state = RequestIdle
	close(g.idle)

	return true
}

// WaitNotPending blocks while a response is pending.
func (g *requestGate) WaitNotPending(ctx context.Context) error {
	return g.wait(ctx, func(st RequestState) bool { return st != RequestPending })
}

// WaitIdle blocks until the gate is idle.
func (g *requestGate) WaitIdle(ctx context.Context) error {
	return g.wait(ctx, func(st RequestState) bool { return st == RequestIdle })
}

func (g *requestGate) wait(ctx context.Context, done func(RequestState) bool) error {
	for {
		g.mu.Lock()
		st, ch := g.state, g.idle
		g.mu.Unlock()

		if done(st) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
