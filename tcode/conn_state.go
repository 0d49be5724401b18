package tcode

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sevfate/go-tcode/logger"
)

// ConnState is the transport state of a connection.
type ConnState uint32

const (
	// DisconnectedState means no transport is open. Reconnection is always
	// an explicit Connect call.
	DisconnectedState ConnState = iota
	// ConnectingState means the transport is being opened.
	ConnectingState
	// ConnectedState means the transport is open and the reader is running.
	ConnectedState
	// DisconnectingState means the transport is being torn down.
	DisconnectingState
)

func (cs ConnState) IsDisconnected() bool { return cs == DisconnectedState }
func (cs ConnState) IsConnected() bool    { return cs == ConnectedState }

func (cs ConnState) String() string {
	switch cs {
	case DisconnectedState:
		return "disconnected"
	case ConnectingState:
		return "connecting"
	case ConnectedState:
		return "connected"
	case DisconnectingState:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// ConnStateChangeHandler is invoked on every state transition.
//
// Note: handlers run synchronously on the goroutine making the transition.
type ConnStateChangeHandler func(c *Conn, prevState ConnState, newState ConnState)

// connStateMgr serializes state transitions and notifies handlers.
type connStateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	conn     *Conn
	logger   logger.Logger
	handlers []ConnStateChangeHandler
}

func newConnStateMgr(conn *Conn, l logger.Logger) *connStateMgr {
	mgr := &connStateMgr{conn: conn, logger: l}
	mgr.cond = sync.NewCond(&mgr.mu)
	mgr.state.Store(uint32(DisconnectedState))

	return mgr
}

func (cs *connStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

func (cs *connStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.handlers = append(cs.handlers, handlers...)
}

// WaitState blocks until the state equals state or ctx is done.
func (cs *connStateMgr) WaitState(ctx context.Context, state ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.State() == state {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		cs.cond.Broadcast()
	})
	defer stop()

	for cs.State() != state {
		if err := ctx.Err(); err != nil {
			return err
		}
		cs.cond.Wait()
	}

	return nil
}

// transition moves from one of the allowed states to next.
func (cs *connStateMgr) transition(next ConnState, from ...ConnState) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cur := cs.State()
	allowed := false
	for _, st := range from {
		if st == cur {
			allowed = true
			break
		}
	}
	if !allowed {
		cs.logger.Debug("state transition refused", "from", cur, "to", next)
		return false
	}

	cs.state.Store(uint32(next))
	cs.cond.Broadcast()
	for _, h := range cs.handlers {
		h(cs.conn, cur, next)
	}

	return true
}

func (cs *connStateMgr) ToConnecting() bool {
	return cs.transition(ConnectingState, DisconnectedState)
}

func (cs *connStateMgr) ToConnected() bool {
	return cs.transition(ConnectedState, ConnectingState)
}

func (cs *connStateMgr) ToDisconnecting() bool {
	return cs.transition(DisconnectingState, ConnectingState, ConnectedState)
}

func (cs *connStateMgr) ToDisconnected() bool {
	return cs.transition(DisconnectedState, ConnectingState, DisconnectingState)
}
