package tcode

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/wire"
)

type propertyKey struct {
	idx  wire.CommandIndex
	name string
}

// propertyWaiter is shared by every ReadProperty call on the same property.
// done is closed once, by the first update or by the end of the response
// that carried the get. armed is set once the get has left the registry.
type propertyWaiter struct {
	done    chan struct{}
	armed   atomic.Bool
	updated bool
}

func (w *propertyWaiter) release(updated bool) {
	select {
	case <-w.done:
	default:
		w.updated = updated
		close(w.done)
	}
}

// ReadProperty requests a fresh value of a property and waits for it.
//
// The get is scheduled in the registry and flushed with any other pending
// operation as soon as the gate is idle. If the response terminates without
// an update for the property, the device error is returned, or
// ErrNoPropertyUpdate when the request itself succeeded.
func (c *Conn) ReadProperty(ctx context.Context, idx wire.CommandIndex, name string) (registry.Value, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	c.regMu.Lock()
	p, ok := c.reg.Property(idx, name)
	if !ok {
		c.regMu.Unlock()
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownProperty, idx, name)
	}
	p.PendGet()
	key := propertyKey{idx: idx, name: name}
	w, _ := c.waiters.LoadOrStore(key, &propertyWaiter{done: make(chan struct{})})
	c.regMu.Unlock()

	for {
		if err := c.gate.WaitIdle(ctx); err != nil {
			c.forgetWaiter(key, w)
			return nil, err
		}
		sent, err := c.Flush()
		if err != nil {
			c.forgetWaiter(key, w)
			return nil, err
		}
		if sent || !c.hasPendingGet(idx, name) {
			// either this call or a concurrent one carried the get
			break
		}
	}

	select {
	case <-w.done:
	case <-ctx.Done():
		c.forgetWaiter(key, w)
		return nil, ctx.Err()
	}

	if !w.updated {
		if err := c.resultErr(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s.%s", ErrNoPropertyUpdate, idx, name)
	}

	c.regMu.Lock()
	defer c.regMu.Unlock()

	if p, ok = c.reg.Property(idx, name); !ok || !p.HasData() {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoPropertyUpdate, idx, name)
	}

	return p.Value(), nil
}

func (c *Conn) hasPendingGet(idx wire.CommandIndex, name string) bool {
	c.regMu.Lock()
	defer c.regMu.Unlock()

	p, ok := c.reg.Property(idx, name)
	return ok && p.HasPendingOps()
}

// notifyWaiter wakes the readers of a property that was just updated.
// Readers whose get has not been written yet keep waiting: the update
// answers an earlier request.
func (c *Conn) notifyWaiter(key propertyKey) {
	w, ok := c.waiters.Load(key)
	if !ok || !w.armed.Load() {
		return
	}
	c.forgetWaiter(key, w)
	w.release(true)
}

// armWaiters marks the readers whose get was just written. It must be
// called with regMu held, right after the registry was consumed.
func (c *Conn) armWaiters() {
	c.waiters.Range(func(key propertyKey, w *propertyWaiter) bool {
		if w.armed.Load() {
			return true
		}
		if p, ok := c.reg.Property(key.idx, key.name); !ok || !p.HasPendingOps() {
			w.armed.Store(true)
		}
		return true
	})
}

// releaseWaiters wakes the readers left without an update once a response
// ended. With all set, readers whose get was never sent are woken too.
func (c *Conn) releaseWaiters(all bool) {
	c.waiters.Range(func(key propertyKey, w *propertyWaiter) bool {
		if !all && !w.armed.Load() {
			return true
		}
		if w, ok := c.waiters.LoadAndDelete(key); ok {
			w.release(false)
		}
		return true
	})
}

// forgetWaiter removes w if it is still registered for key.
func (c *Conn) forgetWaiter(key propertyKey, w *propertyWaiter) {
	c.waiters.Compute(key, func(old *propertyWaiter, loaded bool) (*propertyWaiter, bool) {
		return old, !loaded || old == w
	})
}
