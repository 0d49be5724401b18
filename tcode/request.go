package tcode

import (
	"context"
	"fmt"

	"github.com/sevfate/go-tcode/wire"
)

// BeginRequest starts building a request. It panics when a request is
// already being built or its response is still pending.
func (c *Conn) BeginRequest() {
	if !c.gate.ToBuilding() {
		panic("tcode: BeginRequest while a request is " + c.gate.Get().String())
	}
	c.currentWriter().Begin()
}

// EndRequest terminates and sends the request built since BeginRequest,
// then marks its response pending. It panics without a matching
// BeginRequest.
//
// When the request cannot be written the gate returns to idle, since no
// response will follow, and the error is returned.
func (c *Conn) EndRequest() error {
	if !c.gate.ToPending() {
		panic("tcode: EndRequest without BeginRequest")
	}

	w := c.currentWriter()
	records := w.Records()
	if err := w.End(); err != nil {
		c.metrics.incRequestErrCount()
		c.gate.ToIdle()
		if c.IsConnected() {
			c.logger.Error("failed to send request", "records", records, "error", err)
			go c.teardown(err)
		}

		return fmt.Errorf("send request: %w", err)
	}
	c.metrics.incRequestSendCount()

	return nil
}

// IsResponsePending reports whether a sent request still awaits its
// response.
func (c *Conn) IsResponsePending() bool {
	return c.gate.IsPending()
}

// RequestState returns the state of the request gate.
func (c *Conn) RequestState() RequestState {
	return c.gate.Get()
}

// WaitPendingResponse blocks until no response is pending or ctx is done.
func (c *Conn) WaitPendingResponse(ctx context.Context) error {
	return c.gate.WaitNotPending(ctx)
}

// writer returns the request writer, panicking outside a request.
func (c *Conn) writer() *wire.RequestWriter {
	if !c.gate.IsBuilding() {
		panic("tcode: request record outside BeginRequest/EndRequest")
	}
	return c.currentWriter()
}

// SendCall adds a bare call of idx to the current request.
func (c *Conn) SendCall(idx wire.CommandIndex) {
	c.writer().Call(idx)
}

// SendAxisUpdate adds a plain axis update.
func (c *Conn) SendAxisUpdate(idx wire.CommandIndex, v wire.Fractional) {
	c.writer().AxisUpdate(idx, v)
}

// SendAxisIntervalUpdate adds an axis update reaching v after ms.
func (c *Conn) SendAxisIntervalUpdate(idx wire.CommandIndex, v wire.Fractional, ms uint32) {
	c.writer().AxisIntervalUpdate(idx, v, ms)
}

// SendAxisSpeedUpdate adds an axis update moving toward v at speed.
func (c *Conn) SendAxisSpeedUpdate(idx wire.CommandIndex, v wire.Fractional, speed uint32) {
	c.writer().AxisSpeedUpdate(idx, v, speed)
}

// SendStop adds a stop of idx.
func (c *Conn) SendStop(idx wire.CommandIndex) {
	c.writer().Stop(idx)
}

// SendStopAll adds a global stop.
func (c *Conn) SendStopAll() {
	c.writer().StopAll()
}

// SendPropertyGet adds a read of a property.
func (c *Conn) SendPropertyGet(idx wire.CommandIndex, name string) {
	c.writer().PropertyGet(idx, name)
}

// SendPropertyInterval adds a change of a property's update interval.
func (c *Conn) SendPropertyInterval(idx wire.CommandIndex, name string, ms uint32) {
	c.writer().PropertyInterval(idx, name, ms)
}

// SendPropertySet adds a write of a property's encoded value.
func (c *Conn) SendPropertySet(idx wire.CommandIndex, name string, data []byte, null byte) {
	c.writer().PropertySet(idx, name, data, null)
}

// FlushPending writes every operation scheduled in the registry into the
// current request, beginning one if none is being built. It reports
// whether a request is now being built, in which case the caller must call
// EndRequest. It panics while a response is pending.
//
// FlushPending locks the registry itself.
func (c *Conn) FlushPending() bool {
	if c.gate.IsPending() {
		panic("tcode: FlushPending while a response is pending")
	}
	building := c.gate.IsBuilding()

	c.regMu.Lock()
	defer c.regMu.Unlock()

	began := false
	_, err := c.reg.ConsumePendingOps(c.currentWriter(), func() {
		if !building {
			c.BeginRequest()
			began = true
		}
	})
	if err != nil {
		c.logger.Warn("failed to encode pending operation", "error", err)
	}
	c.armWaiters()

	return building || began
}

// Flush sends every scheduled operation as one request when the gate is
// idle. It reports whether a request was sent; false means there was
// nothing to send or another request is in progress.
func (c *Conn) Flush() (bool, error) {
	if !c.gate.ToBuilding() {
		return false, nil
	}
	c.currentWriter().Begin()

	c.regMu.Lock()
	sent, err := c.reg.ConsumePendingOps(c.currentWriter(), nil)
	c.armWaiters()
	c.regMu.Unlock()
	if err != nil {
		c.logger.Warn("failed to encode pending operation", "error", err)
	}

	if !sent {
		c.gate.ToIdle()
		return false, nil
	}

	return true, c.EndRequest()
}

// Send waits until the gate is idle, builds one request with build and
// sends it.
func (c *Conn) Send(ctx context.Context, build func(c *Conn)) error {
	for {
		if err := c.gate.WaitIdle(ctx); err != nil {
			return err
		}
		if !c.IsConnected() {
			return ErrNotConnected
		}
		if c.gate.ToBuilding() {
			break
		}
	}
	c.currentWriter().Begin()
	build(c)

	return c.EndRequest()
}

// Enumerate requests device info, protocol info and the endpoint
// enumeration in one request.
func (c *Conn) Enumerate(ctx context.Context) error {
	return c.Send(ctx, func(c *Conn) {
		c.SendCall(wire.DeviceInfo)
		c.SendCall(wire.DeviceProtocol)
		c.SendCall(wire.DeviceEnumeration)
	})
}

// SyncEnumerate sends the enumeration request and waits for its response.
// It returns the device error of the response, if any.
func (c *Conn) SyncEnumerate(ctx context.Context) error {
	return c.SyncSend(ctx, func(c *Conn) {
		c.SendCall(wire.DeviceInfo)
		c.SendCall(wire.DeviceProtocol)
		c.SendCall(wire.DeviceEnumeration)
	})
}

// SyncSend is Send followed by waiting for the response. It returns the
// response's device error, or ErrConnLost when the transport went away.
func (c *Conn) SyncSend(ctx context.Context, build func(c *Conn)) error {
	c.lastResult.Store(nil)
	if err := c.Send(ctx, build); err != nil {
		return err
	}
	if err := c.WaitPendingResponse(ctx); err != nil {
		return err
	}

	return c.resultErr()
}

// resultErr converts the last terminator into an error.
func (c *Conn) resultErr() error {
	res := c.lastResult.Load()
	if res == nil || res.lost {
		return ErrConnLost
	}

	return res.err.Err()
}
