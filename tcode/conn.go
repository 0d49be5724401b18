package tcode

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/sevfate/go-tcode/logger"
	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/wire"
)

// requestResult is the outcome of the last request.
type requestResult struct {
	err  wire.Error
	lost bool
}

// link is the state of one open transport.
type link struct {
	target string
	trans  io.ReadWriteCloser
	writer *wire.RequestWriter
	tracer PacketTracer
}

// Conn is a host side T-Code connection. It owns the transport, the reader
// goroutine that dispatches responses, the device registry and the request
// gate that keeps at most one request in flight.
//
// Reconnection is never automatic: after the transport is lost the
// connection stays disconnected until Connect is called again.
type Conn struct {
	pctx   context.Context
	cfg    *ConnectionConfig
	logger logger.Logger

	stateMgr *connStateMgr
	taskMgr  *TaskManager
	gate     *requestGate
	shutdown atomic.Bool // set by Disconnect so a closed transport is not reported as lost

	link    atomic.Pointer[link]
	offline *wire.RequestWriter
	closeMu sync.Mutex // serializes teardown

	regMu sync.Mutex
	reg   *registry.Registry

	cbLock    reentrantLock
	callbacks callbacks

	waiters    *xsync.MapOf[propertyKey, *propertyWaiter]
	lastResult atomic.Pointer[requestResult]

	metrics ConnectionMetrics
}

// NewConn creates a disconnected connection.
func NewConn(ctx context.Context, cfg *ConnectionConfig) (*Conn, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	l := cfg.Logger()
	c := &Conn{
		pctx:    ctx,
		cfg:     cfg,
		logger:  l,
		taskMgr: NewTaskManager(ctx, l),
		gate:    newRequestGate(),
		offline: wire.NewRequestWriter(disconnectedWriter{}),
		reg:     registry.New(),
		waiters: xsync.NewMapOf[propertyKey, *propertyWaiter](),
	}
	c.stateMgr = newConnStateMgr(c, l)

	return c, nil
}

// GetLogger returns the connection's logger.
func (c *Conn) GetLogger() logger.Logger { return c.logger }

// GetMetrics returns the connection's counters.
func (c *Conn) GetMetrics() *ConnectionMetrics { return &c.metrics }

// State returns the transport state.
func (c *Conn) State() ConnState { return c.stateMgr.State() }

// IsConnected reports whether the transport is open.
func (c *Conn) IsConnected() bool { return c.stateMgr.State().IsConnected() }

// Target returns the target of the open transport, or "".
func (c *Conn) Target() string {
	if l := c.link.Load(); l != nil {
		return l.target
	}
	return ""
}

// AddStateHandler registers handlers invoked on every state transition.
func (c *Conn) AddStateHandler(handlers ...ConnStateChangeHandler) {
	c.stateMgr.AddHandler(handlers...)
}

// WaitState blocks until the connection reaches state or ctx is done.
func (c *Conn) WaitState(ctx context.Context, state ConnState) error {
	return c.stateMgr.WaitState(ctx, state)
}

// UpdateConfigOptions applies runtime options to the connection's config.
func (c *Conn) UpdateConfigOptions(opts ...ConnOption) error {
	for _, opt := range opts {
		connOpt, ok := opt.(*connOptFunc)
		if !ok {
			return errors.New("invalid ConnOption type")
		}
		if !connOpt.runtime {
			return ErrNotRuntimeOption
		}
		if err := opt.apply(c.cfg); err != nil {
			return err
		}
	}

	return nil
}

// Connect opens target and starts the reader. A "host:port" target is
// dialed over TCP and anything else is opened as a serial port, unless the
// config forces one transport. When auto enumeration is enabled, D0 D1 D2
// is sent right away.
//
// A failed attempt leaves the connection disconnected.
func (c *Conn) Connect(ctx context.Context, target string) error {
	if !c.stateMgr.ToConnecting() {
		return ErrAlreadyConnected
	}

	trans, err := openTransport(ctx, c.cfg, target)
	if err != nil {
		c.logger.Error("failed to open transport", "target", target, "error", err)
		c.stateMgr.ToDisconnected()

		return err
	}

	return c.start(target, trans)
}

// ConnectWith starts the connection over an already open transport. name
// is used for logging and tracing only.
func (c *Conn) ConnectWith(trans io.ReadWriteCloser, name string) error {
	if trans == nil {
		return errors.New("transport is nil")
	}
	if !c.stateMgr.ToConnecting() {
		return ErrAlreadyConnected
	}

	return c.start(name, trans)
}

func (c *Conn) start(target string, trans io.ReadWriteCloser) error {
	tracer, err := c.openTracer(target)
	if err != nil {
		c.logger.Warn("packet tracing disabled", "error", err)
	}

	l := &link{target: target, trans: trans, tracer: tracer}
	l.writer = wire.NewRequestWriter(trans)
	l.writer.OnFlush(func(p []byte) {
		c.metrics.addBytesSent(len(p))
		if tracer != nil {
			tracer.Sent(time.Now(), p)
		}
	})

	c.shutdown.Store(false)
	c.gate.ToIdle()
	c.resetRegistry()
	c.link.Store(l)

	reader := newLineReader(trans, c.cfg.MaxResponseSize())
	err = c.taskMgr.Start("reader", func() bool {
		return c.readerTask(l, reader)
	}, nil)
	if err != nil {
		c.link.Store(nil)
		_ = trans.Close()
		if tracer != nil {
			_ = tracer.Close()
		}
		c.stateMgr.ToDisconnected()

		return err
	}

	if !c.stateMgr.ToConnected() {
		// the transport was lost before the reader got going
		return ErrConnLost
	}
	c.metrics.incConnectCount()
	c.logger.Info("connected", "target", target)

	if c.cfg.AutoEnumerate() {
		if err := c.Enumerate(c.pctx); err != nil {
			c.logger.Warn("failed to request enumeration", "error", err)
		}
	}

	return nil
}

// Disconnect closes the transport and stops the reader. A response that
// is still pending fails with a synthesized "connection lost" error.
func (c *Conn) Disconnect() error {
	c.shutdown.Store(true)
	c.teardown(nil)

	return nil
}

// Close is Disconnect.
func (c *Conn) Close() error {
	return c.Disconnect()
}

// readerTask reads and dispatches one response line.
func (c *Conn) readerTask(l *link, reader *lineReader) bool {
	line, n, err := reader.ReadLine()
	c.metrics.addBytesRecv(n)
	if err != nil {
		c.readFailed(err)
		return false
	}

	c.handleLine(l, line)

	return true
}

func (c *Conn) readFailed(err error) {
	if c.shutdown.Load() {
		return
	}

	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		c.logger.Info("connection closed by device", "target", c.Target())
	case errors.Is(err, ErrResponseTooLarge):
		c.logger.Error("response exceeds maximum size, closing connection",
			"target", c.Target(), "max", c.cfg.MaxResponseSize())
	default:
		c.logger.Error("failed to read response", "target", c.Target(), "error", err)
	}

	c.metrics.incConnLostCount()
	go c.teardown(err)
}

// teardown closes the link, waits for the reader and fails the pending
// response. It must not run on the reader goroutine.
func (c *Conn) teardown(cause error) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if !c.stateMgr.ToDisconnecting() {
		return
	}

	c.taskMgr.Stop()

	l := c.link.Swap(nil)
	if l != nil {
		if err := l.trans.Close(); err != nil {
			c.logger.Debug("failed to close transport", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		c.taskMgr.Wait()
		close(done)
	}()

	timeout := c.cfg.CloseTimeout()
	timer := time.NewTimer(timeout)
	select {
	case <-done:
	case <-timer.C:
		c.logger.Error("close timeout", "timeout", timeout)
	}
	timer.Stop()

	if l != nil && l.tracer != nil {
		if err := l.tracer.Close(); err != nil {
			c.logger.Warn("failed to close packet trace", "error", err)
		}
	}

	c.abandonResponse()
	c.stateMgr.ToDisconnected()

	if cause != nil {
		c.logger.Info("disconnected", "cause", cause)
	} else {
		c.logger.Info("disconnected")
	}
}

// resetRegistry drops everything learned from the previous device: its
// info, endpoints, values and the operations still scheduled for it. The
// enumeration callback is kept.
func (c *Conn) resetRegistry() {
	c.regMu.Lock()
	defer c.regMu.Unlock()

	c.reg = c.reg.Renew()
	c.releaseWaiters(true)
	c.lastResult.Store(nil)
}

// abandonResponse fails a pending response after the transport is gone.
func (c *Conn) abandonResponse() {
	if c.gate.IsPending() {
		e := wire.NewError(wire.CodeGeneric)
		e.ExtraMsg = "connection lost"
		c.lastResult.Store(&requestResult{err: e, lost: true})
		c.invokeRequestError(e)
	}
	c.gate.ToIdle()
	c.releaseWaiters(true)
}

// currentWriter returns the writer of the open link, or one that fails
// every write.
func (c *Conn) currentWriter() *wire.RequestWriter {
	if l := c.link.Load(); l != nil {
		return l.writer
	}
	return c.offline
}

// AcquireRegistry locks the registry and returns it with its release
// function. Registry callbacks run with the registry locked and must not
// call AcquireRegistry.
func (c *Conn) AcquireRegistry() (*registry.Registry, func()) {
	c.regMu.Lock()
	return c.reg, c.regMu.Unlock
}

// WithRegistry runs fn with the registry locked.
func (c *Conn) WithRegistry(fn func(r *registry.Registry)) {
	c.regMu.Lock()
	defer c.regMu.Unlock()

	fn(c.reg)
}
