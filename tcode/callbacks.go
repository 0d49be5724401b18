package tcode

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sevfate/go-tcode/wire"
)

// ResponseReceivedFunc observes every response line before it is parsed.
// line must not be retained.
type ResponseReceivedFunc func(c *Conn, line []byte)

// ResponseEndFunc runs after a well formed response line was dispatched.
type ResponseEndFunc func(c *Conn)

// ResponseErrorFunc runs when a line cannot be parsed. err is a
// *wire.TokenizeError or a *wire.SyntaxError.
type ResponseErrorFunc func(c *Conn, err error)

// RequestSuccessFunc runs when a response terminates with success.
type RequestSuccessFunc func(c *Conn)

// RequestErrorFunc runs when a response terminates with a device error, or
// when the transport is lost while a response is pending.
type RequestErrorFunc func(c *Conn, e wire.Error)

type callbacks struct {
	responseReceived ResponseReceivedFunc
	responseEnd      ResponseEndFunc
	responseError    ResponseErrorFunc
	requestSuccess   RequestSuccessFunc
	requestError     RequestErrorFunc
}

// Callbacks run on the reader goroutine, except RequestErrorFunc for a
// lost transport which runs on the goroutine tearing the link down. Each
// setter returns the callback it replaced; nil removes the callback.
//
// Invocation and registration share one reentrant lock: a setter waits for
// a running callback to return, unless it is called from inside a callback
// on the same goroutine. The whole dispatch of a response line holds the
// lock, so registry property and endpoint callbacks are covered too. A
// setter must not be called with the registry locked.

func (c *Conn) SetResponseReceivedCallback(fn ResponseReceivedFunc) ResponseReceivedFunc {
	c.cbLock.lock()
	defer c.cbLock.unlock()

	prev := c.callbacks.responseReceived
	c.callbacks.responseReceived = fn

	return prev
}

func (c *Conn) SetResponseEndCallback(fn ResponseEndFunc) ResponseEndFunc {
	c.cbLock.lock()
	defer c.cbLock.unlock()

	prev := c.callbacks.responseEnd
	c.callbacks.responseEnd = fn

	return prev
}

func (c *Conn) SetResponseErrorCallback(fn ResponseErrorFunc) ResponseErrorFunc {
	c.cbLock.lock()
	defer c.cbLock.unlock()

	prev := c.callbacks.responseError
	c.callbacks.responseError = fn

	return prev
}

func (c *Conn) SetRequestSuccessCallback(fn RequestSuccessFunc) RequestSuccessFunc {
	c.cbLock.lock()
	defer c.cbLock.unlock()

	prev := c.callbacks.requestSuccess
	c.callbacks.requestSuccess = fn

	return prev
}

func (c *Conn) SetRequestErrorCallback(fn RequestErrorFunc) RequestErrorFunc {
	c.cbLock.lock()
	defer c.cbLock.unlock()

	prev := c.callbacks.requestError
	c.callbacks.requestError = fn

	return prev
}

func (c *Conn) invokeResponseReceived(line []byte) {
	c.cbLock.lock()
	defer c.cbLock.unlock()

	if fn := c.callbacks.responseReceived; fn != nil {
		fn(c, line)
	}
}

func (c *Conn) invokeResponseEnd() {
	c.cbLock.lock()
	defer c.cbLock.unlock()

	if fn := c.callbacks.responseEnd; fn != nil {
		fn(c)
	}
}

func (c *Conn) invokeResponseError(err error) {
	c.cbLock.lock()
	defer c.cbLock.unlock()

	if fn := c.callbacks.responseError; fn != nil {
		fn(c, err)
	}
}

func (c *Conn) invokeRequestSuccess() {
	c.cbLock.lock()
	defer c.cbLock.unlock()

	if fn := c.callbacks.requestSuccess; fn != nil {
		fn(c)
	}
}

func (c *Conn) invokeRequestError(e wire.Error) {
	c.cbLock.lock()
	defer c.cbLock.unlock()

	if fn := c.callbacks.requestError; fn != nil {
		fn(c, e)
	}
}

// reentrantLock is a mutex the holding goroutine may lock again.
type reentrantLock struct {
	mu    sync.Mutex
	owner atomic.Uint64 // goroutine id of the holder, 0 when free
	depth int
}

func (l *reentrantLock) lock() {
	id := goroutineID()
	if l.owner.Load() == id {
		l.depth++
		return
	}
	l.mu.Lock()
	l.owner.Store(id)
	l.depth = 1
}

func (l *reentrantLock) unlock() {
	l.depth--
	if l.depth == 0 {
		l.owner.Store(0)
		l.mu.Unlock()
	}
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID parses the current goroutine's id from its stack header,
// "goroutine 42 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		panic("tcode: cannot parse goroutine id: " + err.Error())
	}

	return id
}
