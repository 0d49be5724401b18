package tcode

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevfate/go-tcode/internal/devicesim"
	"github.com/sevfate/go-tcode/logger"
	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/trace"
	"github.com/sevfate/go-tcode/wire"
)

var (
	l0 = wire.MustParseCommandIndex("L0")
	a0 = wire.MustParseCommandIndex("A0")
	v9 = wire.MustParseCommandIndex("V9")
)

type testBench struct {
	conn   *Conn
	device *devicesim.Device
	devEnd net.Conn
	served chan error
}

// newTestBench connects a Conn to a simulated device over net.Pipe.
func newTestBench(t *testing.T, opts ...ConnOption) *testBench {
	t.Helper()

	device, err := devicesim.New()
	require.NoError(t, err)

	hostEnd, devEnd := net.Pipe()
	b := &testBench{device: device, devEnd: devEnd, served: make(chan error, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { b.served <- device.Serve(ctx, devEnd) }()

	cfg, err := NewConnectionConfig(append([]ConnOption{WithAutoEnumerate(false), WithLogger(logger.NewQuietMockLogger())}, opts...)...)
	require.NoError(t, err)

	b.conn, err = NewConn(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, b.conn.ConnectWith(WrapConn(hostEnd, cfg), "pipe"))

	t.Cleanup(func() {
		_ = b.conn.Close()
		cancel()
		_ = devEnd.Close()
	})

	return b
}

func (b *testBench) enumerate(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.conn.SyncEnumerate(ctx))
}

func TestConn_SyncEnumerate(t *testing.T) {
	b := newTestBench(t)
	require.True(t, b.conn.IsConnected())
	assert.Equal(t, "pipe", b.conn.Target())

	var enumerated int
	b.conn.WithRegistry(func(r *registry.Registry) {
		r.SetEnumerationCallback(func(*registry.Registry) { enumerated++ })
	})

	b.enumerate(t)

	reg, release := b.conn.AcquireRegistry()
	defer release()

	assert.Equal(t, 1, enumerated)
	assert.Equal(t, "simdevice", reg.Device().Name)
	assert.Equal(t, devicesim.ProtocolName, reg.Protocol().Name)
	id, ok := reg.Device().UUID()
	require.True(t, ok)
	assert.Equal(t, b.device.ID(), id)
	assert.Equal(t, 4, reg.Len())
	_, ok = reg.Property(a0, "mode")
	assert.True(t, ok)

	assert.Equal(t, RequestIdle, b.conn.RequestState())
	m := b.conn.GetMetrics()
	assert.Equal(t, uint64(1), m.RequestSendCount.Load())
	assert.Equal(t, uint64(1), m.ResponseRecvCount.Load())
}

func TestConn_AutoEnumerate(t *testing.T) {
	b := newTestBench(t, WithAutoEnumerate(true))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.conn.WaitPendingResponse(ctx))

	require.Eventually(t, func() bool {
		reg, release := b.conn.AcquireRegistry()
		defer release()
		return reg.Len() == 4
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConn_ReadProperty(t *testing.T) {
	b := newTestBench(t)
	b.enumerate(t)

	require.NoError(t, b.device.SetValue(a0, "gain", registry.Int32(-17)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	v, err := b.conn.ReadProperty(ctx, a0, "gain")
	require.NoError(t, err)
	assert.Equal(t, registry.Int32(-17), v)

	_, err = b.conn.ReadProperty(ctx, a0, "missing")
	require.ErrorIs(t, err, ErrUnknownProperty)
}

func TestConn_ReadProperty_Concurrent(t *testing.T) {
	b := newTestBench(t)
	b.enumerate(t)

	require.NoError(t, b.device.SetValue(a0, "label", registry.String("bench")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	results := make([]registry.Value, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := "label"
			if i%2 == 1 {
				name = "gain"
			}
			results[i], errs[i] = b.conn.ReadProperty(ctx, a0, name)
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		if i%2 == 1 {
			assert.Equal(t, registry.Int32(0), results[i])
		} else {
			assert.Equal(t, registry.String("bench"), results[i])
		}
	}
}

func TestConn_FlushPending(t *testing.T) {
	b := newTestBench(t)
	b.enumerate(t)

	b.conn.WithRegistry(func(r *registry.Registry) {
		label, _ := r.Property(a0, "label")
		require.NoError(t, label.PendSet(registry.String("flushed")))
		ep, _ := r.Endpoint(l0)
		ep.PendIntervalUpdate(wire.NewFractional(7500, 4), 250)
	})

	sent, err := b.conn.Flush()
	require.NoError(t, err)
	require.True(t, sent)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.conn.WaitPendingResponse(ctx))

	v, _ := b.device.Value(a0, "label")
	assert.Equal(t, registry.String("flushed"), v)
	st, ok := b.device.Axis(l0)
	require.True(t, ok)
	assert.Equal(t, registry.UpdateInterval, st.Mode)
	assert.Equal(t, uint32(250), st.Extra)

	sent, err = b.conn.Flush()
	require.NoError(t, err)
	assert.False(t, sent, "nothing left to send")
}

func TestConn_RequestError(t *testing.T) {
	b := newTestBench(t)
	b.enumerate(t)

	var (
		mu       sync.Mutex
		got      []wire.Error
		success  int
		received []string
	)
	b.conn.SetRequestErrorCallback(func(_ *Conn, e wire.Error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	})
	b.conn.SetRequestSuccessCallback(func(*Conn) {
		mu.Lock()
		defer mu.Unlock()
		success++
	})
	b.conn.SetResponseReceivedCallback(func(_ *Conn, line []byte) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, string(line))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := b.conn.SyncSend(ctx, func(c *Conn) {
		c.SendAxisUpdate(l0, wire.NewFractional(5, 1))
		c.SendCall(v9)
	})
	var devErr *wire.Error
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, wire.CodeInvalidCommandIndex, devErr.Code)
	assert.Equal(t, uint16(1), devErr.StreamIdx)

	require.NoError(t, b.conn.SyncSend(ctx, func(c *Conn) { c.SendStopAll() }))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, wire.CodeInvalidCommandIndex, got[0].Code)
	assert.Equal(t, 1, success)
	require.Len(t, received, 2)
	assert.True(t, strings.HasPrefix(received[0], "E4"))
	assert.Equal(t, uint64(1), b.conn.GetMetrics().ResponseErrCount.Load())
}

func TestConn_MalformedResponse(t *testing.T) {
	b := newTestBench(t)
	b.enumerate(t)

	errs := make(chan error, 1)
	ended := make(chan struct{}, 4)
	b.conn.SetResponseErrorCallback(func(_ *Conn, err error) { errs <- err })
	b.conn.SetResponseEndCallback(func(*Conn) { ended <- struct{}{} })

	b.conn.BeginRequest()
	b.conn.SendCall(wire.DeviceInfo)
	b.device.SetSilent(true)
	require.NoError(t, b.conn.EndRequest())

	require.NoError(t, b.device.WriteRaw([]byte("L0Z0000 E0\n")))

	select {
	case err := <-errs:
		var tokErr *wire.TokenizeError
		require.ErrorAs(t, err, &tokErr)
	case <-time.After(2 * time.Second):
		t.Fatal("response error callback not invoked")
	}
	assert.True(t, b.conn.IsResponsePending(), "a malformed line does not complete the request")
	assert.Empty(t, ended)

	require.NoError(t, b.device.WriteRaw([]byte("V9Z00000 E0\n")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.conn.WaitPendingResponse(ctx))

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("response end callback not invoked")
	}
	m := b.conn.GetMetrics()
	assert.Equal(t, uint64(1), m.MalformedResponseCount.Load())
	assert.Equal(t, uint64(1), m.DroppedRecordCount.Load(), "V9 is not enumerated")
}

func TestConn_DisconnectWhilePending(t *testing.T) {
	b := newTestBench(t)
	b.enumerate(t)
	b.device.SetSilent(true)

	lost := make(chan wire.Error, 1)
	b.conn.SetRequestErrorCallback(func(_ *Conn, e wire.Error) { lost <- e })

	result := make(chan error, 1)
	go func() {
		result <- b.conn.SyncSend(context.Background(), func(c *Conn) { c.SendCall(a0) })
	}()

	require.Eventually(t, b.conn.IsResponsePending, 2*time.Second, time.Millisecond)
	require.NoError(t, b.conn.Disconnect())

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrConnLost)
	case <-time.After(2 * time.Second):
		t.Fatal("SyncSend not released")
	}

	e := <-lost
	assert.Equal(t, wire.CodeGeneric, e.Code)
	assert.Equal(t, wire.NoStream, e.StreamIdx)
	assert.Equal(t, "connection lost", e.ExtraMsg)

	assert.Equal(t, DisconnectedState, b.conn.State())
	assert.Equal(t, RequestIdle, b.conn.RequestState())

	err := b.conn.Send(context.Background(), func(c *Conn) { c.SendStopAll() })
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestConn_DeviceHangup(t *testing.T) {
	b := newTestBench(t)
	b.enumerate(t)

	states := make(chan ConnState, 4)
	b.conn.AddStateHandler(func(_ *Conn, _, next ConnState) { states <- next })

	require.NoError(t, b.devEnd.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.conn.WaitState(ctx, DisconnectedState))

	assert.Equal(t, DisconnectingState, <-states)
	assert.Equal(t, DisconnectedState, <-states)
	assert.Equal(t, uint64(1), b.conn.GetMetrics().ConnLostCount.Load())
}

func TestConn_RequestMisuse(t *testing.T) {
	b := newTestBench(t)

	assert.Panics(t, func() { b.conn.SendCall(a0) }, "record outside a request")
	assert.Panics(t, func() { _ = b.conn.EndRequest() }, "end without begin")

	b.conn.BeginRequest()
	assert.Panics(t, b.conn.BeginRequest, "nested begin")
	b.device.SetSilent(true)
	b.conn.SendCall(wire.DeviceInfo)
	require.NoError(t, b.conn.EndRequest())

	assert.Panics(t, b.conn.BeginRequest, "begin while pending")
	assert.Panics(t, func() { b.conn.FlushPending() }, "flush while pending")

	sent, err := b.conn.Flush()
	require.NoError(t, err)
	assert.False(t, sent, "busy gate")
}

func TestConn_PacketTracing(t *testing.T) {
	dir := t.TempDir()
	b := newTestBench(t, WithPacketTracing(dir, TraceCBOR))
	b.enumerate(t)
	require.NoError(t, b.conn.Disconnect())

	files, err := filepath.Glob(filepath.Join(dir, "etcode_*.cbor"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	r, err := trace.OpenReader(files[0], trace.Filter{})
	require.NoError(t, err)
	defer r.Close()

	events, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, trace.DirectionSent, events[0].Direction)
	assert.Equal(t, "D0 D1 D2", string(events[0].Data))
	assert.Equal(t, trace.DirectionReceived, events[1].Direction)
	assert.Equal(t, "pipe", events[1].Target)
}

func TestConn_PacketTracing_Text(t *testing.T) {
	dir := t.TempDir()
	b := newTestBench(t, WithPacketTracing(dir, TraceText))
	b.enumerate(t)
	require.NoError(t, b.conn.Disconnect())

	files, err := filepath.Glob(filepath.Join(dir, "etcode_*.trace"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], ">>>D0 D1 D2")
	assert.Contains(t, lines[1], "<<<D0Z")
}

func TestConn_ReconnectRenewsRegistry(t *testing.T) {
	b := newTestBench(t)

	var enumerated int
	b.conn.WithRegistry(func(r *registry.Registry) {
		r.SetEnumerationCallback(func(*registry.Registry) { enumerated++ })
	})
	b.enumerate(t)

	b.conn.WithRegistry(func(r *registry.Registry) {
		ep, ok := r.Endpoint(a0)
		require.True(t, ok)
		ep.PendCall()
	})
	require.NoError(t, b.conn.Disconnect())

	other, err := devicesim.New(devicesim.WithIdentity("other", "3.0"))
	require.NoError(t, err)
	hostEnd, devEnd := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = devEnd.Close()
	})
	go func() { _ = other.Serve(ctx, devEnd) }()

	require.NoError(t, b.conn.ConnectWith(WrapConn(hostEnd, b.conn.cfg), "other"))

	b.conn.WithRegistry(func(r *registry.Registry) {
		assert.Zero(t, r.Len())
		assert.Empty(t, r.Device().Name)
	})
	sent, err := b.conn.Flush()
	require.NoError(t, err)
	assert.False(t, sent, "operations staged for the previous device are gone")

	b.enumerate(t)
	assert.Equal(t, 2, enumerated, "enumeration callback survives the reconnect")
	b.conn.WithRegistry(func(r *registry.Registry) {
		assert.Equal(t, "other", r.Device().Name)
	})
	assert.Zero(t, other.Calls(a0))
}

func TestConn_CallbackReplacementWaitsForRunningCallback(t *testing.T) {
	b := newTestBench(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	b.conn.SetRequestSuccessCallback(func(*Conn) {
		close(entered)
		<-release
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.conn.Send(ctx, func(c *Conn) { c.SendStopAll() }))
	<-entered

	replaced := make(chan RequestSuccessFunc, 1)
	go func() { replaced <- b.conn.SetRequestSuccessCallback(nil) }()

	select {
	case <-replaced:
		t.Fatal("callback replaced while it was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case prev := <-replaced:
		assert.NotNil(t, prev)
	case <-time.After(2 * time.Second):
		t.Fatal("callback replacement never returned")
	}
}

func TestConn_CallbackReplacesItself(t *testing.T) {
	b := newTestBench(t)

	var calls int
	b.conn.SetRequestSuccessCallback(func(c *Conn) {
		calls++
		c.SetRequestSuccessCallback(nil)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.conn.SyncSend(ctx, func(c *Conn) { c.SendStopAll() }))
	require.NoError(t, b.conn.SyncSend(ctx, func(c *Conn) { c.SendStopAll() }))

	assert.Equal(t, 1, calls)
	assert.Nil(t, b.conn.SetRequestSuccessCallback(nil))
}

func TestConn_ReadPropertyIgnoresEarlierUpdate(t *testing.T) {
	b := newTestBench(t)
	b.enumerate(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	b.device.SetSilent(true)
	require.NoError(t, b.conn.Send(ctx, func(c *Conn) { c.SendCall(a0) }))
	require.True(t, b.conn.IsResponsePending())

	type result struct {
		v   registry.Value
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := b.conn.ReadProperty(ctx, a0, "gain")
		done <- result{v, err}
	}()
	require.Eventually(t, func() bool { return b.conn.hasPendingGet(a0, "gain") }, 2*time.Second, time.Millisecond)

	// an unsolicited gain=1 ends the pending request before the get is sent
	data, null, err := registry.Int32(1).Encode()
	require.NoError(t, err)
	var w wire.ResponseWriter
	w.Property(a0, "gain", data, null)
	stale := w.Terminate(wire.NewError(wire.CodeSuccess))

	require.NoError(t, b.device.SetValue(a0, "gain", registry.Int32(2)))
	b.device.SetSilent(false)
	require.NoError(t, b.device.WriteRaw(stale))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, registry.Int32(2), res.v)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadProperty not released")
	}
}
