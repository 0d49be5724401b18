// Package devicesim simulates a T-Code device. It answers requests read
// from any io.ReadWriter with the responses a real device would send, and
// is used by tests and the simdevice example.
package devicesim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/sevfate/go-tcode/logger"
	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/ubjson"
	"github.com/sevfate/go-tcode/wire"
)

const (
	ProtocolName    = "etcode"
	ProtocolVersion = "1.0"
)

type propertyKey struct {
	idx  wire.CommandIndex
	name string
}

// AxisState is the last update an axis received.
type AxisState struct {
	Mode    registry.UpdateMode
	Target  wire.Fractional
	Extra   uint32
	Stopped bool
}

// Device is a simulated device. Its property values and axis states can be
// inspected and changed concurrently with Serve.
type Device struct {
	name    string
	version string
	id      uuid.UUID
	doc     map[string]any
	schema  *registry.Registry
	logger  logger.Logger

	values    *xsync.MapOf[propertyKey, registry.Value]
	intervals *xsync.MapOf[propertyKey, uint32]
	axes      *xsync.MapOf[wire.CommandIndex, AxisState]
	calls     *xsync.MapOf[wire.CommandIndex, int64]

	requests atomic.Int64
	silent   atomic.Bool

	wmu sync.Mutex
	out io.Writer
}

// Option configures a Device.
type Option func(*Device)

// WithIdentity sets the name and version reported by D0.
func WithIdentity(name, version string) Option {
	return func(d *Device) {
		d.name = name
		d.version = version
	}
}

// WithUUID sets the device key reported by D0.
func WithUUID(id uuid.UUID) Option {
	return func(d *Device) { d.id = id }
}

// WithSchema replaces DefaultSchema.
func WithSchema(doc map[string]any) Option {
	return func(d *Device) { d.doc = doc }
}

// WithLogger sets the device's logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Device) { d.logger = l }
}

// New creates a device. Every readable property starts at its zero value.
func New(opts ...Option) (*Device, error) {
	d := &Device{
		name:      "simdevice",
		version:   "0.1.0",
		id:        uuid.New(),
		doc:       DefaultSchema(),
		logger:    logger.GetLogger(),
		values:    xsync.NewMapOf[propertyKey, registry.Value](),
		intervals: xsync.NewMapOf[propertyKey, uint32](),
		axes:      xsync.NewMapOf[wire.CommandIndex, AxisState](),
		calls:     xsync.NewMapOf[wire.CommandIndex, int64](),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.schema = registry.New()
	if err := d.schema.ApplyEnumeration(d.doc); err != nil {
		return nil, fmt.Errorf("devicesim: invalid schema: %w", err)
	}

	for _, idx := range d.schema.Indices() {
		ep, _ := d.schema.Endpoint(idx)
		for _, name := range ep.PropertyNames() {
			p, _ := ep.Property(name)
			d.values.Store(propertyKey{idx, name}, zeroValue(p.Type()))
		}
	}

	return d, nil
}

func zeroValue(t registry.PropertyType) registry.Value {
	switch t {
	case registry.TypeString:
		return registry.String("")
	case registry.TypeObject:
		return registry.Object{Doc: map[string]any{}}
	default:
		v, _ := registry.NumericValue(t, 0)
		return v
	}
}

// ID returns the device key.
func (d *Device) ID() uuid.UUID { return d.id }

// Requests returns the number of request lines handled.
func (d *Device) Requests() int64 { return d.requests.Load() }

// Calls returns how many times idx was called.
func (d *Device) Calls(idx wire.CommandIndex) int64 {
	n, _ := d.calls.Load(idx)
	return n
}

// Axis returns the last update of an axis.
func (d *Device) Axis(idx wire.CommandIndex) (AxisState, bool) {
	return d.axes.Load(idx)
}

// Value returns the stored value of a property.
func (d *Device) Value(idx wire.CommandIndex, name string) (registry.Value, bool) {
	return d.values.Load(propertyKey{idx, name})
}

// SetValue stores v as the value of a property. The type must match.
func (d *Device) SetValue(idx wire.CommandIndex, name string, v registry.Value) error {
	p, ok := d.schema.Property(idx, name)
	if !ok {
		return fmt.Errorf("%w: %s%s", registry.ErrUnknownProperty, idx, name)
	}
	if v == nil || v.Type() != p.Type() {
		return registry.ErrTypeMismatch
	}
	d.values.Store(propertyKey{idx, name}, v)

	return nil
}

// Interval returns the update interval last requested for a property.
func (d *Device) Interval(idx wire.CommandIndex, name string) uint32 {
	ms, _ := d.intervals.Load(propertyKey{idx, name})
	return ms
}

// SetSilent makes the device swallow requests without answering.
func (d *Device) SetSilent(silent bool) { d.silent.Store(silent) }

// Serve answers every request line read from rw until ctx is done or rw
// fails. It returns nil when rw reaches EOF.
func (d *Device) Serve(ctx context.Context, rw io.ReadWriter) error {
	d.wmu.Lock()
	d.out = rw
	d.wmu.Unlock()
	defer func() {
		d.wmu.Lock()
		d.out = nil
		d.wmu.Unlock()
	}()

	lines := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		r := bufio.NewReader(rw)
		for {
			line, err := r.ReadBytes('\n')
			if len(line) > 0 && err == nil {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				errc <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case line := <-lines:
			if d.silent.Load() {
				continue
			}
			if err := d.write(d.HandleLine(line)); err != nil {
				return err
			}
		}
	}
}

// Notify sends the current value of a property as an unsolicited, success
// terminated line. The host treats the terminator like the end of a
// response, so Notify must not race with a request in flight. It fails
// when Serve is not running.
func (d *Device) Notify(idx wire.CommandIndex, name string) error {
	v, ok := d.Value(idx, name)
	if !ok {
		return fmt.Errorf("%w: %s%s", registry.ErrUnknownProperty, idx, name)
	}
	data, null, err := v.Encode()
	if err != nil {
		return err
	}

	var w wire.ResponseWriter
	w.Property(idx, name, data, null)

	return d.write(w.Terminate(wire.NewError(wire.CodeSuccess)))
}

// WriteRaw sends p to the host as is.
func (d *Device) WriteRaw(p []byte) error {
	return d.write(p)
}

func (d *Device) write(p []byte) error {
	d.wmu.Lock()
	defer d.wmu.Unlock()

	if d.out == nil {
		return errors.New("devicesim: not serving")
	}
	_, err := d.out.Write(p)

	return err
}

// HandleLine returns the response line, including '\n', for one request
// line. Records are executed in order and the first failing record ends
// the response with an error terminator naming its position.
func (d *Device) HandleLine(line []byte) []byte {
	d.requests.Add(1)

	var w wire.ResponseWriter

	records, err := wire.ParseRequest(line)
	if err != nil {
		var tokErr *wire.TokenizeError
		code := wire.CodeParsing
		if errors.As(err, &tokErr) {
			code = wire.CodeTokenization
		}
		e := wire.NewError(code)
		e.ExtraMsg = err.Error()
		d.logger.Debug("simulated device rejected request", "error", err)

		return w.Terminate(e)
	}

	for i, rec := range records {
		if e, failed := d.execute(&w, rec); failed {
			e.StreamIdx = uint16(i)
			return w.Terminate(e)
		}
	}

	return w.Terminate(wire.NewError(wire.CodeSuccess))
}

func (d *Device) execute(w *wire.ResponseWriter, rec wire.RequestRecord) (wire.Error, bool) {
	fail := func(code wire.ErrorCode, msg string) (wire.Error, bool) {
		e := wire.NewError(code)
		e.ExtraMsg = msg
		return e, true
	}

	if rec.Op == wire.OpStopAll {
		d.axes.Range(func(idx wire.CommandIndex, st AxisState) bool {
			st.Stopped = true
			d.axes.Store(idx, st)
			return true
		})
		return wire.Error{}, false
	}

	if rec.Index.IsReserved() {
		if rec.Op != wire.OpCall {
			return fail(wire.CodeInvalidOperation, "device slots only support calls")
		}
		payload, err := d.deviceSlot(rec.Index)
		if err != nil {
			return fail(wire.CodeGeneric, err.Error())
		}
		w.Endpoint(rec.Index, payload)
		return wire.Error{}, false
	}

	ep, ok := d.schema.Endpoint(rec.Index)
	if !ok {
		return fail(wire.CodeInvalidCommandIndex, rec.Index.String())
	}

	switch rec.Op {
	case wire.OpCall:
		if !ep.SupportsCall() {
			return fail(wire.CodeInvalidOperation, "call not supported")
		}
		n, _ := d.calls.Compute(rec.Index, func(old int64, _ bool) (int64, bool) {
			return old + 1, false
		})
		w.Endpoint(rec.Index, ubjson.MustMarshal(map[string]any{"calls": n}))

	case wire.OpAxisUpdate, wire.OpAxisInterval, wire.OpAxisSpeed:
		st := AxisState{Target: rec.Value, Extra: rec.Extra}
		switch {
		case rec.Op == wire.OpAxisUpdate && ep.SupportsUpdate():
			st.Mode = registry.UpdateNormal
		case rec.Op == wire.OpAxisInterval && ep.SupportsIntervalUpdate():
			st.Mode = registry.UpdateInterval
		case rec.Op == wire.OpAxisSpeed && ep.SupportsSpeedUpdate():
			st.Mode = registry.UpdateSpeed
		default:
			return fail(wire.CodeInvalidOperation, rec.Op.String()+" not supported")
		}
		d.axes.Store(rec.Index, st)

	case wire.OpStop:
		if !ep.SupportsStop() {
			return fail(wire.CodeInvalidOperation, "stop not supported")
		}
		st, _ := d.axes.Load(rec.Index)
		st.Stopped = true
		d.axes.Store(rec.Index, st)

	case wire.OpPropertyGet, wire.OpPropertySet, wire.OpPropertyInterval:
		return d.executeProperty(w, ep, rec)
	}

	return wire.Error{}, false
}

func (d *Device) executeProperty(w *wire.ResponseWriter, ep *registry.Endpoint, rec wire.RequestRecord) (wire.Error, bool) {
	p, ok := ep.Property(rec.Property)
	if !ok {
		e := wire.NewError(wire.CodeUnknownProperty)
		e.ExtraMsg = rec.Property
		return e, true
	}
	key := propertyKey{rec.Index, rec.Property}

	switch rec.Op {
	case wire.OpPropertyGet:
		if !p.Readable() {
			return wire.NewError(wire.CodeInvalidOperation), true
		}
		v, _ := d.values.Load(key)
		data, null, err := v.Encode()
		if err != nil {
			return wire.NewError(wire.CodeGeneric), true
		}
		w.Property(rec.Index, rec.Property, data, null)

	case wire.OpPropertySet:
		if !p.Writable() {
			return wire.NewError(wire.CodeInvalidOperation), true
		}
		v, err := registry.DecodeValue(p.Type(), trimPadding(p.Type(), rec.Payload))
		if err != nil {
			e := wire.NewError(wire.CodeParsing)
			e.ExtraMsg = err.Error()
			return e, true
		}
		if !p.Action() {
			d.values.Store(key, v)
		}

	case wire.OpPropertyInterval:
		if !p.Readable() {
			return wire.NewError(wire.CodeInvalidOperation), true
		}
		d.intervals.Store(key, rec.Extra)
	}

	return wire.Error{}, false
}

// trimPadding drops the Z85 group padding of fixed size payloads.
func trimPadding(t registry.PropertyType, payload []byte) []byte {
	if n := t.Size(); n != 0 && len(payload) > n {
		return payload[:n]
	}
	return payload
}

func (d *Device) deviceSlot(idx wire.CommandIndex) ([]byte, error) {
	switch idx {
	case wire.DeviceInfo:
		return ubjson.Marshal(map[string]any{
			"name":    d.name,
			"version": d.version,
			"uuid":    d.id[:],
		})
	case wire.DeviceProtocol:
		return ubjson.Marshal(map[string]any{
			"name":    ProtocolName,
			"version": ProtocolVersion,
		})
	case wire.DeviceEnumeration:
		return ubjson.Marshal(d.doc)
	default:
		return nil, fmt.Errorf("unknown device slot %s", idx)
	}
}
