package registry

import (
	"math"

	"github.com/sevfate/go-tcode/wire"
)

// PropertyCallback is invoked after a property update has been stored.
type PropertyCallback func(idx wire.CommandIndex, name string, p *Property)

// Property is one named, typed value of an endpoint.
//
// Properties are owned by the Registry and must only be accessed while the
// registry is held by the caller.
type Property struct {
	name    string
	typ     PropertyType
	read    bool
	write   bool
	event   bool
	action  bool
	interp  Interpretation
	display DisplayType

	enums []EnumEntry
	bits  []BitfieldEntry
	axes  *ObservationAxes

	min Value
	max Value

	suggestedInterval uint32
	currentInterval   uint32
	minInterval       uint32
	maxInterval       uint32

	latest Value

	pendingGet      bool
	pendingSet      Value
	pendingInterval bool

	onUpdate PropertyCallback
}

func (p *Property) Name() string                   { return p.name }
func (p *Property) Type() PropertyType             { return p.typ }
func (p *Property) Readable() bool                 { return p.read }
func (p *Property) Writable() bool                 { return p.write }
func (p *Property) Event() bool                    { return p.event }
func (p *Property) Action() bool                   { return p.action }
func (p *Property) Interpretation() Interpretation { return p.interp }
func (p *Property) DisplayType() DisplayType       { return p.display }
func (p *Property) EnumMapping() []EnumEntry       { return p.enums }
func (p *Property) BitfieldMapping() []BitfieldEntry {
	return p.bits
}
func (p *Property) ObservationAxes() *ObservationAxes { return p.axes }

// Min returns the declared minimum, or nil.
func (p *Property) Min() Value { return p.min }

// Max returns the declared maximum, or nil.
func (p *Property) Max() Value { return p.max }

func (p *Property) SuggestedUpdateInterval() uint32 { return p.suggestedInterval }
func (p *Property) CurrentUpdateInterval() uint32   { return p.currentInterval }

// Value returns the latest value received from the device, or nil.
func (p *Property) Value() Value { return p.latest }

// HasData reports whether a value has been received.
func (p *Property) HasData() bool { return p.latest != nil }

// EnumLabel returns the label for an enum key.
func (p *Property) EnumLabel(key uint64) (string, bool) {
	for _, e := range p.enums {
		if e.Key == key {
			return e.Label, true
		}
	}
	return "", false
}

// BitLabels returns the labels of all bits set in v, in mask order.
func (p *Property) BitLabels(v uint64) []string {
	var out []string
	for _, b := range p.bits {
		if v&b.Mask != 0 {
			out = append(out, b.Label)
		}
	}
	return out
}

// SetCallback replaces the update callback. A nil fn removes it.
func (p *Property) SetCallback(fn PropertyCallback) { p.onUpdate = fn }

// PendGet schedules a read of the property.
func (p *Property) PendGet() { p.pendingGet = true }

// PendSet schedules a write of v. The value type must match the property.
func (p *Property) PendSet(v Value) error {
	if !p.write {
		return ErrNotWritable
	}
	if v == nil || v.Type() != p.typ {
		return ErrTypeMismatch
	}
	p.pendingSet = v
	return nil
}

// PendSetNumber schedules a write of f converted to the property type.
func (p *Property) PendSetNumber(f float64) error {
	v, err := NumericValue(p.typ, f)
	if err != nil {
		return err
	}
	return p.PendSet(v)
}

// PendCurrentUpdateInterval stores ms as the current update interval and
// schedules it. Non-zero intervals are clamped to the device's bounds;
// zero disables periodic updates.
func (p *Property) PendCurrentUpdateInterval(ms uint32) {
	if ms != 0 {
		ms = max(ms, p.minInterval)
		ms = min(ms, p.maxInterval)
	}
	p.currentInterval = ms
	p.pendingInterval = true
}

// HasPendingOps reports whether any operation is scheduled.
func (p *Property) HasPendingOps() bool {
	return p.pendingGet || p.pendingSet != nil || p.pendingInterval
}

// ClearPendingOps drops every scheduled operation.
func (p *Property) ClearPendingOps() {
	p.pendingGet = false
	p.pendingSet = nil
	p.pendingInterval = false
}

// update stores a received payload and fires the callback.
func (p *Property) update(idx wire.CommandIndex, payload []byte) error {
	v, err := DecodeValue(p.typ, payload)
	if err != nil {
		return err
	}
	p.latest = v
	if p.onUpdate != nil {
		p.onUpdate(idx, p.name, p)
	}
	return nil
}

// Normalized maps the latest value onto [0, 1] using the declared bounds.
// Values outside the bounds are clamped. It returns 0 when the value or a
// bound is missing, or when the bounds are empty or inverted.
func (p *Property) Normalized() float64 {
	if p.latest == nil || p.min == nil || p.max == nil {
		return 0
	}
	if p.typ.IsIntegral() {
		return normalizeIntegral(p.typ, p.latest, p.min, p.max)
	}
	v, ok1 := Float(p.latest)
	lo, ok2 := Float(p.min)
	hi, ok3 := Float(p.max)
	if !ok1 || !ok2 || !ok3 || lo >= hi {
		return 0
	}
	return math.Max(0, math.Min(1, (v-lo)/(hi-lo)))
}

// Ratio returns Normalized scaled to a fixed point numerator with the
// given number of digits.
func (p *Property) Ratio(digits int) uint32 {
	return uint32(p.Normalized()*float64(wire.MustNines(digits)) + 0.5)
}

// normalizeIntegral computes the ratio in unsigned arithmetic so the full
// range of every integer type is representable.
func normalizeIntegral(t PropertyType, v, lo, hi Value) float64 {
	vb, _ := bits(v)
	lb, _ := bits(lo)
	hb, _ := bits(hi)
	vf, _ := Float(v)
	lf, _ := Float(lo)
	hf, _ := Float(hi)
	if lf >= hf {
		return 0
	}
	var span, centered uint64
	if t == TypeUint32 || t == TypeInt32 {
		span = uint64(uint32(hb) - uint32(lb))
		centered = uint64(uint32(vb) - uint32(lb))
	} else {
		span = hb - lb
		centered = vb - lb
	}
	if vf <= lf {
		return 0
	}
	if vf >= hf {
		return 1
	}
	return math.Min(float64(centered)/float64(span), 1)
}
