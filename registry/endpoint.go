package registry

import (
	"slices"

	"github.com/sevfate/go-tcode/wire"
)

// EndpointCallback is invoked after an endpoint response has been stored.
type EndpointCallback func(idx wire.CommandIndex, ep *Endpoint)

// UpdateMode selects how a pending axis update is sent.
type UpdateMode uint8

const (
	UpdateNormal UpdateMode = iota
	UpdateInterval
	UpdateSpeed
)

// Endpoint is an enumerated command index with its capabilities and
// properties.
type Endpoint struct {
	index       wire.CommandIndex
	description string

	supportCall     bool
	supportUpdate   bool
	supportInterval bool
	supportSpeed    bool
	supportStop     bool

	props map[string]*Property

	latest  any
	hasData bool

	pendingCall   bool
	pendingStop   bool
	pendingUpdate bool
	updateMode    UpdateMode
	updateValue   wire.Fractional
	updateExtra   uint32

	onResponse EndpointCallback
}

func (e *Endpoint) Index() wire.CommandIndex { return e.index }
func (e *Endpoint) Description() string      { return e.description }

// SupportsCall reports whether the endpoint accepts a bare call record.
func (e *Endpoint) SupportsCall() bool { return e.supportCall }

// SupportsUpdate reports whether the endpoint accepts fractional updates.
func (e *Endpoint) SupportsUpdate() bool { return e.supportUpdate }

// SupportsIntervalUpdate reports whether updates may carry an interval.
func (e *Endpoint) SupportsIntervalUpdate() bool { return e.supportInterval }

// SupportsSpeedUpdate reports whether updates may carry a speed.
func (e *Endpoint) SupportsSpeedUpdate() bool { return e.supportSpeed }

// SupportsStop reports whether the endpoint accepts a stop record.
func (e *Endpoint) SupportsStop() bool { return e.supportStop }

// Property returns the named property.
func (e *Endpoint) Property(name string) (*Property, bool) {
	p, ok := e.props[name]
	return p, ok
}

// PropertyNames returns the property names in sorted order.
func (e *Endpoint) PropertyNames() []string {
	names := make([]string, 0, len(e.props))
	for n := range e.props {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Data returns the latest decoded call response.
func (e *Endpoint) Data() (any, bool) { return e.latest, e.hasData }

// SetCallback replaces the response callback. A nil fn removes it.
func (e *Endpoint) SetCallback(fn EndpointCallback) { e.onResponse = fn }

// PendCall schedules a call record.
func (e *Endpoint) PendCall() { e.pendingCall = true }

// PendStop schedules a stop record.
func (e *Endpoint) PendStop() { e.pendingStop = true }

// PendNormalUpdate schedules a plain fractional update.
func (e *Endpoint) PendNormalUpdate(v wire.Fractional) {
	e.pendUpdate(UpdateNormal, v, 0)
}

// PendIntervalUpdate schedules an update reaching v after ms milliseconds.
func (e *Endpoint) PendIntervalUpdate(v wire.Fractional, ms uint32) {
	e.pendUpdate(UpdateInterval, v, ms)
}

// PendSpeedUpdate schedules an update moving toward v at speed.
func (e *Endpoint) PendSpeedUpdate(v wire.Fractional, speed uint32) {
	e.pendUpdate(UpdateSpeed, v, speed)
}

func (e *Endpoint) pendUpdate(mode UpdateMode, v wire.Fractional, extra uint32) {
	e.pendingUpdate = true
	e.updateMode = mode
	e.updateValue = v
	e.updateExtra = extra
}

// PendingUpdate returns the scheduled update, if any.
func (e *Endpoint) PendingUpdate() (mode UpdateMode, v wire.Fractional, extra uint32, ok bool) {
	return e.updateMode, e.updateValue, e.updateExtra, e.pendingUpdate
}

// PendSuggestedPropertyIntervals schedules every non-zero suggested
// property interval as the current interval.
func (e *Endpoint) PendSuggestedPropertyIntervals() {
	for _, p := range e.props {
		if p.suggestedInterval != 0 {
			p.PendCurrentUpdateInterval(p.suggestedInterval)
		}
	}
}

// HasPendingOps reports whether the endpoint itself has scheduled records.
// Property operations are not included.
func (e *Endpoint) HasPendingOps() bool {
	return e.pendingCall || e.pendingUpdate || e.pendingStop
}

// ClearPendingOps drops the endpoint's scheduled records.
func (e *Endpoint) ClearPendingOps() {
	e.pendingCall = false
	e.pendingUpdate = false
	e.pendingStop = false
}

func (e *Endpoint) respond(doc any) {
	e.latest = doc
	e.hasData = true
	if e.onResponse != nil {
		e.onResponse(e.index, e)
	}
}
