package registry

import (
	"github.com/sevfate/go-tcode/wire"
)

// RequestSink receives the records of a request. *wire.RequestWriter
// implements it.
type RequestSink interface {
	Call(idx wire.CommandIndex)
	AxisUpdate(idx wire.CommandIndex, value wire.Fractional)
	AxisIntervalUpdate(idx wire.CommandIndex, value wire.Fractional, ms uint32)
	AxisSpeedUpdate(idx wire.CommandIndex, value wire.Fractional, speed uint32)
	Stop(idx wire.CommandIndex)
	PropertyGet(idx wire.CommandIndex, name string)
	PropertyInterval(idx wire.CommandIndex, name string, ms uint32)
	PropertySet(idx wire.CommandIndex, name string, data []byte, null byte)
}

var _ RequestSink = (*wire.RequestWriter)(nil)

// ConsumePendingOps writes every scheduled operation to sink and clears
// it. Endpoints are visited in index order and properties in name order.
// For each endpoint its own records come first (call, update, stop),
// followed by each property's records (set, get, interval).
//
// begin is called once, before the first record is written, so the caller
// can open a request lazily. ConsumePendingOps reports whether anything was
// written.
func (r *Registry) ConsumePendingOps(sink RequestSink, begin func()) (bool, error) {
	started := false
	start := func() {
		if !started {
			started = true
			if begin != nil {
				begin()
			}
		}
	}
	for _, idx := range r.Indices() {
		ep := r.endpoints[idx]
		if ep.HasPendingOps() {
			start()
			ep.consume(sink)
		}
		for _, name := range ep.PropertyNames() {
			p := ep.props[name]
			if !p.HasPendingOps() {
				continue
			}
			start()
			if err := p.consume(idx, sink); err != nil {
				return started, err
			}
		}
	}
	return started, nil
}

func (e *Endpoint) consume(sink RequestSink) {
	if e.pendingCall {
		sink.Call(e.index)
	}
	if e.pendingUpdate {
		switch {
		case e.updateExtra == 0:
			sink.AxisUpdate(e.index, e.updateValue)
		case e.updateMode == UpdateSpeed:
			sink.AxisSpeedUpdate(e.index, e.updateValue, e.updateExtra)
		default:
			sink.AxisIntervalUpdate(e.index, e.updateValue, e.updateExtra)
		}
	}
	if e.pendingStop {
		sink.Stop(e.index)
	}
	e.ClearPendingOps()
}

func (p *Property) consume(idx wire.CommandIndex, sink RequestSink) error {
	defer p.ClearPendingOps()
	if p.pendingSet != nil {
		data, null, err := p.pendingSet.Encode()
		if err != nil {
			return err
		}
		sink.PropertySet(idx, p.name, data, null)
	}
	if p.pendingGet {
		sink.PropertyGet(idx, p.name)
	}
	if p.pendingInterval {
		sink.PropertyInterval(idx, p.name, p.currentInterval)
	}
	return nil
}
