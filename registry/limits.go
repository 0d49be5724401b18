package registry

import "github.com/sevfate/go-tcode/wire"

// Names of the properties that bound an axis' travel.
const (
	AxisLimitMin = "axis_limit_min"
	AxisLimitMax = "axis_limit_max"
)

// MinLimitProperty returns the numeric axis_limit_min property, if any.
func (e *Endpoint) MinLimitProperty() (*Property, bool) {
	return e.limitProperty(AxisLimitMin)
}

// MaxLimitProperty returns the numeric axis_limit_max property, if any.
func (e *Endpoint) MaxLimitProperty() (*Property, bool) {
	return e.limitProperty(AxisLimitMax)
}

func (e *Endpoint) limitProperty(name string) (*Property, bool) {
	p, ok := e.props[name]
	if !ok || !p.typ.IsNumeric() {
		return nil, false
	}
	return p, true
}

// AxisLimits returns the travel limits of the axis as numerators with the
// given number of fractional digits, and whether the limits are reversed
// (min above max).
//
// A limit property that exists but has no value yet is scheduled for a
// get and the full range is assumed for it.
func (e *Endpoint) AxisLimits(digits int) (lo, hi uint32, reversed bool) {
	lo, hi = 0, wire.MustNines(digits)
	if p, ok := e.MinLimitProperty(); ok {
		if p.HasData() {
			lo = p.Ratio(digits)
		} else {
			p.PendGet()
		}
	}
	if p, ok := e.MaxLimitProperty(); ok {
		if p.HasData() {
			hi = p.Ratio(digits)
		} else {
			p.PendGet()
		}
	}
	return lo, hi, lo > hi
}

// PendSuggestedPropertyIntervals applies every non-zero suggested property
// interval of every endpoint.
func (r *Registry) PendSuggestedPropertyIntervals() {
	for _, ep := range r.endpoints {
		ep.PendSuggestedPropertyIntervals()
	}
}
