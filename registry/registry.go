// Package registry models a device's self-description: its identity, its
// protocol version and the endpoints and properties it enumerates.
//
// The registry also holds the operations scheduled by the host. They are
// emitted as one request by ConsumePendingOps, in a deterministic order.
//
// A Registry is not safe for concurrent use. The connection that owns it
// serializes access and hands it out through an explicit acquire.
package registry

import (
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/sevfate/go-tcode/ubjson"
	"github.com/sevfate/go-tcode/wire"
)

// DeviceInfo is the device's answer to the D0 query.
type DeviceInfo struct {
	Name    string
	Version string
	Key     []byte
}

// UUID returns the device key as a UUID when it is exactly 16 bytes.
func (d DeviceInfo) UUID() (uuid.UUID, bool) {
	id, err := uuid.FromBytes(d.Key)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// ProtocolInfo is the device's answer to the D1 query.
type ProtocolInfo struct {
	Name    string
	Version string
}

// Registry is the enumerated model of a device.
type Registry struct {
	device   DeviceInfo
	protocol ProtocolInfo

	minInterval uint32
	maxInterval uint32

	endpoints map[wire.CommandIndex]*Endpoint

	onEnumerated func(r *Registry)
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		maxInterval: math.MaxUint32,
		endpoints:   make(map[wire.CommandIndex]*Endpoint),
	}
}

func (r *Registry) Device() DeviceInfo     { return r.device }
func (r *Registry) Protocol() ProtocolInfo { return r.protocol }

// UpdateIntervalBounds returns the device's accepted property update
// interval range in milliseconds.
func (r *Registry) UpdateIntervalBounds() (lo, hi uint32) {
	return r.minInterval, r.maxInterval
}

// SetEnumerationCallback sets the function run after every successful
// enumeration.
func (r *Registry) SetEnumerationCallback(fn func(r *Registry)) {
	r.onEnumerated = fn
}

// Renew returns an empty registry that keeps r's enumeration callback.
func (r *Registry) Renew() *Registry {
	fresh := New()
	fresh.onEnumerated = r.onEnumerated
	return fresh
}

// Endpoint returns the endpoint at idx.
func (r *Registry) Endpoint(idx wire.CommandIndex) (*Endpoint, bool) {
	ep, ok := r.endpoints[idx]
	return ep, ok
}

// Property returns the named property of the endpoint at idx.
func (r *Registry) Property(idx wire.CommandIndex, name string) (*Property, bool) {
	ep, ok := r.endpoints[idx]
	if !ok {
		return nil, false
	}
	return ep.Property(name)
}

// Indices returns every enumerated command index in ascending order.
func (r *Registry) Indices() []wire.CommandIndex {
	out := make([]wire.CommandIndex, 0, len(r.endpoints))
	for idx := range r.endpoints {
		out = append(out, idx)
	}
	slices.SortFunc(out, wire.CommandIndex.Compare)
	return out
}

// Len returns the number of enumerated endpoints.
func (r *Registry) Len() int { return len(r.endpoints) }

// ApplyDeviceInfo stores a D0 response. The key is optional; a key that is
// not a byte array is ignored and reported through keyErr.
func (r *Registry) ApplyDeviceInfo(doc any) (keyErr error, err error) {
	obj, ok := ubjson.AsObject(doc)
	if !ok {
		return nil, fmt.Errorf("%w: device info is not an object", ErrMalformedInfo)
	}
	name, ok1 := ubjson.AsString(obj["name"])
	version, ok2 := ubjson.AsString(obj["version"])
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: device info needs name and version", ErrMalformedInfo)
	}
	info := DeviceInfo{Name: name, Version: version}
	if raw, present := obj["uuid"]; present {
		if key, ok := ubjson.AsBytes(raw); ok {
			info.Key = key
		} else {
			keyErr = fmt.Errorf("%w: device key is not a byte array", ErrMalformedInfo)
		}
	}
	r.device = info
	return keyErr, nil
}

// ApplyProtocolInfo stores a D1 response.
func (r *Registry) ApplyProtocolInfo(doc any) error {
	obj, ok := ubjson.AsObject(doc)
	if !ok {
		return fmt.Errorf("%w: protocol info is not an object", ErrMalformedInfo)
	}
	name, ok1 := ubjson.AsString(obj["name"])
	version, ok2 := ubjson.AsString(obj["version"])
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: protocol info needs name and version", ErrMalformedInfo)
	}
	r.protocol = ProtocolInfo{Name: name, Version: version}
	return nil
}

// ApplyEnumeration validates a D2 response and, when the whole document is
// valid, replaces the endpoint map and fires the enumeration callback. On
// error the registry is left unchanged and the error is a *SchemaError.
func (r *Registry) ApplyEnumeration(doc any) error {
	s, err := parseSchema(doc)
	if err != nil {
		return err
	}
	r.minInterval = s.minInterval
	r.maxInterval = s.maxInterval
	r.endpoints = s.endpoints
	if r.onEnumerated != nil {
		r.onEnumerated(r)
	}
	return nil
}

// HandleEndpointResponse stores a call response for idx and fires the
// endpoint callback.
func (r *Registry) HandleEndpointResponse(idx wire.CommandIndex, doc any) error {
	ep, ok := r.endpoints[idx]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, idx)
	}
	ep.respond(doc)
	return nil
}

// HandlePropertyUpdate decodes and stores a property payload and fires the
// property callback.
func (r *Registry) HandlePropertyUpdate(idx wire.CommandIndex, name string, payload []byte) error {
	ep, ok := r.endpoints[idx]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, idx)
	}
	p, ok := ep.props[name]
	if !ok {
		return fmt.Errorf("%w: %s%s", ErrUnknownProperty, idx, name)
	}
	if err := p.update(idx, payload); err != nil {
		return fmt.Errorf("%s%s: %w", idx, name, err)
	}
	return nil
}

// HasPendingOps reports whether any endpoint or property has a scheduled
// operation.
func (r *Registry) HasPendingOps() bool {
	for _, ep := range r.endpoints {
		if ep.HasPendingOps() {
			return true
		}
		for _, p := range ep.props {
			if p.HasPendingOps() {
				return true
			}
		}
	}
	return false
}

// ClearPendingOps drops every scheduled operation.
func (r *Registry) ClearPendingOps() {
	for _, ep := range r.endpoints {
		ep.ClearPendingOps()
		for _, p := range ep.props {
			p.ClearPendingOps()
		}
	}
}
