package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/wire"
)

// printRegistry writes the device identity and every endpoint with its
// properties.
func printRegistry(w io.Writer, r *registry.Registry) {
	dev, proto := r.Device(), r.Protocol()
	fmt.Fprintf(w, "device:   %s %s\n", dev.Name, dev.Version)
	if id, ok := dev.UUID(); ok {
		fmt.Fprintf(w, "uuid:     %s\n", id)
	}
	fmt.Fprintf(w, "protocol: %s %s\n", proto.Name, proto.Version)
	lo, hi := r.UpdateIntervalBounds()
	fmt.Fprintf(w, "update intervals: %d..%d ms\n\n", lo, hi)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, idx := range r.Indices() {
		ep, _ := r.Endpoint(idx)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", idx, capabilities(ep), ep.Description())
		for _, name := range ep.PropertyNames() {
			p, _ := ep.Property(name)
			fmt.Fprintf(tw, "  %s\t%s %s\t%s\t%s\n", name, p.Type(), accessFlags(p), p.Interpretation(), formatValue(p))
		}
	}
	_ = tw.Flush()
}

func capabilities(ep *registry.Endpoint) string {
	var caps []string
	for _, c := range []struct {
		ok   bool
		name string
	}{
		{ep.SupportsCall(), "call"},
		{ep.SupportsUpdate(), "update"},
		{ep.SupportsIntervalUpdate(), "interval"},
		{ep.SupportsSpeedUpdate(), "speed"},
		{ep.SupportsStop(), "stop"},
	} {
		if c.ok {
			caps = append(caps, c.name)
		}
	}
	if len(caps) == 0 {
		return "-"
	}
	return strings.Join(caps, ",")
}

func accessFlags(p *registry.Property) string {
	b := []byte("----")
	if p.Readable() {
		b[0] = 'r'
	}
	if p.Writable() {
		b[1] = 'w'
	}
	if p.Event() {
		b[2] = 'e'
	}
	if p.Action() {
		b[3] = 'a'
	}
	return string(b)
}

// formatValue renders the latest value using the property's
// interpretation.
func formatValue(p *registry.Property) string {
	v := p.Value()
	if v == nil {
		return "<no data>"
	}

	switch p.Interpretation() {
	case registry.InterpEnum:
		if key, ok := unsigned(v); ok {
			if label, ok := p.EnumLabel(key); ok {
				return fmt.Sprintf("%s (%s)", label, v)
			}
		}
	case registry.InterpBoolean:
		if key, ok := unsigned(v); ok {
			return strconv.FormatBool(key != 0)
		}
	case registry.InterpBitfield:
		if key, ok := unsigned(v); ok {
			return fmt.Sprintf("[%s] (%#x)", strings.Join(p.BitLabels(key), " "), key)
		}
	}

	return v.String()
}

func unsigned(v registry.Value) (uint64, bool) {
	switch v := v.(type) {
	case registry.Uint32:
		return uint64(v), true
	case registry.Uint64:
		return uint64(v), true
	case registry.Int32:
		return uint64(v), v >= 0
	case registry.Int64:
		return uint64(v), v >= 0
	}
	return 0, false
}

var errObjectInput = errors.New("object properties cannot be set from text")

// parseValue converts user input into a value of the property's type.
// Enum properties accept their labels, boolean properties true/false.
func parseValue(p *registry.Property, arg string) (registry.Value, error) {
	switch p.Type() {
	case registry.TypeString:
		return registry.String(arg), nil
	case registry.TypeObject:
		return nil, errObjectInput
	}

	switch p.Interpretation() {
	case registry.InterpEnum:
		for _, e := range p.EnumMapping() {
			if strings.EqualFold(e.Label, arg) {
				return registry.NumericValue(p.Type(), float64(e.Key))
			}
		}
	case registry.InterpBoolean:
		if b, err := strconv.ParseBool(arg); err == nil {
			return registry.NumericValue(p.Type(), boolFloat(b))
		}
	}

	f, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q", p.Type(), arg)
	}

	return registry.NumericValue(p.Type(), f)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func formatAxis(idx wire.CommandIndex, ep *registry.Endpoint) string {
	mode, v, extra, ok := ep.PendingUpdate()
	if !ok {
		return idx.String()
	}
	switch mode {
	case registry.UpdateInterval:
		return fmt.Sprintf("%s %s I%d", idx, v, extra)
	case registry.UpdateSpeed:
		return fmt.Sprintf("%s %s S%d", idx, v, extra)
	default:
		return fmt.Sprintf("%s %s", idx, v)
	}
}
