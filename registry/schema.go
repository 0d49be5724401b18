package registry

import (
	"math"
	"slices"

	"github.com/sevfate/go-tcode/ubjson"
	"github.com/sevfate/go-tcode/wire"
)

type schema struct {
	minInterval uint32
	maxInterval uint32
	endpoints   map[wire.CommandIndex]*Endpoint
}

// parseSchema validates a complete enumeration document. Any invalid
// endpoint or property rejects the whole document.
func parseSchema(doc any) (*schema, error) {
	root, ok := ubjson.AsObject(doc)
	if !ok {
		return nil, schemaErrorf("", "document is not an object")
	}

	s := &schema{
		maxInterval: math.MaxUint32,
		endpoints:   make(map[wire.CommandIndex]*Endpoint),
	}
	if v, ok := ubjson.AsUint32(root["min_update_interval"]); ok {
		s.minInterval = v
	}
	if v, ok := ubjson.AsUint32(root["max_update_interval"]); ok {
		s.maxInterval = v
	}
	if s.minInterval > s.maxInterval {
		return nil, schemaErrorf("", "min_update_interval %d above max_update_interval %d", s.minInterval, s.maxInterval)
	}

	keys := make([]string, 0, len(root))
	for k := range root {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		obj, ok := ubjson.AsObject(root[key])
		if !ok {
			continue
		}
		if len(key) != 2 {
			return nil, schemaErrorf(key, "endpoint key must be a two character command index")
		}
		idx, err := wire.ParseCommandIndex(key)
		if err != nil {
			return nil, schemaErrorf(key, "%v", err)
		}
		ep, err := s.parseEndpoint(idx, obj)
		if err != nil {
			return nil, err
		}
		s.endpoints[idx] = ep
	}
	return s, nil
}

func (s *schema) parseEndpoint(idx wire.CommandIndex, obj map[string]any) (*Endpoint, error) {
	path := idx.String()
	ep := &Endpoint{index: idx, props: make(map[string]*Property)}

	flags := []struct {
		key string
		dst *bool
	}{
		{"support_callback", &ep.supportCall},
		{"support_update_callback", &ep.supportUpdate},
		{"support_update_interval_callback", &ep.supportInterval},
		{"support_update_speed_callback", &ep.supportSpeed},
		{"support_stop_callback", &ep.supportStop},
	}
	for _, f := range flags {
		raw, present := obj[f.key]
		if !present {
			continue
		}
		b, ok := ubjson.AsBool(raw)
		if !ok {
			return nil, schemaErrorf(path+"."+f.key, "not a boolean")
		}
		*f.dst = b
	}
	if d, ok := ubjson.AsString(obj["description"]); ok {
		ep.description = d
	}

	raw, present := obj["props"]
	if !present {
		return ep, nil
	}
	props, ok := ubjson.AsObject(raw)
	if !ok {
		return nil, schemaErrorf(path+".props", "not an object")
	}
	for name, rawProp := range props {
		ppath := path + ".props." + name
		if !wire.ValidPropertyName(name) {
			return nil, schemaErrorf(ppath, "invalid property name")
		}
		pobj, ok := ubjson.AsObject(rawProp)
		if !ok {
			return nil, schemaErrorf(ppath, "not an object")
		}
		p, err := s.parseProperty(ppath, name, pobj)
		if err != nil {
			return nil, err
		}
		if (name == AxisLimitMin || name == AxisLimitMax) && !p.typ.IsNumeric() {
			return nil, schemaErrorf(ppath, "axis limit must be numeric")
		}
		ep.props[name] = p
	}
	return ep, nil
}

func (s *schema) parseProperty(path, name string, obj map[string]any) (*Property, error) {
	p := &Property{
		name:        name,
		minInterval: s.minInterval,
		maxInterval: s.maxInterval,
	}

	ts, ok := ubjson.AsString(obj["type"])
	if !ok || len(ts) != 1 {
		return nil, schemaErrorf(path+".type", "must be a single character")
	}
	if p.typ, ok = ParsePropertyType(ts[0]); !ok {
		return nil, schemaErrorf(path+".type", "unknown type %q", ts)
	}

	fs, ok := ubjson.AsString(obj["flags"])
	if !ok {
		return nil, schemaErrorf(path+".flags", "missing")
	}
	if err := p.parseFlags(path+".flags", fs); err != nil {
		return nil, err
	}

	var err error
	switch p.interp {
	case InterpEnum:
		err = p.parseEnums(path+".enum_mapping", obj["enum_mapping"])
	case InterpBitfield:
		err = p.parseBits(path+".bitfield_mapping", obj["bitfield_mapping"])
	case InterpObservations:
		err = p.parseAxes(path+".axis_mapping", obj["axis_mapping"])
	}
	if err != nil {
		return nil, err
	}

	if raw, present := obj["display_type"]; present {
		n, ok := ubjson.AsInt64(raw)
		if !ok || n < 0 || n > math.MaxUint8 {
			return nil, schemaErrorf(path+".display_type", "not a display type")
		}
		p.display = DisplayType(n)
		if err := p.checkDisplay(path + ".display_type"); err != nil {
			return nil, err
		}
	}

	if !p.read && (p.interp != InterpBoolean || p.display != DisplayPressButton) {
		return nil, schemaErrorf(path+".flags", "only boolean press buttons may be write-only")
	}

	if p.typ.IsNumeric() {
		if v, ok := schemaNumber(p.typ, obj["min"]); ok {
			p.min = v
		}
		if v, ok := schemaNumber(p.typ, obj["max"]); ok {
			p.max = v
		}
	}
	if v, ok := ubjson.AsUint32(obj["current_update_interval"]); ok {
		p.currentInterval = v
	}
	if v, ok := ubjson.AsUint32(obj["suggested_update_interval"]); ok {
		p.suggestedInterval = v
	}
	return p, nil
}

func (p *Property) parseFlags(path, flags string) error {
	interpSet := false
	setInterp := func(i Interpretation, c byte) error {
		if interpSet {
			return schemaErrorf(path, "second interpretation flag %q", c)
		}
		interpSet = true
		p.interp = i
		return nil
	}
	for i := 0; i < len(flags); i++ {
		c := flags[i]
		var err error
		switch c {
		case 'r':
			p.read = true
		case 'w':
			p.write = true
		case 'e':
			p.event = true
		case 'a':
			p.action = true
		case 'n':
			err = setInterp(InterpEnum, c)
		case 'l':
			err = setInterp(InterpBoolean, c)
		case 'f':
			err = setInterp(InterpBitfield, c)
		case 'o':
			err = setInterp(InterpObservations, c)
		default:
			err = schemaErrorf(path, "unknown flag %q", c)
		}
		if err != nil {
			return err
		}
	}
	if p.action && !p.write {
		return schemaErrorf(path, "action requires write")
	}
	if p.event && !p.read {
		return schemaErrorf(path, "event requires read")
	}
	return nil
}

// mappingPairs returns the parallel keys and labels arrays of a mapping.
func mappingPairs(path string, raw any) ([]any, []any, error) {
	obj, ok := ubjson.AsObject(raw)
	if !ok {
		return nil, nil, schemaErrorf(path, "missing or not an object")
	}
	keys, ok1 := ubjson.AsArray(obj["keys"])
	labels, ok2 := ubjson.AsArray(obj["labels"])
	if !ok1 || !ok2 {
		return nil, nil, schemaErrorf(path, "keys and labels must be arrays")
	}
	if len(keys) != len(labels) {
		return nil, nil, schemaErrorf(path, "%d keys for %d labels", len(keys), len(labels))
	}
	return keys, labels, nil
}

func (p *Property) parseEnums(path string, raw any) error {
	keys, labels, err := mappingPairs(path, raw)
	if err != nil {
		return err
	}
	for i := range keys {
		k, ok := ubjson.AsInt64(keys[i])
		if !ok {
			return schemaErrorf(path, "key %d is not an integer", i)
		}
		l, ok := ubjson.AsString(labels[i])
		if !ok {
			return schemaErrorf(path, "label %d is not a string", i)
		}
		if slices.ContainsFunc(p.enums, func(e EnumEntry) bool { return e.Key == uint64(k) }) {
			return schemaErrorf(path, "duplicate key %d", k)
		}
		p.enums = append(p.enums, EnumEntry{Key: uint64(k), Label: l})
	}
	slices.SortFunc(p.enums, func(a, b EnumEntry) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
	return nil
}

func (p *Property) parseBits(path string, raw any) error {
	keys, labels, err := mappingPairs(path, raw)
	if err != nil {
		return err
	}
	for i := range keys {
		bit, ok := ubjson.AsInt64(keys[i])
		if !ok || bit < 0 || bit >= 64 {
			return schemaErrorf(path, "key %d is not a bit index", i)
		}
		l, ok := ubjson.AsString(labels[i])
		if !ok {
			return schemaErrorf(path, "label %d is not a string", i)
		}
		mask := uint64(1) << bit
		if slices.ContainsFunc(p.bits, func(b BitfieldEntry) bool { return b.Mask == mask }) {
			return schemaErrorf(path, "duplicate bit %d", bit)
		}
		p.bits = append(p.bits, BitfieldEntry{Mask: mask, Label: l})
	}
	slices.SortFunc(p.bits, func(a, b BitfieldEntry) int {
		switch {
		case a.Mask < b.Mask:
			return -1
		case a.Mask > b.Mask:
			return 1
		}
		return 0
	})
	return nil
}

func (p *Property) parseAxes(path string, raw any) error {
	obj, ok := ubjson.AsObject(raw)
	if !ok {
		return schemaErrorf(path, "missing or not an object")
	}
	labels, ok := ubjson.AsArray(obj["labels"])
	if !ok || len(labels) < 2 {
		return schemaErrorf(path, "labels must name the x axis and at least one y axis")
	}
	axes := &ObservationAxes{}
	for i, raw := range labels {
		l, ok := ubjson.AsString(raw)
		if !ok {
			return schemaErrorf(path, "label %d is not a string", i)
		}
		if i == 0 {
			axes.X = l
		} else {
			axes.Y = append(axes.Y, l)
		}
	}
	p.axes = axes
	return nil
}

// checkDisplay enforces the display type compatibility table.
func (p *Property) checkDisplay(path string) error {
	integral := p.typ.IsIntegral()
	numeric := p.typ.IsNumeric()
	normalOrBool := p.interp == InterpNormal || p.interp == InterpBoolean

	var ok bool
	switch p.display {
	case DisplayDefault:
		ok = true
	case DisplayTextBox:
		ok = p.interp == InterpNormal || p.interp == InterpBitfield
	case DisplayDragBox:
		ok = numeric && normalOrBool
	case DisplayPressButton:
		ok = p.action && integral && normalOrBool
	case DisplayToggleButton:
		ok = (p.action || p.event) && integral && normalOrBool
	case DisplayCheckboxButton:
		ok = integral && (p.interp == InterpBitfield || ((p.action || p.event) && normalOrBool))
	case DisplayRadioButton, DisplayComboBox:
		ok = integral && p.interp == InterpEnum
	case DisplaySliderBox:
		switch p.interp {
		case InterpEnum:
			ok = integral
		case InterpNormal:
			ok = numeric
		}
	case DisplayListBox:
		ok = integral && (p.interp == InterpEnum || p.interp == InterpBitfield)
	case DisplayPlot:
		ok = p.event && p.typ == TypeObject && p.interp == InterpObservations
	default:
		return schemaErrorf(path, "unknown display type %d", uint8(p.display))
	}
	if !ok {
		return schemaErrorf(path, "%s cannot display %s %s", p.display, p.interp, p.typ)
	}
	return nil
}
