package registry

import (
	"github.com/sevfate/go-tcode/wire"
)

var (
	l0 = wire.MustParseCommandIndex("L0")
	r0 = wire.MustParseCommandIndex("R0")
	a0 = wire.MustParseCommandIndex("A0")
)

// testSchema returns a fresh, valid enumeration document as decoded by the
// ubjson package.
func testSchema() map[string]any {
	return map[string]any{
		"min_update_interval": int64(10),
		"max_update_interval": int64(5000),
		"L0": map[string]any{
			"support_update_callback":          true,
			"support_update_interval_callback": true,
			"support_update_speed_callback":    true,
			"support_stop_callback":            true,
			"description":                      "stroke",
			"props": map[string]any{
				"axis_limit_min": map[string]any{
					"type": "u", "flags": "rw", "min": int64(0), "max": int64(1000),
				},
				"axis_limit_max": map[string]any{
					"type": "u", "flags": "rw", "min": int64(0), "max": int64(1000),
				},
				"position": map[string]any{
					"type": "F", "flags": "re", "min": 0.0, "max": 1.0,
					"suggested_update_interval": int64(100),
				},
			},
		},
		"R0": map[string]any{
			"support_update_callback": true,
		},
		"A0": map[string]any{
			"support_callback": true,
			"props": map[string]any{
				"mode": map[string]any{
					"type": "u", "flags": "rwn", "display_type": int64(DisplayComboBox),
					"enum_mapping": map[string]any{
						"keys":   []any{int64(2), int64(0), int64(1)},
						"labels": []any{"fast", "off", "slow"},
					},
				},
				"status": map[string]any{
					"type": "U", "flags": "ref",
					"bitfield_mapping": map[string]any{
						"keys":   []any{int64(0), int64(3)},
						"labels": []any{"ready", "fault"},
					},
				},
				"samples": map[string]any{
					"type": "O", "flags": "reo", "display_type": int64(DisplayPlot),
					"axis_mapping": map[string]any{"labels": []any{"t", "a", "b"}},
				},
				"reset": map[string]any{
					"type": "u", "flags": "wal", "display_type": int64(DisplayPressButton),
				},
				"label": map[string]any{
					"type": "S", "flags": "rw",
				},
				"gain": map[string]any{
					"type": "i", "flags": "rw", "min": int64(-100), "max": int64(100),
				},
			},
		},
		"name": "ignored non-object entry",
	}
}

// prop returns the property object at ep.props.name of doc.
func prop(doc map[string]any, ep, name string) map[string]any {
	return doc[ep].(map[string]any)["props"].(map[string]any)[name].(map[string]any)
}

type sinkRecord struct {
	op    string
	idx   wire.CommandIndex
	name  string
	value wire.Fractional
	extra uint32
	data  []byte
	null  byte
}

// recordingSink captures the records it receives, in order.
type recordingSink struct {
	records []sinkRecord
}

func (s *recordingSink) Call(idx wire.CommandIndex) {
	s.records = append(s.records, sinkRecord{op: "call", idx: idx})
}

func (s *recordingSink) AxisUpdate(idx wire.CommandIndex, v wire.Fractional) {
	s.records = append(s.records, sinkRecord{op: "update", idx: idx, value: v})
}

func (s *recordingSink) AxisIntervalUpdate(idx wire.CommandIndex, v wire.Fractional, ms uint32) {
	s.records = append(s.records, sinkRecord{op: "interval", idx: idx, value: v, extra: ms})
}

func (s *recordingSink) AxisSpeedUpdate(idx wire.CommandIndex, v wire.Fractional, speed uint32) {
	s.records = append(s.records, sinkRecord{op: "speed", idx: idx, value: v, extra: speed})
}

func (s *recordingSink) Stop(idx wire.CommandIndex) {
	s.records = append(s.records, sinkRecord{op: "stop", idx: idx})
}

func (s *recordingSink) PropertyGet(idx wire.CommandIndex, name string) {
	s.records = append(s.records, sinkRecord{op: "get", idx: idx, name: name})
}

func (s *recordingSink) PropertyInterval(idx wire.CommandIndex, name string, ms uint32) {
	s.records = append(s.records, sinkRecord{op: "pinterval", idx: idx, name: name, extra: ms})
}

func (s *recordingSink) PropertySet(idx wire.CommandIndex, name string, data []byte, null byte) {
	s.records = append(s.records, sinkRecord{op: "set", idx: idx, name: name, data: data, null: null})
}

func (s *recordingSink) ops() []string {
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.idx.String() + ":" + r.op
		if r.name != "" {
			out[i] += ":" + r.name
		}
	}
	return out
}
