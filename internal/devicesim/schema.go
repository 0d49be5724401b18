package devicesim

import "github.com/sevfate/go-tcode/registry"

// DefaultSchema returns the enumeration document of the default simulated
// device: a stroke axis with limits, a twist axis, a vibrator and an
// auxiliary endpoint carrying one property of each interpretation.
func DefaultSchema() map[string]any {
	return map[string]any{
		"min_update_interval": int64(10),
		"max_update_interval": int64(10000),
		"L0": map[string]any{
			"description":                      "stroke",
			"support_update_callback":          true,
			"support_update_interval_callback": true,
			"support_update_speed_callback":    true,
			"support_stop_callback":            true,
			"props": map[string]any{
				"axis_limit_min": map[string]any{
					"type": "u", "flags": "rw", "min": int64(0), "max": int64(9999),
				},
				"axis_limit_max": map[string]any{
					"type": "u", "flags": "rw", "min": int64(0), "max": int64(9999),
				},
				"position": map[string]any{
					"type": "F", "flags": "re", "min": 0.0, "max": 1.0,
					"suggested_update_interval": int64(100),
				},
			},
		},
		"R0": map[string]any{
			"description":             "twist",
			"support_update_callback": true,
			"support_stop_callback":   true,
		},
		"V0": map[string]any{
			"description":                      "vibe",
			"support_update_callback":          true,
			"support_update_interval_callback": true,
			"support_stop_callback":            true,
		},
		"A0": map[string]any{
			"description":      "aux",
			"support_callback": true,
			"props": map[string]any{
				"temp": map[string]any{
					"type": "F", "flags": "re", "min": -20.0, "max": 120.0,
					"display_type": int64(registry.DisplaySliderBox),
					"suggested_update_interval": int64(1000),
				},
				"mode": map[string]any{
					"type": "u", "flags": "rwn", "display_type": int64(registry.DisplayComboBox),
					"enum_mapping": map[string]any{
						"keys":   []any{int64(0), int64(1), int64(2)},
						"labels": []any{"off", "slow", "fast"},
					},
				},
				"status": map[string]any{
					"type": "u", "flags": "rf", "display_type": int64(registry.DisplayListBox),
					"bitfield_mapping": map[string]any{
						"keys":   []any{int64(0), int64(1)},
						"labels": []any{"ready", "fault"},
					},
				},
				"samples": map[string]any{
					"type": "O", "flags": "reo", "display_type": int64(registry.DisplayPlot),
					"axis_mapping": map[string]any{"labels": []any{"t", "a"}},
				},
				"reset": map[string]any{
					"type": "u", "flags": "wal", "display_type": int64(registry.DisplayPressButton),
				},
				"label": map[string]any{
					"type": "S", "flags": "rw",
				},
				"gain": map[string]any{
					"type": "i", "flags": "rw", "min": int64(-100), "max": int64(100),
				},
			},
		},
	}
}
