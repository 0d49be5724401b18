package ubjson

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevfate/go-tcode/z85"
)

func TestMarshal_Markers(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []byte
	}{
		{"null", nil, []byte{'Z'}},
		{"true", true, []byte{'T'}},
		{"uint8", 200, []byte{'U', 200}},
		{"int8", -5, []byte{'i', 0xFB}},
		{"int16", 1000, []byte{'I', 0x03, 0xE8}},
		{"int32", int64(-70000), []byte{'l', 0xFF, 0xFE, 0xEE, 0x90}},
		{"int64", int64(math.MaxInt64), []byte{'L', 0x7F, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"string", "ab", []byte{'S', 'U', 2, 'a', 'b'}},
		{"bytes", []byte{1, 2}, []byte{'[', '$', 'U', '#', 'U', 2, 1, 2}},
		{"array", []any{true, nil}, []byte{'[', 'T', 'Z', ']'}},
		{"object sorted", map[string]any{"b": 1, "a": false}, []byte{'{', 'U', 1, 'a', 'F', 'U', 1, 'b', 'U', 1, '}'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTrip_Document(t *testing.T) {
	doc := map[string]any{
		"name":    "OSR2",
		"version": "1.2",
		"uuid":    []byte{0xDE, 0xAD, 0xBE, 0xEF},
		"L0": map[string]any{
			"support_update_callback": true,
			"description":             "stroke",
			"props": map[string]any{
				"gain": map[string]any{"type": "F", "flags": "rw", "min": 0.5, "max": 2.25},
			},
		},
		"labels":     []string{"x", "y"},
		"keys":       []int64{-1, 300, 70000},
		"big":        uint64(math.MaxUint64),
		"single":     float32(1.5),
		"max_update": uint32(math.MaxUint32),
	}

	raw, err := Marshal(doc)
	require.NoError(t, err)

	v, err := Unmarshal(raw)
	require.NoError(t, err)
	obj, ok := AsObject(v)
	require.True(t, ok)

	assert.Equal(t, "OSR2", obj["name"])
	uuid, ok := AsBytes(obj["uuid"])
	require.True(t, ok)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, uuid)

	l0, _ := AsObject(obj["L0"])
	assert.Equal(t, true, l0["support_update_callback"])
	props, _ := AsObject(l0["props"])
	gain, _ := AsObject(props["gain"])
	assert.Equal(t, 0.5, gain["min"])
	assert.Equal(t, 2.25, gain["max"])

	assert.Equal(t, []any{"x", "y"}, obj["labels"])
	assert.Equal(t, []any{int64(-1), int64(300), int64(70000)}, obj["keys"])
	assert.Equal(t, float64(math.MaxUint64), obj["big"])
	assert.Equal(t, 1.5, obj["single"])

	n, ok := AsUint32(obj["max_update"])
	assert.True(t, ok)
	assert.Equal(t, uint32(math.MaxUint32), n)
}

func TestUnmarshal_NoOpsAndOptimizedContainers(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want any
	}{
		{"trailing padding", []byte{'U', 7, 'N', 'N', 'N'}, int64(7)},
		{"leading no-op", []byte{'N', 'T'}, true},
		{"no-op inside array", []byte{'[', 'N', 'U', 1, 'N', ']'}, []any{int64(1)}},
		{"counted array", []byte{'[', '#', 'U', 2, 'T', 'F'}, []any{true, false}},
		{"typed counted array", []byte{'[', '$', 'i', '#', 'U', 2, 0xFF, 0x01}, []any{int64(-1), int64(1)}},
		{"counted object", []byte{'{', '#', 'U', 1, 'U', 1, 'k', 'S', 'U', 1, 'v'}, map[string]any{"k": "v"}},
		{"typed object", []byte{'{', '$', 'T', '#', 'U', 1, 'U', 1, 'k'}, map[string]any{"k": true}},
		{"no-op before object end", []byte{'{', 'N', '}', 'N'}, map[string]any{}},
		{"char", []byte{'C', 'x'}, "x"},
		{"high precision int", []byte{'H', 'U', 2, '4', '2'}, int64(42)},
		{"float32", []byte{'d', 0x3F, 0xC0, 0x00, 0x00}, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unmarshal(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Object payloads travel Z85 encoded and their last group is padded with
// no-op markers, so decoding accepts the padding but nothing else.
func TestUnmarshal_Z85PaddedPayload(t *testing.T) {
	doc := map[string]any{"x": "ms", "y": []any{"pressure", "temp"}}
	raw, err := Marshal(doc)
	require.NoError(t, err)

	for pad := range 4 {
		payload := append(append([]byte{}, raw...), bytes.Repeat([]byte{'N'}, pad)...)
		decoded, err := z85.DecodeString(string(z85.EncodePadded(payload, 'N')))
		require.NoError(t, err)

		got, err := Unmarshal(decoded)
		require.NoError(t, err, "pad %d", pad)
		assert.Equal(t, doc, got)
	}

	_, err = Unmarshal(append(raw, 0))
	require.ErrorIs(t, err, ErrTrailingData)
}

func TestUnmarshal_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		err  error
	}{
		{"empty", nil, ErrUnexpectedEOF},
		{"only padding", []byte{'N', 'N'}, ErrUnexpectedEOF},
		{"truncated int", []byte{'I', 0x01}, ErrUnexpectedEOF},
		{"truncated string", []byte{'S', 'U', 5, 'a'}, ErrUnexpectedEOF},
		{"unterminated array", []byte{'[', 'T'}, ErrUnexpectedEOF},
		{"unknown marker", []byte{'Q'}, ErrInvalidMarker},
		{"typed without count", []byte{'[', '$', 'U', 1}, ErrInvalidMarker},
		{"negative length", []byte{'S', 'i', 0xFF}, ErrInvalidLength},
		{"trailing data", []byte{'T', 'T'}, ErrTrailingData},
		{"trailing nul", []byte{'T', 0}, ErrTrailingData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.raw)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestUnmarshal_Depth(t *testing.T) {
	raw := make([]byte, 0, 2*MaxDepth+2)
	for i := 0; i <= MaxDepth; i++ {
		raw = append(raw, '[')
	}
	_, err := Unmarshal(raw)
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestMarshal_Unsupported(t *testing.T) {
	_, err := Marshal(struct{}{})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Marshal(map[string]any{"x": []any{complex(1, 1)}})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	assert.Panics(t, func() { MustMarshal(make(chan int)) })
}

func TestValueHelpers(t *testing.T) {
	n, ok := AsInt64(3.0)
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	_, ok = AsInt64(3.5)
	assert.False(t, ok)

	_, ok = AsUint32(int64(-1))
	assert.False(t, ok)

	f, ok := AsFloat64(int64(2))
	assert.True(t, ok)
	assert.Equal(t, 2.0, f)

	_, ok = AsBytes([]any{int64(256)})
	assert.False(t, ok)
}
