package registry

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AxisLimits(t *testing.T) {
	r := enumerated(t)
	l, _ := r.Endpoint(l0)

	lo, hi, reversed := l.AxisLimits(3)
	assert.Equal(t, uint32(0), lo)
	assert.Equal(t, uint32(999), hi)
	assert.False(t, reversed)

	minProp, _ := r.Property(l0, AxisLimitMin)
	maxProp, _ := r.Property(l0, AxisLimitMax)
	assert.True(t, minProp.HasPendingOps(), "missing limit must be requested")
	assert.True(t, maxProp.HasPendingOps())

	require.NoError(t, r.HandlePropertyUpdate(l0, AxisLimitMin, binary.LittleEndian.AppendUint32(nil, 800)))
	require.NoError(t, r.HandlePropertyUpdate(l0, AxisLimitMax, binary.LittleEndian.AppendUint32(nil, 200)))
	lo, hi, reversed = l.AxisLimits(3)
	assert.Equal(t, uint32(799), lo)
	assert.Equal(t, uint32(200), hi)
	assert.True(t, reversed)

	rot, _ := r.Endpoint(r0)
	_, ok := rot.MinLimitProperty()
	assert.False(t, ok)
	lo, hi, reversed = rot.AxisLimits(4)
	assert.Equal(t, uint32(0), lo)
	assert.Equal(t, uint32(9999), hi)
	assert.False(t, reversed)
}

func TestProperty_Normalized(t *testing.T) {
	tests := []struct {
		name      string
		typ       PropertyType
		v, lo, hi Value
		want      float64
	}{
		{"uint32 mid", TypeUint32, Uint32(50), Uint32(0), Uint32(100), 0.5},
		{"int32 negative range", TypeInt32, Int32(0), Int32(-100), Int32(100), 0.5},
		{"int64 full range", TypeInt64, Int64(math.MaxInt64), Int64(math.MinInt64), Int64(math.MaxInt64), 1},
		{"uint64 quarter", TypeUint64, Uint64(25), Uint64(0), Uint64(100), 0.25},
		{"float", TypeFloat64, Float64(0.75), Float64(0.5), Float64(1), 0.5},
		{"clamped above", TypeFloat32, Float32(3), Float32(0), Float32(1), 1},
		{"clamped below", TypeInt32, Int32(-5), Int32(0), Int32(10), 0},
		{"empty range", TypeUint32, Uint32(3), Uint32(3), Uint32(3), 0},
		{"inverted range", TypeUint32, Uint32(3), Uint32(9), Uint32(1), 0},
		{"missing bound", TypeUint32, Uint32(3), nil, Uint32(9), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Property{typ: tt.typ, latest: tt.v, min: tt.lo, max: tt.hi}
			assert.InDelta(t, tt.want, p.Normalized(), 1e-9)
		})
	}

	p := &Property{typ: TypeUint32, latest: Uint32(1), min: Uint32(0), max: Uint32(3)}
	assert.Equal(t, uint32(333), p.Ratio(3))
}

func TestDecodeValue(t *testing.T) {
	v, err := DecodeValue(TypeFloat64, binary.LittleEndian.AppendUint64(nil, math.Float64bits(1.5)))
	require.NoError(t, err)
	assert.Equal(t, Float64(1.5), v)

	_, err = DecodeValue(TypeUint64, []byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrPayloadSize)

	_, err = DecodeValue(TypeObject, []byte{'{'})
	assert.Error(t, err)

	data, null, err := Object{Doc: map[string]any{"a": int64(1)}}.Encode()
	require.NoError(t, err)
	assert.Equal(t, byte('N'), null)
	v, err = DecodeValue(TypeObject, data)
	require.NoError(t, err)
	assert.Equal(t, Object{Doc: map[string]any{"a": int64(1)}}, v)
}
