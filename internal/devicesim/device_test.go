package devicesim

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/ubjson"
	"github.com/sevfate/go-tcode/wire"
)

var (
	l0 = wire.MustParseCommandIndex("L0")
	r0 = wire.MustParseCommandIndex("R0")
	a0 = wire.MustParseCommandIndex("A0")
	v9 = wire.MustParseCommandIndex("V9")
)

// request builds one request line with a RequestWriter.
func request(t *testing.T, build func(w *wire.RequestWriter)) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := wire.NewRequestWriter(&buf)
	w.Begin()
	build(w)
	require.NoError(t, w.End())

	return buf.Bytes()
}

func respond(t *testing.T, d *Device, line []byte) ([]wire.Record, wire.Error) {
	t.Helper()

	records, err := wire.ParseResponse(d.HandleLine(line))
	require.NoError(t, err)
	require.NotEmpty(t, records)

	term, ok := records[len(records)-1].(*wire.TerminatorRecord)
	require.True(t, ok)
	e, err := term.Error()
	require.NoError(t, err)

	return records[:len(records)-1], e
}

func TestDevice_Enumeration(t *testing.T) {
	id := uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-901234567890")
	d, err := New(WithIdentity("bench", "2.1"), WithUUID(id))
	require.NoError(t, err)

	records, e := respond(t, d, request(t, func(w *wire.RequestWriter) {
		w.Call(wire.DeviceInfo)
		w.Call(wire.DeviceProtocol)
		w.Call(wire.DeviceEnumeration)
	}))
	require.False(t, e.HasError())
	require.Len(t, records, 3)

	reg := registry.New()
	for _, rec := range records {
		ep := rec.(*wire.EndpointRecord)
		doc, err := ubjson.Unmarshal(ep.Payload)
		require.NoError(t, err)

		switch ep.Index {
		case wire.DeviceInfo:
			keyErr, err := reg.ApplyDeviceInfo(doc)
			require.NoError(t, err)
			require.NoError(t, keyErr)
		case wire.DeviceProtocol:
			require.NoError(t, reg.ApplyProtocolInfo(doc))
		case wire.DeviceEnumeration:
			require.NoError(t, reg.ApplyEnumeration(doc))
		}
	}

	assert.Equal(t, "bench", reg.Device().Name)
	got, ok := reg.Device().UUID()
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, ProtocolName, reg.Protocol().Name)
	assert.Equal(t, 4, reg.Len())
}

func TestDevice_Properties(t *testing.T) {
	d, err := New()
	require.NoError(t, err)

	_, e := respond(t, d, request(t, func(w *wire.RequestWriter) {
		data, null, err := registry.Int32(-42).Encode()
		require.NoError(t, err)
		w.PropertySet(a0, "gain", data, null)

		data, null, err = registry.String("bench 7").Encode()
		require.NoError(t, err)
		w.PropertySet(a0, "label", data, null)

		w.PropertyInterval(a0, "temp", 250)
	}))
	require.False(t, e.HasError())

	v, ok := d.Value(a0, "gain")
	require.True(t, ok)
	assert.Equal(t, registry.Int32(-42), v)
	v, _ = d.Value(a0, "label")
	assert.Equal(t, registry.String("bench 7"), v)
	assert.Equal(t, uint32(250), d.Interval(a0, "temp"))

	records, e := respond(t, d, request(t, func(w *wire.RequestWriter) {
		w.PropertyGet(a0, "gain")
		w.PropertyGet(a0, "label")
	}))
	require.False(t, e.HasError())
	require.Len(t, records, 2)

	gain := records[0].(*wire.PropertyRecord)
	assert.Equal(t, "gain", gain.Property)
	decoded, err := registry.DecodeValue(registry.TypeInt32, gain.Payload)
	require.NoError(t, err)
	assert.Equal(t, registry.Int32(-42), decoded)

	label := records[1].(*wire.PropertyRecord)
	decoded, err = registry.DecodeValue(registry.TypeString, label.Payload)
	require.NoError(t, err)
	assert.Equal(t, registry.String("bench 7"), decoded)
}

func TestDevice_Axes(t *testing.T) {
	d, err := New()
	require.NoError(t, err)

	_, e := respond(t, d, request(t, func(w *wire.RequestWriter) {
		w.AxisIntervalUpdate(l0, wire.NewFractional(25, 2), 500)
		w.AxisUpdate(r0, wire.NewFractional(5, 1))
	}))
	require.False(t, e.HasError())

	st, ok := d.Axis(l0)
	require.True(t, ok)
	assert.Equal(t, registry.UpdateInterval, st.Mode)
	assert.Equal(t, uint32(500), st.Extra)
	assert.Equal(t, wire.NewFractional(25, 2), st.Target)

	_, e = respond(t, d, request(t, func(w *wire.RequestWriter) { w.StopAll() }))
	require.False(t, e.HasError())
	st, _ = d.Axis(r0)
	assert.True(t, st.Stopped)
}

func TestDevice_Errors(t *testing.T) {
	d, err := New()
	require.NoError(t, err)

	tests := []struct {
		name   string
		line   []byte
		code   wire.ErrorCode
		stream uint16
	}{
		{
			name: "unknown endpoint",
			line: request(t, func(w *wire.RequestWriter) {
				w.AxisUpdate(l0, wire.NewFractional(5, 1))
				w.Call(v9)
			}),
			code:   wire.CodeInvalidCommandIndex,
			stream: 1,
		},
		{
			name:   "unknown property",
			line:   request(t, func(w *wire.RequestWriter) { w.PropertyGet(a0, "nope") }),
			code:   wire.CodeUnknownProperty,
			stream: 0,
		},
		{
			name:   "speed update unsupported",
			line:   request(t, func(w *wire.RequestWriter) { w.AxisSpeedUpdate(r0, wire.NewFractional(5, 1), 100) }),
			code:   wire.CodeInvalidOperation,
			stream: 0,
		},
		{
			name:   "read of write only property",
			line:   request(t, func(w *wire.RequestWriter) { w.PropertyGet(a0, "reset") }),
			code:   wire.CodeInvalidOperation,
			stream: 0,
		},
		{
			name:   "malformed line",
			line:   []byte("L0P\n"),
			code:   wire.CodeTokenization,
			stream: wire.NoStream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, e := respond(t, d, tt.line)
			assert.Empty(t, records)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.stream, e.StreamIdx)
		})
	}
}

func TestDevice_InvalidSchema(t *testing.T) {
	doc := DefaultSchema()
	doc["min_update_interval"] = int64(20000)

	_, err := New(WithSchema(doc))
	require.Error(t, err)
}
