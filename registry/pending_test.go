package registry

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevfate/go-tcode/wire"
)

func TestRegistry_ConsumePendingOps_Order(t *testing.T) {
	r := enumerated(t)

	a, _ := r.Endpoint(a0)
	a.PendStop()
	a.PendCall()
	gain, _ := r.Property(a0, "gain")
	gain.PendGet()
	require.NoError(t, gain.PendSet(Int32(5)))
	mode, _ := r.Property(a0, "mode")
	mode.PendCurrentUpdateInterval(250)

	l, _ := r.Endpoint(l0)
	l.PendIntervalUpdate(wire.NewFractional(500, 3), 200)
	pos, _ := r.Property(l0, "position")
	pos.PendGet()

	assert.True(t, r.HasPendingOps())

	sink := &recordingSink{}
	begun := 0
	sent, err := r.ConsumePendingOps(sink, func() { begun++ })
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, begun)
	assert.Equal(t, []string{
		"L0:interval",
		"L0:get:position",
		"A0:call",
		"A0:stop",
		"A0:set:gain",
		"A0:get:gain",
		"A0:pinterval:mode",
	}, sink.ops())
	assert.Equal(t, []byte{5, 0, 0, 0}, sink.records[4].data)
	assert.Equal(t, uint32(250), sink.records[6].extra)

	assert.False(t, r.HasPendingOps())
	sent, err = r.ConsumePendingOps(sink, func() { begun++ })
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, 1, begun)
}

func TestEndpoint_UpdateModes(t *testing.T) {
	v := wire.NewFractional(25, 2)
	tests := []struct {
		name string
		pend func(ep *Endpoint)
		want string
	}{
		{"normal", func(ep *Endpoint) { ep.PendNormalUpdate(v) }, "update"},
		{"interval", func(ep *Endpoint) { ep.PendIntervalUpdate(v, 100) }, "interval"},
		{"speed", func(ep *Endpoint) { ep.PendSpeedUpdate(v, 30) }, "speed"},
		{"zero interval is plain", func(ep *Endpoint) { ep.PendIntervalUpdate(v, 0) }, "update"},
		{"zero speed is plain", func(ep *Endpoint) { ep.PendSpeedUpdate(v, 0) }, "update"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := enumerated(t)
			ep, _ := r.Endpoint(r0)
			tt.pend(ep)
			sink := &recordingSink{}
			_, err := r.ConsumePendingOps(sink, nil)
			require.NoError(t, err)
			require.Len(t, sink.records, 1)
			assert.Equal(t, tt.want, sink.records[0].op)
			assert.Equal(t, v, sink.records[0].value)
		})
	}
}

func TestRegistry_ConsumePendingOps_Writer(t *testing.T) {
	r := enumerated(t)
	label, _ := r.Property(a0, "label")
	require.NoError(t, label.PendSet(String("abc")))
	samples, _ := r.Property(a0, "samples")
	samples.PendGet()

	var out bytes.Buffer
	rw := wire.NewRequestWriter(&out)
	sent, err := r.ConsumePendingOps(rw, rw.Begin)
	require.NoError(t, err)
	require.True(t, sent)
	require.NoError(t, rw.End())

	recs, err := wire.ParseRequest(bytes.TrimSuffix(out.Bytes(), []byte("\n")))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, wire.OpPropertySet, recs[0].Op)
	assert.Equal(t, "label", recs[0].Property)
	assert.Equal(t, []byte("abc\x00"), recs[0].Payload)
	assert.Equal(t, wire.OpPropertyGet, recs[1].Op)
	assert.Equal(t, "samples", recs[1].Property)
}

func TestProperty_Pend(t *testing.T) {
	r := enumerated(t)
	gain, _ := r.Property(a0, "gain")
	status, _ := r.Property(a0, "status")
	label, _ := r.Property(a0, "label")

	assert.ErrorIs(t, gain.PendSet(Uint32(1)), ErrTypeMismatch)
	assert.ErrorIs(t, gain.PendSet(nil), ErrTypeMismatch)
	assert.ErrorIs(t, status.PendSet(Uint64(1)), ErrNotWritable)
	assert.ErrorIs(t, label.PendSetNumber(1), ErrNotNumeric)

	require.NoError(t, gain.PendSetNumber(-7.9))
	assert.True(t, gain.HasPendingOps())
	gain.ClearPendingOps()
	assert.False(t, gain.HasPendingOps())

	gain.PendCurrentUpdateInterval(1)
	assert.Equal(t, uint32(10), gain.CurrentUpdateInterval())
	gain.PendCurrentUpdateInterval(60000)
	assert.Equal(t, uint32(5000), gain.CurrentUpdateInterval())
	gain.PendCurrentUpdateInterval(0)
	assert.Equal(t, uint32(0), gain.CurrentUpdateInterval())

	r.PendSuggestedPropertyIntervals()
	pos, _ := r.Property(l0, "position")
	assert.Equal(t, uint32(100), pos.CurrentUpdateInterval())
	lim, _ := r.Property(l0, AxisLimitMin)
	assert.False(t, lim.HasPendingOps())
}
