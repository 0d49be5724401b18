package axis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevfate/go-tcode/internal/devicesim"
	"github.com/sevfate/go-tcode/registry"
	"github.com/sevfate/go-tcode/wire"
)

var (
	l0 = wire.MustParseCommandIndex("L0")
	r0 = wire.MustParseCommandIndex("R0")
	v0 = wire.MustParseCommandIndex("V0")
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	r := registry.New()
	require.NoError(t, r.ApplyEnumeration(devicesim.DefaultSchema()))
	return r
}

func endpoint(t *testing.T, r *registry.Registry, idx wire.CommandIndex) *registry.Endpoint {
	t.Helper()

	ep, ok := r.Endpoint(idx)
	require.True(t, ok)
	return ep
}

type update struct {
	mode  registry.UpdateMode
	num   uint32
	extra uint32
}

// takeUpdate returns and clears the pending update of ep.
func takeUpdate(ep *registry.Endpoint) (update, bool) {
	mode, v, extra, ok := ep.PendingUpdate()
	ep.ClearPendingOps()
	return update{mode: mode, num: v.Numerator, extra: extra}, ok
}

func assertNoGaps(t *testing.T, pl *PatternList) {
	t.Helper()

	elems := pl.Elements()
	require.NotEmpty(t, elems)
	assert.Zero(t, elems[0].Start)
	for i := 1; i < len(elems); i++ {
		assert.Equal(t, elems[i-1].End(), elems[i].Start, "element %d", i)
	}
	for i, e := range elems {
		assert.GreaterOrEqual(t, e.Duration, uint32(1), "element %d", i)
	}
}

func newTestPattern(t *testing.T, durations ...uint32) *PatternList {
	t.Helper()

	pl := NewPatternList()
	for i, d := range durations {
		if i > 0 {
			_, err := pl.Insert(i)
			require.NoError(t, err)
		}
		_, err := pl.SetDuration(i, d)
		require.NoError(t, err)
		require.NoError(t, pl.SetTarget(i, uint32(i+1)))
	}
	assertNoGaps(t, pl)
	return pl
}

func targets(pl *PatternList) []uint32 {
	var out []uint32
	for _, e := range pl.Elements() {
		out = append(out, e.Target)
	}
	return out
}

func TestPatternList_Default(t *testing.T) {
	pl := NewPatternList()
	assert.Equal(t, 1, pl.Len())
	assert.Equal(t, uint32(1), pl.Total())
	assert.Equal(t, -1, pl.Current())
	assert.False(t, pl.Active())

	e, ok := pl.Element(0)
	require.True(t, ok)
	assert.Equal(t, Element{Start: 0, Duration: 1, Type: ElementNoAction, Target: TargetDefault}, e)

	_, ok = pl.Element(1)
	assert.False(t, ok)
}

func TestPatternList_Find(t *testing.T) {
	pl := newTestPattern(t, 100, 100)

	tests := []struct {
		at   uint32
		want int
		ok   bool
	}{
		{0, 0, true},
		{99, 0, true},
		{100, 1, true},
		{199, 1, true},
		{200, 0, false},
	}
	for _, tt := range tests {
		got, ok := pl.Find(tt.at)
		assert.Equal(t, tt.ok, ok, "at %d", tt.at)
		if tt.ok {
			assert.Equal(t, tt.want, got, "at %d", tt.at)
		}
	}
}

func TestPatternList_Insert(t *testing.T) {
	pl := newTestPattern(t, 100)

	i, err := pl.Insert(5)
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	e, _ := pl.Element(1)
	assert.Equal(t, uint32(100), e.Start)
	assert.Equal(t, uint32(101), pl.Total())

	i, err = pl.Insert(0)
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	assert.Equal(t, uint32(102), pl.Total())
	assert.Equal(t, []uint32{TargetDefault, 1, TargetDefault}, targets(pl))
	assertNoGaps(t, pl)
}

func TestPatternList_Delete(t *testing.T) {
	pl := newTestPattern(t, 100, 200, 300)

	require.NoError(t, pl.Delete(0))
	assert.Equal(t, []uint32{2, 3}, targets(pl))
	assert.Equal(t, uint32(500), pl.Total())
	assertNoGaps(t, pl)

	require.NoError(t, pl.Delete(1))
	require.NoError(t, pl.Delete(0))
	assert.Equal(t, 1, pl.Len(), "one element always remains")
	e, _ := pl.Element(0)
	assert.Equal(t, defaultElement(0), e)

	require.ErrorIs(t, pl.Delete(3), ErrElementIndex)
}

func TestPatternList_Swap(t *testing.T) {
	pl := newTestPattern(t, 100, 200, 300)

	require.NoError(t, pl.Swap(0, 2))
	assert.Equal(t, []uint32{3, 2, 1}, targets(pl))
	e, _ := pl.Element(0)
	assert.Equal(t, uint32(300), e.Duration)
	e, _ = pl.Element(1)
	assert.Equal(t, uint32(300), e.Start)
	assertNoGaps(t, pl)

	require.NoError(t, pl.Swap(1, 1))
	require.ErrorIs(t, pl.Swap(0, 3), ErrElementIndex)
}

func TestPatternList_SetStartTime(t *testing.T) {
	pl := newTestPattern(t, 100, 100, 100)

	require.NoError(t, pl.SetStartTime(2, 50))
	assert.Equal(t, []uint32{1, 3, 2}, targets(pl))
	assertNoGaps(t, pl)

	elems := pl.Elements()
	assert.Equal(t, uint32(50), elems[0].Duration)
	assert.Equal(t, uint32(50), elems[1].Duration)
	assert.Equal(t, uint32(200), pl.Total())

	// the first element cannot leave a gap at the start
	require.NoError(t, pl.SetStartTime(0, 10))
	assertNoGaps(t, pl)
}

func TestPatternList_TimeLimit(t *testing.T) {
	pl := NewPatternList()

	d, err := pl.SetDuration(0, 2*PatternTimeLimit)
	require.NoError(t, err)
	assert.Equal(t, uint32(PatternTimeLimit), d)

	_, err = pl.Insert(1)
	require.ErrorIs(t, err, ErrPatternFull)

	d, err = pl.SetDuration(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), d)

	require.NoError(t, pl.SetTarget(0, 5000))
	e, _ := pl.Element(0)
	assert.Equal(t, uint32(TargetMax), e.Target)
}

func TestPatternList_Apply(t *testing.T) {
	ep := endpoint(t, newRegistry(t), l0)

	pl := newTestPattern(t, 100, 200, 500)
	require.NoError(t, pl.SetType(0, ElementNormal))
	require.NoError(t, pl.SetTarget(0, 100))
	require.NoError(t, pl.SetType(1, ElementInterval))
	require.NoError(t, pl.SetTarget(1, 900))
	require.NoError(t, pl.SetType(2, ElementSpeed))
	require.NoError(t, pl.SetTarget(2, 0))

	pl.Apply(ep, 10)
	_, ok := takeUpdate(ep)
	assert.False(t, ok, "paused list does nothing")

	pl.Play()
	steps := []struct {
		delta   int
		want    update
		sent    bool
		time    uint32
		current int
	}{
		{0, update{registry.UpdateNormal, 100, 0}, true, 0, 0},
		{50, update{}, false, 50, 0},
		{60, update{registry.UpdateInterval, 900, 200}, true, 100, 1},
		{250, update{registry.UpdateSpeed, 0, 180}, true, 300, 2},
		{500, update{registry.UpdateNormal, 100, 0}, true, 0, 0},
		// elements are never skipped
		{350, update{registry.UpdateInterval, 900, 200}, true, 100, 1},
	}
	for i, step := range steps {
		pl.Apply(ep, step.delta)
		got, ok := takeUpdate(ep)
		require.Equal(t, step.sent, ok, "step %d", i)
		if step.sent {
			assert.Equal(t, step.want, got, "step %d", i)
		}
		assert.Equal(t, step.time, pl.Time(), "step %d", i)
		assert.Equal(t, step.current, pl.Current(), "step %d", i)
	}

	pl.Rewind()
	pl.Apply(ep, 0)
	got, ok := takeUpdate(ep)
	require.True(t, ok)
	assert.Equal(t, uint32(100), got.num)
}

func TestPatternList_ApplySingleElement(t *testing.T) {
	ep := endpoint(t, newRegistry(t), v0)

	pl := NewPatternList()
	_, err := pl.SetDuration(0, 100)
	require.NoError(t, err)
	require.NoError(t, pl.SetType(0, ElementInterval))
	pl.Play()

	pl.Apply(ep, 0)
	_, ok := takeUpdate(ep)
	require.True(t, ok)

	pl.Apply(ep, 60)
	_, ok = takeUpdate(ep)
	assert.False(t, ok)

	pl.Apply(ep, 60)
	got, ok := takeUpdate(ep)
	require.True(t, ok, "applied again on wrap")
	assert.Equal(t, update{registry.UpdateInterval, TargetDefault, 100}, got)
}

func TestPatternList_UnsupportedUpdate(t *testing.T) {
	ep := endpoint(t, newRegistry(t), r0)

	pl := NewPatternList()
	require.NoError(t, pl.SetType(0, ElementSpeed))
	pl.Play()
	pl.Apply(ep, 0)

	_, ok := takeUpdate(ep)
	assert.False(t, ok, "R0 has no speed updates")
}

func TestSpeedFor(t *testing.T) {
	tests := []struct {
		from, to, ms uint32
		want         uint32
	}{
		{0, 999, 1000, 100},
		{999, 0, 1000, 100},
		{900, 0, 500, 180},
		{500, 500, 1000, 1},
		{0, 999, 100, 1000},
		{0, 1, 60000, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, speedFor(tt.from, tt.to, tt.ms), "%d->%d in %dms", tt.from, tt.to, tt.ms)
	}
}

func TestParseElementType(t *testing.T) {
	for _, typ := range []ElementType{ElementNoAction, ElementNormal, ElementInterval, ElementSpeed} {
		got, err := ParseElementType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	got, err := ParseElementType("Speed")
	require.NoError(t, err)
	assert.Equal(t, ElementSpeed, got)

	_, err = ParseElementType("ramp")
	require.Error(t, err)
}
