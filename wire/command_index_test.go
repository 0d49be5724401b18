package wire

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandIndex(t *testing.T) {
	tests := []struct {
		input   string
		want    CommandIndex
		wantErr bool
	}{
		{input: "L0", want: CommandIndex{CommandLinear, 0}},
		{input: "r9", want: CommandIndex{CommandRotate, 9}},
		{input: "V3", want: CommandIndex{CommandVibrate, 3}},
		{input: "a1", want: CommandIndex{CommandAuxiliary, 1}},
		{input: "D2", want: DeviceEnumeration},
		{input: "X0", wantErr: true},
		{input: "LA", wantErr: true},
		{input: "L", wantErr: true},
		{input: "L10", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommandIndex(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCommandIndex)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandIndex_String(t *testing.T) {
	assert.Equal(t, "L0", MustParseCommandIndex("l0").String())
	assert.Equal(t, "D1", DeviceProtocol.String())
	assert.Equal(t, "?3", CommandIndex{Slot: 3}.String())
}

func TestNewCommandIndex_PanicsOnInvalid(t *testing.T) {
	assert.NotPanics(t, func() { NewCommandIndex(CommandAuxiliary, 9) })
	assert.Panics(t, func() { NewCommandIndex(CommandUnknown, 0) })
	assert.Panics(t, func() { NewCommandIndex(CommandLinear, 10) })
	assert.Panics(t, func() { NewCommandIndex(CommandLinear, -1) })
	assert.Panics(t, func() { NewCommandIndex(CommandType(42), 0) })
}

func TestCommandIndex_Ordering(t *testing.T) {
	indices := []CommandIndex{
		MustParseCommandIndex("D0"),
		MustParseCommandIndex("L1"),
		MustParseCommandIndex("V0"),
		MustParseCommandIndex("L0"),
		MustParseCommandIndex("R2"),
		MustParseCommandIndex("A0"),
	}
	slices.SortFunc(indices, CommandIndex.Compare)

	var names []string
	for _, idx := range indices {
		names = append(names, idx.String())
	}
	assert.Equal(t, []string{"L0", "L1", "R2", "V0", "A0", "D0"}, names)
	assert.True(t, MustParseCommandIndex("L9").Less(MustParseCommandIndex("R0")))
}

func TestCommandIndex_Text(t *testing.T) {
	var idx CommandIndex
	require.NoError(t, idx.UnmarshalText([]byte("v2")))
	assert.Equal(t, CommandIndex{CommandVibrate, 2}, idx)

	text, err := idx.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "V2", string(text))

	_, err = CommandIndex{}.MarshalText()
	assert.ErrorIs(t, err, ErrInvalidCommandIndex)
}

func TestCommandIndex_Reserved(t *testing.T) {
	assert.True(t, DeviceInfo.IsReserved())
	assert.True(t, DeviceEnumeration.IsReserved())
	assert.False(t, MustParseCommandIndex("D3").IsReserved())
	assert.False(t, MustParseCommandIndex("L0").IsReserved())
	assert.True(t, CommandLinear.IsAxis())
	assert.False(t, CommandDevice.IsAxis())
}
