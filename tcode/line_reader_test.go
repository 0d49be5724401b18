package tcode

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReader(t *testing.T) {
	long := strings.Repeat("x", 10000)
	r := newLineReader(strings.NewReader("E0\nL0Z00000 E0\r\n"+long+"\npartial"), 1<<20)

	line, n, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "E0", string(line))
	assert.Equal(t, 3, n)

	line, _, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "L0Z00000 E0\r", string(line))

	line, n, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, long, string(line))
	assert.Equal(t, len(long)+1, n)

	_, _, err = r.ReadLine()
	require.ErrorIs(t, err, io.EOF)
}

func TestLineReader_TooLarge(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "at limit", input: strings.Repeat("a", 64) + "\n"},
		{name: "over limit", input: strings.Repeat("a", 65) + "\n", wantErr: ErrResponseTooLarge},
		{name: "over limit across fills", input: strings.Repeat("a", 5000) + "\n", wantErr: ErrResponseTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newLineReader(strings.NewReader(tt.input), 64)
			_, _, err := r.ReadLine()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
