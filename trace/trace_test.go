package trace

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevfate/go-tcode/logger"
)

func TestTextRecorder(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewTextRecorder(dir, logger.GetLogger())
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(rec.Path()))
	assert.True(t, strings.HasPrefix(filepath.Base(rec.Path()), "etcode_"))
	assert.Equal(t, ".trace", filepath.Ext(rec.Path()))

	rec.Sent(rec.start.Add(1500*time.Microsecond), []byte("D0 D1 D2\n"))
	rec.Received(rec.start.Add(2*time.Millisecond), []byte("D0Z... D1Z... D2Z... ok"))
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	// dropped after close
	rec.Sent(time.Now(), []byte("L0500\n"))

	data, err := os.ReadFile(rec.Path())
	require.NoError(t, err)
	assert.Equal(t, "1500>>>D0 D1 D2\n2000<<<D0Z... D1Z... D2Z... ok\n", string(data))
}

func TestTextRecorder_ManyPackets(t *testing.T) {
	rec, err := NewTextRecorder(t.TempDir(), logger.GetLogger())
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		rec.Sent(rec.start, []byte("L0500"))
	}
	require.NoError(t, rec.Close())

	data, err := os.ReadFile(rec.Path())
	require.NoError(t, err)
	assert.Equal(t, 500, strings.Count(string(data), "0>>>L0500\n"))
}

func TestTextRecorder_BadDir(t *testing.T) {
	_, err := NewTextRecorder(filepath.Join(t.TempDir(), "missing"), logger.GetLogger())
	require.Error(t, err)
}

func TestCBORRecorder_ReadBack(t *testing.T) {
	rec, err := NewCBORRecorder(t.TempDir(), "127.0.0.1:4000", logger.GetLogger())
	require.NoError(t, err)
	assert.Equal(t, ".cbor", filepath.Ext(rec.Path()))
	assert.NotEmpty(t, rec.Session())

	t0 := rec.start.Add(time.Millisecond)
	rec.Sent(t0, []byte("A0mode?\n"))
	rec.Received(t0.Add(time.Millisecond), []byte("A0modeZ00000 ok"))
	rec.Sent(t0.Add(2*time.Millisecond), []byte("L0500\n"))
	require.NoError(t, rec.Close())

	tests := []struct {
		name   string
		filter func() Filter
		want   []string
	}{
		{
			name:   "all",
			filter: func() Filter { return Filter{} },
			want:   []string{"A0mode?", "A0modeZ00000 ok", "L0500"},
		},
		{
			name: "received only",
			filter: func() Filter {
				d := DirectionReceived
				return Filter{Direction: &d}
			},
			want: []string{"A0modeZ00000 ok"},
		},
		{
			name: "time window",
			filter: func() Filter {
				since := t0.Add(time.Millisecond)
				until := t0.Add(2 * time.Millisecond)
				return Filter{Since: &since, Until: &until}
			},
			want: []string{"A0modeZ00000 ok"},
		},
		{
			name:   "other session",
			filter: func() Filter { return Filter{Session: "nope"} },
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := OpenReader(rec.Path(), tt.filter())
			require.NoError(t, err)
			defer r.Close()

			events, err := r.ReadAll()
			require.NoError(t, err)

			var got []string
			for _, e := range events {
				assert.Equal(t, rec.Session(), e.Session)
				assert.Equal(t, "127.0.0.1:4000", e.Target)
				got = append(got, string(e.Data))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReader_Truncated(t *testing.T) {
	data, err := EncodeEvent(Event{Timestamp: time.Now(), Data: []byte("L0500")})
	require.NoError(t, err)

	r := NewReader(bytes.NewReader(data[:len(data)-2]), Filter{})
	_, err = r.Next()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestEvent_AppendText(t *testing.T) {
	e := Event{Offset: 42, Direction: DirectionReceived, Data: []byte("ok")}
	assert.Equal(t, "42<<<ok\n", string(e.AppendText(nil)))

	decoded, err := DecodeEvent(mustEncode(t, e))
	require.NoError(t, err)
	assert.Equal(t, e.Offset, decoded.Offset)
	assert.Equal(t, e.Data, decoded.Data)
}

func mustEncode(t *testing.T, e Event) []byte {
	t.Helper()
	data, err := EncodeEvent(e)
	require.NoError(t, err)
	return data
}
