// Package trace records the raw traffic of a T-Code connection.
//
// Two formats are available. TextRecorder writes one line per packet,
// "<micros>>>>data" for sent data and "<micros><<<line" for received
// lines, where micros counts from the moment the recorder was opened.
// CBORRecorder writes a stream of CBOR encoded Events that Reader can
// read back and filter.
package trace

import (
	"fmt"
	"strconv"
	"time"
)

// Direction tells whether a packet was sent to or received from the device.
type Direction uint8

const (
	DirectionSent     Direction = 0
	DirectionReceived Direction = 1
)

// String returns the direction marker used by the text format.
func (d Direction) String() string {
	switch d {
	case DirectionSent:
		return ">>>"
	case DirectionReceived:
		return "<<<"
	default:
		return "???"
	}
}

// Event is one traced packet.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`

	// Offset is the time since the recorder was opened, in microseconds.
	Offset int64 `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`

	// Session identifies the recorder that wrote the event.
	Session string `cbor:"4,keyasint,omitempty"`
	Target  string `cbor:"5,keyasint,omitempty"`

	// Data holds the packet without its trailing '\n'.
	Data []byte `cbor:"6,keyasint"`
}

// AppendText appends the text trace line of e, including '\n'.
func (e Event) AppendText(b []byte) []byte {
	b = strconv.AppendInt(b, e.Offset, 10)
	b = append(b, e.Direction.String()...)
	b = append(b, e.Data...)

	return append(b, '\n')
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s%s", e.Timestamp.Format(time.RFC3339Nano), e.Direction, e.Data)
}

func trimNewline(p []byte) []byte {
	if n := len(p); n > 0 && p[n-1] == '\n' {
		return p[:n-1]
	}
	return p
}

func fileName(at time.Time, ext string) string {
	return "etcode_" + at.Format("20060102_150405") + ext
}
