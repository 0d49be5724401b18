package wire

import (
	"bytes"

	"github.com/sevfate/go-tcode/z85"
)

// UBJSONNull pads partial Z85 groups of UBJSON payloads; it is the UBJSON
// no-op marker.
const UBJSONNull byte = 'N'

// ResponseWriter builds a response line on the device side.
//
// The zero value is ready to use.
type ResponseWriter struct {
	buf     bytes.Buffer
	records int
}

// Endpoint appends `<idx>Z<payload>`. payload is UBJSON and padded with
// UBJSONNull.
func (w *ResponseWriter) Endpoint(idx CommandIndex, payload []byte) {
	w.separate()
	w.buf.Write(idx.AppendTo(nil))
	w.buf.WriteByte('Z')
	w.buf.Write(z85.EncodePadded(payload, UBJSONNull))
}

// Property appends `<idx>P<name>Z<payload>`, padding with null.
func (w *ResponseWriter) Property(idx CommandIndex, name string, payload []byte, null byte) {
	w.separate()
	w.buf.Write(idx.AppendTo(nil))
	w.buf.WriteByte('P')
	w.buf.WriteString(name)
	w.buf.WriteByte('Z')
	w.buf.Write(z85.EncodePadded(payload, null))
}

// Terminate appends the terminator for e and returns the complete line
// including '\n'. The writer is reset for the next response.
func (w *ResponseWriter) Terminate(e Error) []byte {
	w.separate()
	w.buf.WriteByte('E')
	w.buf.WriteByte('0' + byte(e.Code%10))
	if payload := e.Payload(); len(payload) > 0 {
		w.buf.WriteByte('Z')
		w.buf.Write(z85.EncodePadded(payload, 0))
	}
	w.buf.WriteByte('\n')

	line := bytes.Clone(w.buf.Bytes())
	w.buf.Reset()
	w.records = 0
	return line
}

// Records returns the number of records appended since the last Terminate.
func (w *ResponseWriter) Records() int {
	return w.records
}

func (w *ResponseWriter) separate() {
	if w.records != 0 {
		w.buf.WriteByte(' ')
	}
	w.records++
}
