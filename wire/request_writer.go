package wire

import (
	"io"
	"strconv"

	"github.com/sevfate/go-tcode/z85"
)

// StagingSize is the size of the request staging buffer.
const StagingSize = 5 * 64

// RequestWriter serializes request records into an io.Writer.
//
// Records are staged in a fixed buffer which is flushed when full and at the
// end of the request. Writes larger than the buffer bypass it. The first
// write error is sticky: later records are dropped and End reports it.
//
// RequestWriter is not safe for concurrent use.
type RequestWriter struct {
	w       io.Writer
	buf     [StagingSize]byte
	n       int
	records int
	written int
	err     error
	onFlush func(p []byte)
}

// NewRequestWriter returns a RequestWriter writing to w.
func NewRequestWriter(w io.Writer) *RequestWriter {
	return &RequestWriter{w: w}
}

// OnFlush registers fn to observe every chunk written to the underlying
// writer, e.g. for packet tracing. fn must not retain p.
func (rw *RequestWriter) OnFlush(fn func(p []byte)) {
	rw.onFlush = fn
}

// Begin starts a new request, discarding anything staged and the previous
// error.
func (rw *RequestWriter) Begin() {
	rw.n = 0
	rw.records = 0
	rw.written = 0
	rw.err = nil
}

// End terminates the request with '\n', flushes it and returns the first
// error seen since Begin.
func (rw *RequestWriter) End() error {
	rw.writeByte('\n')
	rw.Flush()
	return rw.err
}

// Records returns the number of records written since Begin.
func (rw *RequestWriter) Records() int { return rw.records }

// Written returns the number of bytes handed to the underlying writer since Begin.
func (rw *RequestWriter) Written() int { return rw.written }

// Err returns the sticky write error.
func (rw *RequestWriter) Err() error { return rw.err }

// AxisUpdate writes `<idx><value>`.
func (rw *RequestWriter) AxisUpdate(idx CommandIndex, value Fractional) {
	rw.beginRecord(idx)
	rw.writeFractional(value)
}

// AxisIntervalUpdate writes `<idx><value>I<ms>`, reaching value within ms.
func (rw *RequestWriter) AxisIntervalUpdate(idx CommandIndex, value Fractional, ms uint32) {
	rw.beginRecord(idx)
	rw.writeFractional(value)
	rw.writeByte('I')
	rw.writeUint(ms)
}

// AxisSpeedUpdate writes `<idx><value>S<speed>`.
func (rw *RequestWriter) AxisSpeedUpdate(idx CommandIndex, value Fractional, speed uint32) {
	rw.beginRecord(idx)
	rw.writeFractional(value)
	rw.writeByte('S')
	rw.writeUint(speed)
}

// Call writes a bare `<idx>` endpoint invocation.
func (rw *RequestWriter) Call(idx CommandIndex) {
	rw.beginRecord(idx)
}

// PropertyGet writes `<idx>P<name>`.
func (rw *RequestWriter) PropertyGet(idx CommandIndex, name string) {
	rw.beginRecord(idx)
	rw.writeByte('P')
	rw.writeString(name)
}

// PropertyInterval writes `<idx>P<name>I<ms>`, changing the update interval.
func (rw *RequestWriter) PropertyInterval(idx CommandIndex, name string, ms uint32) {
	rw.PropertyGet(idx, name)
	rw.writeByte('I')
	rw.writeUint(ms)
}

// PropertySet writes `<idx>P<name>Z<data>`. A partial trailing Z85 group is
// padded with null.
func (rw *RequestWriter) PropertySet(idx CommandIndex, name string, data []byte, null byte) {
	rw.PropertyGet(idx, name)
	rw.writeByte('Z')
	rw.writeZ85(data, null)
}

// Stop writes `<idx>stop`.
func (rw *RequestWriter) Stop(idx CommandIndex) {
	rw.beginRecord(idx)
	rw.writeString(stopWord)
}

// StopAll writes `dstop`.
func (rw *RequestWriter) StopAll() {
	rw.separate()
	rw.writeString(globalStop)
}

// Flush hands the staged bytes to the underlying writer.
func (rw *RequestWriter) Flush() {
	if rw.n == 0 {
		return
	}
	rw.write(rw.buf[:rw.n])
	rw.n = 0
}

func (rw *RequestWriter) beginRecord(idx CommandIndex) {
	if !idx.Valid() {
		panic("wire: invalid request command index " + idx.String())
	}
	rw.separate()
	var b [2]byte
	rw.writeBytes(idx.AppendTo(b[:0]))
}

func (rw *RequestWriter) separate() {
	if rw.records != 0 {
		rw.writeByte(' ')
	}
	rw.records++
}

func (rw *RequestWriter) writeFractional(f Fractional) {
	var b [MaxDigits]byte
	rw.writeBytes(f.AppendTo(b[:0]))
}

func (rw *RequestWriter) writeUint(v uint32) {
	var b [10]byte
	rw.writeBytes(strconv.AppendUint(b[:0], uint64(v), 10))
}

func (rw *RequestWriter) writeString(s string) {
	for len(s) > 0 {
		if rw.n == len(rw.buf) {
			rw.Flush()
		}
		c := copy(rw.buf[rw.n:], s)
		rw.n += c
		s = s[c:]
	}
	if rw.n == len(rw.buf) {
		rw.Flush()
	}
}

func (rw *RequestWriter) writeBytes(p []byte) {
	if len(p) >= len(rw.buf) {
		rw.Flush()
		rw.write(p)
		return
	}
	for len(p) > 0 {
		c := copy(rw.buf[rw.n:], p)
		rw.n += c
		p = p[c:]
		if rw.n == len(rw.buf) {
			rw.Flush()
		}
	}
}

func (rw *RequestWriter) writeByte(c byte) {
	rw.buf[rw.n] = c
	rw.n++
	if rw.n == len(rw.buf) {
		rw.Flush()
	}
}

// writeZ85 encodes data straight into the staging buffer, group by group.
func (rw *RequestWriter) writeZ85(data []byte, null byte) {
	for len(data) >= z85.GroupSize {
		if len(rw.buf)-rw.n < z85.EncodedGroupSize {
			rw.Flush()
		}
		groups := min((len(rw.buf)-rw.n)/z85.EncodedGroupSize, len(data)/z85.GroupSize)
		n, _ := z85.Encode(rw.buf[rw.n:], data[:groups*z85.GroupSize])
		rw.n += n
		data = data[groups*z85.GroupSize:]
	}
	if len(data) > 0 {
		if len(rw.buf)-rw.n < z85.EncodedGroupSize {
			rw.Flush()
		}
		var group [z85.GroupSize]byte
		for i := range group {
			group[i] = null
		}
		copy(group[:], data)
		n, _ := z85.Encode(rw.buf[rw.n:], group[:])
		rw.n += n
	}
	if rw.n == len(rw.buf) {
		rw.Flush()
	}
}

// write sends p unless an earlier write failed. onFlush sees only the
// bytes that were written.
func (rw *RequestWriter) write(p []byte) {
	if rw.err != nil {
		return
	}
	n, err := rw.w.Write(p)
	rw.written += n
	if rw.onFlush != nil && n > 0 {
		rw.onFlush(p[:n])
	}
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	rw.err = err
}
