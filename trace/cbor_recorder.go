package trace

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/sevfate/go-tcode/logger"
)

// CBORRecorder writes traced packets as a CBOR event stream to
// etcode_<timestamp>.cbor. It is safe for concurrent use.
type CBORRecorder struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	encoder *cbor.Encoder
	closed  bool

	path    string
	session string
	target  string
	start   time.Time
	logger  logger.Logger
}

// NewCBORRecorder creates a recorder in dir. target is stored in every event.
func NewCBORRecorder(dir, target string, l logger.Logger) (*CBORRecorder, error) {
	start := time.Now()
	path := filepath.Join(dir, fileName(start, ".cbor"))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	buf := bufio.NewWriter(f)
	r := &CBORRecorder{
		file:    f,
		buf:     buf,
		encoder: newEncoder(buf),
		path:    path,
		session: uuid.NewString(),
		target:  target,
		start:   start,
		logger:  l,
	}
	l.Debug("cbor packet trace opened", "path", path, "session", r.session)

	return r, nil
}

// Path returns the file the recorder writes to.
func (r *CBORRecorder) Path() string { return r.path }

// Session returns the identifier stored in every event of this recorder.
func (r *CBORRecorder) Session() string { return r.session }

func (r *CBORRecorder) Sent(at time.Time, p []byte) {
	r.record(at, DirectionSent, p)
}

func (r *CBORRecorder) Received(at time.Time, p []byte) {
	r.record(at, DirectionReceived, p)
}

func (r *CBORRecorder) record(at time.Time, dir Direction, p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	e := Event{
		Timestamp: at,
		Offset:    at.Sub(r.start).Microseconds(),
		Direction: dir,
		Session:   r.session,
		Target:    r.target,
		Data:      trimNewline(p),
	}
	if err := r.encoder.Encode(e); err != nil {
		r.logger.Warn("failed to write packet trace", "path", r.path, "error", err)
	}
}

// Close flushes and closes the file. Later packets are dropped.
func (r *CBORRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.buf.Flush(); err != nil {
		_ = r.file.Close()
		return err
	}

	return r.file.Close()
}
