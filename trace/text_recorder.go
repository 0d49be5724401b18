package trace

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sevfate/go-tcode/internal/queue"
	"github.com/sevfate/go-tcode/logger"
)

// TextRecorder writes traced packets as text lines to
// etcode_<timestamp>.trace. Packets are queued by the caller and written
// by a background goroutine, so tracing never blocks the connection on
// file I/O.
type TextRecorder struct {
	path   string
	start  time.Time
	logger logger.Logger

	file    *os.File
	pending queue.Queue[Event]
	wake    chan struct{}
	closing chan struct{}
	done    chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewTextRecorder creates a recorder in dir.
func NewTextRecorder(dir string, l logger.Logger) (*TextRecorder, error) {
	start := time.Now()
	path := filepath.Join(dir, fileName(start, ".trace"))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	r := &TextRecorder{
		path:    path,
		start:   start,
		logger:  l,
		file:    f,
		pending: queue.NewLockFreeQueue[Event](),
		wake:    make(chan struct{}, 1),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.writeLoop()
	l.Debug("text packet trace opened", "path", path)

	return r, nil
}

// Path returns the file the recorder writes to.
func (r *TextRecorder) Path() string { return r.path }

func (r *TextRecorder) Sent(at time.Time, p []byte) {
	r.enqueue(at, DirectionSent, p)
}

func (r *TextRecorder) Received(at time.Time, p []byte) {
	r.enqueue(at, DirectionReceived, p)
}

func (r *TextRecorder) enqueue(at time.Time, dir Direction, p []byte) {
	if r.closed.Load() {
		return
	}

	r.pending.Enqueue(Event{
		Timestamp: at,
		Offset:    at.Sub(r.start).Microseconds(),
		Direction: dir,
		Data:      append([]byte(nil), trimNewline(p)...),
	})

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *TextRecorder) writeLoop() {
	defer close(r.done)

	w := bufio.NewWriter(r.file)
	var line []byte
	failed := false

	drain := func() {
		for {
			e, ok := r.pending.Dequeue()
			if !ok {
				break
			}
			if failed {
				continue
			}
			line = e.AppendText(line[:0])
			if _, err := w.Write(line); err != nil {
				r.logger.Warn("failed to write packet trace, dropping further packets", "path", r.path, "error", err)
				failed = true
			}
		}
		if !failed {
			if err := w.Flush(); err != nil {
				r.logger.Warn("failed to flush packet trace", "path", r.path, "error", err)
				failed = true
			}
		}
	}

	for {
		select {
		case <-r.wake:
			drain()
		case <-r.closing:
			drain()
			return
		}
	}
}

// Close writes the queued packets and closes the file. Later packets are
// dropped.
func (r *TextRecorder) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.closing)
		<-r.done
		r.closeErr = r.file.Close()
	})

	return r.closeErr
}
