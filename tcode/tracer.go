package tcode

import (
	"fmt"
	"time"

	"github.com/sevfate/go-tcode/trace"
)

// PacketTracer records raw traffic. Sent receives each chunk handed to the
// transport and Received each response line without its '\n'. Neither may
// retain p.
type PacketTracer interface {
	Sent(at time.Time, p []byte)
	Received(at time.Time, p []byte)
	Close() error
}

var (
	_ PacketTracer = (*trace.TextRecorder)(nil)
	_ PacketTracer = (*trace.CBORRecorder)(nil)
)

func (c *Conn) openTracer(target string) (PacketTracer, error) {
	dir, format := c.cfg.PacketTracing()
	if dir == "" {
		return nil, nil //nolint:nilnil
	}

	switch format {
	case TraceCBOR:
		rec, err := trace.NewCBORRecorder(dir, target, c.logger)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case TraceText:
		rec, err := trace.NewTextRecorder(dir, c.logger)
		if err != nil {
			return nil, err
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("invalid trace format %d", format)
	}
}
