package tcode

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"go.bug.st/serial"
)

// openTransport opens target according to cfg.
func openTransport(ctx context.Context, cfg *ConnectionConfig, target string) (io.ReadWriteCloser, error) {
	switch kind := cfg.resolveTransport(target); kind {
	case TransportTCP:
		return dialTCP(ctx, cfg, target)
	case TransportSerial:
		return openSerial(cfg, target)
	default:
		return nil, fmt.Errorf("unsupported transport %s", kind)
	}
}

func dialTCP(ctx context.Context, cfg *ConnectionConfig, address string) (io.ReadWriteCloser, error) {
	dialer := net.Dialer{Timeout: cfg.DialTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	return &deadlineConn{Conn: conn, cfg: cfg}, nil
}

func openSerial(cfg *ConnectionConfig, path string) (io.ReadWriteCloser, error) {
	port, err := serial.Open(path, cfg.SerialMode())
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("reset serial input %s: %w", path, err)
	}

	return port, nil
}

// deadlineConn applies the configured write timeout to every write.
type deadlineConn struct {
	net.Conn
	cfg *ConnectionConfig
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout())); err != nil {
		return 0, err
	}

	return c.Conn.Write(p)
}

func (c *deadlineConn) Close() error {
	if tcpConn, ok := c.Conn.(*net.TCPConn); ok {
		_ = tcpConn.SetLinger(0)
	}

	return c.Conn.Close()
}

// WrapConn wraps an already connected net.Conn, e.g. one end of net.Pipe,
// so that writes observe the configured write timeout. Use it with
// ConnectWith.
func WrapConn(conn net.Conn, cfg *ConnectionConfig) io.ReadWriteCloser {
	return &deadlineConn{Conn: conn, cfg: cfg}
}

// disconnectedWriter fails every write.
type disconnectedWriter struct{}

func (disconnectedWriter) Write([]byte) (int, error) { return 0, ErrNotConnected }
