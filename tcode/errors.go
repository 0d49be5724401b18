package tcode

import "errors"

var (
	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("connection config is nil")

	// ErrNotConnected indicates an operation that needs an open transport.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates a Connect call on a connection that is
	// connected or connecting.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrConnLost indicates that the transport went away while waiting.
	ErrConnLost = errors.New("connection lost")

	// ErrResponseTooLarge indicates a response line exceeding the configured
	// maximum. The connection is torn down since framing is lost.
	ErrResponseTooLarge = errors.New("response line too large")
)

var (
	// ErrUnknownEndpoint indicates an endpoint that is not in the registry.
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrUnknownProperty indicates a property that is not in the registry.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrNoPropertyUpdate indicates that a response ended without carrying
	// the requested property.
	ErrNoPropertyUpdate = errors.New("response carried no property update")

	// ErrUnsupportedFlowControl indicates a flow control mode the serial
	// driver cannot configure.
	ErrUnsupportedFlowControl = errors.New("unsupported flow control")

	// ErrNotRuntimeOption indicates an option that cannot be changed on an
	// existing connection.
	ErrNotRuntimeOption = errors.New("option cannot be changed at runtime")
)
