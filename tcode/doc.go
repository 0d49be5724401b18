// Package tcode is the host side of a T-Code connection.
//
// A Conn owns one transport, a serial port or a TCP stream, and a reader
// goroutine that splits the incoming byte stream into response lines and
// dispatches their records into the device registry.
//
// Request gate:
// The protocol allows a single request in flight. Conn tracks it with a
// gate that moves idle -> building -> pending -> idle:
//   - BeginRequest opens a request; it panics unless the gate is idle.
//   - SendCall, SendAxisUpdate, SendPropertySet and the other Send* methods
//     add records; they panic outside a request.
//   - EndRequest writes the line and marks the response pending.
//   - The terminator of the response, or the loss of the transport, returns
//     the gate to idle.
//
// Send, SyncSend and Flush wrap these steps for callers that would rather
// wait than panic. Flush writes the operations scheduled in the registry
// (see registry.Registry.ConsumePendingOps) and is what the axis pump calls
// on every tick.
//
// Registry access:
// The registry is guarded by a mutex. AcquireRegistry and WithRegistry
// lock it; the dispatcher holds the same lock while it applies a response,
// so registry callbacks run with the registry locked.
//
// Callbacks:
// Response-received, response-end, response-error, request-success and
// request-error callbacks run on the reader goroutine. A response line that
// fails to tokenize or parse is reported through the response-error
// callback as a whole and does not complete the pending request.
//
// Reconnection is never automatic. When the transport is lost the
// connection moves to DisconnectedState, a pending request fails with a
// synthesized Generic "connection lost" error and Connect must be called
// again.
package tcode
