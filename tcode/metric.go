package tcode

import "sync/atomic"

// ConnectionMetrics contains atomic counters for a connection. They can be
// used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// RequestSendCount is the number of requests sent.
	RequestSendCount atomic.Uint64
	// RequestErrCount is the number of requests that failed to send.
	RequestErrCount atomic.Uint64
	// BytesSent is the number of request bytes written to the transport.
	BytesSent atomic.Uint64

	// ResponseRecvCount is the number of response lines received.
	ResponseRecvCount atomic.Uint64
	// ResponseErrCount is the number of responses terminated by a device error.
	ResponseErrCount atomic.Uint64
	// MalformedResponseCount is the number of lines rejected by the parser.
	MalformedResponseCount atomic.Uint64
	// DroppedRecordCount is the number of response records that did not
	// resolve against the registry.
	DroppedRecordCount atomic.Uint64
	// BytesRecv is the number of response bytes read, line endings included.
	BytesRecv atomic.Uint64

	// ConnectCount is the number of successful connects.
	ConnectCount atomic.Uint32
	// ConnLostCount is the number of times the transport went away without
	// a Disconnect call.
	ConnLostCount atomic.Uint32
}

func (m *ConnectionMetrics) incRequestSendCount()       { m.RequestSendCount.Add(1) }
func (m *ConnectionMetrics) incRequestErrCount()        { m.RequestErrCount.Add(1) }
func (m *ConnectionMetrics) addBytesSent(n int)         { m.BytesSent.Add(uint64(n)) }
func (m *ConnectionMetrics) incResponseRecvCount()      { m.ResponseRecvCount.Add(1) }
func (m *ConnectionMetrics) incResponseErrCount()       { m.ResponseErrCount.Add(1) }
func (m *ConnectionMetrics) incMalformedResponseCount() { m.MalformedResponseCount.Add(1) }
func (m *ConnectionMetrics) incDroppedRecordCount()     { m.DroppedRecordCount.Add(1) }
func (m *ConnectionMetrics) addBytesRecv(n int)         { m.BytesRecv.Add(uint64(n)) }
func (m *ConnectionMetrics) incConnectCount()           { m.ConnectCount.Add(1) }
func (m *ConnectionMetrics) incConnLostCount()          { m.ConnLostCount.Add(1) }
