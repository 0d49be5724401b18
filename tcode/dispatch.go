package tcode

import (
	"time"

	"github.com/sevfate/go-tcode/ubjson"
	"github.com/sevfate/go-tcode/wire"
)

// handleLine dispatches one response line. Records that do not resolve
// against the registry are logged and dropped; only the terminator
// completes the pending request.
func (c *Conn) handleLine(l *link, line []byte) {
	c.cbLock.lock()
	defer c.cbLock.unlock()

	c.metrics.incResponseRecvCount()
	if l.tracer != nil {
		l.tracer.Received(time.Now(), line)
	}
	c.invokeResponseReceived(line)

	records, err := wire.ParseResponse(line)
	if err != nil {
		c.metrics.incMalformedResponseCount()
		c.logger.Warn("malformed response", "error", err, "line", string(line))
		c.invokeResponseError(err)

		return
	}

	for _, rec := range records {
		switch r := rec.(type) {
		case *wire.EndpointRecord:
			c.dispatchEndpoint(r)
		case *wire.PropertyRecord:
			c.dispatchProperty(r)
		case *wire.TerminatorRecord:
			c.dispatchTerminator(r)
		}
	}

	c.invokeResponseEnd()
}

func (c *Conn) drop(rec wire.Record, msg string, err error) {
	c.metrics.incDroppedRecordCount()
	c.logger.Warn(msg, "record", rec, "error", err)
}

func (c *Conn) dispatchEndpoint(r *wire.EndpointRecord) {
	doc, err := ubjson.Unmarshal(r.Payload)
	if err != nil {
		c.drop(r, "failed to decode endpoint payload", err)
		return
	}

	c.regMu.Lock()
	defer c.regMu.Unlock()

	switch r.Index {
	case wire.DeviceInfo:
		keyErr, err := c.reg.ApplyDeviceInfo(doc)
		if err != nil {
			c.drop(r, "invalid device info", err)
			return
		}
		if keyErr != nil {
			c.logger.Warn("ignoring device key", "error", keyErr)
		}
		dev := c.reg.Device()
		c.logger.Info("device identified", "name", dev.Name, "version", dev.Version)

	case wire.DeviceProtocol:
		if err := c.reg.ApplyProtocolInfo(doc); err != nil {
			c.drop(r, "invalid protocol info", err)
			return
		}
		proto := c.reg.Protocol()
		c.logger.Info("protocol identified", "name", proto.Name, "version", proto.Version)

	case wire.DeviceEnumeration:
		if err := c.reg.ApplyEnumeration(doc); err != nil {
			c.drop(r, "enumeration rejected", err)
			return
		}
		c.logger.Info("enumeration complete", "endpoints", c.reg.Len())

	default:
		if err := c.reg.HandleEndpointResponse(r.Index, doc); err != nil {
			c.drop(r, "dropping endpoint response", err)
		}
	}
}

func (c *Conn) dispatchProperty(r *wire.PropertyRecord) {
	c.regMu.Lock()
	err := c.reg.HandlePropertyUpdate(r.Index, r.Property, r.Payload)
	c.regMu.Unlock()

	if err != nil {
		c.drop(r, "dropping property update", err)
		return
	}
	c.notifyWaiter(propertyKey{idx: r.Index, name: r.Property})
}

func (c *Conn) dispatchTerminator(r *wire.TerminatorRecord) {
	if !c.gate.IsPending() {
		c.logger.Warn("response terminator without pending request", "code", r.Code)
	}

	e, err := r.Error()
	if err != nil {
		c.logger.Warn("invalid error payload", "code", r.Code, "error", err)
		e = wire.NewError(r.Code)
	}
	c.lastResult.Store(&requestResult{err: e})

	if e.HasError() {
		c.metrics.incResponseErrCount()
		c.logger.Debug("request failed", "error", e.Err())
		c.invokeRequestError(e)
	} else {
		c.invokeRequestSuccess()
	}

	c.gate.CompleteResponse()
	c.releaseWaiters(false)
}
