// Package wire implements the T-Code line protocol.
//
// A request is one line of space separated records terminated by '\n':
//
//	L0500 L1250I300 R0999S40 D0 V0Ptemp V0PrateI100 V0PgainZ00000 A0stop dstop
//
// A response is one line of records terminated by exactly one error code
// record:
//
//	D0Z<z85> L0PpositionZ<z85> E0
//	E4Z<z85>
//
// Binary payloads are Z85 framed, see package z85. The package provides the
// request serializer used by the host (RequestWriter), the response parser
// (ParseResponse) and their device side counterparts (ParseRequest and
// ResponseWriter).
package wire
