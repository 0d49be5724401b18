package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Value errors.
var (
	// ErrInvalidCommandIndex indicates text that is not a valid 2 character command index.
	ErrInvalidCommandIndex = errors.New("wire: invalid command index")
	// ErrInvalidFractional indicates an empty, too long or non-numeric axis value.
	ErrInvalidFractional = errors.New("wire: invalid fractional")
	// ErrInvalidErrorPayload indicates an error payload of 1 to 3 bytes.
	ErrInvalidErrorPayload = errors.New("wire: invalid error payload size")
)

// TokenizeError reports a line that cannot be split into tokens, e.g. an
// unknown command type letter or a truncated Z85 block.
type TokenizeError struct {
	Pos int
	Msg string
}

func (e *TokenizeError) Error() string {
	return fmt.Sprintf("wire: tokenize error at %d: %s", e.Pos, e.Msg)
}

// SyntaxError reports a tokenized line whose records do not follow the
// grammar, e.g. a missing terminator or a property without payload.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("wire: syntax error at %d: %s", e.Pos, e.Msg)
}

// ErrorCode is the result code carried by a response terminator.
type ErrorCode uint8

const (
	CodeSuccess ErrorCode = iota
	CodeTokenization
	CodeParsing
	CodeAllocation
	CodeInvalidCommandIndex
	CodeUnknownProperty
	CodeInvalidOperation
	CodeGeneric ErrorCode = 9
)

func (c ErrorCode) String() string {
	switch c {
	case CodeSuccess:
		return "Success"
	case CodeTokenization:
		return "Tokenization"
	case CodeParsing:
		return "Parsing"
	case CodeAllocation:
		return "Allocation"
	case CodeInvalidCommandIndex:
		return "InvalidCommandIndex"
	case CodeUnknownProperty:
		return "UnknownProperty"
	case CodeInvalidOperation:
		return "InvalidOperation"
	case CodeGeneric:
		return "Generic"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint8(c))
	}
}

// NoStream is the stream index of an error not attributed to a request record.
const NoStream uint16 = 0xFFFF

// Error is the decoded terminator of a response.
type Error struct {
	Code      ErrorCode
	StreamIdx uint16
	ExtraData uint16
	ExtraMsg  string
}

// NewError returns an Error with code and no stream attribution.
func NewError(code ErrorCode) Error {
	return Error{Code: code, StreamIdx: NoStream}
}

// HasError reports whether e carries a non-success code.
func (e Error) HasError() bool {
	return e.Code != CodeSuccess
}

// Err returns nil for a success terminator and e as an error otherwise.
func (e Error) Err() error {
	if !e.HasError() {
		return nil
	}
	return &e
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("tcode: device error ")
	sb.WriteString(e.Code.String())
	if e.StreamIdx != NoStream {
		fmt.Fprintf(&sb, " at record %d", e.StreamIdx)
	}
	if e.ExtraData != 0 {
		fmt.Fprintf(&sb, " (extra %d)", e.ExtraData)
	}
	if e.ExtraMsg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.ExtraMsg)
	}
	return sb.String()
}

// DecodeError decodes the payload of a terminator.
//
// An empty payload carries only the code. A 4 byte payload is a little-endian
// uint32 holding the stream index in the low and the extra data in the high
// 16 bits. Longer payloads append a message, trailing NULs trimmed.
func DecodeError(code ErrorCode, payload []byte) (Error, error) {
	switch n := len(payload); {
	case n == 0:
		return NewError(code), nil
	case n < 4:
		return Error{}, fmt.Errorf("%w: %d", ErrInvalidErrorPayload, n)
	default:
		info := binary.LittleEndian.Uint32(payload)
		e := Error{
			Code:      code,
			StreamIdx: uint16(info),
			ExtraData: uint16(info >> 16),
		}
		if n > 4 {
			e.ExtraMsg = strings.TrimRight(string(payload[4:]), "\x00")
		}
		return e, nil
	}
}

// Payload returns the encoded terminator payload of e; empty when e carries
// nothing beyond its code.
func (e Error) Payload() []byte {
	if e.StreamIdx == NoStream && e.ExtraData == 0 && e.ExtraMsg == "" {
		return nil
	}
	out := binary.LittleEndian.AppendUint32(nil, uint32(e.ExtraData)<<16|uint32(e.StreamIdx))
	return append(out, e.ExtraMsg...)
}
