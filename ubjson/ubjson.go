// Package ubjson encodes and decodes Universal Binary JSON (draft 12), the
// payload format of T-Code endpoint responses and object typed properties.
//
// Decoded values use the same Go types as encoding/json with interface
// targets, except that integers decode to int64:
//
//	null     nil
//	bool     bool
//	integers int64
//	floats   float64
//	string   string
//	array    []any
//	object   map[string]any
//
// No-op markers ('N') are skipped wherever a value may appear, including
// after the top-level value where they pad Z85 groups.
package ubjson

import (
	"errors"
)

// Markers.
const (
	markerNull     = 'Z'
	markerNoOp     = 'N'
	markerTrue     = 'T'
	markerFalse    = 'F'
	markerInt8     = 'i'
	markerUint8    = 'U'
	markerInt16    = 'I'
	markerInt32    = 'l'
	markerInt64    = 'L'
	markerFloat32  = 'd'
	markerFloat64  = 'D'
	markerHighPrec = 'H'
	markerChar     = 'C'
	markerString   = 'S'
	markerArray    = '['
	markerArrayEnd = ']'
	markerObject   = '{'
	markerObjEnd   = '}'
	markerType     = '$'
	markerCount    = '#'
)

// MaxDepth bounds container nesting while decoding.
const MaxDepth = 128

var (
	// ErrUnexpectedEOF indicates a truncated document.
	ErrUnexpectedEOF = errors.New("ubjson: unexpected end of input")
	// ErrInvalidMarker indicates an unknown or misplaced marker.
	ErrInvalidMarker = errors.New("ubjson: invalid marker")
	// ErrInvalidLength indicates a negative or oversized length or count.
	ErrInvalidLength = errors.New("ubjson: invalid length")
	// ErrTrailingData indicates bytes after the top-level value other than no-ops.
	ErrTrailingData = errors.New("ubjson: trailing data after value")
	// ErrTooDeep indicates nesting beyond MaxDepth.
	ErrTooDeep = errors.New("ubjson: nesting too deep")
	// ErrUnsupportedType indicates a Go value Marshal cannot encode.
	ErrUnsupportedType = errors.New("ubjson: unsupported type")
)
