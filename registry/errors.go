package registry

import (
	"errors"
	"fmt"
)

// Lookup and update errors.
var (
	// ErrUnknownEndpoint indicates a command index that is not enumerated.
	ErrUnknownEndpoint = errors.New("registry: unknown endpoint")
	// ErrUnknownProperty indicates a property name the endpoint does not have.
	ErrUnknownProperty = errors.New("registry: unknown property")
	// ErrPayloadSize indicates a property payload of the wrong size for its type.
	ErrPayloadSize = errors.New("registry: invalid payload size")
	// ErrMalformedInfo indicates a device or protocol info document missing fields.
	ErrMalformedInfo = errors.New("registry: malformed info document")
)

// Pending operation errors.
var (
	// ErrTypeMismatch indicates a value whose type differs from the property type.
	ErrTypeMismatch = errors.New("registry: value type does not match property type")
	// ErrNotWritable indicates a set on a property without the write flag.
	ErrNotWritable = errors.New("registry: property is not writable")
	// ErrNotNumeric indicates a numeric operation on a string or object property.
	ErrNotNumeric = errors.New("registry: property is not numeric")
)

// SchemaError rejects an enumeration document. Path locates the offending
// entry, e.g. "L0.props.mode.enum_mapping".
type SchemaError struct {
	Path string
	Msg  string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "registry: invalid schema: " + e.Msg
	}
	return fmt.Sprintf("registry: invalid schema at %s: %s", e.Path, e.Msg)
}

func schemaErrorf(path, format string, args ...any) *SchemaError {
	return &SchemaError{Path: path, Msg: fmt.Sprintf(format, args...)}
}
