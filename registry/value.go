package registry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/sevfate/go-tcode/ubjson"
	"github.com/sevfate/go-tcode/wire"
)

// Value is a typed property value. The concrete type always matches the
// PropertyType returned by Type:
//
//	Uint32  'u'    Int32   'i'
//	Uint64  'U'    Int64   'I'
//	Float32 'F'    Float64 'D'
//	String  'S'    Object  'O'
type Value interface {
	Type() PropertyType
	// Encode returns the wire payload and the padding symbol used when the
	// payload is not a multiple of four bytes.
	Encode() ([]byte, byte, error)
	String() string
	isValue()
}

type (
	Uint32  uint32
	Int32   int32
	Uint64  uint64
	Int64   int64
	Float32 float32
	Float64 float64
	String  string
	// Object holds a decoded UBJSON document.
	Object struct{ Doc any }
)

func (Uint32) Type() PropertyType  { return TypeUint32 }
func (Int32) Type() PropertyType   { return TypeInt32 }
func (Uint64) Type() PropertyType  { return TypeUint64 }
func (Int64) Type() PropertyType   { return TypeInt64 }
func (Float32) Type() PropertyType { return TypeFloat32 }
func (Float64) Type() PropertyType { return TypeFloat64 }
func (String) Type() PropertyType  { return TypeString }
func (Object) Type() PropertyType  { return TypeObject }

func (Uint32) isValue()  {}
func (Int32) isValue()   {}
func (Uint64) isValue()  {}
func (Int64) isValue()   {}
func (Float32) isValue() {}
func (Float64) isValue() {}
func (String) isValue()  {}
func (Object) isValue()  {}

func (v Uint32) Encode() ([]byte, byte, error) {
	return binary.LittleEndian.AppendUint32(nil, uint32(v)), 0, nil
}

func (v Int32) Encode() ([]byte, byte, error) {
	return binary.LittleEndian.AppendUint32(nil, uint32(v)), 0, nil
}

func (v Uint64) Encode() ([]byte, byte, error) {
	return binary.LittleEndian.AppendUint64(nil, uint64(v)), 0, nil
}

func (v Int64) Encode() ([]byte, byte, error) {
	return binary.LittleEndian.AppendUint64(nil, uint64(v)), 0, nil
}

func (v Float32) Encode() ([]byte, byte, error) {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(v))), 0, nil
}

func (v Float64) Encode() ([]byte, byte, error) {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(float64(v))), 0, nil
}

func (v String) Encode() ([]byte, byte, error) {
	return []byte(v), 0, nil
}

func (v Object) Encode() ([]byte, byte, error) {
	b, err := ubjson.Marshal(v.Doc)
	if err != nil {
		return nil, 0, err
	}
	return b, wire.UBJSONNull, nil
}

func (v Uint32) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v Int32) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Uint64) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v Int64) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Float32) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }
func (v Float64) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v String) String() string  { return string(v) }
func (v Object) String() string  { return fmt.Sprintf("%v", v.Doc) }

// DecodeValue decodes a property payload received from the device.
// Numeric payloads must match the type size exactly. Trailing NUL padding
// is trimmed from strings.
func DecodeValue(t PropertyType, payload []byte) (Value, error) {
	if n := t.Size(); n != 0 && len(payload) != n {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrPayloadSize, t, n, len(payload))
	}
	switch t {
	case TypeUint32:
		return Uint32(binary.LittleEndian.Uint32(payload)), nil
	case TypeInt32:
		return Int32(binary.LittleEndian.Uint32(payload)), nil
	case TypeUint64:
		return Uint64(binary.LittleEndian.Uint64(payload)), nil
	case TypeInt64:
		return Int64(binary.LittleEndian.Uint64(payload)), nil
	case TypeFloat32:
		return Float32(math.Float32frombits(binary.LittleEndian.Uint32(payload))), nil
	case TypeFloat64:
		return Float64(math.Float64frombits(binary.LittleEndian.Uint64(payload))), nil
	case TypeString:
		return String(bytes.TrimRight(payload, "\x00")), nil
	case TypeObject:
		doc, err := ubjson.Unmarshal(payload)
		if err != nil {
			return nil, err
		}
		return Object{Doc: doc}, nil
	default:
		return nil, fmt.Errorf("registry: cannot decode %s", t)
	}
}

// NumericValue converts f to a Value of numeric type t, truncating toward
// zero for integer types.
func NumericValue(t PropertyType, f float64) (Value, error) {
	switch t {
	case TypeUint32:
		return Uint32(uint32(f)), nil
	case TypeInt32:
		return Int32(int32(f)), nil
	case TypeUint64:
		return Uint64(uint64(f)), nil
	case TypeInt64:
		return Int64(int64(f)), nil
	case TypeFloat32:
		return Float32(float32(f)), nil
	case TypeFloat64:
		return Float64(f), nil
	default:
		return nil, ErrNotNumeric
	}
}

// schemaNumber converts a decoded schema number into a Value of type t.
func schemaNumber(t PropertyType, v any) (Value, bool) {
	switch n := v.(type) {
	case int64:
		switch t {
		case TypeUint32:
			return Uint32(uint32(n)), true
		case TypeInt32:
			return Int32(int32(n)), true
		case TypeUint64:
			return Uint64(uint64(n)), true
		case TypeInt64:
			return Int64(n), true
		}
		val, err := NumericValue(t, float64(n))
		return val, err == nil
	case float64:
		val, err := NumericValue(t, n)
		return val, err == nil
	default:
		return nil, false
	}
}

// Float returns a numeric value as float64.
func Float(v Value) (float64, bool) {
	switch n := v.(type) {
	case Uint32:
		return float64(n), true
	case Int32:
		return float64(n), true
	case Uint64:
		return float64(n), true
	case Int64:
		return float64(n), true
	case Float32:
		return float64(n), true
	case Float64:
		return float64(n), true
	default:
		return 0, false
	}
}

// bits returns an integer value's two's complement bits.
func bits(v Value) (uint64, bool) {
	switch n := v.(type) {
	case Uint32:
		return uint64(n), true
	case Int32:
		return uint64(uint32(n)), true
	case Uint64:
		return uint64(n), true
	case Int64:
		return uint64(n), true
	default:
		return 0, false
	}
}
