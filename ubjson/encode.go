package ubjson

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/sevfate/go-tcode/internal/pool"
)

// Marshal encodes v as UBJSON.
//
// Supported values are nil, bool, all integer and float kinds, string,
// []byte (as an optimized uint8 array), []any, []string, []int, []int64,
// []float64, map[string]any and map[string]string. Integers use the smallest
// marker holding them; uint64 values beyond int64 use the high precision
// marker. Object keys are written in sorted order.
func Marshal(v any) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if err := encode(buf, v); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// MustMarshal is like Marshal but panics on error. It is meant for static
// documents built in code.
func MustMarshal(v any) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func encode(buf *bytes.Buffer, v any) error {
	switch v := v.(type) {
	case nil:
		buf.WriteByte(markerNull)
	case bool:
		if v {
			buf.WriteByte(markerTrue)
		} else {
			buf.WriteByte(markerFalse)
		}
	case int:
		encodeInt(buf, int64(v))
	case int8:
		encodeInt(buf, int64(v))
	case int16:
		encodeInt(buf, int64(v))
	case int32:
		encodeInt(buf, int64(v))
	case int64:
		encodeInt(buf, v)
	case uint:
		encodeUint(buf, uint64(v))
	case uint8:
		encodeInt(buf, int64(v))
	case uint16:
		encodeInt(buf, int64(v))
	case uint32:
		encodeInt(buf, int64(v))
	case uint64:
		encodeUint(buf, v)
	case float32:
		buf.WriteByte(markerFloat32)
		buf.Write(binary.BigEndian.AppendUint32(nil, math.Float32bits(v)))
	case float64:
		buf.WriteByte(markerFloat64)
		buf.Write(binary.BigEndian.AppendUint64(nil, math.Float64bits(v)))
	case string:
		buf.WriteByte(markerString)
		encodeString(buf, v)
	case []byte:
		buf.WriteString("[$U#")
		encodeInt(buf, int64(len(v)))
		buf.Write(v)
	case []any:
		return encodeArray(buf, v)
	case []string:
		return encodeArray(buf, v)
	case []int:
		return encodeArray(buf, v)
	case []int64:
		return encodeArray(buf, v)
	case []float64:
		return encodeArray(buf, v)
	case map[string]any:
		return encodeObject(buf, v)
	case map[string]string:
		return encodeObject(buf, v)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return nil
}

func encodeInt(buf *bytes.Buffer, v int64) {
	switch {
	case v >= 0 && v <= math.MaxUint8:
		buf.WriteByte(markerUint8)
		buf.WriteByte(byte(v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		buf.WriteByte(markerInt8)
		buf.WriteByte(byte(int8(v)))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		buf.WriteByte(markerInt16)
		buf.Write(binary.BigEndian.AppendUint16(nil, uint16(v)))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		buf.WriteByte(markerInt32)
		buf.Write(binary.BigEndian.AppendUint32(nil, uint32(v)))
	default:
		buf.WriteByte(markerInt64)
		buf.Write(binary.BigEndian.AppendUint64(nil, uint64(v)))
	}
}

func encodeUint(buf *bytes.Buffer, v uint64) {
	if v <= math.MaxInt64 {
		encodeInt(buf, int64(v))
		return
	}
	buf.WriteByte(markerHighPrec)
	encodeString(buf, strconv.FormatUint(v, 10))
}

// encodeString writes a length prefixed string without its 'S' marker.
func encodeString(buf *bytes.Buffer, s string) {
	encodeInt(buf, int64(len(s)))
	buf.WriteString(s)
}

func encodeArray[T any](buf *bytes.Buffer, items []T) error {
	buf.WriteByte(markerArray)
	for _, item := range items {
		if err := encode(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(markerArrayEnd)
	return nil
}

func encodeObject[T any](buf *bytes.Buffer, m map[string]T) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	buf.WriteByte(markerObject)
	for _, k := range keys {
		encodeString(buf, k)
		if err := encode(buf, m[k]); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	buf.WriteByte(markerObjEnd)
	return nil
}
