package ubjson

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// Unmarshal decodes one UBJSON document. Only no-op markers may follow the
// value.
func Unmarshal(data []byte) (any, error) {
	d := decoder{data: data}
	v, err := d.value(0)
	if err != nil {
		return nil, err
	}
	for d.pos < len(d.data) {
		if d.data[d.pos] != markerNoOp {
			return nil, fmt.Errorf("%w at offset %d", ErrTrailingData, d.pos)
		}
		d.pos++
	}
	return v, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, ErrUnexpectedEOF
	}
	c := d.data[d.pos]
	d.pos++
	return c, nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.data)-d.pos < n {
		return nil, ErrUnexpectedEOF
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// marker returns the next marker, skipping no-ops.
func (d *decoder) marker() (byte, error) {
	for {
		c, err := d.byte()
		if err != nil {
			return 0, err
		}
		if c != markerNoOp {
			return c, nil
		}
	}
}

func (d *decoder) value(depth int) (any, error) {
	m, err := d.marker()
	if err != nil {
		return nil, err
	}
	return d.typed(m, depth)
}

// typed decodes the payload of a value whose marker m is already consumed.
func (d *decoder) typed(m byte, depth int) (any, error) {
	switch m {
	case markerNull:
		return nil, nil
	case markerTrue:
		return true, nil
	case markerFalse:
		return false, nil
	case markerInt8, markerUint8, markerInt16, markerInt32, markerInt64:
		return d.integer(m)
	case markerFloat32:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case markerFloat64:
		b, err := d.take(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case markerHighPrec:
		s, err := d.string()
		if err != nil {
			return nil, err
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: high precision number %q", ErrInvalidMarker, s)
		}
		return f, nil
	case markerChar:
		c, err := d.byte()
		if err != nil {
			return nil, err
		}
		return string(rune(c)), nil
	case markerString:
		return d.string()
	case markerArray:
		if depth >= MaxDepth {
			return nil, ErrTooDeep
		}
		return d.array(depth + 1)
	case markerObject:
		if depth >= MaxDepth {
			return nil, ErrTooDeep
		}
		return d.object(depth + 1)
	default:
		return nil, fmt.Errorf("%w %q at offset %d", ErrInvalidMarker, m, d.pos-1)
	}
}

func (d *decoder) integer(m byte) (int64, error) {
	switch m {
	case markerInt8:
		b, err := d.byte()
		return int64(int8(b)), err
	case markerUint8:
		b, err := d.byte()
		return int64(b), err
	case markerInt16:
		b, err := d.take(2)
		if err != nil {
			return 0, err
		}
		return int64(int16(binary.BigEndian.Uint16(b))), nil
	case markerInt32:
		b, err := d.take(4)
		if err != nil {
			return 0, err
		}
		return int64(int32(binary.BigEndian.Uint32(b))), nil
	case markerInt64:
		b, err := d.take(8)
		if err != nil {
			return 0, err
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	default:
		return 0, fmt.Errorf("%w: %q is not an integer marker", ErrInvalidMarker, m)
	}
}

// length reads a length or count: an integer value with its own marker.
func (d *decoder) length() (int, error) {
	m, err := d.marker()
	if err != nil {
		return 0, err
	}
	n, err := d.integer(m)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > int64(len(d.data)) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	return int(n), nil
}

func (d *decoder) string() (string, error) {
	n, err := d.length()
	if err != nil {
		return "", err
	}
	b, err := d.take(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: string is not valid UTF-8", ErrInvalidMarker)
	}
	return string(b), nil
}

// container reads the optional `$type` and `#count` header of an optimized
// container. count is -1 when absent.
func (d *decoder) container() (elemType byte, count int, err error) {
	count = -1
	if d.pos < len(d.data) && d.data[d.pos] == markerType {
		d.pos++
		if elemType, err = d.byte(); err != nil {
			return 0, 0, err
		}
		if d.pos >= len(d.data) || d.data[d.pos] != markerCount {
			return 0, 0, fmt.Errorf("%w: typed container without count", ErrInvalidMarker)
		}
	}
	if d.pos < len(d.data) && d.data[d.pos] == markerCount {
		d.pos++
		if count, err = d.length(); err != nil {
			return 0, 0, err
		}
	}
	return elemType, count, nil
}

func (d *decoder) element(elemType byte, depth int) (any, error) {
	if elemType == 0 {
		return d.value(depth)
	}
	return d.typed(elemType, depth)
}

func (d *decoder) array(depth int) ([]any, error) {
	elemType, count, err := d.container()
	if err != nil {
		return nil, err
	}

	if count >= 0 {
		out := make([]any, 0, min(count, len(d.data)))
		for i := 0; i < count; i++ {
			v, err := d.element(elemType, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	out := []any{}
	for {
		m, err := d.marker()
		if err != nil {
			return nil, err
		}
		if m == markerArrayEnd {
			return out, nil
		}
		v, err := d.typed(m, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

func (d *decoder) object(depth int) (map[string]any, error) {
	elemType, count, err := d.container()
	if err != nil {
		return nil, err
	}

	out := make(map[string]any)
	if count >= 0 {
		for i := 0; i < count; i++ {
			key, err := d.string()
			if err != nil {
				return nil, err
			}
			v, err := d.element(elemType, depth)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	}

	for {
		// keys carry no 'S' marker, but a no-op may precede them
		for d.pos < len(d.data) && d.data[d.pos] == markerNoOp {
			d.pos++
		}
		if d.pos < len(d.data) && d.data[d.pos] == markerObjEnd {
			d.pos++
			return out, nil
		}
		key, err := d.string()
		if err != nil {
			return nil, err
		}
		v, err := d.value(depth)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
}
