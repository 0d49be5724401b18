package wire

import (
	"fmt"
	"math"
	"strconv"
)

// MaxDigits is the widest fractional supported on the wire.
const MaxDigits = 9

var nines = [MaxDigits + 1]uint32{0, 9, 99, 999, 9999, 99999, 999999, 9999999, 99999999, 999999999}

// Nines returns the denominator made of digits nines, e.g. 999 for 3.
func Nines(digits int) (uint32, bool) {
	if digits <= 0 || digits > MaxDigits {
		return 0, false
	}
	return nines[digits], true
}

// MustNines is like Nines but panics when digits is out of range.
func MustNines(digits int) uint32 {
	n, ok := Nines(digits)
	if !ok {
		panic(fmt.Sprintf("wire: invalid fractional digit count %d", digits))
	}
	return n
}

// Fractional is an axis value: Numerator over a Denominator made of nines.
// "0500" on the wire is 500/9999.
type Fractional struct {
	Numerator   uint32
	Denominator uint32
}

// NewFractional returns num over the denominator of the given digit count.
// num is clamped to the denominator.
func NewFractional(num uint32, digits int) Fractional {
	den := MustNines(digits)
	return Fractional{Numerator: min(num, den), Denominator: den}
}

// FractionalFromRatio converts a normalized value into a fractional with
// the given digit count. r is clamped to [0, 1].
func FractionalFromRatio(r float64, digits int) Fractional {
	den := MustNines(digits)
	if math.IsNaN(r) || r < 0 {
		r = 0
	}
	r = min(r, 1)
	return Fractional{Numerator: uint32(r*float64(den) + 0.5), Denominator: den}
}

// ParseFractional parses the digits of an axis value. The digit count
// determines the denominator.
func ParseFractional(s string) (Fractional, error) {
	if len(s) == 0 || len(s) > MaxDigits {
		return Fractional{}, fmt.Errorf("%w: %q", ErrInvalidFractional, s)
	}
	var f Fractional
	for i := 0; i < len(s); i++ {
		d := s[i] - '0'
		if d > 9 {
			return Fractional{}, fmt.Errorf("%w: %q", ErrInvalidFractional, s)
		}
		f.Numerator = f.Numerator*10 + uint32(d)
		f.Denominator = f.Denominator*10 + 9
	}
	return f, nil
}

// Digits returns the digit count implied by the denominator, or 0 when the
// denominator is not a run of nines.
func (f Fractional) Digits() int {
	for d := 1; d <= MaxDigits; d++ {
		if nines[d] == f.Denominator {
			return d
		}
	}
	return 0
}

// AppendTo appends the zero padded digits of f to b.
//
// It panics when the denominator is not a run of nines.
func (f Fractional) AppendTo(b []byte) []byte {
	digits := f.Digits()
	if digits == 0 {
		panic(fmt.Sprintf("wire: invalid denominator %d for fractional", f.Denominator))
	}
	var tmp [MaxDigits]byte
	num := strconv.AppendUint(tmp[:0], uint64(f.Numerator), 10)
	for i := len(num); i < digits; i++ {
		b = append(b, '0')
	}
	return append(b, num...)
}

// Encode returns the zero padded wire digits of f.
func (f Fractional) Encode() string {
	return string(f.AppendTo(make([]byte, 0, MaxDigits)))
}

// Quotient returns Numerator/Denominator.
func (f Fractional) Quotient() float64 {
	if f.Denominator == 0 {
		return 0
	}
	return float64(f.Numerator) / float64(f.Denominator)
}

func (f Fractional) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}
