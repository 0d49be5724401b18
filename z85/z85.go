// Package z85 implements the Z85 binary-to-text encoding used to embed binary
// payloads inside T-Code lines.
//
// Every 4 input bytes, read as a big-endian uint32, become 5 characters from
// an 85 symbol alphabet. Decoding is lenient: a character outside the alphabet
// contributes zero instead of failing, the line's error code token protects
// the payload.
package z85

import (
	"errors"
	"fmt"
)

const alphabet = "0123456789" +
	"abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	".-:+=^!/*?&<>()[]{}@%$#"

const (
	// GroupSize is the number of raw bytes in one group.
	GroupSize = 4
	// EncodedGroupSize is the number of characters one group encodes to.
	EncodedGroupSize = 5
)

var decodeMap [256]byte

func init() {
	for i := 0; i < len(alphabet); i++ {
		decodeMap[alphabet[i]] = byte(i)
	}
}

var (
	// ErrUnalignedInput indicates raw input whose length is not a multiple of 4.
	ErrUnalignedInput = errors.New("z85: input length is not a multiple of 4")
	// ErrUnalignedText indicates encoded input whose length is not a multiple of 5.
	ErrUnalignedText = errors.New("z85: encoded length is not a multiple of 5")
	// ErrShortBuffer indicates a destination too small for the result.
	ErrShortBuffer = errors.New("z85: destination buffer too small")
)

// EncodedLen returns the encoded length of n raw bytes, n rounded up to a group.
func EncodedLen(n int) int {
	return (n + GroupSize - 1) / GroupSize * EncodedGroupSize
}

// DecodedLen returns the raw length of n encoded characters.
func DecodedLen(n int) int {
	return n / EncodedGroupSize * GroupSize
}

// IsSymbol reports whether c belongs to the Z85 alphabet.
func IsSymbol(c byte) bool {
	return c == '0' || decodeMap[c] != 0
}

// Encode writes the encoding of src into dst and returns the number of bytes
// written. len(src) must be a multiple of 4.
func Encode(dst, src []byte) (int, error) {
	if len(src)%GroupSize != 0 {
		return 0, fmt.Errorf("%w: %d", ErrUnalignedInput, len(src))
	}
	n := len(src) / GroupSize * EncodedGroupSize
	if len(dst) < n {
		return 0, ErrShortBuffer
	}

	for i, o := 0, 0; i < len(src); i, o = i+GroupSize, o+EncodedGroupSize {
		v := uint32(src[i])<<24 | uint32(src[i+1])<<16 | uint32(src[i+2])<<8 | uint32(src[i+3])
		for j := EncodedGroupSize - 1; j >= 0; j-- {
			dst[o+j] = alphabet[v%85]
			v /= 85
		}
	}

	return n, nil
}

// EncodePadded encodes src of any length, padding the final partial group
// with null before encoding.
func EncodePadded(src []byte, null byte) []byte {
	full := len(src) / GroupSize * GroupSize
	out := make([]byte, EncodedLen(len(src)))

	n, _ := Encode(out, src[:full])
	if rest := len(src) - full; rest > 0 {
		var group [GroupSize]byte
		copy(group[:], src[full:])
		for i := rest; i < GroupSize; i++ {
			group[i] = null
		}
		_, _ = Encode(out[n:], group[:])
	}

	return out
}

// EncodeToString is EncodePadded with a zero null byte, returned as a string.
func EncodeToString(src []byte) string {
	return string(EncodePadded(src, 0))
}

// Decode writes the decoding of src into dst and returns the number of bytes
// written. len(src) must be a multiple of 5.
func Decode(dst, src []byte) (int, error) {
	if len(src)%EncodedGroupSize != 0 {
		return 0, fmt.Errorf("%w: %d", ErrUnalignedText, len(src))
	}
	n := DecodedLen(len(src))
	if len(dst) < n {
		return 0, ErrShortBuffer
	}

	for i, o := 0, 0; i < len(src); i, o = i+EncodedGroupSize, o+GroupSize {
		var v uint32
		for j := 0; j < EncodedGroupSize; j++ {
			v = v*85 + uint32(decodeMap[src[i+j]])
		}
		dst[o] = byte(v >> 24)
		dst[o+1] = byte(v >> 16)
		dst[o+2] = byte(v >> 8)
		dst[o+3] = byte(v)
	}

	return n, nil
}

// DecodeString decodes s into a newly allocated slice.
func DecodeString(s string) ([]byte, error) {
	out := make([]byte, DecodedLen(len(s)))
	n, err := Decode(out, []byte(s))
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
