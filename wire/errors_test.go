package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name    string
		code    ErrorCode
		payload []byte
		want    Error
	}{
		{
			name: "code only",
			code: CodeSuccess,
			want: Error{Code: CodeSuccess, StreamIdx: NoStream},
		},
		{
			name:    "stream and extra data",
			code:    CodeParsing,
			payload: []byte{0x03, 0x00, 0x10, 0x00},
			want:    Error{Code: CodeParsing, StreamIdx: 3, ExtraData: 16},
		},
		{
			name:    "message with padding",
			code:    CodeGeneric,
			payload: []byte{0xFF, 0xFF, 0x00, 0x00, 'o', 'o', 'p', 's', 0, 0, 0, 0},
			want:    Error{Code: CodeGeneric, StreamIdx: NoStream, ExtraMsg: "oops"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeError(tt.code, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DecodeError(CodeGeneric, []byte{1, 2})
	assert.ErrorIs(t, err, ErrInvalidErrorPayload)
}

func TestError_Err(t *testing.T) {
	assert.NoError(t, NewError(CodeSuccess).Err())

	err := Error{Code: CodeUnknownProperty, StreamIdx: 1, ExtraMsg: "no such property"}.Err()
	require.Error(t, err)
	assert.Equal(t, "tcode: device error UnknownProperty at record 1: no such property", err.Error())

	var devErr *Error
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, CodeUnknownProperty, devErr.Code)

	assert.Equal(t, "ErrorCode(7)", ErrorCode(7).String())
	assert.Nil(t, NewError(CodeGeneric).Payload())
}
