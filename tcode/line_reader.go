package tcode

import (
	"bufio"
	"errors"
	"io"
)

// lineReader reads newline terminated response lines.
//
// Lines are accumulated across bufio fills up to max bytes. A longer line
// means framing is lost; ReadLine then returns ErrResponseTooLarge and the
// reader must not be used again.
//
// lineReader is NOT goroutine-safe.
type lineReader struct {
	r    *bufio.Reader
	max  int
	line []byte
}

func newLineReader(r io.Reader, max int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 4096), max: max}
}

// ReadLine returns the next line without its '\n' and the number of bytes
// consumed. The returned slice is valid until the next call.
func (lr *lineReader) ReadLine() ([]byte, int, error) {
	lr.line = lr.line[:0]
	for {
		chunk, err := lr.r.ReadSlice('\n')
		if len(lr.line)+len(chunk) > lr.max+1 {
			return nil, len(lr.line) + len(chunk), ErrResponseTooLarge
		}
		lr.line = append(lr.line, chunk...)

		switch {
		case err == nil:
			return lr.line[:len(lr.line)-1], len(lr.line), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return nil, len(lr.line), err
		}
	}
}
