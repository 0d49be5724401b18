// Package pool holds the sync.Pool backed buffers used by the UBJSON
// encoder.
package pool

import (
	"bytes"
	"sync"
)

// maxPooledBuffer keeps a single oversized response from pinning memory.
const maxPooledBuffer = 64 * 1024

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// GetBuffer returns an empty buffer from the pool.
func GetBuffer() *bytes.Buffer {
	b, _ := bufferPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// PutBuffer returns b to the pool.
func PutBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(b)
}
