package utils

import (
	"bytes"
	"io"
	"sync"
)

// bufPool reuses byte buffers across decoder constructions to reduce GC
// pressure from repeated whole-stream reads.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// AcquireBuffer returns a reset buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// ReleaseBuffer returns b to the pool. Callers must not use b, or any
// slice obtained from b.Bytes(), after this call.
func ReleaseBuffer(b *bytes.Buffer) {
	if b.Cap() > 8*1024*1024 {
		return
	}
	bufPool.Put(b)
}

// DrainReader reads all bytes from r into a pooled buffer. Callers that
// need to retain the bytes past the buffer's lifetime must CloneBytes the
// result before calling ReleaseBuffer.
func DrainReader(r io.Reader) (*bytes.Buffer, error) {
	buf := AcquireBuffer()
	if _, err := buf.ReadFrom(r); err != nil {
		ReleaseBuffer(buf)
		return nil, err
	}
	return buf, nil
}

// CloneBytes returns a copy of b, safe for use after the source buffer is
// released back to the pool.
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
