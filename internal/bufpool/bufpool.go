// Package bufpool provides pooled byte buffers with explicit reference
// counting. Frame bodies received from the transport are wrapped in a Buffer;
// a component that hands the bytes to something outliving the frame retains
// an extra reference, and the final consumer releases it.
package bufpool

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

const minPooledCap = 256

var pool = sync.Pool{
	New: func() any {
		return make([]byte, 0, minPooledCap)
	},
}

// Buffer is a byte slice with a reference count. A Buffer starts with one
// reference; it returns to the pool when the count reaches zero.
type Buffer struct {
	b      []byte
	pooled bool
	refs   atomic.Int32
}

// Get returns a Buffer of length n backed by pooled storage.
func Get(n int) *Buffer {
	b := pool.Get().([]byte)
	if cap(b) < n {
		b = make([]byte, 0, n)
	}
	buf := &Buffer{b: b[:n], pooled: true}
	buf.refs.Store(1)
	return buf
}

// Wrap adopts an existing slice without pooling its storage.
func Wrap(b []byte) *Buffer {
	buf := &Buffer{b: b}
	buf.refs.Store(1)
	return buf
}

// Bytes returns the underlying slice. The slice is only valid while the
// caller holds a reference.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.b
}

// Len returns the buffer length; a nil Buffer has length zero.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.b)
}

// Retain increments the reference count and returns the same Buffer.
func (b *Buffer) Retain() *Buffer {
	if b == nil {
		return nil
	}
	if b.refs.Add(1) <= 1 {
		slog.Error("bufpool: retain on a released buffer")
	}
	return b
}

// Release decrements the reference count and recycles the storage when it
// reaches zero. Releasing more times than retained is a bug and is logged
// rather than crashing the dispatch path.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	n := b.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		slog.Error("bufpool: release on a released buffer")
		return
	}
	if b.pooled {
		pool.Put(b.b[:0])
	}
	b.b = nil
}

// Refs reports the current reference count.
func (b *Buffer) Refs() int32 {
	if b == nil {
		return 0
	}
	return b.refs.Load()
}
