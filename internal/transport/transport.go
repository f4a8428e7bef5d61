// Package transport delivers whole, reassembled frames to the protocol core
// and writes fully-encoded frames back out. Byte-stream reassembly stops
// here; the dispatch layer above only ever sees complete frames.
package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"

	"github.com/nikkitan/dcpcore/internal/bufpool"
	"github.com/nikkitan/dcpcore/internal/wire"
)

// Transport moves whole frames in both directions. Send consumes one
// reference to the frame's body buffer.
type Transport interface {
	Receive() (*wire.Frame, error)
	Send(ctx context.Context, f *wire.Frame) error
	Close() error
}

// TCP is a Transport over a single net.Conn.
type TCP struct {
	conn net.Conn
	r    *bufio.Reader

	wmu sync.Mutex
	w   *bufio.Writer
}

// NewTCP wraps an established connection.
func NewTCP(conn net.Conn) *TCP {
	return &TCP{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}
}

// Dial connects to addr and returns a frame transport over the connection.
func Dial(addr string) (*TCP, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTCP(conn), nil
}

// Receive blocks until a whole frame is read. The returned frame owns one
// reference to its body buffer.
func (t *TCP) Receive() (*wire.Frame, error) {
	var hdr [wire.HeaderLen]byte
	if _, err := io.ReadFull(t.r, hdr[:]); err != nil {
		return nil, err
	}
	h, err := wire.ParseHeader(hdr[:])
	if err != nil {
		return nil, err
	}

	f := &wire.Frame{
		IsResponse: h.IsResponse,
		OpCode:     h.OpCode,
		Datatype:   h.Datatype,
		VBucketID:  h.VBucketID,
		Status:     h.Status,
		Opaque:     h.Opaque,
		Cas:        h.Cas,
	}
	if h.ExtrasLen > 0 {
		f.Extras = make([]byte, h.ExtrasLen)
		if _, err := io.ReadFull(t.r, f.Extras); err != nil {
			return nil, err
		}
	}
	if h.KeyLen > 0 {
		f.Key = make([]byte, h.KeyLen)
		if _, err := io.ReadFull(t.r, f.Key); err != nil {
			return nil, err
		}
	}
	if n := h.ValueLen(); n > 0 {
		f.Body = bufpool.Get(n)
		if _, err := io.ReadFull(t.r, f.Body.Bytes()); err != nil {
			f.Body.Release()
			return nil, err
		}
	}
	return f, nil
}

// Send writes a whole frame and flushes it, then releases the transport's
// reference to the body buffer.
func (t *TCP) Send(ctx context.Context, f *wire.Frame) error {
	defer f.Release()
	if err := ctx.Err(); err != nil {
		return err
	}

	var hdr [wire.HeaderLen]byte
	wire.EncodeHeader(hdr[:], f)

	t.wmu.Lock()
	defer t.wmu.Unlock()
	if _, err := t.w.Write(hdr[:]); err != nil {
		return err
	}
	if len(f.Extras) > 0 {
		if _, err := t.w.Write(f.Extras); err != nil {
			return err
		}
	}
	if len(f.Key) > 0 {
		if _, err := t.w.Write(f.Key); err != nil {
			return err
		}
	}
	if f.Body.Len() > 0 {
		if _, err := t.w.Write(f.Body.Bytes()); err != nil {
			return err
		}
	}
	return t.w.Flush()
}

// Close closes the underlying connection.
func (t *TCP) Close() error {
	return t.conn.Close()
}
