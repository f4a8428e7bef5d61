package transport

import (
	"context"
	"io"
	"sync"

	"github.com/nikkitan/dcpcore/internal/wire"
)

// Pipe is an in-memory Transport endpoint. Frames written on one endpoint
// arrive at the other, whole, in order. Ownership of a frame's body buffer
// transfers to the receiving side.
type Pipe struct {
	in  chan *wire.Frame
	out chan *wire.Frame

	once *sync.Once
	done chan struct{}
}

// NewPipe returns two connected endpoints.
func NewPipe(depth int) (*Pipe, *Pipe) {
	a2b := make(chan *wire.Frame, depth)
	b2a := make(chan *wire.Frame, depth)
	done := make(chan struct{})
	once := &sync.Once{}
	a := &Pipe{in: b2a, out: a2b, done: done, once: once}
	b := &Pipe{in: a2b, out: b2a, done: done, once: once}
	return a, b
}

// Receive blocks until the peer sends a frame or either side closes.
func (p *Pipe) Receive() (*wire.Frame, error) {
	select {
	case f := <-p.in:
		return f, nil
	case <-p.done:
		// Drain anything already queued before reporting EOF.
		select {
		case f := <-p.in:
			return f, nil
		default:
			return nil, io.EOF
		}
	}
}

// Send hands the frame to the peer. The frame's body reference passes to the
// receiver.
func (p *Pipe) Send(ctx context.Context, f *wire.Frame) error {
	select {
	case p.out <- f:
		return nil
	case <-p.done:
		f.Release()
		return io.ErrClosedPipe
	case <-ctx.Done():
		f.Release()
		return ctx.Err()
	}
}

// Close tears down both endpoints. Idempotent.
func (p *Pipe) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
