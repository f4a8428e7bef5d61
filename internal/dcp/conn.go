package dcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nikkitan/dcpcore/internal/logging"
	"github.com/nikkitan/dcpcore/internal/sched"
	"github.com/nikkitan/dcpcore/internal/transport"
	"github.com/nikkitan/dcpcore/internal/wire"
)

var (
	// ErrClosed is returned for operations on a closed connection.
	ErrClosed = errors.New("dcp: connection closed")
	// ErrNoStream marks a push frame whose stream id has no registered
	// stream. Scoped to the stream id; the connection keeps running.
	ErrNoStream = errors.New("dcp: no stream registered for id")
)

// ProtocolErrorFunc receives recoverable protocol violations scoped to one
// stream id: unroutable push frames and unexpected control frames.
type ProtocolErrorFunc func(streamID uint32, err error)

// Options tune one connection's protocol engine.
type Options struct {
	// StreamBufferSize bounds each stream's undelivered-event buffer. Ignored
	// when UnboundedBuffer is set.
	StreamBufferSize int
	// UnboundedBuffer lets stream buffers grow without limit instead of
	// dropping on saturation.
	UnboundedBuffer bool
	// OnProtocolError is invoked for scoped protocol violations. Defaults to
	// logging only.
	OnProtocolError ProtocolErrorFunc
	// NewScheduler builds the delivery execution context for each stream.
	// Defaults to one async worker per stream.
	NewScheduler func() sched.Scheduler
}

const defaultStreamBufferSize = 1024

// Conn is the protocol engine for one DCP connection. Frame handling is
// strictly sequential: Run processes one frame to completion before reading
// the next. Callers issue control commands from any goroutine.
type Conn struct {
	tr      transport.Transport
	pending *pendingQueue
	streams *streamRegistry

	onProtocolError ProtocolErrorFunc

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps a frame transport with the DCP protocol engine. The caller
// must run the dispatch loop via Run.
func NewConn(tr transport.Transport, opts Options) *Conn {
	capacity := opts.StreamBufferSize
	if capacity <= 0 {
		capacity = defaultStreamBufferSize
	}
	if opts.UnboundedBuffer {
		capacity = 0
	}
	newSched := opts.NewScheduler
	if newSched == nil {
		newSched = func() sched.Scheduler { return sched.NewAsync() }
	}
	return &Conn{
		tr:              tr,
		pending:         newPendingQueue(),
		streams:         newStreamRegistry(capacity, newSched),
		onProtocolError: opts.OnProtocolError,
		closed:          make(chan struct{}),
	}
}

// Run is the dispatch loop. It reads whole frames from the transport one at
// a time and processes each to completion, until the context is cancelled,
// the connection is closed, or the transport fails.
func (c *Conn) Run(ctx context.Context) error {
	for {
		recvCh := make(chan *wire.Frame, 1)
		errCh := make(chan error, 1)

		go func() {
			f, err := c.tr.Receive()
			if err != nil {
				errCh <- err
				return
			}
			recvCh <- f
		}()

		select {
		case <-ctx.Done():
			slog.Debug("dispatch loop context canceled, shutting down")
			return ctx.Err()
		case <-c.closed:
			return ErrClosed
		case err := <-errCh:
			return err
		case f := <-recvCh:
			c.handleFrame(f)
		}
	}
}

// handleFrame classifies one inbound frame and either completes a pending
// control command or routes a push event; the frame's body reference is
// released here, after any event decoding retained its own.
func (c *Conn) handleFrame(f *wire.Frame) {
	defer f.Release()
	Metrics.FramesTotal.Add(1)

	switch classify(f, c.pending.peek()) {
	case classControlReply:
		c.handleControlReply(f)
	case classPushEvent:
		c.handlePushEvent(f)
	case classUnknown:
		Metrics.UnknownDropped.Add(1)
		slog.Info("dropping unhandled DCP frame",
			slog.String("opcode", f.OpCode.String()),
			slog.Uint64("opaque", uint64(f.Opaque)))
	}
}

// handleControlReply pops the correlation queue head exactly once, builds
// the typed Response, and hands it to the waiting caller.
func (c *Conn) handleControlReply(f *wire.Frame) {
	entry := c.pending.pop()
	if entry == nil {
		return
	}
	status := statusFromWire(f.Status)

	var resp Response
	switch req := entry.req.(type) {
	case *OpenConnectionRequest:
		resp = &OpenConnectionResponse{Status: status, WireStatus: f.Status, Request: req}
	case *StreamRequest:
		failoverLog := parseFailoverLog(f.Body.Bytes())
		r := &StreamRequestResponse{
			Status:      status,
			WireStatus:  f.Status,
			FailoverLog: failoverLog,
			Request:     req,
		}
		s, ok := c.streams.lookup(f.Opaque)
		if !ok {
			// The reply references a stream this engine never allocated.
			Metrics.RoutingFailures.Add(1)
			c.reportProtocolError(f.Opaque, fmt.Errorf("%w: stream-request reply for id %d", ErrNoStream, f.Opaque))
		} else if status == ResponseSuccess {
			s.setFailoverLog(failoverLog)
			r.Stream = s
		} else {
			// Rejected stream: nothing will ever be routed to it.
			c.streams.remove(s.ID())
			s.Close()
		}
		resp = r
	}

	Metrics.ControlReplies.Add(1)
	entry.done <- resp
}

// handlePushEvent routes an unsolicited frame by the stream id in its opaque
// field. The correlation queue is untouched; any pending request stays
// outstanding until its own reply arrives.
func (c *Conn) handlePushEvent(f *wire.Frame) {
	s, ok := c.streams.lookup(f.Opaque)
	if !ok {
		Metrics.RoutingFailures.Add(1)
		c.reportProtocolError(f.Opaque, fmt.Errorf("%w: id %d (opcode %s)", ErrNoStream, f.Opaque, f.OpCode))
		return
	}

	ev := decodePushEvent(f, s.Bucket())
	if ev == nil {
		// A control opcode that did not match the queue head: decoding
		// completes with no response and no event.
		c.reportProtocolError(f.Opaque, fmt.Errorf("dcp: unexpected %s frame with no matching outstanding request", f.OpCode))
		return
	}

	Metrics.PushEvents.Add(1)
	logging.VInfo("dcp", "routed push event",
		slog.String("opcode", f.OpCode.String()),
		slog.Uint64("stream_id", uint64(s.ID())),
		slog.Uint64("stream_fp", s.Fingerprint()))
	s.push(ev)
}

func (c *Conn) reportProtocolError(streamID uint32, err error) {
	slog.Warn("dcp protocol error",
		slog.Uint64("stream_id", uint64(streamID)),
		slog.Any("error", err))
	if c.onProtocolError != nil {
		c.onProtocolError(streamID, err)
	}
}

// OpenConnection issues the open-connection handshake and waits for its
// reply.
func (c *Conn) OpenConnection(ctx context.Context, name string, seqno, flags uint32) (*OpenConnectionResponse, error) {
	req := &OpenConnectionRequest{ConnectionName: name, SequenceNumber: seqno, Flags: flags}
	entry := newPendingRequest(req)

	// Enqueued before sending so a fast reply cannot race its bookkeeping.
	c.pending.enqueue(entry)
	if err := c.tr.Send(ctx, encodeOpenConnection(req)); err != nil {
		c.pending.remove(entry)
		return nil, fmt.Errorf("dcp: open connection: %w", err)
	}

	resp, err := c.await(ctx, entry)
	if err != nil {
		return nil, err
	}
	return resp.(*OpenConnectionResponse), nil
}

// RequestStream opens a stream for one partition and waits for its reply.
// On success the response carries the failover log and the stream handle.
func (c *Conn) RequestStream(ctx context.Context, bucket string, vbucket int32, startSeqNo, endSeqNo, vbucketUUID, snapshotStart, snapshotEnd uint64) (*StreamRequestResponse, error) {
	req := &StreamRequest{
		Bucket:             bucket,
		VBucket:            vbucket,
		StartSeqNo:         startSeqNo,
		EndSeqNo:           endSeqNo,
		VBucketUUID:        vbucketUUID,
		SnapshotStartSeqNo: snapshotStart,
		SnapshotEndSeqNo:   snapshotEnd,
	}
	s := c.streams.allocate(bucket)
	entry := newPendingRequest(req)

	c.pending.enqueue(entry)
	if err := c.tr.Send(ctx, encodeStreamRequest(req, s.ID())); err != nil {
		c.pending.remove(entry)
		c.streams.remove(s.ID())
		s.Close()
		return nil, fmt.Errorf("dcp: stream request: %w", err)
	}

	resp, err := c.await(ctx, entry)
	if err != nil {
		return nil, err
	}
	return resp.(*StreamRequestResponse), nil
}

func (c *Conn) await(ctx context.Context, entry *pendingRequest) (Response, error) {
	select {
	case resp := <-entry.done:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrClosed
	}
}

// Close shuts the connection down: the transport is closed, waiting callers
// get ErrClosed, and every stream is failed with ErrClosed. Idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.tr.Close()
		c.pending.drain()
		c.streams.closeAll(ErrClosed)
	})
	return err
}

// OutstandingRequests reports the correlation queue depth.
func (c *Conn) OutstandingRequests() int {
	return c.pending.size()
}
