package dcp

import (
	"sync"
	"sync/atomic"

	"github.com/nikkitan/dcpcore/internal/sched"
)

// Stream is the per-partition state for one open DCP stream: its identity,
// owning bucket, failover log, and the backpressured channel decoded events
// are delivered on.
//
// The decode path enqueues into an internal buffer and returns immediately;
// a task on the stream's scheduler moves events to the consumer channel, so
// a slow consumer never stalls frame decoding. In bounded mode the buffer
// drops the newest event once saturated (the drop is counted and the event's
// content released); in unbounded mode the buffer grows without limit.
type Stream struct {
	id          uint32
	bucket      string
	fingerprint uint64

	sched    sched.Scheduler
	capacity int // <= 0 means unbounded
	out      chan Event
	done     chan struct{}

	mu          sync.Mutex
	queue       []Event
	delivering  bool
	closed      bool
	err         error
	failoverLog []FailoverLogEntry

	dropped atomic.Uint64
}

func newStream(id uint32, bucket string, fingerprint uint64, capacity int, s sched.Scheduler) *Stream {
	outCap := capacity
	if outCap <= 0 {
		outCap = 64
	}
	return &Stream{
		id:          id,
		bucket:      bucket,
		fingerprint: fingerprint,
		sched:       s,
		capacity:    capacity,
		out:         make(chan Event, outCap),
		done:        make(chan struct{}),
	}
}

// ID returns the stream identifier, unique for the connection's lifetime.
func (s *Stream) ID() uint32 { return s.id }

// Bucket returns the owning bucket name.
func (s *Stream) Bucket() string { return s.bucket }

// Fingerprint returns the 64-bit hash the registry tagged this stream with,
// used to correlate log lines and metrics.
func (s *Stream) Fingerprint() uint64 { return s.fingerprint }

// Events returns the consumer side of the delivery channel. The channel is
// closed when the stream closes; check Err afterwards for a terminal error.
func (s *Stream) Events() <-chan Event { return s.out }

// Err reports the terminal error, if any, once the event channel is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Dropped reports how many events were discarded due to buffer saturation.
func (s *Stream) Dropped() uint64 { return s.dropped.Load() }

// FailoverLog returns the entries attached at stream-request reply time.
func (s *Stream) FailoverLog() []FailoverLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failoverLog
}

func (s *Stream) setFailoverLog(log []FailoverLogEntry) {
	s.mu.Lock()
	s.failoverLog = log
	s.mu.Unlock()
}

// buffered returns the number of undelivered events (internal buffer plus
// channel). Caller must hold s.mu.
func (s *Stream) buffered() int {
	return len(s.queue) + len(s.out)
}

// push enqueues a decoded event for delivery. It never blocks: a saturated
// bounded buffer drops the event, and a closed stream releases it.
func (s *Stream) push(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		releaseEvent(ev)
		return
	}
	if s.capacity > 0 && s.buffered() >= s.capacity {
		s.mu.Unlock()
		s.dropped.Add(1)
		Metrics.SaturationDrops.Add(1)
		releaseEvent(ev)
		return
	}
	s.queue = append(s.queue, ev)
	schedule := !s.delivering
	s.delivering = true
	s.mu.Unlock()

	if schedule {
		s.sched.Enqueue(s.deliver)
	}
}

// deliver moves buffered events to the consumer channel. It runs on the
// stream's scheduler, never on the decode path.
func (s *Stream) deliver() {
	for {
		s.mu.Lock()
		if s.closed || len(s.queue) == 0 {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			releaseEvent(ev)
			return
		}
	}
}

// Fail records a terminal error and closes the stream. The consumer observes
// the channel closing and reads the error via Err.
func (s *Stream) Fail(err error) {
	s.mu.Lock()
	if s.err == nil && !s.closed {
		s.err = err
	}
	s.mu.Unlock()
	s.Close()
}

// Close stops delivery and releases undelivered events. Idempotent; push
// calls after Close are no-ops.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	undelivered := s.queue
	s.queue = nil
	s.mu.Unlock()

	close(s.done)
	for _, ev := range undelivered {
		releaseEvent(ev)
	}

	// All sends to out happen on the scheduler, so closing there cannot race
	// a concurrent send. The final task also releases anything the consumer
	// never drained and stops the worker.
	s.sched.Enqueue(func() {
		close(s.out)
		for ev := range s.out {
			releaseEvent(ev)
		}
		s.sched.Stop()
	})
}
