package dcp

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/nikkitan/dcpcore/internal/sched"
)

// streamRegistry allocates stream identifiers and owns the id-to-Stream
// mapping used to demultiplex push events. Identifiers are monotonic from
// zero and unique for the connection's lifetime.
type streamRegistry struct {
	mu      sync.RWMutex
	nextID  uint32
	streams map[uint32]*Stream

	capacity int
	newSched func() sched.Scheduler
}

func newStreamRegistry(capacity int, newSched func() sched.Scheduler) *streamRegistry {
	return &streamRegistry{
		streams:  make(map[uint32]*Stream),
		capacity: capacity,
		newSched: newSched,
	}
}

// allocate assigns the next identifier, creates the Stream bound to it and
// the bucket, and registers it. The returned stream's id goes into the
// outbound frame's opaque field.
func (r *streamRegistry) allocate(bucket string) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	fp := xxhash.Sum64String(fmt.Sprintf("%s:%d", bucket, id))
	s := newStream(id, bucket, fp, r.capacity, r.newSched())
	r.streams[id] = s
	return s
}

// lookup resolves a stream id carried in a frame's opaque field. Absence is
// the caller's condition to handle, never an implicit default.
func (r *streamRegistry) lookup(id uint32) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[id]
	return s, ok
}

// remove drops the mapping for id. The stream itself is closed by whoever
// owns it.
func (r *streamRegistry) remove(id uint32) {
	r.mu.Lock()
	delete(r.streams, id)
	r.mu.Unlock()
}

// closeAll closes every registered stream with the given terminal error and
// empties the registry; used at connection shutdown.
func (r *streamRegistry) closeAll(err error) {
	r.mu.Lock()
	streams := r.streams
	r.streams = make(map[uint32]*Stream)
	r.mu.Unlock()
	for _, s := range streams {
		if err != nil {
			s.Fail(err)
		} else {
			s.Close()
		}
	}
}
