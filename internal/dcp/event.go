package dcp

import (
	"github.com/nikkitan/dcpcore/internal/bufpool"
	"github.com/nikkitan/dcpcore/internal/wire"
)

// Event is a decoded push message delivered on a stream's channel.
type Event interface {
	EventBucket() string
}

// SnapshotMarkerEvent announces the bounds of the snapshot the following
// mutations belong to.
type SnapshotMarkerEvent struct {
	StartSeqNo uint64
	EndSeqNo   uint64
	Flags      uint32
	Status     wire.Status
	Bucket     string
}

func (e *SnapshotMarkerEvent) EventBucket() string { return e.Bucket }

// MutationEvent carries one document mutation. Content holds one reference
// to the frame's body buffer; the consumer releases it via Release.
type MutationEvent struct {
	Key        []byte
	Content    *bufpool.Buffer
	Flags      uint32
	Expiration uint32
	LockTime   uint32
	Cas        uint64
	Status     wire.Status
	Bucket     string
}

func (e *MutationEvent) EventBucket() string { return e.Bucket }

// Release drops the event's reference to the content buffer. Must be called
// exactly once by whoever consumes the event.
func (e *MutationEvent) Release() {
	if e.Content != nil {
		e.Content.Release()
		e.Content = nil
	}
}

// RemoveEvent carries one document deletion.
type RemoveEvent struct {
	Key    []byte
	Cas    uint64
	Status wire.Status
	Bucket string
}

func (e *RemoveEvent) EventBucket() string { return e.Bucket }

// releaseEvent releases any buffer an undelivered event still owns. Streams
// call this when dropping events on saturation or at close so buffered
// content never leaks.
func releaseEvent(ev Event) {
	if m, ok := ev.(*MutationEvent); ok {
		m.Release()
	}
}
