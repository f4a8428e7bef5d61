package dcp

import (
	"encoding/binary"

	"github.com/nikkitan/dcpcore/internal/wire"
)

// openConnectionExtrasLen is [sequence number: 4][type flags: 4].
const openConnectionExtrasLen = 8

// streamRequestExtrasLen is [reserved: 4][reserved: 4][start: 8][end: 8]
// [vbucket uuid: 8][snapshot start: 8][snapshot end: 8].
const streamRequestExtrasLen = 48

// encodeOpenConnection builds the outbound frame for an open-connection
// command. The connection name travels in the key region.
func encodeOpenConnection(r *OpenConnectionRequest) *wire.Frame {
	extras := make([]byte, openConnectionExtrasLen)
	binary.BigEndian.PutUint32(extras[0:4], r.SequenceNumber)
	binary.BigEndian.PutUint32(extras[4:8], r.Flags)

	f := &wire.Frame{
		OpCode: wire.OpOpenConnection,
		Extras: extras,
		Key:    []byte(r.ConnectionName),
	}
	finishEncode(f, r)
	return f
}

// encodeStreamRequest builds the outbound frame for a stream-request
// command. streamID is written into the opaque field so the reply and all
// push events for the partition carry it.
func encodeStreamRequest(r *StreamRequest, streamID uint32) *wire.Frame {
	extras := make([]byte, streamRequestExtrasLen)
	binary.BigEndian.PutUint64(extras[8:16], r.StartSeqNo)
	binary.BigEndian.PutUint64(extras[16:24], r.EndSeqNo)
	binary.BigEndian.PutUint64(extras[24:32], r.VBucketUUID)
	binary.BigEndian.PutUint64(extras[32:40], r.SnapshotStartSeqNo)
	binary.BigEndian.PutUint64(extras[40:48], r.SnapshotEndSeqNo)

	f := &wire.Frame{
		OpCode: wire.OpStreamRequest,
		Extras: extras,
		Opaque: streamID,
	}
	finishEncode(f, r)
	return f
}

// finishEncode applies the rules shared by all outbound control frames: a
// non-negative partition goes into the vbucket field, and a frame carrying a
// body buffer has its reference count bumped because the transport consumes
// the buffer asynchronously while the caller may still hold its own
// reference.
func finishEncode(f *wire.Frame, r Request) {
	if p := r.Partition(); p >= 0 {
		f.VBucketID = uint16(p)
	}
	if f.Body != nil {
		f.Body.Retain()
	}
}

// frameClass is the three-way classification of an inbound frame, computed
// before the correlation queue is touched.
type frameClass uint8

const (
	// classControlReply: the frame answers the request at the head of the
	// correlation queue.
	classControlReply frameClass = iota
	// classPushEvent: an unsolicited stream message to route by opaque.
	classPushEvent
	// classUnknown: an opcode this engine does not speak; dropped.
	classUnknown
)

// classify decides what an inbound frame is. A control opcode only counts as
// a reply when the queue head is a request of the matching kind; otherwise
// it falls through to the push path (and, lacking a registered stream, ends
// up reported as unroutable).
func classify(f *wire.Frame, head Request) frameClass {
	switch f.OpCode {
	case wire.OpOpenConnection:
		if head != nil && head.Kind() == KindOpenConnection {
			return classControlReply
		}
		return classPushEvent
	case wire.OpStreamRequest:
		if head != nil && head.Kind() == KindStreamRequest {
			return classControlReply
		}
		return classPushEvent
	case wire.OpSnapshotMarker, wire.OpMutation, wire.OpRemove:
		return classPushEvent
	default:
		return classUnknown
	}
}

// failoverLogEntrySize is 8 bytes of vbucket uuid + 8 bytes of seqno.
const failoverLogEntrySize = 16

// parseFailoverLog reads consecutive 16-byte entries from a stream-request
// reply body. Trailing bytes short of a whole entry are discarded.
func parseFailoverLog(body []byte) []FailoverLogEntry {
	log := make([]FailoverLogEntry, 0, len(body)/failoverLogEntrySize)
	for len(body) >= failoverLogEntrySize {
		log = append(log, FailoverLogEntry{
			VBucketUUID: binary.BigEndian.Uint64(body[0:8]),
			SeqNo:       binary.BigEndian.Uint64(body[8:16]),
		})
		body = body[failoverLogEntrySize:]
	}
	return log
}

// decodePushEvent decodes the typed event for a push frame. A MutationEvent
// retains one reference to the frame body, so the frame's own reference
// stays valid for its natural lifetime. Returns nil for opcodes that are not
// push events.
func decodePushEvent(f *wire.Frame, bucket string) Event {
	switch f.OpCode {
	case wire.OpSnapshotMarker:
		ev := &SnapshotMarkerEvent{Status: f.Status, Bucket: bucket}
		if len(f.Extras) >= 20 {
			ev.StartSeqNo = binary.BigEndian.Uint64(f.Extras[0:8])
			ev.EndSeqNo = binary.BigEndian.Uint64(f.Extras[8:16])
			ev.Flags = binary.BigEndian.Uint32(f.Extras[16:20])
		}
		return ev
	case wire.OpMutation:
		ev := &MutationEvent{
			Key:     f.Key,
			Content: f.Body.Retain(),
			Cas:     f.Cas,
			Status:  f.Status,
			Bucket:  bucket,
		}
		if len(f.Extras) >= 28 {
			// First 16 bytes are by_seqno and rev_seqno, not surfaced.
			ev.Flags = binary.BigEndian.Uint32(f.Extras[16:20])
			ev.Expiration = binary.BigEndian.Uint32(f.Extras[20:24])
			ev.LockTime = binary.BigEndian.Uint32(f.Extras[24:28])
		}
		return ev
	case wire.OpRemove:
		return &RemoveEvent{
			Key:    f.Key,
			Cas:    f.Cas,
			Status: f.Status,
			Bucket: bucket,
		}
	default:
		return nil
	}
}
