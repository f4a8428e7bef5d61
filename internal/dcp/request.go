// Package dcp implements the DCP stream protocol engine: encoding control
// requests, decoding and classifying inbound frames, correlating replies to
// outstanding requests, and routing push events to per-partition streams.
package dcp

// RequestKind tags the request variants so classification can match a frame
// against the head of the correlation queue without type inspection
// scattered through the dispatch path.
type RequestKind uint8

const (
	KindOpenConnection RequestKind = iota
	KindStreamRequest
)

// Request is an immutable control command awaiting encoding and, later, its
// correlated reply.
type Request interface {
	Kind() RequestKind
	// Partition returns the partition (vbucket) id the request targets, or a
	// negative value when the request is not partition-scoped.
	Partition() int32
}

// OpenConnectionRequest names this connection to the producer and declares
// its type.
type OpenConnectionRequest struct {
	ConnectionName string
	SequenceNumber uint32
	Flags          uint32
}

func (r *OpenConnectionRequest) Kind() RequestKind { return KindOpenConnection }
func (r *OpenConnectionRequest) Partition() int32  { return -1 }

// StreamRequest asks the producer to start streaming one partition from
// StartSeqNo to EndSeqNo.
type StreamRequest struct {
	Bucket             string
	VBucket            int32
	StartSeqNo         uint64
	EndSeqNo           uint64
	VBucketUUID        uint64
	SnapshotStartSeqNo uint64
	SnapshotEndSeqNo   uint64
}

func (r *StreamRequest) Kind() RequestKind { return KindStreamRequest }
func (r *StreamRequest) Partition() int32  { return r.VBucket }
