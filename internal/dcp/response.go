package dcp

import "github.com/nikkitan/dcpcore/internal/wire"

// ResponseStatus is the coarse outcome of a control command. The wire status
// is kept alongside for diagnostics; retry policy belongs to the caller.
type ResponseStatus uint8

const (
	ResponseSuccess ResponseStatus = iota
	ResponseFailure
)

func (s ResponseStatus) String() string {
	if s == ResponseSuccess {
		return "SUCCESS"
	}
	return "FAILURE"
}

// statusFromWire maps the wire status code: zero is success, everything else
// is failure.
func statusFromWire(s wire.Status) ResponseStatus {
	if s == wire.StatusSuccess {
		return ResponseSuccess
	}
	return ResponseFailure
}

// FailoverLogEntry is one (partition epoch, sequence number) pair from a
// stream-request reply body.
type FailoverLogEntry struct {
	VBucketUUID uint64
	SeqNo       uint64
}

// Response is the result of a control command, delivered to the caller that
// issued the matching Request.
type Response interface {
	ResponseStatus() ResponseStatus
}

// OpenConnectionResponse acknowledges an OpenConnectionRequest.
type OpenConnectionResponse struct {
	Status     ResponseStatus
	WireStatus wire.Status
	Request    *OpenConnectionRequest
}

func (r *OpenConnectionResponse) ResponseStatus() ResponseStatus { return r.Status }

// StreamRequestResponse acknowledges a StreamRequest. On success it carries
// the partition's failover log and the handle to the stream's event channel;
// ownership of the handle passes to the caller.
type StreamRequestResponse struct {
	Status      ResponseStatus
	WireStatus  wire.Status
	FailoverLog []FailoverLogEntry
	Stream      *Stream
	Request     *StreamRequest
}

func (r *StreamRequestResponse) ResponseStatus() ResponseStatus { return r.Status }
