// Package wire models the binary request/response framing the DCP protocol
// is layered on: a 24-byte big-endian header followed by extras, key, and
// value regions.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/nikkitan/dcpcore/internal/bufpool"
)

const (
	// HeaderLen is the fixed size of a frame header.
	HeaderLen = 24

	// MagicRequest and MagicResponse are the first header byte of request
	// and response frames.
	MagicRequest  = 0x80
	MagicResponse = 0x81
)

// OpCode identifies the operation a frame carries.
type OpCode uint8

const (
	OpOpenConnection OpCode = 0x50
	OpStreamRequest  OpCode = 0x53
	OpSnapshotMarker OpCode = 0x56
	OpMutation       OpCode = 0x57
	OpRemove         OpCode = 0x58
)

func (o OpCode) String() string {
	switch o {
	case OpOpenConnection:
		return "OPEN_CONNECTION"
	case OpStreamRequest:
		return "STREAM_REQUEST"
	case OpSnapshotMarker:
		return "SNAPSHOT_MARKER"
	case OpMutation:
		return "MUTATION"
	case OpRemove:
		return "REMOVE"
	default:
		return fmt.Sprintf("OPCODE_0x%02X", uint8(o))
	}
}

// Status is the wire status code carried by response frames.
type Status uint16

// StatusSuccess is the only status treated as success; every other code is a
// failure at this layer.
const StatusSuccess Status = 0x0000

// Header is the decoded fixed-size frame header.
type Header struct {
	IsResponse bool
	OpCode     OpCode
	KeyLen     uint16
	ExtrasLen  uint8
	Datatype   uint8
	VBucketID  uint16 // request frames only
	Status     Status // response frames only
	TotalBody  uint32
	Opaque     uint32
	Cas        uint64
}

// ValueLen returns the length of the value region implied by the header.
func (h *Header) ValueLen() int {
	return int(h.TotalBody) - int(h.ExtrasLen) - int(h.KeyLen)
}

// ParseHeader decodes a fixed-size header. hdr must be at least HeaderLen
// bytes.
func ParseHeader(hdr []byte) (Header, error) {
	if len(hdr) < HeaderLen {
		return Header{}, fmt.Errorf("wire: short header: %d bytes", len(hdr))
	}
	var h Header
	switch hdr[0] {
	case MagicRequest:
		h.IsResponse = false
		h.VBucketID = binary.BigEndian.Uint16(hdr[6:8])
	case MagicResponse:
		h.IsResponse = true
		h.Status = Status(binary.BigEndian.Uint16(hdr[6:8]))
	default:
		return Header{}, fmt.Errorf("wire: bad magic 0x%02x", hdr[0])
	}
	h.OpCode = OpCode(hdr[1])
	h.KeyLen = binary.BigEndian.Uint16(hdr[2:4])
	h.ExtrasLen = hdr[4]
	h.Datatype = hdr[5]
	h.TotalBody = binary.BigEndian.Uint32(hdr[8:12])
	h.Opaque = binary.BigEndian.Uint32(hdr[12:16])
	h.Cas = binary.BigEndian.Uint64(hdr[16:24])
	if h.ValueLen() < 0 {
		return Header{}, fmt.Errorf("wire: total body %d smaller than extras %d + key %d",
			h.TotalBody, h.ExtrasLen, h.KeyLen)
	}
	return h, nil
}

// EncodeHeader writes the fixed-size header for f into hdr, which must be at
// least HeaderLen bytes.
func EncodeHeader(hdr []byte, f *Frame) {
	if f.IsResponse {
		hdr[0] = MagicResponse
		binary.BigEndian.PutUint16(hdr[6:8], uint16(f.Status))
	} else {
		hdr[0] = MagicRequest
		binary.BigEndian.PutUint16(hdr[6:8], f.VBucketID)
	}
	hdr[1] = uint8(f.OpCode)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(len(f.Key)))
	hdr[4] = uint8(len(f.Extras))
	hdr[5] = f.Datatype
	binary.BigEndian.PutUint32(hdr[8:12], uint32(f.TotalBodyLen()))
	binary.BigEndian.PutUint32(hdr[12:16], f.Opaque)
	binary.BigEndian.PutUint64(hdr[16:24], f.Cas)
}

// Frame is a whole reassembled frame. Extras and Key are small and owned by
// the frame; Body is the value region and is reference counted because
// decoded events may outlive the frame.
type Frame struct {
	IsResponse bool
	OpCode     OpCode
	Datatype   uint8
	VBucketID  uint16 // request frames only
	Status     Status // response frames only
	Opaque     uint32
	Cas        uint64
	Extras     []byte
	Key        []byte
	Body       *bufpool.Buffer
}

// TotalBodyLen returns the combined length of extras, key, and value.
func (f *Frame) TotalBodyLen() int {
	return len(f.Extras) + len(f.Key) + f.Body.Len()
}

// Release drops the frame's reference to its body buffer. Event decoding
// retains its own reference before this is called.
func (f *Frame) Release() {
	if f.Body != nil {
		f.Body.Release()
	}
}
