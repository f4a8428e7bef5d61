package wire

import (
	"bytes"
	"testing"

	"github.com/nikkitan/dcpcore/internal/bufpool"
)

func TestHeaderRoundTrip(t *testing.T) {
	f := &Frame{
		OpCode:    OpStreamRequest,
		VBucketID: 3,
		Opaque:    7,
		Cas:       0xDEADBEEF,
		Extras:    make([]byte, 48),
	}
	hdr := make([]byte, HeaderLen)
	EncodeHeader(hdr, f)

	h, err := ParseHeader(hdr)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if h.IsResponse {
		t.Fatalf("request frame parsed as response")
	}
	if h.OpCode != OpStreamRequest || h.VBucketID != 3 || h.Opaque != 7 || h.Cas != 0xDEADBEEF {
		t.Fatalf("header fields corrupted: %+v", h)
	}
	if h.ExtrasLen != 48 || h.TotalBody != 48 || h.ValueLen() != 0 {
		t.Fatalf("length fields corrupted: %+v", h)
	}
}

func TestResponseHeaderCarriesStatus(t *testing.T) {
	f := &Frame{
		IsResponse: true,
		OpCode:     OpOpenConnection,
		Status:     0x0001,
		Key:        []byte("name"),
		Body:       bufpool.Wrap([]byte("vv")),
	}
	hdr := make([]byte, HeaderLen)
	EncodeHeader(hdr, f)

	h, err := ParseHeader(hdr)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if !h.IsResponse || h.Status != 0x0001 {
		t.Fatalf("expected response with status 1, got %+v", h)
	}
	if h.KeyLen != 4 || h.TotalBody != 6 || h.ValueLen() != 2 {
		t.Fatalf("length fields corrupted: %+v", h)
	}
}

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	hdr := make([]byte, HeaderLen)
	hdr[0] = 0x42
	if _, err := ParseHeader(hdr); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestParseHeaderRejectsInconsistentLengths(t *testing.T) {
	f := &Frame{OpCode: OpMutation, Key: []byte("k"), Extras: make([]byte, 31)}
	hdr := make([]byte, HeaderLen)
	EncodeHeader(hdr, f)
	// Claim a total body smaller than extras+key.
	hdr[8], hdr[9], hdr[10], hdr[11] = 0, 0, 0, 4
	if _, err := ParseHeader(hdr); err == nil {
		t.Fatalf("expected error for inconsistent lengths")
	}
}

func TestOpCodeString(t *testing.T) {
	if got := OpMutation.String(); got != "MUTATION" {
		t.Fatalf("unexpected opcode name %q", got)
	}
	if got := OpCode(0x99).String(); !bytes.Contains([]byte(got), []byte("0x99")) {
		t.Fatalf("unknown opcode should include hex value, got %q", got)
	}
}
