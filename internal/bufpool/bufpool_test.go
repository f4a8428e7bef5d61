package bufpool

import (
	"bytes"
	"testing"
)

func TestGetAndRelease(t *testing.T) {
	b := Get(32)
	if b.Len() != 32 {
		t.Fatalf("expected length 32, got %d", b.Len())
	}
	if b.Refs() != 1 {
		t.Fatalf("fresh buffer should have one reference, got %d", b.Refs())
	}
	b.Release()
	if b.Refs() != 0 {
		t.Fatalf("released buffer should have zero references, got %d", b.Refs())
	}
	if b.Bytes() != nil {
		t.Fatalf("released buffer should drop its storage")
	}
}

func TestRetainExtendsLifetime(t *testing.T) {
	b := Wrap([]byte("payload"))
	b.Retain()
	b.Release()
	if got := b.Bytes(); !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("buffer with outstanding reference lost its bytes: %q", got)
	}
	b.Release()
	if b.Refs() != 0 {
		t.Fatalf("expected zero references after final release, got %d", b.Refs())
	}
}

func TestNilBufferIsSafe(t *testing.T) {
	var b *Buffer
	b.Release()
	if b.Retain() != nil {
		t.Fatalf("retain on nil should stay nil")
	}
	if b.Len() != 0 || b.Bytes() != nil {
		t.Fatalf("nil buffer should be empty")
	}
}
