package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"

	"github.com/nikkitan/dcpcore/internal/bufpool"
	"github.com/nikkitan/dcpcore/internal/wire"
)

func TestTCPFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	a := NewTCP(client)
	b := NewTCP(server)
	defer a.Close()
	defer b.Close()

	sent := &wire.Frame{
		IsResponse: true,
		OpCode:     wire.OpMutation,
		Status:     wire.StatusSuccess,
		Opaque:     42,
		Cas:        99,
		Extras:     bytes.Repeat([]byte{0}, 31),
		Key:        []byte("k"),
		Body:       bufpool.Wrap([]byte("v")),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Send(context.Background(), sent) }()

	got, err := b.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("send: %v", err)
	}

	if !got.IsResponse || got.OpCode != wire.OpMutation || got.Opaque != 42 || got.Cas != 99 {
		t.Fatalf("header fields corrupted: %+v", got)
	}
	if !bytes.Equal(got.Key, []byte("k")) || !bytes.Equal(got.Body.Bytes(), []byte("v")) {
		t.Fatalf("payload corrupted: key=%q body=%q", got.Key, got.Body.Bytes())
	}
	if len(got.Extras) != 31 {
		t.Fatalf("extras length %d, want 31", len(got.Extras))
	}
	got.Release()
}

func TestTCPReceiveEOFOnClose(t *testing.T) {
	client, server := net.Pipe()
	tr := NewTCP(server)
	client.Close()
	if _, err := tr.Receive(); err == nil {
		t.Fatalf("expected error after peer close")
	}
}

func TestPipeDeliversInOrder(t *testing.T) {
	a, b := NewPipe(4)
	defer a.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f := &wire.Frame{OpCode: wire.OpSnapshotMarker, Opaque: uint32(i)}
		if err := a.Send(ctx, f); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		f, err := b.Receive()
		if err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		if f.Opaque != uint32(i) {
			t.Fatalf("out of order: got opaque %d, want %d", f.Opaque, i)
		}
	}
}

func TestPipeCloseIsIdempotent(t *testing.T) {
	a, b := NewPipe(1)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := a.Receive(); err != io.EOF {
		t.Fatalf("expected EOF after close, got %v", err)
	}
	if err := a.Send(context.Background(), &wire.Frame{}); err != io.ErrClosedPipe {
		t.Fatalf("expected ErrClosedPipe after close, got %v", err)
	}
}
