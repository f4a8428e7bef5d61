package dcp

import (
	"testing"

	"github.com/nikkitan/dcpcore/internal/sched"
)

func newTestRegistry() *streamRegistry {
	return newStreamRegistry(8, func() sched.Scheduler { return sched.NewSerial() })
}

func TestAllocateIDsAreSequential(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 10; i++ {
		s := r.allocate("default")
		if s.ID() != uint32(i) {
			t.Fatalf("allocation %d returned id %d", i, s.ID())
		}
	}
}

func TestLookupResolvesAllocatedStreams(t *testing.T) {
	r := newTestRegistry()
	a := r.allocate("bucket-a")
	b := r.allocate("bucket-b")

	got, ok := r.lookup(a.ID())
	if !ok || got != a {
		t.Fatalf("lookup(%d) = %v, %v", a.ID(), got, ok)
	}
	got, ok = r.lookup(b.ID())
	if !ok || got.Bucket() != "bucket-b" {
		t.Fatalf("lookup(%d) returned wrong stream", b.ID())
	}
	if _, ok := r.lookup(99); ok {
		t.Fatalf("lookup of unallocated id must fail")
	}
}

func TestFingerprintsDifferPerStream(t *testing.T) {
	r := newTestRegistry()
	a := r.allocate("default")
	b := r.allocate("default")
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatalf("streams of the same bucket must still have distinct fingerprints")
	}
}

func TestRemoveForgetsStream(t *testing.T) {
	r := newTestRegistry()
	s := r.allocate("default")
	r.remove(s.ID())
	if _, ok := r.lookup(s.ID()); ok {
		t.Fatalf("removed stream still resolvable")
	}
	// Ids are never reused after removal.
	if next := r.allocate("default"); next.ID() != 1 {
		t.Fatalf("id reused after removal: %d", next.ID())
	}
}

func TestCloseAllFailsStreams(t *testing.T) {
	r := newTestRegistry()
	s := r.allocate("default")
	r.closeAll(ErrClosed)
	if _, ok := r.lookup(s.ID()); ok {
		t.Fatalf("closeAll must empty the registry")
	}
	if s.Err() != ErrClosed {
		t.Fatalf("stream error = %v, want ErrClosed", s.Err())
	}
}
