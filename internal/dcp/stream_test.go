package dcp

import (
	"errors"
	"testing"

	"github.com/nikkitan/dcpcore/internal/bufpool"
	"github.com/nikkitan/dcpcore/internal/sched"
)

func newTestStream(capacity int) (*Stream, *sched.Serial) {
	s := sched.NewSerial()
	return newStream(0, "default", 42, capacity, s), s
}

func TestStreamDeliversInOrder(t *testing.T) {
	st, sc := newTestStream(8)
	st.push(&SnapshotMarkerEvent{StartSeqNo: 1, Bucket: "default"})
	st.push(&RemoveEvent{Key: []byte("a"), Bucket: "default"})
	sc.RunAll()

	ev := <-st.Events()
	if m, ok := ev.(*SnapshotMarkerEvent); !ok || m.StartSeqNo != 1 {
		t.Fatalf("first event out of order: %+v", ev)
	}
	ev = <-st.Events()
	if _, ok := ev.(*RemoveEvent); !ok {
		t.Fatalf("second event out of order: %+v", ev)
	}
}

func TestStreamDecouplesDeliveryFromPush(t *testing.T) {
	st, sc := newTestStream(8)
	st.push(&RemoveEvent{Key: []byte("a")})
	select {
	case <-st.Events():
		t.Fatalf("event delivered before the scheduler ran")
	default:
	}
	sc.RunAll()
	select {
	case <-st.Events():
	default:
		t.Fatalf("event not delivered after scheduler ran")
	}
}

func TestBoundedStreamDropsOnSaturation(t *testing.T) {
	st, _ := newTestStream(2)
	buf := bufpool.Wrap([]byte("v"))

	st.push(&RemoveEvent{Key: []byte("1")})
	st.push(&RemoveEvent{Key: []byte("2")})
	// Third event exceeds capacity; it is dropped and its content released.
	st.push(&MutationEvent{Key: []byte("3"), Content: buf.Retain()})

	if st.Dropped() != 1 {
		t.Fatalf("dropped count = %d, want 1", st.Dropped())
	}
	if buf.Refs() != 1 {
		t.Fatalf("dropped event must release its content: refs=%d", buf.Refs())
	}
}

func TestUnboundedStreamNeverDrops(t *testing.T) {
	st, sc := newTestStream(0)
	for i := 0; i < 500; i++ {
		st.push(&RemoveEvent{})
	}
	if st.Dropped() != 0 {
		t.Fatalf("unbounded stream dropped %d events", st.Dropped())
	}
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			<-st.Events()
		}
		close(done)
	}()
	sc.RunAll()
	<-done
}

func TestCloseIsIdempotentAndStopsDelivery(t *testing.T) {
	st, sc := newTestStream(8)
	st.Close()
	st.Close()

	buf := bufpool.Wrap([]byte("late"))
	st.push(&MutationEvent{Content: buf.Retain()})
	if buf.Refs() != 1 {
		t.Fatalf("push after close must release the event: refs=%d", buf.Refs())
	}

	sc.RunAll()
	if _, open := <-st.Events(); open {
		t.Fatalf("event channel must be closed")
	}
}

func TestCloseReleasesUndeliveredEvents(t *testing.T) {
	st, sc := newTestStream(8)
	buf := bufpool.Wrap([]byte("v"))
	st.push(&MutationEvent{Content: buf.Retain()})
	st.Close()
	sc.RunAll()
	if buf.Refs() != 1 {
		t.Fatalf("undelivered event content leaked: refs=%d", buf.Refs())
	}
}

func TestFailSurfacesTerminalError(t *testing.T) {
	st, sc := newTestStream(8)
	want := errors.New("partition moved")
	st.Fail(want)
	sc.RunAll()

	for range st.Events() {
	}
	if got := st.Err(); got != want {
		t.Fatalf("Err() = %v, want %v", got, want)
	}
}

func TestFailoverLogAttachment(t *testing.T) {
	st, _ := newTestStream(8)
	log := []FailoverLogEntry{{VBucketUUID: 1, SeqNo: 2}}
	st.setFailoverLog(log)
	got := st.FailoverLog()
	if len(got) != 1 || got[0] != log[0] {
		t.Fatalf("failover log corrupted: %+v", got)
	}
}
