package dcp

import "testing"

func TestPendingQueueFIFO(t *testing.T) {
	q := newPendingQueue()
	if q.peek() != nil {
		t.Fatalf("empty queue must peek nil")
	}
	if q.pop() != nil {
		t.Fatalf("empty queue must pop nil")
	}

	a := newPendingRequest(&OpenConnectionRequest{ConnectionName: "a"})
	b := newPendingRequest(&StreamRequest{Bucket: "b"})
	q.enqueue(a)
	q.enqueue(b)

	if q.size() != 2 {
		t.Fatalf("size = %d, want 2", q.size())
	}
	if q.peek() != a.req {
		t.Fatalf("peek must return the head without consuming it")
	}
	if q.size() != 2 {
		t.Fatalf("peek must not consume the head")
	}
	if got := q.pop(); got != a {
		t.Fatalf("pop returned %v, want first entry", got)
	}
	if got := q.pop(); got != b {
		t.Fatalf("pop returned %v, want second entry", got)
	}
}

func TestPendingQueueRemove(t *testing.T) {
	q := newPendingQueue()
	a := newPendingRequest(&OpenConnectionRequest{})
	b := newPendingRequest(&StreamRequest{})
	q.enqueue(a)
	q.enqueue(b)

	q.remove(a)
	if q.size() != 1 || q.peek() != b.req {
		t.Fatalf("remove must delete exactly the given entry")
	}
	// Removing an entry that is gone is a no-op.
	q.remove(a)
	if q.size() != 1 {
		t.Fatalf("double remove must not disturb the queue")
	}
}

func TestPendingQueueDrain(t *testing.T) {
	q := newPendingQueue()
	q.enqueue(newPendingRequest(&OpenConnectionRequest{}))
	q.enqueue(newPendingRequest(&OpenConnectionRequest{}))

	if got := len(q.drain()); got != 2 {
		t.Fatalf("drain returned %d entries, want 2", got)
	}
	if q.size() != 0 {
		t.Fatalf("queue must be empty after drain")
	}
}
