package dcp

import "sync"

// pendingRequest is one outstanding control command with the channel its
// Response is delivered on. done has capacity one so the dispatch loop never
// blocks on a caller.
type pendingRequest struct {
	req  Request
	done chan Response
}

func newPendingRequest(req Request) *pendingRequest {
	return &pendingRequest{req: req, done: make(chan Response, 1)}
}

// pendingQueue is the FIFO of requests awaiting replies. Requests enter from
// caller goroutines and leave on the dispatch goroutine, so the queue takes
// a lock; frame processing itself remains single-threaded.
type pendingQueue struct {
	mu      sync.Mutex
	entries []*pendingRequest
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{}
}

// enqueue appends an outstanding request. Called before the frame is sent so
// a fast reply can never race its own bookkeeping.
func (q *pendingQueue) enqueue(p *pendingRequest) {
	q.mu.Lock()
	q.entries = append(q.entries, p)
	q.mu.Unlock()
}

// peek returns the head request without consuming it, or nil when no request
// is outstanding.
func (q *pendingQueue) peek() Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0].req
}

// pop consumes and returns the head entry. Called exactly once per genuine
// control reply; push events bypass the queue entirely.
func (q *pendingQueue) pop() *pendingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	p := q.entries[0]
	q.entries = q.entries[1:]
	return p
}

// remove deletes a specific entry, used when sending its frame failed and no
// reply will ever arrive.
func (q *pendingQueue) remove(p *pendingRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e == p {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// drain removes and returns every outstanding entry, used when the
// connection shuts down.
func (q *pendingQueue) drain() []*pendingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.entries
	q.entries = nil
	return out
}

// size returns the number of outstanding requests.
func (q *pendingQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
