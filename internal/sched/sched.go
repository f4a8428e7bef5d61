// Package sched provides the execution contexts used to hand event delivery
// off the frame-decoding path. Production code uses the async scheduler (a
// single worker goroutine per stream); tests use the serial scheduler and
// drive it explicitly for deterministic ordering.
package sched

import "sync"

// Task is a unit of work to execute serially.
type Task func()

// Scheduler runs tasks serially, in FIFO order.
type Scheduler interface {
	Enqueue(t Task)
	// Stop discards queued tasks and stops accepting new ones.
	Stop()
}

// Serial is a minimal FIFO scheduler driven by the caller. Enqueued tasks do
// not run until RunOne or RunAll is called.
type Serial struct {
	mu      sync.Mutex
	queue   []Task
	stopped bool
}

// NewSerial returns a new empty serial scheduler.
func NewSerial() *Serial {
	return &Serial{}
}

// Enqueue adds a task to the queue.
func (s *Serial) Enqueue(t Task) {
	if t == nil {
		return
	}
	s.mu.Lock()
	if !s.stopped {
		s.queue = append(s.queue, t)
	}
	s.mu.Unlock()
}

// RunOne executes exactly one queued task if present and reports whether it
// did.
func (s *Serial) RunOne() bool {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return false
	}
	t := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()
	t()
	return true
}

// RunAll runs until the queue is drained, including tasks enqueued by tasks.
func (s *Serial) RunAll() {
	for s.RunOne() {
	}
}

// Len returns the number of queued tasks.
func (s *Serial) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stop discards queued tasks.
func (s *Serial) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.queue = nil
	s.mu.Unlock()
}

// Async runs tasks on a dedicated worker goroutine, FIFO. Enqueue never
// blocks; the internal queue is unbounded.
type Async struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	stopped bool
}

// NewAsync returns a started async scheduler.
func NewAsync() *Async {
	a := &Async{}
	a.cond = sync.NewCond(&a.mu)
	go a.loop()
	return a
}

// Enqueue adds a task and wakes the worker.
func (a *Async) Enqueue(t Task) {
	if t == nil {
		return
	}
	a.mu.Lock()
	if !a.stopped {
		a.queue = append(a.queue, t)
		a.cond.Signal()
	}
	a.mu.Unlock()
}

// Stop discards queued tasks and terminates the worker once the current task
// finishes. Idempotent.
func (a *Async) Stop() {
	a.mu.Lock()
	a.stopped = true
	a.queue = nil
	a.cond.Signal()
	a.mu.Unlock()
}

func (a *Async) loop() {
	for {
		a.mu.Lock()
		for len(a.queue) == 0 && !a.stopped {
			a.cond.Wait()
		}
		if a.stopped {
			a.mu.Unlock()
			return
		}
		t := a.queue[0]
		a.queue = a.queue[1:]
		a.mu.Unlock()
		t()
	}
}
