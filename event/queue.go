package event

import "sync/atomic"

// node is one link of the queue's intrusive singly-linked list.
type node struct {
	next  atomic.Pointer[node]
	event *Event
}

// Queue is a multi-producer single-consumer queue (§5: "Each entity's event
// queue must be multi-producer single-consumer and lock-free on the
// producer side"). Push is a single atomic swap; Pop assumes a single
// consumer draining the queue on the engine thread (§4.7, §5) and is not
// safe for concurrent Pop callers.
type Queue struct {
	head atomic.Pointer[node] // consumer-owned
	tail atomic.Pointer[node] // producer-contended
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	dummy := &node{}
	q := &Queue{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

// Push enqueues e. Safe to call concurrently from any number of producers.
func (q *Queue) Push(e *Event) {
	n := &node{event: e}
	prev := q.tail.Swap(n)
	prev.next.Store(n)
}

// Pop dequeues the oldest event, or reports false if the queue is empty.
// Only the owning entity's tick goroutine may call Pop.
func (q *Queue) Pop() (*Event, bool) {
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return nil, false
	}
	q.head.Store(next)
	ev := next.event
	next.event = nil
	return ev, true
}

// Drain pops up to max events (0 means unbounded), in FIFO order. This is
// the "fair bound" draining step of §4.10 poll: "drain the engine's own
// queue" and an entity's per-tick event handling.
func (q *Queue) Drain(max int) []*Event {
	var out []*Event
	for max <= 0 || len(out) < max {
		e, ok := q.Pop()
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}
