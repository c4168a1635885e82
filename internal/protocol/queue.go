package protocol

import "sync"

// inbound is a received message waiting for the engine loop.
type inbound struct {
	message Message
	target  *Endpoint
}

// inboundQueue is an unbounded FIFO of received messages.
//
// Listeners enqueue from any goroutine while the engine loop dequeues. A
// buffered signal channel lets the loop wait on the queue and a context
// together.
type inboundQueue struct {
	mu     sync.Mutex
	items  []inbound
	closed bool
	signal chan struct{}
}

func newInboundQueue() *inboundQueue {
	return &inboundQueue{
		items:  make([]inbound, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends item. It returns false once the queue is closed.
func (q *inboundQueue) Enqueue(item inbound) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, item)

	// The buffer of one coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front item without blocking.
func (q *inboundQueue) TryDequeue() (inbound, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return inbound{}, false
	}
	item := q.items[0]
	q.items[0] = inbound{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return item, true
}

// Wait returns a channel that signals when items may be available. It is
// closed when the queue closes.
func (q *inboundQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued items.
func (q *inboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further enqueues and wakes the loop.
func (q *inboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
