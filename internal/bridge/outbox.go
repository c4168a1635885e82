package bridge

import (
	"sync"

	"github.com/roach88/blockwire/internal/protocol"
)

// outbox is an unbounded FIFO between endpoint listeners, which must not
// block, and the writer goroutine.
type outbox struct {
	mu     sync.Mutex
	items  []protocol.Message
	closed bool
	signal chan struct{}
}

func newOutbox() *outbox {
	return &outbox{signal: make(chan struct{}, 1)}
}

func (o *outbox) push(msg protocol.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.items = append(o.items, msg)
	select {
	case o.signal <- struct{}{}:
	default:
	}
}

func (o *outbox) pop() (protocol.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.items) == 0 {
		return protocol.Message{}, false
	}
	msg := o.items[0]
	o.items[0] = protocol.Message{}
	o.items = o.items[1:]
	return msg, true
}

func (o *outbox) wait() <-chan struct{} { return o.signal }

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.signal)
}
