package protocol

import (
	"context"
	"sync"
)

// Pending is an outstanding request awaiting its response.
//
// A Pending settles exactly once. Later responses with the same request ID
// are ignored.
type Pending struct {
	requestID string
	expected  string

	once sync.Once
	done chan struct{}
	data MessageData
	err  error

	// forget removes the request from its engine's correlation map.
	forget func()
}

func newPending(requestID, expected string) *Pending {
	return &Pending{
		requestID: requestID,
		expected:  expected,
		done:      make(chan struct{}),
		forget:    func() {},
	}
}

// RequestID returns the ID the response must carry.
func (p *Pending) RequestID() string { return p.requestID }

// Expected returns the message name the response must have.
func (p *Pending) Expected() string { return p.expected }

// Done is closed once the request has settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// settle records the outcome. It reports false if p had already settled.
func (p *Pending) settle(data MessageData, err error) bool {
	settled := false
	p.once.Do(func() {
		p.data = data
		p.err = err
		close(p.done)
		settled = true
	})
	return settled
}

// Await blocks until the response arrives or ctx ends. On a mismatched
// response it returns the data that did arrive together with a
// RESPONSE_MISMATCH error. If ctx ends first the request is abandoned and
// any later response is ignored.
func (p *Pending) Await(ctx context.Context) (MessageData, error) {
	select {
	case <-p.done:
		return p.data, p.err
	case <-ctx.Done():
		if p.settle(MessageData{}, ctx.Err()) {
			p.forget()
		}
		<-p.done
		return p.data, p.err
	}
}
