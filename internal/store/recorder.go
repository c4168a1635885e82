package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/blockwire/internal/protocol"
)

// Recorder writes every protocol message seen on an endpoint, including
// those bubbling up from descendants, to the trace.
type Recorder struct {
	store  *Store
	runID  string
	logger *slog.Logger
	remove func()

	mu      sync.Mutex
	pending []Entry
	closed  bool
	signal  chan struct{}
	done    chan struct{}
	written int
	err     error
}

// Attach starts recording messages observed on endpoint under runID. The
// listener only queues entries; a background goroutine writes them. Call
// Close to flush and stop.
func (s *Store) Attach(endpoint *protocol.Endpoint, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store:  s,
		runID:  runID,
		logger: logger,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	r.remove = endpoint.Listen(protocol.EventName, r.observe)
	go r.loop()
	return r
}

func (r *Recorder) observe(ev protocol.Event) {
	msg, ok := protocol.MessageFromDetail(ev.Detail)
	if !ok {
		return
	}
	entry := Entry{RunID: r.runID, Relay: ev.Relay, Message: msg}
	if ev.Target != nil {
		entry.Endpoint = ev.Target.Path()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.pending = append(r.pending, entry)
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for {
		r.mu.Lock()
		batch := r.pending
		r.pending = nil
		closed := r.closed
		r.mu.Unlock()

		for _, e := range batch {
			if _, err := r.store.Record(context.Background(), e); err != nil {
				r.logger.Error("trace write failed",
					"run_id", r.runID,
					"request_id", e.Message.RequestID,
					"message", e.Message.MessageName,
					"error", err,
				)
				r.mu.Lock()
				if r.err == nil {
					r.err = err
				}
				r.mu.Unlock()
				continue
			}
			r.mu.Lock()
			r.written++
			r.mu.Unlock()
		}

		if closed && len(batch) == 0 {
			return
		}
		if len(batch) == 0 {
			<-r.signal
		}
	}
}

// Written returns the number of entries stored so far.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close stops listening, writes every queued entry and returns the first
// write error.
func (r *Recorder) Close() error {
	r.remove()

	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.signal)
	}
	r.mu.Unlock()

	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
