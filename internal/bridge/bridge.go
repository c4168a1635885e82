package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/blockwire/internal/protocol"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithName sets the relay tag stamped on injected events. Default: a random
// UUID.
func WithName(name string) Option {
	return func(b *Bridge) { b.name = name }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// Bridge relays protocol events between a local endpoint and a stream.
type Bridge struct {
	name     string
	endpoint *protocol.Endpoint
	conn     io.ReadWriteCloser
	logger   *slog.Logger
	out      *outbox
	remove   func()

	sent     atomic.Int64
	received atomic.Int64
}

// New creates a bridge between endpoint and conn. Events dispatched on
// endpoint from this point on are queued and written once Run starts. Run
// must be called exactly once; it detaches the bridge when it returns.
func New(endpoint *protocol.Endpoint, conn io.ReadWriteCloser, opts ...Option) *Bridge {
	b := &Bridge{
		name:     uuid.NewString(),
		endpoint: endpoint,
		conn:     conn,
		logger:   slog.Default(),
		out:      newOutbox(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.remove = endpoint.Listen(protocol.EventName, func(ev protocol.Event) {
		if ev.Relay == b.name {
			return
		}
		if msg, ok := protocol.MessageFromDetail(ev.Detail); ok {
			b.out.push(msg)
		}
	})
	return b
}

// Name returns the relay tag.
func (b *Bridge) Name() string { return b.name }

// Sent returns the number of frames written so far.
func (b *Bridge) Sent() int64 { return b.sent.Load() }

// Received returns the number of frames dispatched so far.
func (b *Bridge) Received() int64 { return b.received.Load() }

// Run relays until the stream closes, an I/O error occurs or ctx is done.
// It closes conn before returning. A clean end of stream returns nil and
// cancellation returns ctx.Err().
func (b *Bridge) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	out := b.out
	defer b.remove()

	b.logger.Debug("bridge started", "bridge", b.name, "endpoint", b.endpoint.Path())

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		if err != nil {
			once.Do(func() { firstErr = err })
		}
		cancel()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := b.writeLoop(ctx, out); err != nil {
			fail(err)
		}
	}()
	go func() {
		defer wg.Done()
		fail(b.readLoop())
	}()

	<-ctx.Done()
	out.close()
	closeErr := b.conn.Close()
	wg.Wait()

	b.logger.Debug("bridge stopped",
		"bridge", b.name,
		"sent", b.sent.Load(),
		"received", b.received.Load(),
	)

	once.Do(func() { firstErr = parent.Err() })
	switch {
	case firstErr != nil:
		return firstErr
	case closeErr != nil && !errors.Is(closeErr, net.ErrClosed):
		return fmt.Errorf("close stream: %w", closeErr)
	}
	return nil
}

func (b *Bridge) writeLoop(ctx context.Context, out *outbox) error {
	for {
		for {
			msg, ok := out.pop()
			if !ok {
				break
			}
			wire, err := normalize(msg)
			if err != nil {
				b.logger.Warn("bridge dropped message",
					"bridge", b.name,
					"module", msg.Module,
					"message", msg.MessageName,
					"error", err,
				)
				continue
			}
			if err := writeFrame(b.conn, wire); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			b.sent.Add(1)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-out.wait():
		}
	}
}

// readLoop dispatches frames until the stream ends. It returns nil on a
// clean end of stream or once the stream has been closed locally.
func (b *Bridge) readLoop() error {
	for {
		var msg protocol.Message
		if err := readFrame(b.conn, &msg); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		b.received.Add(1)
		b.endpoint.Dispatch(protocol.Event{
			Name:   protocol.EventName,
			Detail: msg,
			Relay:  b.name,
		})
	}
}

// normalize replaces message data with its JSON form so the receiving side
// decodes payloads the same way local listeners do.
func normalize(msg protocol.Message) (protocol.Message, error) {
	if msg.Data != nil {
		var data any
		if err := protocol.Convert(msg.Data, &data); err != nil {
			return msg, err
		}
		msg.Data = data
	}
	if len(msg.Errors) > 0 {
		errs := make([]protocol.MessageError, len(msg.Errors))
		for i, e := range msg.Errors {
			if e.Extensions != nil {
				var ext any
				if err := protocol.Convert(e.Extensions, &ext); err != nil {
					return msg, err
				}
				e.Extensions = ext
			}
			errs[i] = e
		}
		msg.Errors = errs
	}
	msg.Timestamp = msg.Timestamp.UTC()
	return msg, nil
}
