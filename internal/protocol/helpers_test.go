package protocol

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/blockwire/internal/clock"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// page is an embedder endpoint with one block nested inside it.
type page struct {
	root  *Endpoint
	block *Endpoint
	clk   *clock.Fake
	reg   *Registry
	errs  chan error
}

func newPage(t *testing.T, opts ...EngineOption) *page {
	t.Helper()
	p := &page{
		root: NewEndpoint("page", nil),
		clk:  clock.NewFake(testEpoch),
		errs: make(chan error, 16),
	}
	p.block = NewEndpoint("block-1", p.root)
	base := []EngineOption{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithClock(p.clk),
		WithRequestIDGenerator(NewSequenceGenerator("req")),
		WithErrorHandler(func(err error) { p.errs <- err }),
	}
	p.reg = NewRegistry(append(base, opts...)...)
	t.Cleanup(p.reg.Close)
	return p
}

func (p *page) embedder(t *testing.T, name string, opts ...ModuleOption) *Module {
	t.Helper()
	m := NewModule(name, SourceEmbedder, append([]ModuleOption{WithRegistry(p.reg)}, opts...)...)
	require.NoError(t, m.Initialize(p.root))
	return m
}

func (p *page) blockModule(t *testing.T, name string, opts ...ModuleOption) *Module {
	t.Helper()
	m := NewModule(name, SourceBlock, append([]ModuleOption{WithRegistry(p.reg)}, opts...)...)
	return m
}

func (p *page) nextError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-p.errs:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for engine error")
		return nil
	}
}

func waitInitialized(t *testing.T, m *Module) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Engine().WaitInitialized(ctx))
}

func awaitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// recorder captures every protocol message seen on an endpoint.
type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func record(ep *Endpoint) *recorder {
	r := &recorder{}
	ep.Listen(EventName, func(ev Event) {
		if m, ok := MessageFromDetail(ev.Detail); ok {
			r.mu.Lock()
			r.msgs = append(r.msgs, m)
			r.mu.Unlock()
		}
	})
	return r
}

func (r *recorder) named(name string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.msgs {
		if m.MessageName == name {
			out = append(out, m)
		}
	}
	return out
}

func noReply(fn func(MessageData)) Callback {
	return func(_ context.Context, in MessageData) (*MessageData, error) {
		fn(in)
		return nil, nil
	}
}

func pendingCount(e *Engine) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}
