package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/blockwire/internal/clock"
	"github.com/roach88/blockwire/internal/dock"
	"github.com/roach88/blockwire/internal/graphmodule"
	"github.com/roach88/blockwire/internal/protocol"
	"github.com/roach88/blockwire/internal/store"
	"github.com/roach88/blockwire/internal/subgraph"
)

// Endpoint names every scenario runs on. The block endpoint is nested
// under the root the embedder listens on.
const (
	RootEndpoint  = "page"
	BlockEndpoint = "block"
)

// DefaultStepTimeout bounds the handshake and each request.
const DefaultStepTimeout = 5 * time.Second

// Epoch is the time of the fake clock every scenario runs against. The
// clock never advances, so every message carries this timestamp.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Option configures Run.
type Option func(*options)

type options struct {
	store     *store.Store
	runID     string
	runPrefix string
	logger    *slog.Logger
	timeout   time.Duration
}

// WithStore records the trace into st instead of a fresh in-memory store.
// Run does not close st.
func WithStore(st *store.Store) Option {
	return func(o *options) { o.store = st }
}

// WithRunID sets the run ID the trace is recorded under. Default: the
// scenario name.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// WithRunIDPrefix prefixes the default run ID, so suites recorded into one
// store under the same prefix stay apart from earlier recordings.
func WithRunIDPrefix(prefix string) Option {
	return func(o *options) { o.runPrefix = prefix }
}

// WithLogger sets the logger for the engines, the dock and the harness.
// Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStepTimeout bounds the handshake and each request.
func WithStepTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

type harness struct {
	opts   options
	dock   *dock.Dock
	block  *graphmodule.BlockHandler
	result *Result
}

// Run executes a scenario and returns the result.
//
// A dock is loaded with the scenario's elements and served by an embedder
// on the root endpoint. A block on the nested endpoint completes the
// handshake and sends each step's request. Engines share a fake clock and
// a sequential request ID generator, so equal scenarios produce equal
// traces.
//
// Expectation and assertion failures are reported in the result. An
// error is returned only when the scenario cannot be executed.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{
		logger:  slog.New(slog.DiscardHandler),
		timeout: DefaultStepTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = o.runPrefix + scenario.Name
	}

	st := o.store
	if st == nil {
		var err error
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	elements, err := scenario.LoadElements()
	if err != nil {
		return nil, fmt.Errorf("load elements: %w", err)
	}

	var (
		engineMu   sync.Mutex
		engineErrs []error
	)
	reg := protocol.NewRegistry(
		protocol.WithClock(clock.NewFake(Epoch)),
		protocol.WithRequestIDGenerator(protocol.NewSequenceGenerator("req")),
		protocol.WithLogger(o.logger),
		protocol.WithErrorHandler(func(err error) {
			engineMu.Lock()
			engineErrs = append(engineErrs, err)
			engineMu.Unlock()
		}),
	)
	defer reg.Close()

	root := protocol.NewEndpoint(RootEndpoint, nil)
	blockEP := protocol.NewEndpoint(BlockEndpoint, root)

	// The recorder listens first, so each message is stored before any
	// engine reacts to it.
	rec := st.Attach(blockEP, o.runID, o.logger)
	recording := true
	defer func() {
		if recording {
			rec.Close()
		}
	}()

	d := dock.New(elements,
		dock.WithReadonly(scenario.Readonly),
		dock.WithIDGenerator(protocol.NewSequenceGenerator("entity").Generate),
		dock.WithLogger(o.logger),
	)
	emb, err := d.NewEmbedder(subgraph.EntityID(scenario.BlockEntity),
		graphmodule.WithModuleOptions(protocol.WithRegistry(reg)))
	if err != nil {
		return nil, fmt.Errorf("attach embedder: %w", err)
	}
	if err := emb.Initialize(root); err != nil {
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}
	block := graphmodule.NewBlockHandler(protocol.WithRegistry(reg))
	if err := block.Initialize(blockEP); err != nil {
		return nil, fmt.Errorf("initialize block: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	err = block.Module().Engine().WaitInitialized(ctx)
	if err == nil {
		err = emb.Module().Engine().WaitInitialized(ctx)
	}
	cancel()
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	h := &harness{opts: o, dock: d, block: block, result: NewResult()}
	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step); err != nil {
			return nil, err
		}
	}

	recording = false
	if err := rec.Close(); err != nil {
		return nil, fmt.Errorf("flush trace: %w", err)
	}
	entries, err := st.Messages(context.Background(), store.Filter{RunID: o.runID})
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	result := h.result
	for _, e := range entries {
		ev := traceEvent(e)
		result.Trace = append(result.Trace, ev)
		if ids, ok := blockEntities(ev); ok {
			result.BlockEntities = ids
		}
	}

	engineMu.Lock()
	for _, err := range engineErrs {
		result.AddError(fmt.Sprintf("engine: %v", err))
	}
	engineMu.Unlock()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one step. Failed expectations are added to the result;
// an error means the exchange itself broke.
func (h *harness) executeStep(i int, step Step) error {
	if step.SetReadonly != nil {
		if err := h.dock.SetReadonly(*step.SetReadonly); err != nil {
			return fmt.Errorf("steps[%d]: set readonly: %w", i, err)
		}
		h.opts.logger.Info("step completed", "step", i, "readonly", *step.SetReadonly)
		return nil
	}

	msg, ok := graphmodule.Definition().Lookup(step.Request, "block")
	if !ok {
		return fmt.Errorf("steps[%d]: %q is not a graph request", i, step.Request)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.timeout)
	out, err := h.block.Module().Request(ctx, protocol.MessageContents{
		MessageName: step.Request,
		Data:        step.Data,
	}, msg.RespondedToBy)
	cancel()
	if err != nil {
		return fmt.Errorf("steps[%d] %s: %w", i, step.Request, err)
	}

	if step.Expect != nil {
		for _, failure := range checkExpect(out, step.Expect) {
			h.result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Request, failure))
		}
	}
	h.opts.logger.Info("step completed",
		"step", i,
		"request", step.Request,
		"errors", len(out.Errors),
	)
	return nil
}

// checkExpect compares a response with exp and describes every mismatch.
func checkExpect(out protocol.MessageData, exp *Expect) []string {
	var failures []string

	code := ""
	if len(out.Errors) > 0 {
		code = out.Errors[0].Code
	}
	switch {
	case exp.Error == "" && code != "":
		failures = append(failures, fmt.Sprintf("unexpected error %s: %s", code, out.Errors[0].Message))
	case exp.Error != code:
		failures = append(failures, fmt.Sprintf("expected error %s, got %q", exp.Error, code))
	}

	var data any
	if err := protocol.Convert(out.Data, &data); err != nil {
		return append(failures, fmt.Sprintf("response data: %v", err))
	}

	if exp.Roots != nil || exp.Entities != nil {
		summary, ok := findSummary(summarize(data))
		if !ok {
			return append(failures, "response carries no subgraph")
		}
		if exp.Roots != nil && summary["roots"] != *exp.Roots {
			failures = append(failures, fmt.Sprintf("expected %d roots, got %v", *exp.Roots, summary["roots"]))
		}
		if exp.Entities != nil {
			want := slices.Clone(exp.Entities)
			slices.Sort(want)
			got, _ := summaryEntities(summary)
			if !slices.Equal(want, got) {
				failures = append(failures, fmt.Sprintf("expected entities %v, got %v", want, got))
			}
		}
	}

	if exp.Data != nil {
		var want any
		if err := protocol.Convert(exp.Data, &want); err != nil {
			return append(failures, fmt.Sprintf("expected data: %v", err))
		}
		if !matchSubset(data, want) {
			failures = append(failures, fmt.Sprintf("data %s does not contain %s", formatValue(data), formatValue(want)))
		}
	}
	return failures
}

// findSummary returns the summarized subgraph of a response: the response
// itself or, for query results, its results field.
func findSummary(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	if _, ok := summaryEntities(m); ok {
		return m, true
	}
	if results, ok := m["results"]; ok {
		return findSummary(results)
	}
	return nil, false
}

// blockEntities extracts the block entity subgraph carried by ev, either
// pushed on its own or inside the handshake response.
func blockEntities(ev TraceEvent) ([]string, bool) {
	switch {
	case ev.Module == graphmodule.ModuleName && ev.Message == graphmodule.MsgBlockEntitySubgraph:
		return summaryEntities(ev.Data)
	case ev.Module == protocol.CoreModule && ev.Message == protocol.MessageInitResponse:
		payload, _ := ev.Data.(map[string]any)
		graph, _ := payload[graphmodule.ModuleName].(map[string]any)
		return summaryEntities(graph[graphmodule.MsgBlockEntitySubgraph])
	}
	return nil, false
}
