package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/blockwire/internal/clock"
)

// DefaultInitRetryInterval is how long a block waits for initResponse before
// resending init.
const DefaultInitRetryInterval = 50 * time.Millisecond

// Callback handles one received message. When the message names a response,
// the returned MessageData is sent back as that response; a nil result sends
// an empty response. A returned error is logged and no response is sent.
type Callback func(ctx context.Context, in MessageData) (*MessageData, error)

// ModuleHandler is a capability namespace multiplexed over an engine.
type ModuleHandler interface {
	Name() string
	Source() Source

	// InitPayload returns the module's contribution to the initResponse,
	// keyed by message name. Only embedder modules are asked.
	InitPayload() map[string]any
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the clock used for retries, timeouts and timestamps.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithRequestIDGenerator sets the request ID source. Default: UUIDGenerator.
func WithRequestIDGenerator(g RequestIDGenerator) EngineOption {
	return func(e *Engine) { e.ids = g }
}

// WithInitRetryInterval sets how long the block waits before resending init.
func WithInitRetryInterval(d time.Duration) EngineOption {
	return func(e *Engine) { e.initRetryInterval = d }
}

// WithMaxInitAttempts caps the number of init messages a block sends. Zero,
// the default, retries until answered.
func WithMaxInitAttempts(n int) EngineOption {
	return func(e *Engine) { e.maxInitAttempts = n }
}

// WithRequestTimeout fails requests that are not answered within d. Zero,
// the default, waits until the caller's context ends.
func WithRequestTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.requestTimeout = d }
}

// WithErrorHandler receives every error the engine logs while processing
// messages in the background.
func WithErrorHandler(fn func(error)) EngineOption {
	return func(e *Engine) { e.onError = fn }
}

// Engine runs the handshake and request correlation for one role on one
// endpoint. Engines are created by a Registry.
type Engine struct {
	endpoint *Endpoint
	source   Source

	logger            *slog.Logger
	clock             clock.Clock
	ids               RequestIDGenerator
	initRetryInterval time.Duration
	maxInitAttempts   int
	requestTimeout    time.Duration
	onError           func(error)
	release           func()

	// sendMu serializes outbound dispatch so the flush after the handshake
	// cannot interleave with new sends.
	sendMu sync.Mutex

	mu          sync.Mutex
	peer        *Endpoint
	initialized bool
	handshaking bool
	closed      bool
	outbound    []Message
	callbacks   map[callbackKey]Callback
	pending     map[string]*Pending
	modules     map[string]ModuleHandler

	inbox          *inboundQueue
	removeListener func()
	initDone       chan struct{}
	ctx            context.Context
	cancel         context.CancelFunc
	loopDone       chan struct{}
}

func newEngine(endpoint *Endpoint, source Source, opts ...EngineOption) *Engine {
	e := &Engine{
		endpoint:          endpoint,
		source:            source,
		logger:            slog.Default(),
		clock:             clock.Real(),
		ids:               UUIDGenerator{},
		initRetryInterval: DefaultInitRetryInterval,
		release:           func() {},
		peer:              endpoint,
		callbacks:         make(map[callbackKey]Callback),
		pending:           make(map[string]*Pending),
		modules:           make(map[string]ModuleHandler),
		inbox:             newInboundQueue(),
		initDone:          make(chan struct{}),
		loopDone:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.removeListener = endpoint.Listen(EventName, e.handleEvent)
	go e.run()

	e.logger.Debug("engine attached", "role", source, "endpoint", endpoint.Path())
	return e
}

// Source returns the role the engine speaks for.
func (e *Engine) Source() Source { return e.source }

// Endpoint returns the endpoint the engine listens on.
func (e *Engine) Endpoint() *Endpoint { return e.endpoint }

// Peer returns the endpoint outbound messages are dispatched on.
func (e *Engine) Peer() *Endpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peer
}

// RebindPeer redirects outbound dispatch to ep.
func (e *Engine) RebindPeer(ep *Endpoint) {
	if ep == nil {
		return
	}
	e.mu.Lock()
	prev := e.peer
	e.peer = ep
	e.mu.Unlock()
	if prev != ep {
		e.logger.Debug("peer rebound", "role", e.source, "from", prev.Path(), "to", ep.Path())
	}
}

// Initialized reports whether the handshake has completed.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// InitDone is closed when the handshake completes.
func (e *Engine) InitDone() <-chan struct{} { return e.initDone }

// Queued returns the number of messages waiting for the handshake.
func (e *Engine) Queued() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.outbound)
}

// Modules returns the names of the registered modules, sorted.
func (e *Engine) Modules() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.modules))
	for _, m := range e.modules {
		names = append(names, m.Name())
	}
	slices.Sort(names)
	return names
}

// RegisterCallback installs cb for messages named messageName in module,
// replacing any callback already installed for that pair.
func (e *Engine) RegisterCallback(module, messageName string, cb Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks[keyFor(module, messageName)] = cb
}

// RemoveCallback uninstalls the callback for the pair, if any.
func (e *Engine) RemoveCallback(module, messageName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.callbacks, keyFor(module, messageName))
}

// HasCallback reports whether a callback is installed for the pair.
func (e *Engine) HasCallback(module, messageName string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.callbacks[keyFor(module, messageName)]
	return ok
}

// SendMessage sends a module message to the peer. Before the handshake
// completes the message is queued. When respondedToBy is set the returned
// Pending settles with the response; otherwise it is nil.
func (e *Engine) SendMessage(module string, contents MessageContents, respondedToBy string) (*Pending, error) {
	msg := Message{
		RequestID:     e.ids.Generate(),
		Module:        module,
		MessageName:   contents.MessageName,
		Source:        e.source,
		RespondedToBy: respondedToBy,
		Data:          contents.Data,
		Errors:        contents.Errors,
	}

	var p *Pending
	if respondedToBy != "" {
		p = newPending(msg.RequestID, respondedToBy)
		p.forget = func() { e.forget(msg.RequestID, p) }
		if e.requestTimeout > 0 {
			e.armTimeout(p, msg)
		}
	}
	if err := e.send(msg, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Engine) armTimeout(p *Pending, msg Message) {
	timeout := e.requestTimeout
	timer := e.clock.AfterFunc(timeout, func() {
		err := &ProtocolError{
			Code:        ErrCodeRequestTimeout,
			Message:     fmt.Sprintf("no %q response within %s", p.expected, timeout),
			Module:      msg.Module,
			MessageName: msg.MessageName,
			RequestID:   msg.RequestID,
		}
		if p.settle(MessageData{}, err) {
			p.forget()
		}
	})
	go func() {
		<-p.Done()
		timer.Stop()
	}()
}

func (e *Engine) forget(requestID string, p *Pending) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending[requestID] == p {
		delete(e.pending, requestID)
	}
}

// send dispatches msg, or queues it while uninitialized. Handshake messages
// are never queued.
func (e *Engine) send(msg Message, p *Pending) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return &ProtocolError{
			Code:        ErrCodeEngineClosed,
			Message:     "engine is detached from its endpoint",
			Module:      msg.Module,
			MessageName: msg.MessageName,
		}
	}
	if p != nil {
		e.pending[msg.RequestID] = p
	}
	if !e.initialized && !msg.isHandshake() {
		e.outbound = append(e.outbound, msg)
		queued := len(e.outbound)
		e.mu.Unlock()
		e.logger.Debug("message queued until initialized",
			"role", e.source,
			"module", msg.Module,
			"message", msg.MessageName,
			"request_id", msg.RequestID,
			"queued", queued,
		)
		return nil
	}
	target := e.peer
	e.mu.Unlock()

	e.dispatchLocked(target, msg)
	return nil
}

// dispatchLocked stamps and dispatches msg. Callers hold sendMu.
func (e *Engine) dispatchLocked(target *Endpoint, msg Message) {
	msg.Timestamp = e.clock.Now().UTC()
	e.logger.Debug("dispatching message",
		"role", e.source,
		"target", target.Path(),
		"module", msg.Module,
		"message", msg.MessageName,
		"request_id", msg.RequestID,
	)
	target.Dispatch(Event{Name: EventName, Target: target, Detail: msg})
}

// handleEvent is the endpoint listener. It settles pending requests directly
// and hands everything else to the engine loop.
func (e *Engine) handleEvent(ev Event) {
	if ev.Name != EventName {
		return
	}
	msg, ok := MessageFromDetail(ev.Detail)
	if !ok || !msg.valid() {
		return
	}
	if msg.Source == e.source {
		return
	}

	e.inbox.Enqueue(inbound{message: msg, target: ev.Target})
	e.settlePending(msg)
}

func (e *Engine) settlePending(msg Message) {
	e.mu.Lock()
	p, ok := e.pending[msg.RequestID]
	if ok {
		delete(e.pending, msg.RequestID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	data := MessageData{Data: msg.Data, Errors: msg.Errors}
	if msg.MessageName != p.expected {
		err := newMismatchError(msg.RequestID, p.expected, msg.MessageName)
		err.Module = msg.Module
		e.logger.Warn("response name mismatch",
			"role", e.source,
			"request_id", msg.RequestID,
			"expected", p.expected,
			"received", msg.MessageName,
		)
		p.settle(data, err)
		return
	}
	p.settle(data, nil)
}

// run drains the inbound queue. It is the only goroutine that invokes
// callbacks.
func (e *Engine) run() {
	defer close(e.loopDone)
	for {
		if item, ok := e.inbox.TryDequeue(); ok {
			e.process(item)
			continue
		}
		select {
		case <-e.ctx.Done():
			return
		case _, open := <-e.inbox.Wait():
			if !open && e.inbox.Len() == 0 {
				return
			}
		}
	}
}

func (e *Engine) process(item inbound) {
	msg := item.message
	if msg.Module == CoreModule {
		switch {
		case e.source == SourceEmbedder && msg.MessageName == MessageInit:
			e.processInit(item)
			return
		case e.source == SourceBlock && msg.MessageName == MessageInitResponse:
			e.processInitResponse(msg)
			return
		}
	}
	if err := e.callCallback(msg); err != nil {
		e.report(err)
	}
}

func (e *Engine) callCallback(msg Message) error {
	key := keyFor(msg.Module, msg.MessageName)
	e.mu.Lock()
	cb := e.callbacks[key]
	_, registered := e.modules[key.module]
	e.mu.Unlock()

	if cb == nil {
		if msg.RespondedToBy != "" {
			return &ProtocolError{
				Code:        ErrCodeMissingCallback,
				Message:     fmt.Sprintf("message %q expected a response, but no callback for %q provided", msg.MessageName, msg.MessageName),
				Module:      msg.Module,
				MessageName: msg.MessageName,
				RequestID:   msg.RequestID,
			}
		}
		e.logger.Debug("no callback for message",
			"role", e.source,
			"module", msg.Module,
			"message", msg.MessageName,
		)
		return nil
	}
	if msg.RespondedToBy != "" && !registered {
		return &ProtocolError{
			Code:        ErrCodeModuleNotRegistered,
			Message:     fmt.Sprintf("handler for module %q not registered", msg.Module),
			Module:      msg.Module,
			MessageName: msg.MessageName,
			RequestID:   msg.RequestID,
		}
	}

	out, err := e.invoke(cb, MessageData{Data: msg.Data, Errors: msg.Errors})
	if err != nil {
		return &ProtocolError{
			Code:        ErrCodeCallbackFailed,
			Message:     "callback failed",
			Module:      msg.Module,
			MessageName: msg.MessageName,
			RequestID:   msg.RequestID,
			Err:         err,
		}
	}
	if msg.RespondedToBy == "" {
		return nil
	}

	var resp MessageData
	if out != nil {
		resp = *out
	}
	return e.send(Message{
		RequestID:   msg.RequestID,
		Module:      msg.Module,
		MessageName: msg.RespondedToBy,
		Source:      e.source,
		Data:        resp.Data,
		Errors:      resp.Errors,
	}, nil)
}

// invoke runs cb, turning a panic into an error.
func (e *Engine) invoke(cb Callback, in MessageData) (out *MessageData, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return cb(e.ctx, in)
}

func (e *Engine) report(err error) {
	e.logger.Error("message processing failed",
		"role", e.source,
		"endpoint", e.endpoint.Path(),
		"error", err,
	)
	if e.onError != nil {
		e.onError(err)
	}
}

// addModule attaches m. A different handler already registered under the
// same name is an error.
func (e *Engine) addModule(m ModuleHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return &ProtocolError{Code: ErrCodeEngineClosed, Message: "engine is detached from its endpoint", Module: m.Name()}
	}
	name := norm(m.Name())
	if existing, ok := e.modules[name]; ok && existing != m {
		return &ProtocolError{
			Code:    ErrCodeDuplicateModule,
			Message: fmt.Sprintf("another handler for module %q is registered on %s", m.Name(), e.endpoint.Path()),
			Module:  m.Name(),
		}
	}
	e.modules[name] = m
	return nil
}

// UnregisterModule detaches m and its callbacks. When no modules remain the
// engine removes its listener and releases the endpoint.
func (e *Engine) UnregisterModule(m ModuleHandler) {
	e.mu.Lock()
	name := norm(m.Name())
	if e.modules[name] != m {
		e.mu.Unlock()
		return
	}
	delete(e.modules, name)
	for key := range e.callbacks {
		if key.module == name {
			delete(e.callbacks, key)
		}
	}
	empty := len(e.modules) == 0
	e.mu.Unlock()

	if empty {
		e.Close()
	}
}

// Close detaches the engine from its endpoint. Pending requests fail with
// ENGINE_CLOSED and queued messages are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	pending := e.pending
	e.pending = make(map[string]*Pending)
	dropped := len(e.outbound)
	e.outbound = nil
	e.mu.Unlock()

	e.removeListener()
	e.inbox.Close()
	e.cancel()
	e.release()

	for id, p := range pending {
		p.settle(MessageData{}, &ProtocolError{
			Code:      ErrCodeEngineClosed,
			Message:   "engine closed before a response arrived",
			RequestID: id,
		})
	}
	e.logger.Debug("engine detached",
		"role", e.source,
		"endpoint", e.endpoint.Path(),
		"dropped", dropped,
	)
}

// Done is closed once the engine loop has exited after Close.
func (e *Engine) Done() <-chan struct{} { return e.loopDone }
