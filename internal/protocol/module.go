package protocol

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/blockwire/internal/moduledef"
)

// ModuleOption configures a Module.
type ModuleOption func(*Module)

// WithCallbacks registers callbacks keyed by message name.
func WithCallbacks(callbacks map[string]Callback) ModuleOption {
	return func(m *Module) {
		for name, cb := range callbacks {
			m.queue(func(e *Engine) { e.RegisterCallback(m.name, name, cb) })
		}
	}
}

// WithInitPayload sets the function that supplies the module's
// initResponse contribution.
func WithInitPayload(fn func() map[string]any) ModuleOption {
	return func(m *Module) { m.initPayload = fn }
}

// WithDefinition restricts the module to the messages def declares.
func WithDefinition(def *moduledef.Definition) ModuleOption {
	return func(m *Module) { m.def = def }
}

// WithRegistry attaches the module through r instead of DefaultRegistry.
func WithRegistry(r *Registry) ModuleOption {
	return func(m *Module) { m.registry = r }
}

// Module is one capability namespace for one role. Callback changes made
// before Initialize are applied before the handshake starts; messages sent
// before Initialize are replayed, in order, right after it starts.
type Module struct {
	name        string
	source      Source
	registry    *Registry
	def         *moduledef.Definition
	initPayload func() map[string]any

	mu        sync.Mutex
	engine    *Engine
	endpoint  *Endpoint
	preInit   []func(*Engine)
	outbound  []func(*Engine)
	destroyed bool
}

// NewModule creates a module handler named name for the source role.
func NewModule(name string, source Source, opts ...ModuleOption) *Module {
	m := &Module{
		name:     name,
		source:   source,
		registry: DefaultRegistry,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Source returns the role the module speaks for.
func (m *Module) Source() Source { return m.source }

// Definition returns the module definition, or nil.
func (m *Module) Definition() *moduledef.Definition { return m.def }

// InitPayload implements ModuleHandler.
func (m *Module) InitPayload() map[string]any {
	if m.initPayload == nil {
		return map[string]any{}
	}
	return m.initPayload()
}

// Engine returns the engine the module is attached to, or nil before
// Initialize.
func (m *Module) Engine() *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine
}

// Initialize attaches the module to endpoint and replays anything held
// since construction. Initializing again with the same endpoint is a no-op.
func (m *Module) Initialize(endpoint *Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(); err != nil {
		return err
	}
	if m.engine != nil {
		if m.endpoint == endpoint {
			return nil
		}
		return &ProtocolError{
			Code:    ErrCodeAlreadyInitialized,
			Message: fmt.Sprintf("already initialized on %s", m.endpoint.Path()),
			Module:  m.name,
		}
	}

	e, err := m.registry.RegisterModule(endpoint, m)
	if err != nil {
		return err
	}
	m.engine = e
	m.endpoint = endpoint

	registrations, sends := m.preInit, m.outbound
	m.preInit, m.outbound = nil, nil
	for _, fn := range registrations {
		fn(e)
	}
	e.Initialize()
	for _, fn := range sends {
		fn(e)
	}
	return nil
}

// On registers cb for the named message, replacing any earlier callback.
func (m *Module) On(messageName string, cb Callback) error {
	if m.def != nil {
		if err := m.def.ValidateIncoming(string(m.source), messageName); err != nil {
			return m.undeclared(messageName, err)
		}
	}
	return m.withEngine(func(e *Engine) { e.RegisterCallback(m.name, messageName, cb) })
}

// RegisterCallbacks registers several callbacks at once.
func (m *Module) RegisterCallbacks(callbacks map[string]Callback) error {
	for name, cb := range callbacks {
		if err := m.On(name, cb); err != nil {
			return err
		}
	}
	return nil
}

// RemoveCallbacks removes the callbacks for the named messages.
func (m *Module) RemoveCallbacks(messageNames ...string) error {
	return m.withEngine(func(e *Engine) {
		for _, name := range messageNames {
			e.RemoveCallback(m.name, name)
		}
	})
}

// SendMessage sends a message to the peer role. When respondedToBy is set
// the returned Pending settles with the response. A request sent before
// Initialize has an empty RequestID until it is replayed.
func (m *Module) SendMessage(contents MessageContents, respondedToBy string) (*Pending, error) {
	if m.def != nil {
		if err := m.def.ValidateOutgoing(string(m.source), contents.MessageName); err != nil {
			return nil, m.undeclared(contents.MessageName, err)
		}
	}

	m.mu.Lock()
	if err := m.checkLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if e := m.engine; e != nil {
		m.mu.Unlock()
		return e.SendMessage(m.name, contents, respondedToBy)
	}

	var outer *Pending
	if respondedToBy != "" {
		outer = newPending("", respondedToBy)
	}
	m.outbound = append(m.outbound, func(e *Engine) {
		inner, err := e.SendMessage(m.name, contents, respondedToBy)
		if outer == nil {
			if err != nil {
				e.report(err)
			}
			return
		}
		if err != nil {
			outer.settle(MessageData{}, err)
			return
		}
		go link(outer, inner)
	})
	m.mu.Unlock()
	return outer, nil
}

// Request sends a message and waits for its response.
func (m *Module) Request(ctx context.Context, contents MessageContents, respondedToBy string) (MessageData, error) {
	if respondedToBy == "" {
		return MessageData{}, fmt.Errorf("request %s/%s: no response message named", m.name, contents.MessageName)
	}
	p, err := m.SendMessage(contents, respondedToBy)
	if err != nil {
		return MessageData{}, err
	}
	return p.Await(ctx)
}

// Destroy detaches the module. Every later call fails with
// MODULE_DESTROYED.
func (m *Module) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	e := m.engine
	m.engine = nil
	m.preInit, m.outbound = nil, nil
	m.mu.Unlock()

	if e != nil {
		e.UnregisterModule(m)
	}
}

// Destroyed reports whether Destroy has been called.
func (m *Module) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

// queue holds fn for Initialize. Only used while options are applied.
func (m *Module) queue(fn func(*Engine)) {
	m.preInit = append(m.preInit, fn)
}

// withEngine runs fn now if attached, or holds it for Initialize.
func (m *Module) withEngine(fn func(*Engine)) error {
	m.mu.Lock()
	if err := m.checkLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	e := m.engine
	if e == nil {
		m.preInit = append(m.preInit, fn)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	fn(e)
	return nil
}

func (m *Module) checkLocked() error {
	if m.destroyed {
		return &ProtocolError{
			Code:    ErrCodeModuleDestroyed,
			Message: "module has been destroyed. Please construct a new instance",
			Module:  m.name,
		}
	}
	return nil
}

func (m *Module) undeclared(messageName string, err error) error {
	return &ProtocolError{
		Code:        ErrCodeUndeclaredMessage,
		Message:     "message not declared by module definition",
		Module:      m.name,
		MessageName: messageName,
		Err:         err,
	}
}

// link settles outer with inner's outcome, or abandons inner when outer is
// abandoned first.
func link(outer, inner *Pending) {
	select {
	case <-inner.Done():
		outer.settle(inner.data, inner.err)
	case <-outer.Done():
		if inner.settle(MessageData{}, outer.err) {
			inner.forget()
		}
	}
}
