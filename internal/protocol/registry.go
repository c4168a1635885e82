package protocol

import (
	"fmt"
	"sync"
)

type registryKey struct {
	endpoint *Endpoint
	source   Source
}

// Registry owns one Engine per endpoint and role.
type Registry struct {
	opts []EngineOption

	mu      sync.Mutex
	engines map[registryKey]*Engine
}

// DefaultRegistry is used by modules constructed without WithRegistry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a registry whose engines are built with opts.
func NewRegistry(opts ...EngineOption) *Registry {
	return &Registry{
		opts:    opts,
		engines: make(map[registryKey]*Engine),
	}
}

// RegisterModule attaches m to the engine for endpoint and m's role,
// creating the engine on first use.
func (r *Registry) RegisterModule(endpoint *Endpoint, m ModuleHandler) (*Engine, error) {
	if endpoint == nil {
		return nil, fmt.Errorf("register module %q: nil endpoint", m.Name())
	}
	key := registryKey{endpoint: endpoint, source: m.Source()}

	for {
		r.mu.Lock()
		e, ok := r.engines[key]
		if !ok {
			e = newEngine(endpoint, m.Source(), r.opts...)
			e.release = func() { r.release(key, e) }
			r.engines[key] = e
		}
		r.mu.Unlock()

		err := e.addModule(m)
		if HasCode(err, ErrCodeEngineClosed) {
			// Released between lookup and attach; the next pass creates a
			// fresh engine.
			r.release(key, e)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("register module %q: %w", m.Name(), err)
		}
		return e, nil
	}
}

// Lookup returns the engine for endpoint and source, if one is attached.
func (r *Registry) Lookup(endpoint *Endpoint, source Source) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[registryKey{endpoint: endpoint, source: source}]
	return e, ok
}

// Len returns the number of attached engines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// Close detaches every engine.
func (r *Registry) Close() {
	r.mu.Lock()
	engines := make([]*Engine, 0, len(r.engines))
	for _, e := range r.engines {
		engines = append(engines, e)
	}
	r.mu.Unlock()

	for _, e := range engines {
		e.Close()
	}
}

func (r *Registry) release(key registryKey, e *Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engines[key] == e {
		delete(r.engines, key)
	}
}
