package protocol

import "sync"

// Event is a named occurrence dispatched on an endpoint.
type Event struct {
	Name string

	// Target is the endpoint the event was dispatched on. It stays fixed
	// while the event bubbles to ancestors.
	Target *Endpoint

	// Detail carries the payload, a Message for protocol events.
	Detail any

	// Relay names the bridge that injected the event, if any.
	Relay string
}

// Listener receives events. Listeners must not block.
type Listener func(Event)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Endpoint is an addressable node that dispatches events to its own
// listeners and then to those of each ancestor.
//
// Endpoint is safe for concurrent use.
type Endpoint struct {
	name   string
	parent *Endpoint

	mu        sync.Mutex
	nextID    uint64
	listeners map[string][]listenerEntry
}

// NewEndpoint creates an endpoint nested under parent, which may be nil.
func NewEndpoint(name string, parent *Endpoint) *Endpoint {
	return &Endpoint{
		name:      name,
		parent:    parent,
		listeners: make(map[string][]listenerEntry),
	}
}

// Name returns the endpoint's name.
func (e *Endpoint) Name() string { return e.name }

// Parent returns the enclosing endpoint, or nil at the root.
func (e *Endpoint) Parent() *Endpoint { return e.parent }

// Path returns the slash-separated names from the root to e.
func (e *Endpoint) Path() string {
	if e.parent == nil {
		return e.name
	}
	return e.parent.Path() + "/" + e.name
}

// Listen registers fn for events named name and returns a function that
// removes it. Listeners run in registration order.
func (e *Endpoint) Listen(name string, fn Listener) (remove func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners[name] = append(e.listeners[name], listenerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			entries := e.listeners[name]
			for i, entry := range entries {
				if entry.id == id {
					e.listeners[name] = append(entries[:i:i], entries[i+1:]...)
					break
				}
			}
			if len(e.listeners[name]) == 0 {
				delete(e.listeners, name)
			}
		})
	}
}

// ListenerCount returns the number of listeners for name on e alone.
func (e *Endpoint) ListenerCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[name])
}

// Dispatch delivers ev to listeners on e and then on each ancestor. Target
// defaults to e. Listeners are called without any lock held.
func (e *Endpoint) Dispatch(ev Event) {
	if ev.Target == nil {
		ev.Target = e
	}
	for node := e; node != nil; node = node.parent {
		node.mu.Lock()
		snapshot := make([]Listener, 0, len(node.listeners[ev.Name]))
		for _, entry := range node.listeners[ev.Name] {
			snapshot = append(snapshot, entry.fn)
		}
		node.mu.Unlock()

		for _, fn := range snapshot {
			fn(ev)
		}
	}
}
