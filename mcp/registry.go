package mcp

import (
	"fmt"
	"sync"
)

// Component kinds known to the registry.
const (
	KindTool     = "tool"
	KindResource = "resource"
	KindPrompt   = "prompt"
)

// Entry is a single registration: the handler value plus the options it was
// registered with.
type Entry struct {
	Handler interface{}
	Options map[string]interface{}
}

// RegisteredEntry is an Entry together with the name it was registered under.
type RegisteredEntry struct {
	Name string
	Entry
}

// Registry is the name-to-handler lookup consumed by the dispatch core. The
// core only ever reads from it; registration happens at startup. All must
// return entries in registration order, which is what list pagination pages
// over.
type Registry interface {
	Has(kind, name string) bool
	Get(kind, name string) (Entry, bool)
	All(kind string) []RegisteredEntry
}

// InMemoryRegistry is a Registry backed by per-kind ordered maps. Reads are
// safe under concurrent request handling; registration is expected to finish
// before serving starts but is guarded anyway.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry
	order   map[string][]string
}

// NewInMemoryRegistry creates an empty InMemoryRegistry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		entries: make(map[string]map[string]Entry),
		order:   make(map[string][]string),
	}
}

// Register adds a handler under the given kind and name. Registering the
// same name twice is an error; the first registration wins.
func (r *InMemoryRegistry) Register(kind, name string, handler interface{}, options map[string]interface{}) error {
	if name == "" {
		return fmt.Errorf("component name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("component handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[kind] == nil {
		r.entries[kind] = make(map[string]Entry)
	}
	if _, exists := r.entries[kind][name]; exists {
		return fmt.Errorf("%s with name '%s' already registered", kind, name)
	}

	if options == nil {
		options = map[string]interface{}{}
	}
	r.entries[kind][name] = Entry{Handler: handler, Options: options}
	r.order[kind] = append(r.order[kind], name)
	return nil
}

// RegisterTool registers a tool handler.
func (r *InMemoryRegistry) RegisterTool(name string, handler interface{}, options map[string]interface{}) error {
	return r.Register(KindTool, name, handler, options)
}

// RegisterResource registers a resource handler.
func (r *InMemoryRegistry) RegisterResource(name string, handler interface{}, options map[string]interface{}) error {
	return r.Register(KindResource, name, handler, options)
}

// RegisterPrompt registers a prompt handler.
func (r *InMemoryRegistry) RegisterPrompt(name string, handler interface{}, options map[string]interface{}) error {
	return r.Register(KindPrompt, name, handler, options)
}

// Has reports whether a handler is registered under the kind and name.
func (r *InMemoryRegistry) Has(kind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[kind][name]
	return ok
}

// Get returns the entry registered under the kind and name.
func (r *InMemoryRegistry) Get(kind, name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[kind][name]
	return entry, ok
}

// All returns every entry of the kind in registration order.
func (r *InMemoryRegistry) All(kind string) []RegisteredEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.order[kind]
	all := make([]RegisteredEntry, 0, len(names))
	for _, name := range names {
		all = append(all, RegisteredEntry{Name: name, Entry: r.entries[kind][name]})
	}
	return all
}
