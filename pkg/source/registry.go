package source

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry manages the transports available to remote fetching.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]TransportFactory
}

// NewRegistry creates a new transport registry.
func NewRegistry() *Registry {
	return &Registry{
		transports: make(map[string]TransportFactory),
	}
}

// Register adds a transport factory for scheme.
func (r *Registry) Register(scheme string, factory TransportFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[strings.ToLower(scheme)] = factory
}

// Get returns a new transport for scheme.
func (r *Registry) Get(scheme string) (Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.transports[strings.ToLower(scheme)]
	if !ok {
		return nil, fmt.Errorf("%w '%s:'", ErrUnsupportedProtocol, scheme)
	}

	return factory(), nil
}

// List returns the registered schemes in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.transports))
	for name := range r.transports {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Has checks if a transport is registered for scheme.
func (r *Registry) Has(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.transports[strings.ToLower(scheme)]
	return ok
}

// DefaultRegistry is the global transport registry.
var DefaultRegistry = NewRegistry()

// Register adds a transport factory to the default registry.
func Register(scheme string, factory TransportFactory) {
	DefaultRegistry.Register(scheme, factory)
}

// Get returns a new transport for scheme from the default registry.
func Get(scheme string) (Transport, error) {
	return DefaultRegistry.Get(scheme)
}

// List returns the schemes registered in the default registry.
func List() []string {
	return DefaultRegistry.List()
}

// Has checks if a scheme is registered in the default registry.
func Has(scheme string) bool {
	return DefaultRegistry.Has(scheme)
}
