package orphan

import "sync"

// Factory builds a strategy from its persisted policy keys.
type Factory func(p Policy) Strategy

// Registry maps strategy names to factories. Hosts construct one at
// startup and inject it where containers are configured.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in strategies
// ("default" and "keep-all") pre-registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("default", func(p Policy) Strategy { return Default{Policy: p} })
	r.Register("keep-all", func(Policy) Strategy { return KeepAll{} })
	return r
}

// Register adds or replaces a strategy factory under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get returns the factory registered under name.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}
