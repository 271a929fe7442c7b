package naming

import "sync"

// Registry maps mangler names to implementations. Hosts construct one
// at startup and inject it where children are loaded.
type Registry struct {
	mu       sync.RWMutex
	manglers map[string]Mangler
}

// NewRegistry returns a registry with the built-in manglers
// ("default" and "legacy") pre-registered.
func NewRegistry() *Registry {
	r := &Registry{manglers: make(map[string]Mangler)}
	r.Register("default", Default{})
	r.Register("legacy", Legacy{})
	return r
}

// Register adds or replaces a mangler under the given name.
func (r *Registry) Register(name string, m Mangler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manglers[name] = m
}

// Get returns the mangler registered under name.
func (r *Registry) Get(name string) (Mangler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manglers[name]
	return m, ok
}
