package container

import (
	"sort"
	"sync"
)

// Registry tracks the live containers of the process so the cron loop
// and the admin surface can reach them. Constructed once at service
// start and injected where needed.
type Registry struct {
	mu         sync.RWMutex
	containers map[string]*Container
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{containers: make(map[string]*Container)}
}

// Add registers a container under its full name.
func (r *Registry) Add(c *Container) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[c.FullName()] = c
}

// Remove drops the container registered under fullName.
func (r *Registry) Remove(fullName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.containers, fullName)
}

// Get looks a container up by full name.
func (r *Registry) Get(fullName string) (*Container, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[fullName]
	return c, ok
}

// All returns the containers sorted by full name.
func (r *Registry) All() []*Container {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Container, 0, len(r.containers))
	for _, c := range r.containers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out
}

// Len counts registered containers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.containers)
}
