package container

import (
	"sort"
	"strings"
	"sync"

	"github.com/fernhill/rookery/pkg/types"
)

// ChildMap indexes a container's children by business name,
// case-insensitively. Mutation happens on the owning container's
// goroutine; readers work from snapshots.
type ChildMap struct {
	mu      sync.RWMutex
	byLower map[string]types.Child
	names   map[string]string // lower-cased -> original
}

// NewChildMap returns an empty map.
func NewChildMap() *ChildMap {
	return &ChildMap{
		byLower: make(map[string]types.Child),
		names:   make(map[string]string),
	}
}

func lower(name string) string { return strings.ToLower(name) }

// Get looks a child up by name, ignoring case.
func (m *ChildMap) Get(name string) (types.Child, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byLower[lower(name)]
	return c, ok
}

// Put registers a child under its business name, replacing any holder
// of the same case-folded name.
func (m *ChildMap) Put(c types.Child) {
	k := lower(c.Name())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byLower[k] = c
	m.names[k] = c.Name()
}

// Remove drops the child registered under name.
func (m *ChildMap) Remove(name string) {
	k := lower(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byLower, k)
	delete(m.names, k)
}

// Replace installs a freshly loaded child set atomically.
func (m *ChildMap) Replace(children map[string]types.Child) {
	byLower := make(map[string]types.Child, len(children))
	names := make(map[string]string, len(children))
	for name, c := range children {
		byLower[lower(name)] = c
		names[lower(name)] = name
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byLower = byLower
	m.names = names
}

// Snapshot copies the map keyed by original business name.
func (m *ChildMap) Snapshot() map[string]types.Child {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]types.Child, len(m.byLower))
	for k, c := range m.byLower {
		out[m.names[k]] = c
	}
	return out
}

// Names returns the business names, sorted.
func (m *ChildMap) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len counts children.
func (m *ChildMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byLower)
}
