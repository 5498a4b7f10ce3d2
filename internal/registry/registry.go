// Package registry is a keyed factory registry for pluggable components.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps string keys to factories of type F.
type Registry[F any] struct {
	mu        sync.RWMutex
	factories map[string]F
}

// New returns an empty registry.
func New[F any]() *Registry[F] {
	return &Registry[F]{factories: make(map[string]F)}
}

// Register adds factory under key. Keys are unique.
func (r *Registry[F]) Register(key string, factory F) error {
	if key == "" {
		return fmt.Errorf("registry: empty key")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("registry: %q already registered", key)
	}
	r.factories[key] = factory
	return nil
}

// Lookup returns the factory for key.
func (r *Registry[F]) Lookup(key string) (F, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[key]
	return f, ok
}

// Keys lists registered keys in sorted order.
func (r *Registry[F]) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
