// Package blackboard provides an in-process implementation of the shared
// key/value and object store agents read and append to.
package blackboard

import (
	"sync"

	"github.com/thyra-ai/thyra/pkg/core"
)

// InMemory is a simple in-process blackboard.
type InMemory struct {
	mu      sync.RWMutex
	values  map[string]any
	objects []any
}

// NewInMemory creates an empty in-memory blackboard.
func NewInMemory() *InMemory {
	return &InMemory{values: make(map[string]any)}
}

// Get returns the value stored under key, if any.
func (b *InMemory) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok
}

// Set stores a value under key, replacing any previous value.
func (b *InMemory) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

// Objects returns a copy of the objects produced so far, oldest first.
func (b *InMemory) Objects() []any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]any, len(b.objects))
	copy(out, b.objects)
	return out
}

// AddObject appends a produced object.
func (b *InMemory) AddObject(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects = append(b.objects, v)
}

var _ core.Blackboard = (*InMemory)(nil)
