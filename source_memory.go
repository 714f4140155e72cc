// FILE: dynconf/source_memory.go
package dynconf

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemorySource is a mutable in-memory source, useful for tests and for
// programmatic overrides layered into a composite. Set and Delete mark the
// source changed so the next refresh cycle picks the mutation up.
type MemorySource struct {
	mu    sync.RWMutex
	data  map[string]any
	dirty atomic.Bool
}

// NewMemorySource creates a memory source seeded with the given data. The
// map is deep-copied; later mutations of the argument are not observed.
func NewMemorySource(data map[string]any) *MemorySource {
	s := &MemorySource{data: make(map[string]any)}
	if data != nil {
		s.data = deepCopyMap(data)
	}
	return s
}

// Set stores a value under a dotted key path and marks the source changed.
func (s *MemorySource) Set(key string, value any) {
	s.mu.Lock()
	if subMap, isMap := value.(map[string]any); isMap {
		value = deepCopyMap(subMap)
	}
	setNestedValue(s.data, key, value)
	s.mu.Unlock()
	s.dirty.Store(true)
}

// Delete removes a top-level or flat key and marks the source changed.
func (s *MemorySource) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	s.dirty.Store(true)
}

// Load returns a fresh copy of the current data.
func (s *MemorySource) Load(_ context.Context) (map[string]any, error) {
	s.mu.RLock()
	snapshot := deepCopyMap(s.data)
	s.mu.RUnlock()
	s.dirty.Store(false)
	return snapshot, nil
}

// Changed reports whether the data was mutated since the last Load.
func (s *MemorySource) Changed() bool {
	return s.dirty.Load()
}
