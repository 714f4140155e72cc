// FILE: dynconf/node.go
package dynconf

import (
	"context"
	"sort"
	"sync/atomic"
)

// snapshot is an immutable point-in-time view of one source's data.
// Replaced wholesale on reload, never mutated.
type snapshot struct {
	data map[string]any
}

// Node wraps a single Source and caches its most recent snapshot. The
// snapshot is swapped atomically, so readers always observe either the
// fully-old or the fully-new data, never a partial update.
//
// A failed Load keeps the previous snapshot intact (stale-but-available):
// good data is never cleared because a refresh failed.
type Node struct {
	source Source
	snap   atomic.Pointer[snapshot]
	loaded atomic.Bool
}

// NewNode creates a Node owning the given source. The node holds no data
// until Load is called.
func NewNode(source Source) *Node {
	return &Node{source: source}
}

// Load fetches a fresh snapshot from the source and replaces the cached
// one atomically. If the source implements ChangeDetector and reports no
// change since the last successful load, the fetch is skipped.
func (n *Node) Load(ctx context.Context) error {
	if n.loaded.Load() {
		if detector, ok := n.source.(ChangeDetector); ok && !detector.Changed() {
			return nil
		}
	}

	data, err := n.source.Load(ctx)
	if err != nil {
		return err
	}

	n.snap.Store(&snapshot{data: data})
	n.loaded.Store(true)
	return nil
}

// GetRaw returns the raw value for a dotted key from the cached snapshot.
func (n *Node) GetRaw(key string) (any, bool) {
	snap := n.snap.Load()
	if snap == nil {
		return nil, false
	}
	return lookupNested(snap.data, key)
}

// HasKey reports whether the cached snapshot contains the key.
func (n *Node) HasKey(key string) bool {
	_, ok := n.GetRaw(key)
	return ok
}

// Loaded reports whether the node has ever loaded successfully.
func (n *Node) Loaded() bool {
	return n.loaded.Load()
}

// Keys returns the flattened dotted keys of the cached snapshot, sorted.
func (n *Node) Keys() []string {
	snap := n.snap.Load()
	if snap == nil {
		return nil
	}

	flat := flattenMap(snap.data, "")
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
