// FILE: dynconf/composite.go
package dynconf

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// Entry is a resolvable member of a Composite: either a *Node wrapping one
// source or a nested *Composite. The tree is strictly owned top-down.
type Entry interface {
	Load(ctx context.Context) error
	GetRaw(key string) (any, bool)
	HasKey(key string) bool
	Loaded() bool
	Keys() []string
}

// Resolver is the read surface shared by Composite and Prefixed views.
type Resolver interface {
	GetRaw(key string) (any, bool)
	HasKey(key string) bool
}

// Composite resolves keys across an ordered sequence of entries with
// first-match-wins precedence: the earliest-registered entry that has the
// key supplies the value. Resolution order is exactly registration order
// and is stable across reloads. Nested composites recurse the same rule,
// so the tree behaves as a single ordered, depth-first view.
type Composite struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewComposite creates a composite over the given entries, in precedence
// order (first has highest priority).
func NewComposite(entries ...Entry) *Composite {
	return &Composite{entries: entries}
}

// Add appends an entry to the resolution order. Duplicate keys across
// entries are allowed; the first-registered entry wins on lookup.
func (c *Composite) Add(entry Entry) *Composite {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	return c
}

// AddSource wraps a source in a Node and appends it. The node is returned
// so callers can load it independently if needed.
func (c *Composite) AddSource(source Source) *Node {
	node := NewNode(source)
	c.Add(node)
	return node
}

// snapshotEntries copies the entry slice so resolution never holds the
// lock while touching children.
func (c *Composite) snapshotEntries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := make([]Entry, len(c.entries))
	copy(entries, c.entries)
	return entries
}

// GetRaw traverses entries in registration order and returns the value
// from the first entry that has the key.
func (c *Composite) GetRaw(key string) (any, bool) {
	for _, entry := range c.snapshotEntries() {
		if value, ok := entry.GetRaw(key); ok {
			return value, true
		}
	}
	return nil, false
}

// HasKey reports whether any entry has the key.
func (c *Composite) HasKey(key string) bool {
	_, ok := c.GetRaw(key)
	return ok
}

// Load cascades to every entry in order, collecting per-child failures
// without short-circuiting. It returns *AllSourcesFailedError only when
// every child failed and none has ever loaded successfully; with a usable
// partial or prior state it returns the joined child errors (callers may
// log them and continue on stale data) or nil when all children loaded.
func (c *Composite) Load(ctx context.Context) error {
	entries := c.snapshotEntries()

	var errs []error
	for _, entry := range entries {
		if err := entry.Load(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}

	for _, entry := range entries {
		if entry.Loaded() {
			return errors.Join(errs...)
		}
	}

	return &AllSourcesFailedError{Errs: errs}
}

// Loaded reports whether at least one entry has loaded successfully.
func (c *Composite) Loaded() bool {
	for _, entry := range c.snapshotEntries() {
		if entry.Loaded() {
			return true
		}
	}
	return false
}

// Keys returns the sorted union of flattened keys across all entries.
func (c *Composite) Keys() []string {
	seen := make(map[string]struct{})
	for _, entry := range c.snapshotEntries() {
		for _, key := range entry.Keys() {
			seen[key] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Prefixed returns a read view of this composite restricted to keys under
// the given prefix: view.GetRaw("timeout") resolves "<prefix>.timeout".
func (c *Composite) Prefixed(prefix string) *Prefixed {
	return &Prefixed{prefix: strings.TrimRight(prefix, "."), parent: c}
}

// Prefixed is a key-prefixing view into a Composite. It shares the parent's
// data and reflects its reloads; it owns nothing.
type Prefixed struct {
	prefix string
	parent *Composite
}

// GetRaw resolves the prefixed key against the parent composite.
func (p *Prefixed) GetRaw(key string) (any, bool) {
	return p.parent.GetRaw(p.prefix + "." + key)
}

// HasKey reports whether the parent has the prefixed key.
func (p *Prefixed) HasKey(key string) bool {
	_, ok := p.GetRaw(key)
	return ok
}
