// FILE: dynconf/source.go
package dynconf

import "context"

// Source supplies point-in-time configuration snapshots. A snapshot is a
// flat or nested map of string keys to scalar values or further maps; it
// must not be mutated after being returned. A fresh Load produces a fresh
// snapshot, never an in-place update of a previous one.
//
// Implementations report failures with errors wrapping ErrSourceUnavailable
// (adapter unreachable) or ErrSourceFormat (malformed data); the owning
// Node retains its previous snapshot in either case.
type Source interface {
	Load(ctx context.Context) (map[string]any, error)
}

// ChangeDetector is an optional interface for sources that can cheaply
// report whether their data changed since the last Load. A Node wrapping a
// detector skips the re-Load when Changed reports false, so refresh cycles
// stay cheap for sources that rarely change.
//
// Sources without a detector are re-loaded on every refresh cycle.
type ChangeDetector interface {
	Changed() bool
}
