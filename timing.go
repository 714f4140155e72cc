// FILE: dynconf/timing.go
package dynconf

import "time"

// Core timing constants. These define the default refresh behavior of the
// reload pipeline.
const (
	// DefaultReloadInterval is the period between scheduled refresh cycles.
	DefaultReloadInterval = time.Minute

	// MinReloadInterval is the hard floor for the scheduled refresh period.
	MinReloadInterval = 100 * time.Millisecond

	// DefaultRefreshTimeout bounds one refresh cycle across all sources.
	DefaultRefreshTimeout = 30 * time.Second
)

// maxInterpolationDepth bounds ${var} expansion through chained references.
const maxInterpolationDepth = 8
