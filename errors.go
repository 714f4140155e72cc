// FILE: dynconf/errors.go
package dynconf

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned (possibly wrapped) by sources and the reloader.
var (
	// ErrSourceUnavailable indicates a source adapter could not be reached
	// (missing file, unreachable service). Transient: the previous snapshot
	// is retained and the source is retried on the next refresh cycle.
	ErrSourceUnavailable = errors.New("config source unavailable")

	// ErrSourceFormat indicates a source produced a malformed snapshot.
	// The previous snapshot is retained.
	ErrSourceFormat = errors.New("config source data malformed")

	// ErrKeyNotFound indicates a key is absent from every entry of a composite.
	ErrKeyNotFound = errors.New("config key not found")

	// ErrInterpolation indicates a ${variable} reference could not be resolved.
	ErrInterpolation = errors.New("unresolved interpolation variable")

	// ErrReloaderClosed is returned by Refresh after Stop has been called.
	ErrReloaderClosed = errors.New("reloader is closed")
)

// TypeError reports a value that is present in a source but cannot be
// converted to the requested type. It is never silently replaced by the
// property default: absence falls back to the default, invalidity does not.
type TypeError struct {
	Key        string // the configuration key
	Value      any    // the raw value that failed conversion
	TargetType string // the requested type name
	Err        error  // underlying parse error, may be nil
}

func (e *TypeError) Error() string {
	msg := fmt.Sprintf("cannot convert value %v (type %T) to %s for key %q",
		e.Value, e.Value, e.TargetType, e.Key)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TypeError) Unwrap() error { return e.Err }

// newTypeError builds a *TypeError for a failed conversion.
func newTypeError(key string, value any, targetType string, cause error) *TypeError {
	return &TypeError{Key: key, Value: value, TargetType: targetType, Err: cause}
}

// AllSourcesFailedError is returned by Composite.Load when every child
// failed and no child has ever loaded successfully. It is fatal to the
// initial load: there is no stale state to fall back on.
type AllSourcesFailedError struct {
	Errs []error
}

func (e *AllSourcesFailedError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("all %d config sources failed to load: %s",
		len(e.Errs), strings.Join(msgs, "; "))
}

// Unwrap exposes the per-child failures to errors.Is and errors.As.
func (e *AllSourcesFailedError) Unwrap() []error { return e.Errs }
