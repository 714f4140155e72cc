// FILE: dynconf/reload.go
package dynconf

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ReloadOptions configures the background refresh behavior for one root
// composite.
type ReloadOptions struct {
	// Interval between scheduled refresh cycles. Zero disables the timer:
	// refresh then happens only through explicit Refresh calls. Values
	// below MinReloadInterval are raised to it.
	Interval time.Duration

	// AllowOverlap runs a newly due tick even while a refresh is still in
	// flight. The default (false) is single-flight: a due tick is skipped
	// while a cycle runs, and the next tick stays on the wall-clock
	// schedule rather than being rescheduled from task completion.
	AllowOverlap bool

	// RefreshTimeout bounds one refresh cycle across all sources.
	RefreshTimeout time.Duration

	// Logger reports retained-stale source failures. Defaults to the
	// standard logrus logger.
	Logger logrus.FieldLogger
}

// DefaultReloadOptions returns the standard refresh configuration.
func DefaultReloadOptions() ReloadOptions {
	return ReloadOptions{
		Interval:       DefaultReloadInterval,
		RefreshTimeout: DefaultRefreshTimeout,
	}
}

// rawState is one key's resolved value before a refresh cycle, used for
// structural diffing afterwards. Absence is part of the state: a key
// appearing or disappearing counts as a change.
type rawState struct {
	value   any
	present bool
}

// Reloader drives periodic (or manually triggered) refresh of a root
// Composite and dispatches the keys whose raw value changed to the
// property manager. One reloader runs per root composite.
type Reloader struct {
	composite *Composite
	manager   *Manager
	opts      ReloadOptions
	logger    logrus.FieldLogger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  atomic.Bool
	closed   atomic.Bool
	inFlight atomic.Bool
}

// NewReloader creates a reloader for the composite and manager pair. Call
// Start to begin scheduled refreshes; Refresh works with or without Start.
func NewReloader(composite *Composite, manager *Manager, opts ReloadOptions) *Reloader {
	if opts.Interval > 0 && opts.Interval < MinReloadInterval {
		opts.Interval = MinReloadInterval
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Reloader{
		composite: composite,
		manager:   manager,
		opts:      opts,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the scheduled refresh loop. With a zero interval it is a
// no-op: the reloader then only refreshes on explicit Refresh calls.
// Start after Stop returns ErrReloaderClosed.
func (r *Reloader) Start() error {
	if r.closed.Load() {
		return ErrReloaderClosed
	}
	if r.opts.Interval <= 0 {
		return nil
	}
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}

	r.wg.Add(1)
	go r.run()
	return nil
}

// run is the scheduled refresh loop. Ticks fire on the wall-clock interval;
// a tick due while a cycle is in flight is skipped (unless AllowOverlap).
func (r *Reloader) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(r.ctx); err != nil && !errors.Is(err, ErrReloaderClosed) {
				r.logger.WithError(err).Error("scheduled config refresh failed")
			}
		}
	}
}

// Refresh executes one refresh cycle: re-load all sources, diff the keys
// observed by live properties, and notify the manager of changed keys.
// While another cycle is in flight it returns immediately (single-flight),
// unless AllowOverlap is set.
//
// Source failures retain the previous snapshots and are logged; Refresh
// only returns an error when the composite has never loaded anything
// (*AllSourcesFailedError) or the context is canceled.
func (r *Reloader) Refresh(ctx context.Context) error {
	if r.closed.Load() {
		return ErrReloaderClosed
	}

	if !r.opts.AllowOverlap {
		if !r.inFlight.CompareAndSwap(false, true) {
			return nil
		}
		defer r.inFlight.Store(false)
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.RefreshTimeout)
	defer cancel()

	observed := r.manager.observedKeys()
	before := make(map[string]rawState, len(observed))
	for _, key := range observed {
		value, present := r.composite.GetRaw(key)
		before[key] = rawState{value: value, present: present}
	}

	if err := r.composite.Load(ctx); err != nil {
		var fatal *AllSourcesFailedError
		if errors.As(err, &fatal) {
			return err
		}
		// Partial failure: failing sources keep their previous snapshots.
		r.logger.WithError(err).Warn("config refresh completed with stale sources")
	}

	changed := make([]string, 0, len(before))
	for key, old := range before {
		value, present := r.composite.GetRaw(key)
		if old.present != present || !reflect.DeepEqual(old.value, value) {
			changed = append(changed, key)
		}
	}

	if len(changed) == 0 || r.closed.Load() {
		return nil
	}

	sort.Strings(changed)
	r.manager.notifyChanged(changed)
	return nil
}

// Stop terminates scheduled refreshes. The in-flight cycle, if any, is
// allowed to finish; no notification is delivered once Stop returns and
// further Refresh calls fail with ErrReloaderClosed. Stop is idempotent.
func (r *Reloader) Stop() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.cancel()
	r.wg.Wait()

	// Wait out a manual Refresh still holding the flight slot.
	for r.inFlight.Load() {
		time.Sleep(time.Millisecond)
	}
}
