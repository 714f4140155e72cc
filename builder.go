// FILE: dynconf/builder.go
package dynconf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// ValidatorFunc validates the fully loaded composite at build time. It runs
// after the initial load and should return an error if the configuration is
// unusable.
type ValidatorFunc func(c *Composite) error

// Builder provides a fluent interface for assembling a composite, its
// property manager, and a running reloader in one call. Sources are added
// in precedence order: the first added wins on key conflicts.
type Builder struct {
	entries    []Entry
	closers    []io.Closer
	opts       ReloadOptions
	validators []ValidatorFunc
	err        error
}

// NewBuilder creates a builder with default reload options.
func NewBuilder() *Builder {
	return &Builder{
		opts:       DefaultReloadOptions(),
		validators: make([]ValidatorFunc, 0),
	}
}

// WithSource appends a source, wrapped in a node, to the resolution order.
func (b *Builder) WithSource(source Source) *Builder {
	if source == nil {
		b.fail(errors.New("nil source"))
		return b
	}
	b.entries = append(b.entries, NewNode(source))
	return b
}

// WithEntry appends a prebuilt entry, typically a nested *Composite.
func (b *Builder) WithEntry(entry Entry) *Builder {
	if entry == nil {
		b.fail(errors.New("nil entry"))
		return b
	}
	b.entries = append(b.entries, entry)
	return b
}

// WithFile appends a file source with default options. The file is watched
// for changes while the reloader runs and is closed by Runtime.Close.
func (b *Builder) WithFile(path string) *Builder {
	return b.WithFileOptions(path, DefaultFileSourceOptions())
}

// WithFileOptions appends a file source with explicit options.
func (b *Builder) WithFileOptions(path string, opts FileSourceOptions) *Builder {
	source := NewFileSourceWithOptions(path, opts)
	b.closers = append(b.closers, source)
	return b.WithSource(source)
}

// WithEnv appends an environment variable source for the given prefix.
func (b *Builder) WithEnv(prefix string) *Builder {
	return b.WithSource(NewEnvSource(prefix))
}

// WithArgs appends a command-line source. Pass os.Args[1:] for the process
// arguments.
func (b *Builder) WithArgs(args []string) *Builder {
	return b.WithSource(NewCommandLineSource(args))
}

// WithDefaults appends a memory source, conventionally added last so every
// other source overrides it.
func (b *Builder) WithDefaults(data map[string]any) *Builder {
	return b.WithSource(NewMemorySource(data))
}

// WithInterval sets the scheduled refresh interval. Zero disables the
// timer; refresh then happens only through explicit Refresh calls.
func (b *Builder) WithInterval(interval time.Duration) *Builder {
	b.opts.Interval = interval
	return b
}

// WithAllowOverlap lets a due refresh tick start even while a previous
// cycle is still in flight.
func (b *Builder) WithAllowOverlap(allow bool) *Builder {
	b.opts.AllowOverlap = allow
	return b
}

// WithLogger sets the logger shared by the reloader and property manager.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.opts.Logger = logger
	return b
}

// WithValidator adds a validation function executed after the initial
// load. Multiple validators run in the order they were added.
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Runtime bundles the built composite, its property manager, and the
// running reloader. Close stops the reloader and releases source watchers.
type Runtime struct {
	Config     *Composite
	Properties *Manager
	Reloader   *Reloader

	closers []io.Closer
}

// Close stops scheduled refreshes and closes watched sources. After Close
// no property callback fires. Idempotent.
func (r *Runtime) Close() error {
	r.Reloader.Stop()

	var errs []error
	for _, closer := range r.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build assembles the composite, performs the initial load, runs
// validators, and starts the reloader. The initial load is fatal only when
// no source produced data (*AllSourcesFailedError); partial failures are
// logged and the runtime starts on the data that did load.
func (b *Builder) Build(ctx context.Context) (*Runtime, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.entries) == 0 {
		return nil, errors.New("no sources configured")
	}

	logger := b.opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	composite := NewComposite(b.entries...)
	if err := composite.Load(ctx); err != nil {
		var fatal *AllSourcesFailedError
		if errors.As(err, &fatal) {
			b.closeAll()
			return nil, err
		}
		logger.WithError(err).Warn("initial config load completed with failing sources")
	}

	for _, validate := range b.validators {
		if err := validate(composite); err != nil {
			b.closeAll()
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	manager := NewManager(composite).Logger(logger)
	reloader := NewReloader(composite, manager, b.opts)
	if err := reloader.Start(); err != nil {
		b.closeAll()
		return nil, err
	}

	return &Runtime{
		Config:     composite,
		Properties: manager,
		Reloader:   reloader,
		closers:    b.closers,
	}, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild(ctx context.Context) *Runtime {
	rt, err := b.Build(ctx)
	if err != nil {
		panic(fmt.Sprintf("config build failed: %v", err))
	}
	return rt
}

func (b *Builder) closeAll() {
	for _, closer := range b.closers {
		closer.Close()
	}
}
