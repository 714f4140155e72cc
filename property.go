// FILE: dynconf/property.go
package dynconf

import (
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Token identifies one registered update callback so it can be removed.
type Token int64

// Manager is the process-scoped registry mapping property names to live
// property handles backed by one resolver (usually a Composite). Requests
// for the same name return the same container, and requests for the same
// (name, type) combination return the same property instance, so
// subscribing twice subscribes to the same notification stream.
//
// The Manager is constructed explicitly and passed to consumers; there is
// no package-level singleton.
type Manager struct {
	resolver Resolver
	logger   logrus.FieldLogger

	mu         sync.RWMutex
	containers map[string]*Container
}

// NewManager creates a property registry over the given resolver.
func NewManager(resolver Resolver) *Manager {
	return &Manager{
		resolver:   resolver,
		logger:     logrus.StandardLogger(),
		containers: make(map[string]*Container),
	}
}

// Logger sets the logger used to report refresh failures and recovered
// callback panics. Chainable; call before handing the manager out.
func (m *Manager) Logger(logger logrus.FieldLogger) *Manager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Property returns the container for a property name, creating it lazily
// on first request. The same container is returned for the same name.
func (m *Manager) Property(name string) *Container {
	m.mu.RLock()
	container := m.containers[name]
	m.mu.RUnlock()
	if container != nil {
		return container
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if container = m.containers[name]; container == nil {
		container = &Container{name: name, manager: m}
		m.containers[name] = container
	}
	return container
}

// observedKeys returns the names of all live properties, sorted. The
// reloader diffs exactly these keys across a refresh cycle.
func (m *Manager) observedKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.containers))
	for name := range m.containers {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// notifyChanged recomputes every live property registered under the
// changed keys and fans out callbacks for properties whose typed value
// actually changed. Called by the reloader on its refresh goroutine.
func (m *Manager) notifyChanged(keys []string) {
	for _, key := range keys {
		m.mu.RLock()
		container := m.containers[key]
		m.mu.RUnlock()
		if container == nil {
			continue
		}

		for _, prop := range container.snapshot() {
			prop.refresh()
		}
	}
}

// Container is the per-name entry point for typed property handles. The
// first terminal accessor call for a given type fixes that type's handle;
// a different terminal accessor on the same name yields an independent
// property with its own converter and default.
type Container struct {
	name    string
	manager *Manager

	mu    sync.Mutex
	props []*property
}

// Name returns the property name.
func (c *Container) Name() string { return c.name }

// AsString returns the live string handle for this name.
func (c *Container) AsString(def string) *StringProperty {
	return c.typed(kindString, def, "").wrapper.(*StringProperty)
}

// AsInt64 returns the live int64 handle for this name.
func (c *Container) AsInt64(def int64) *Int64Property {
	return c.typed(kindInt64, def, "").wrapper.(*Int64Property)
}

// AsFloat64 returns the live float64 handle for this name.
func (c *Container) AsFloat64(def float64) *Float64Property {
	return c.typed(kindFloat64, def, "").wrapper.(*Float64Property)
}

// AsBool returns the live bool handle for this name.
func (c *Container) AsBool(def bool) *BoolProperty {
	return c.typed(kindBool, def, "").wrapper.(*BoolProperty)
}

// AsDuration returns the live time.Duration handle for this name.
func (c *Container) AsDuration(def time.Duration) *DurationProperty {
	return c.typed(kindDuration, def, "").wrapper.(*DurationProperty)
}

// AsStringSlice returns the live []string handle for this name. Plain
// string values are split on sep (default ","). The separator is fixed by
// the first call.
func (c *Container) AsStringSlice(sep string, def []string) *StringSliceProperty {
	if def == nil {
		def = []string{}
	}
	return c.typed(kindStringSlice, def, sep).wrapper.(*StringSliceProperty)
}

// typed returns the property core for a kind, creating and seeding it on
// first request. The default and separator of the first request win.
func (c *Container) typed(kind propertyKind, def any, sep string) *property {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, prop := range c.props {
		if prop.kind == kind {
			return prop
		}
	}

	prop := &property{
		name:    c.name,
		kind:    kind,
		def:     def,
		sep:     sep,
		manager: c.manager,
	}
	prop.wrapper = newWrapper(prop)
	prop.seed()
	c.props = append(c.props, prop)
	return prop
}

// snapshot copies the typed property list for lock-free iteration.
func (c *Container) snapshot() []*property {
	c.mu.Lock()
	defer c.mu.Unlock()
	props := make([]*property, len(c.props))
	copy(props, c.props)
	return props
}

type propertyKind int

const (
	kindString propertyKind = iota
	kindInt64
	kindFloat64
	kindBool
	kindDuration
	kindStringSlice
)

type subscriber struct {
	token Token
	fn    func(any)
}

// property is the untyped core shared by the typed handles: current typed
// value, default, converter kind, and the ordered subscriber list.
type property struct {
	name    string
	kind    propertyKind
	def     any
	sep     string
	manager *Manager
	wrapper any // the typed handle, fixed at creation

	mu        sync.Mutex
	last      any // last observed typed value, for change detection
	subs      []subscriber
	nextToken Token
}

// eval resolves the current typed value: present values are interpolated
// and converted (conversion failure is an error, never the default);
// absent keys fall back to the default.
func (p *property) eval() (any, error) {
	raw, ok := p.manager.resolver.GetRaw(p.name)
	if !ok {
		return p.def, nil
	}

	expanded, err := expandValue(raw, p.manager.resolver, 0)
	if err != nil {
		return nil, err
	}

	switch p.kind {
	case kindString:
		return toStringValue(p.name, expanded)
	case kindInt64:
		return toInt64Value(p.name, expanded)
	case kindFloat64:
		return toFloat64Value(p.name, expanded)
	case kindBool:
		return toBoolValue(p.name, expanded)
	case kindDuration:
		return toDurationValue(p.name, expanded)
	case kindStringSlice:
		v, err := toStringSliceValue(p.name, expanded, p.sep)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, newTypeError(p.name, expanded, "unknown", nil)
}

// seed records the initial observed value so the first refresh diff has a
// baseline. A present-but-invalid value seeds the default; it has never
// produced a valid observation.
func (p *property) seed() {
	value, err := p.eval()
	if err != nil {
		value = p.def
	}
	p.mu.Lock()
	p.last = value
	p.mu.Unlock()
}

// get evaluates the property for a caller. Unlike refresh it does not move
// the observed baseline, so a conversion error surfaces to the caller
// without disturbing the cached valid value.
func (p *property) get() (any, error) {
	return p.eval()
}

// refresh recomputes the typed value after a source change and notifies
// subscribers in subscription order when it differs from the last observed
// value. Runs on the reloader's goroutine.
func (p *property) refresh() {
	p.mu.Lock()
	value, err := p.eval()
	if err != nil {
		p.mu.Unlock()
		p.manager.logger.WithError(err).WithField("property", p.name).
			Warn("property value not updated after refresh")
		return
	}

	if reflect.DeepEqual(p.last, value) {
		p.mu.Unlock()
		return
	}

	p.last = value
	subs := make([]subscriber, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, sub := range subs {
		p.invoke(sub, value)
	}
}

// invoke runs one callback, isolating panics so a failing subscriber never
// prevents the remaining callbacks or crashes the reload loop.
func (p *property) invoke(sub subscriber, value any) {
	defer func() {
		if r := recover(); r != nil {
			p.manager.logger.WithField("property", p.name).WithField("panic", r).
				Error("property update callback panicked")
		}
	}()
	sub.fn(value)
}

// subscribe registers a callback and returns its removal token. With
// replay, the current value is delivered immediately on the caller's
// goroutine; otherwise callbacks fire only on subsequent changes.
func (p *property) subscribe(fn func(any), replay bool) Token {
	p.mu.Lock()
	p.nextToken++
	token := p.nextToken
	p.subs = append(p.subs, subscriber{token: token, fn: fn})
	current := p.last
	p.mu.Unlock()

	if replay {
		p.invoke(subscriber{token: token, fn: fn}, current)
	}
	return token
}

// remove unregisters the callback identified by token.
func (p *property) remove(token Token) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, sub := range p.subs {
		if sub.token == token {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
			return
		}
	}
}

func newWrapper(p *property) any {
	switch p.kind {
	case kindString:
		return &StringProperty{p: p}
	case kindInt64:
		return &Int64Property{p: p}
	case kindFloat64:
		return &Float64Property{p: p}
	case kindBool:
		return &BoolProperty{p: p}
	case kindDuration:
		return &DurationProperty{p: p}
	case kindStringSlice:
		return &StringSliceProperty{p: p}
	}
	return nil
}

// StringProperty is a live, typed handle to one configuration key.
type StringProperty struct{ p *property }

// Name returns the property name.
func (sp *StringProperty) Name() string { return sp.p.name }

// Default returns the fallback value used when the key is absent.
func (sp *StringProperty) Default() string { return sp.p.def.(string) }

// Get evaluates the current value: source value if present (a conversion
// failure is a *TypeError), default otherwise.
func (sp *StringProperty) Get() (string, error) {
	v, err := sp.p.get()
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// OnUpdated registers a callback invoked with the new value whenever the
// typed value changes on a refresh cycle.
func (sp *StringProperty) OnUpdated(fn func(string)) Token {
	return sp.p.subscribe(func(v any) { fn(v.(string)) }, false)
}

// OnUpdatedReplay registers a callback and immediately delivers the
// current value before future changes.
func (sp *StringProperty) OnUpdatedReplay(fn func(string)) Token {
	return sp.p.subscribe(func(v any) { fn(v.(string)) }, true)
}

// Remove unregisters a callback by token.
func (sp *StringProperty) Remove(token Token) { sp.p.remove(token) }

// Int64Property is a live, typed handle to one configuration key.
type Int64Property struct{ p *property }

func (ip *Int64Property) Name() string   { return ip.p.name }
func (ip *Int64Property) Default() int64 { return ip.p.def.(int64) }

func (ip *Int64Property) Get() (int64, error) {
	v, err := ip.p.get()
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (ip *Int64Property) OnUpdated(fn func(int64)) Token {
	return ip.p.subscribe(func(v any) { fn(v.(int64)) }, false)
}

func (ip *Int64Property) OnUpdatedReplay(fn func(int64)) Token {
	return ip.p.subscribe(func(v any) { fn(v.(int64)) }, true)
}

func (ip *Int64Property) Remove(token Token) { ip.p.remove(token) }

// Float64Property is a live, typed handle to one configuration key.
type Float64Property struct{ p *property }

func (fp *Float64Property) Name() string     { return fp.p.name }
func (fp *Float64Property) Default() float64 { return fp.p.def.(float64) }

func (fp *Float64Property) Get() (float64, error) {
	v, err := fp.p.get()
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (fp *Float64Property) OnUpdated(fn func(float64)) Token {
	return fp.p.subscribe(func(v any) { fn(v.(float64)) }, false)
}

func (fp *Float64Property) OnUpdatedReplay(fn func(float64)) Token {
	return fp.p.subscribe(func(v any) { fn(v.(float64)) }, true)
}

func (fp *Float64Property) Remove(token Token) { fp.p.remove(token) }

// BoolProperty is a live, typed handle to one configuration key.
type BoolProperty struct{ p *property }

func (bp *BoolProperty) Name() string  { return bp.p.name }
func (bp *BoolProperty) Default() bool { return bp.p.def.(bool) }

func (bp *BoolProperty) Get() (bool, error) {
	v, err := bp.p.get()
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (bp *BoolProperty) OnUpdated(fn func(bool)) Token {
	return bp.p.subscribe(func(v any) { fn(v.(bool)) }, false)
}

func (bp *BoolProperty) OnUpdatedReplay(fn func(bool)) Token {
	return bp.p.subscribe(func(v any) { fn(v.(bool)) }, true)
}

func (bp *BoolProperty) Remove(token Token) { bp.p.remove(token) }

// DurationProperty is a live, typed handle to one configuration key.
type DurationProperty struct{ p *property }

func (dp *DurationProperty) Name() string           { return dp.p.name }
func (dp *DurationProperty) Default() time.Duration { return dp.p.def.(time.Duration) }

func (dp *DurationProperty) Get() (time.Duration, error) {
	v, err := dp.p.get()
	if err != nil {
		return 0, err
	}
	return v.(time.Duration), nil
}

func (dp *DurationProperty) OnUpdated(fn func(time.Duration)) Token {
	return dp.p.subscribe(func(v any) { fn(v.(time.Duration)) }, false)
}

func (dp *DurationProperty) OnUpdatedReplay(fn func(time.Duration)) Token {
	return dp.p.subscribe(func(v any) { fn(v.(time.Duration)) }, true)
}

func (dp *DurationProperty) Remove(token Token) { dp.p.remove(token) }

// StringSliceProperty is a live, typed handle to one configuration key.
type StringSliceProperty struct{ p *property }

func (lp *StringSliceProperty) Name() string      { return lp.p.name }
func (lp *StringSliceProperty) Default() []string { return lp.p.def.([]string) }

func (lp *StringSliceProperty) Get() ([]string, error) {
	v, err := lp.p.get()
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (lp *StringSliceProperty) OnUpdated(fn func([]string)) Token {
	return lp.p.subscribe(func(v any) { fn(v.([]string)) }, false)
}

func (lp *StringSliceProperty) OnUpdatedReplay(fn func([]string)) Token {
	return lp.p.subscribe(func(v any) { fn(v.([]string)) }, true)
}

func (lp *StringSliceProperty) Remove(token Token) { lp.p.remove(token) }
