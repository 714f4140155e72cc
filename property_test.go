// FILE: dynconf/property_test.go
package dynconf

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRuntime wires a memory source through composite, manager, and a
// manually driven reloader.
func newTestRuntime(t *testing.T, data map[string]any) (*MemorySource, *Manager, *Reloader) {
	t.Helper()

	source := NewMemorySource(data)
	composite := NewComposite()
	composite.AddSource(source)
	require.NoError(t, composite.Load(context.Background()))

	manager := NewManager(composite)
	reloader := NewReloader(composite, manager, ReloadOptions{})
	t.Cleanup(reloader.Stop)

	return source, manager, reloader
}

func TestPropertyIdentity(t *testing.T) {
	_, manager, _ := newTestRuntime(t, map[string]any{"key": "42"})

	t.Run("SameNameSameContainer", func(t *testing.T) {
		assert.Same(t, manager.Property("key"), manager.Property("key"))
	})

	t.Run("SameTypeSameHandle", func(t *testing.T) {
		first := manager.Property("key").AsInt64(1)
		second := manager.Property("key").AsInt64(99)
		assert.Same(t, first, second)
		assert.Equal(t, int64(1), second.Default(), "first requested default wins")
	})

	t.Run("DifferentTypesIndependent", func(t *testing.T) {
		asString := manager.Property("key").AsString("fallback")
		asInt := manager.Property("key").AsInt64(1)

		s, err := asString.Get()
		require.NoError(t, err)
		assert.Equal(t, "42", s)

		i, err := asInt.Get()
		require.NoError(t, err)
		assert.Equal(t, int64(42), i)
	})
}

func TestPropertyDefaults(t *testing.T) {
	_, manager, _ := newTestRuntime(t, map[string]any{})

	s, err := manager.Property("absent.str").AsString("fallback").Get()
	require.NoError(t, err)
	assert.Equal(t, "fallback", s)

	i, err := manager.Property("absent.int").AsInt64(7).Get()
	require.NoError(t, err)
	assert.Equal(t, int64(7), i)

	d, err := manager.Property("absent.dur").AsDuration(time.Second).Get()
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	list, err := manager.Property("absent.list").AsStringSlice(",", []string{"x"}).Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, list)
}

func TestPropertyTypeError(t *testing.T) {
	_, manager, _ := newTestRuntime(t, map[string]any{"port": "not-a-number"})

	prop := manager.Property("port").AsInt64(8080)
	_, err := prop.Get()
	require.Error(t, err, "a present but unconvertible value must not silently become the default")

	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "port", typeErr.Key)
	assert.Equal(t, "not-a-number", typeErr.Value)
	assert.Equal(t, "int64", typeErr.TargetType)
}

func TestPropertyConversions(t *testing.T) {
	_, manager, _ := newTestRuntime(t, map[string]any{
		"int.from.string":   "123",
		"int.from.float":    float64(42),
		"int.hex":           "0xFF",
		"bool.from.string":  "true",
		"bool.from.int":     int64(1),
		"float.from.string": "2.5",
		"dur.from.string":   "1m30s",
		"slice.from.string": "a; b;c",
		"slice.from.any":    []any{"x", int64(2)},
	})

	i, err := manager.Property("int.from.string").AsInt64(0).Get()
	require.NoError(t, err)
	assert.Equal(t, int64(123), i)

	i, err = manager.Property("int.from.float").AsInt64(0).Get()
	require.NoError(t, err)
	assert.Equal(t, int64(42), i)

	i, err = manager.Property("int.hex").AsInt64(0).Get()
	require.NoError(t, err)
	assert.Equal(t, int64(255), i)

	b, err := manager.Property("bool.from.string").AsBool(false).Get()
	require.NoError(t, err)
	assert.True(t, b)

	b, err = manager.Property("bool.from.int").AsBool(false).Get()
	require.NoError(t, err)
	assert.True(t, b)

	f, err := manager.Property("float.from.string").AsFloat64(0).Get()
	require.NoError(t, err)
	assert.InDelta(t, 2.5, f, 1e-9)

	d, err := manager.Property("dur.from.string").AsDuration(0).Get()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	list, err := manager.Property("slice.from.string").AsStringSlice(";", nil).Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, list)

	list, err = manager.Property("slice.from.any").AsStringSlice(",", nil).Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "2"}, list)
}

func TestPropertySubscriptions(t *testing.T) {
	ctx := context.Background()

	t.Run("CallbacksFireInSubscriptionOrder", func(t *testing.T) {
		source, manager, reloader := newTestRuntime(t, map[string]any{"key": "v1"})
		prop := manager.Property("key").AsString("")

		var mu sync.Mutex
		var order []int
		for i := 1; i <= 3; i++ {
			i := i
			prop.OnUpdated(func(string) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			})
		}

		source.Set("key", "v2")
		require.NoError(t, reloader.Refresh(ctx))

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []int{1, 2, 3}, order)
	})

	t.Run("NoCallbackWithoutChange", func(t *testing.T) {
		_, manager, reloader := newTestRuntime(t, map[string]any{"key": "v1"})
		prop := manager.Property("key").AsString("")

		calls := 0
		prop.OnUpdated(func(string) { calls++ })

		require.NoError(t, reloader.Refresh(ctx))
		require.NoError(t, reloader.Refresh(ctx))
		assert.Zero(t, calls)
	})

	t.Run("RemoveStopsDelivery", func(t *testing.T) {
		source, manager, reloader := newTestRuntime(t, map[string]any{"key": "v1"})
		prop := manager.Property("key").AsString("")

		var removed, kept int
		token := prop.OnUpdated(func(string) { removed++ })
		prop.OnUpdated(func(string) { kept++ })
		prop.Remove(token)

		source.Set("key", "v2")
		require.NoError(t, reloader.Refresh(ctx))

		assert.Zero(t, removed)
		assert.Equal(t, 1, kept)
	})

	t.Run("ReplayDeliversCurrentValue", func(t *testing.T) {
		_, manager, _ := newTestRuntime(t, map[string]any{"key": "current"})
		prop := manager.Property("key").AsString("def")

		var got string
		prop.OnUpdatedReplay(func(v string) { got = v })
		assert.Equal(t, "current", got)
	})

	t.Run("NoReplayByDefault", func(t *testing.T) {
		_, manager, _ := newTestRuntime(t, map[string]any{"key": "current"})
		prop := manager.Property("key").AsString("def")

		called := false
		prop.OnUpdated(func(string) { called = true })
		assert.False(t, called)
	})

	t.Run("PanickingCallbackIsIsolated", func(t *testing.T) {
		source, manager, reloader := newTestRuntime(t, map[string]any{"key": "v1"})
		prop := manager.Property("key").AsString("")

		var after int
		prop.OnUpdated(func(string) { panic("subscriber bug") })
		prop.OnUpdated(func(string) { after++ })

		source.Set("key", "v2")
		require.NoError(t, reloader.Refresh(ctx))

		assert.Equal(t, 1, after, "panic in one callback must not block the rest")
	})
}

func TestPropertyRefreshKeepsLastOnError(t *testing.T) {
	ctx := context.Background()
	source, manager, reloader := newTestRuntime(t, map[string]any{"port": "8080"})

	prop := manager.Property("port").AsInt64(1)
	calls := 0
	prop.OnUpdated(func(int64) { calls++ })

	source.Set("port", "garbage")
	require.NoError(t, reloader.Refresh(ctx))
	assert.Zero(t, calls, "an unconvertible new value must not notify")

	// The cached observation is still the last valid value.
	var replayed int64
	prop.OnUpdatedReplay(func(v int64) { replayed = v })
	assert.Equal(t, int64(8080), replayed)

	// Direct reads surface the conversion error.
	_, err := prop.Get()
	var typeErr *TypeError
	assert.ErrorAs(t, err, &typeErr)

	// A later valid value resumes notifications.
	source.Set("port", "9090")
	require.NoError(t, reloader.Refresh(ctx))
	assert.Equal(t, 1, calls)
}

func TestPropertyInterpolatedValue(t *testing.T) {
	ctx := context.Background()
	source, manager, reloader := newTestRuntime(t, map[string]any{
		"host": "a.example.com",
		"url":  "https://${host}",
	})

	prop := manager.Property("url").AsString("")
	got, err := prop.Get()
	require.NoError(t, err)
	assert.Equal(t, "https://a.example.com", got)

	// A change to the referenced key changes the resolved value, but the
	// diff is keyed on raw values, so the notification rides on "host".
	var updates []string
	manager.Property("host").AsString("").OnUpdated(func(v string) {
		updates = append(updates, v)
	})

	source.Set("host", "b.example.com")
	require.NoError(t, reloader.Refresh(ctx))
	assert.Equal(t, []string{"b.example.com"}, updates)

	got, err = prop.Get()
	require.NoError(t, err)
	assert.Equal(t, "https://b.example.com", got)
}
