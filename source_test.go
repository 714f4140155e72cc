// FILE: dynconf/source_test.go
package dynconf

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSource(t *testing.T) {
	ctx := context.Background()

	t.Run("PrefixMapping", func(t *testing.T) {
		t.Setenv("MYAPP_SERVER_PORT", "9090")
		t.Setenv("MYAPP_DEBUG", "true")
		t.Setenv("OTHERAPP_SERVER_PORT", "1234")

		data, err := NewEnvSource("MYAPP_").Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, "9090", data["server.port"])
		assert.Equal(t, "true", data["debug"])
		assert.NotContains(t, data, "otherapp.server.port")
	})

	t.Run("CustomTransform", func(t *testing.T) {
		t.Setenv("MYAPP_ONLY_THIS", "yes")
		t.Setenv("MYAPP_NOT_THIS", "no")

		source := NewEnvSource("MYAPP_").Transform(func(name string) string {
			if name != "MYAPP_ONLY_THIS" {
				return ""
			}
			return "custom.key"
		})

		data, err := source.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"custom.key": "yes"}, data)
	})

	t.Run("ValuesStayStrings", func(t *testing.T) {
		t.Setenv("MYAPP_COUNT", "42")

		data, err := NewEnvSource("MYAPP_").Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "42", data["count"])
	})
}

func TestCommandLineSource(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		args     []string
		key      string
		expected any
	}{
		{"EqualsForm", []string{"--server.port=9090"}, "server.port", "9090"},
		{"SpaceForm", []string{"--server.host", "example.com"}, "server.host", "example.com"},
		{"BareFlag", []string{"--verbose"}, "verbose", "true"},
		{"FlagBeforeFlag", []string{"--verbose", "--other=1"}, "verbose", "true"},
		{"EmptyValue", []string{"--name="}, "name", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := NewCommandLineSource(tt.args).Load(ctx)
			require.NoError(t, err)

			val, ok := lookupNested(data, tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.expected, val)
		})
	}

	t.Run("PositionalArgsSkipped", func(t *testing.T) {
		data, err := NewCommandLineSource([]string{"positional", "--key=v", "trailing"}).Load(ctx)
		require.NoError(t, err)
		assert.Len(t, data, 1)
	})

	t.Run("InvalidKeySegment", func(t *testing.T) {
		_, err := NewCommandLineSource([]string{"--bad..key=v"}).Load(ctx)
		assert.ErrorIs(t, err, ErrSourceFormat)
	})

	t.Run("NeverChanges", func(t *testing.T) {
		assert.False(t, NewCommandLineSource(nil).Changed())
	})
}

func TestMemorySource(t *testing.T) {
	ctx := context.Background()

	t.Run("SetMarksChanged", func(t *testing.T) {
		source := NewMemorySource(map[string]any{"a": 1})
		_, err := source.Load(ctx)
		require.NoError(t, err)
		assert.False(t, source.Changed())

		source.Set("b.nested", 2)
		assert.True(t, source.Changed())

		data, err := source.Load(ctx)
		require.NoError(t, err)
		assert.False(t, source.Changed())

		val, ok := lookupNested(data, "b.nested")
		require.True(t, ok)
		assert.Equal(t, 2, val)
	})

	t.Run("SeedIsCopied", func(t *testing.T) {
		seed := map[string]any{"a": 1}
		source := NewMemorySource(seed)
		seed["a"] = 99

		data, err := source.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, data["a"])
	})

	t.Run("Delete", func(t *testing.T) {
		source := NewMemorySource(map[string]any{"a": 1})
		source.Delete("a")

		data, err := source.Load(ctx)
		require.NoError(t, err)
		assert.NotContains(t, data, "a")
	})
}

func TestFileSourceFormats(t *testing.T) {
	ctx := context.Background()
	noWatch := FileSourceOptions{Watch: false}

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"TOML", "config.toml", "[server]\nport = 8080\nhost = \"localhost\"\n"},
		{"JSON", "config.json", `{"server": {"port": 8080, "host": "localhost"}}`},
		{"YAML", "config.yaml", "server:\n  port: 8080\n  host: localhost\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			source := NewFileSourceWithOptions(path, noWatch)
			data, err := source.Load(ctx)
			require.NoError(t, err)

			host, ok := lookupNested(data, "server.host")
			require.True(t, ok)
			assert.Equal(t, "localhost", host)

			port, ok := lookupNested(data, "server.port")
			require.True(t, ok)

			// Parsers differ in numeric representation; the converters
			// normalize downstream.
			n, convErr := toInt64Value("server.port", port)
			require.NoError(t, convErr)
			assert.Equal(t, int64(8080), n)
		})
	}
}

func TestFileSourceContentDetection(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "config.conf")
	require.NoError(t, os.WriteFile(path, []byte(`{"key": "json-value"}`), 0644))

	source := NewFileSourceWithOptions(path, FileSourceOptions{Watch: false})
	data, err := source.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "json-value", data["key"])
}

func TestFileSourceErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingFile", func(t *testing.T) {
		source := NewFileSource(filepath.Join(t.TempDir(), "nope.toml"))
		_, err := source.Load(ctx)
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	})

	t.Run("MalformedContent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0644))

		source := NewFileSourceWithOptions(path, FileSourceOptions{Watch: false})
		_, err := source.Load(ctx)
		assert.ErrorIs(t, err, ErrSourceFormat)
	})

	t.Run("ForcedFormatMismatch", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.toml")
		require.NoError(t, os.WriteFile(path, []byte("key = 1\n"), 0644))

		source := NewFileSourceWithOptions(path, FileSourceOptions{Format: "json", Watch: false})
		_, err := source.Load(ctx)
		assert.ErrorIs(t, err, ErrSourceFormat)
	})
}

func TestFileSourceSearchPaths(t *testing.T) {
	ctx := context.Background()

	primary := t.TempDir()
	fallback := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(fallback, "app.toml"), []byte(`where = "fallback"`), 0644))

	source := NewFileSourceWithOptions(filepath.Join(primary, "app.toml"), FileSourceOptions{
		SearchPaths: []string{fallback},
		Watch:       false,
	})

	data, err := source.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fallback", data["where"])
}

func TestFileSourceChangeDetection(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("value = 1\n"), 0644))

	source := NewFileSourceWithOptions(path, FileSourceOptions{Watch: false})
	_, err := source.Load(ctx)
	require.NoError(t, err)
	assert.False(t, source.Changed())

	// Bump the content and the modtime explicitly so the stat comparison
	// is deterministic regardless of filesystem timestamp resolution.
	require.NoError(t, os.WriteFile(path, []byte("value = 22\n"), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.True(t, source.Changed())

	data, err := source.Load(ctx)
	require.NoError(t, err)
	assert.False(t, source.Changed())

	n, convErr := toInt64Value("value", data["value"])
	require.NoError(t, convErr)
	assert.Equal(t, int64(22), n)
}

func TestFileSourceNotify(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("value = 1\n"), 0644))

	source := NewFileSource(path)
	defer source.Close()

	_, err := source.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("value = 2\n"), 0644))

	// The fsnotify event is asynchronous; the stat fallback makes Changed
	// eventually true even if the event is slow.
	assert.Eventually(t, source.Changed, 2*time.Second, 10*time.Millisecond)
}

func TestFileSourceThroughComposite(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := strings.Join([]string{
		"[server]",
		`host = "localhost"`,
		"port = 8080",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	source := NewFileSourceWithOptions(path, FileSourceOptions{Watch: false})
	c := NewComposite()
	c.AddSource(source)
	require.NoError(t, c.Load(ctx))

	host, err := c.GetString("server.host")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)

	port, err := c.GetInt64("server.port")
	require.NoError(t, err)
	assert.Equal(t, int64(8080), port)
}
