// FILE: dynconf/source_env.go
package dynconf

import (
	"context"
	"os"
	"strings"
)

// EnvKeyFunc maps an environment variable name to a configuration key
// path. Returning "" excludes the variable from the snapshot.
type EnvKeyFunc func(envName string) string

// EnvSource snapshots environment variables as flat configuration keys.
// With prefix "MYAPP_", the variable MYAPP_SERVER_PORT becomes the key
// "server.port" (prefix stripped, lowercased, underscores to dots).
// Variables without the prefix are excluded.
//
// The environment is re-read on every refresh cycle; there is no cheap
// change probe for process environments.
type EnvSource struct {
	prefix    string
	transform EnvKeyFunc
}

// NewEnvSource creates an environment source for variables carrying the
// given prefix. An empty prefix snapshots the whole environment.
func NewEnvSource(prefix string) *EnvSource {
	return &EnvSource{
		prefix:    prefix,
		transform: defaultEnvKeyFunc(prefix),
	}
}

// Transform replaces the name-to-key mapping. Chainable; set before the
// source is loaded.
func (s *EnvSource) Transform(fn EnvKeyFunc) *EnvSource {
	if fn != nil {
		s.transform = fn
	}
	return s
}

// Load reads the current environment into a flat snapshot.
func (s *EnvSource) Load(_ context.Context) (map[string]any, error) {
	data := make(map[string]any)

	for _, entry := range os.Environ() {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key := s.transform(name)
		if key == "" {
			continue
		}
		data[key] = value
	}

	return data, nil
}

// defaultEnvKeyFunc strips the prefix, lowercases, and maps underscores to
// dots: MYAPP_SERVER_PORT -> server.port.
func defaultEnvKeyFunc(prefix string) EnvKeyFunc {
	return func(envName string) string {
		if prefix != "" {
			if !strings.HasPrefix(envName, prefix) {
				return ""
			}
			envName = strings.TrimPrefix(envName, prefix)
		}
		if envName == "" {
			return ""
		}
		return strings.ToLower(strings.ReplaceAll(envName, "_", "."))
	}
}
