// FILE: dynconf/source_cli.go
package dynconf

import (
	"context"
	"fmt"
	"strings"
)

// CommandLineSource snapshots command-line arguments as configuration
// keys. Supported forms: "--key.path=value", "--key.path value", and bare
// "--flag" (which becomes "true"). Values stay strings; the property
// converters handle typing. Arguments never change after process start, so
// the source loads once and reports no further changes.
type CommandLineSource struct {
	args []string
}

// NewCommandLineSource creates a source over the given arguments,
// typically os.Args[1:].
func NewCommandLineSource(args []string) *CommandLineSource {
	return &CommandLineSource{args: args}
}

// Load parses the arguments into a nested snapshot. A malformed key path
// is an error wrapping ErrSourceFormat.
func (s *CommandLineSource) Load(_ context.Context) (map[string]any, error) {
	data, err := parseArgs(s.args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceFormat, err)
	}
	return data, nil
}

// Changed always reports false after the initial load.
func (s *CommandLineSource) Changed() bool { return false }

// parseArgs processes command-line arguments into a nested map.
func parseArgs(args []string) (map[string]any, error) {
	result := make(map[string]any)
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			// Skip positional arguments
			i++
			continue
		}

		argContent := strings.TrimPrefix(arg, "--")
		if argContent == "" {
			// "--" separator
			i++
			continue
		}

		var keyPath, valueStr string

		if strings.Contains(argContent, "=") {
			parts := strings.SplitN(argContent, "=", 2)
			keyPath = parts[0]
			valueStr = parts[1]
			i++
		} else {
			keyPath = argContent
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				valueStr = "true"
				i++
			} else {
				valueStr = args[i+1]
				i += 2
			}
		}

		if keyPath == "" {
			continue
		}

		for _, segment := range strings.Split(keyPath, ".") {
			if !isValidKeySegment(segment) {
				return nil, fmt.Errorf("invalid command-line key segment %q in path %q", segment, keyPath)
			}
		}

		setNestedValue(result, keyPath, valueStr)
	}

	return result, nil
}

// isValidKeySegment checks that a path segment contains only letters,
// digits, underscores, and dashes.
func isValidKeySegment(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !(isLetter || isDigit || r == '_' || r == '-') {
			return false
		}
	}
	return true
}
