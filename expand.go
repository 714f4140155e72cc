// FILE: dynconf/expand.go
package dynconf

import (
	"fmt"
	"regexp"
	"strings"
)

// interpolationPattern matches ${variable} references inside string values.
var interpolationPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// expandValue resolves ${key} references in string values against the
// resolver. Non-string values pass through untouched. Referenced values are
// themselves expanded, bounded by maxInterpolationDepth to stop cycles.
func expandValue(value any, resolver Resolver, depth int) (any, error) {
	s, ok := value.(string)
	if !ok || !strings.Contains(s, "${") {
		return value, nil
	}

	expanded, err := expandString(s, resolver, depth)
	if err != nil {
		return nil, err
	}
	return expanded, nil
}

// expandString substitutes every ${key} in s with the resolved value.
// A reference to a missing key is an error wrapping ErrInterpolation.
func expandString(s string, resolver Resolver, depth int) (string, error) {
	if depth >= maxInterpolationDepth {
		return "", fmt.Errorf("%w: interpolation exceeds depth %d in %q",
			ErrInterpolation, maxInterpolationDepth, s)
	}

	var resolveErr error
	expanded := interpolationPattern.ReplaceAllStringFunc(s, func(match string) string {
		if resolveErr != nil {
			return match
		}

		name := match[2 : len(match)-1]
		raw, ok := resolver.GetRaw(name)
		if !ok {
			resolveErr = fmt.Errorf("%w: %s", ErrInterpolation, name)
			return match
		}

		inner, err := expandValue(raw, resolver, depth+1)
		if err != nil {
			resolveErr = err
			return match
		}

		replacement, err := toStringValue(name, inner)
		if err != nil {
			resolveErr = err
			return match
		}
		return replacement
	})

	if resolveErr != nil {
		return "", resolveErr
	}
	return expanded, nil
}
