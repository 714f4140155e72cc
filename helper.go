// FILE: dynconf/helper.go
package dynconf

import "strings"

// lookupNested finds a dotted key in a snapshot. A literal flat key wins
// over nested traversal, so sources that store "a.b" directly (env vars,
// CLI args) and sources that store {"a": {"b": ...}} (files) resolve the
// same way.
func lookupNested(data map[string]any, key string) (any, bool) {
	if data == nil {
		return nil, false
	}

	if value, ok := data[key]; ok {
		return value, true
	}

	segments := strings.Split(key, ".")
	if len(segments) == 1 {
		return nil, false
	}

	current, ok := data[segments[0]]
	if !ok {
		return nil, false
	}

	for _, segment := range segments[1:] {
		m, isMap := current.(map[string]any)
		if !isMap {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// flattenMap converts a nested map to a flat map with dot-notation paths.
// Flat keys already containing dots pass through unchanged.
func flattenMap(nested map[string]any, prefix string) map[string]any {
	flat := make(map[string]any, len(nested))

	for key, value := range nested {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		if subMap, isMap := value.(map[string]any); isMap {
			for subPath, subValue := range flattenMap(subMap, path) {
				flat[subPath] = subValue
			}
		} else {
			flat[path] = value
		}
	}

	return flat
}

// setNestedValue sets a value in a nested map using a dot-notation path,
// creating intermediate maps as needed. A non-map intermediate is replaced.
func setNestedValue(nested map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := nested

	for _, segment := range segments[:len(segments)-1] {
		next, exists := current[segment]
		if nextMap, isMap := next.(map[string]any); exists && isMap {
			current = nextMap
			continue
		}
		newMap := make(map[string]any)
		current[segment] = newMap
		current = newMap
	}

	current[segments[len(segments)-1]] = value
}

// deepCopyMap clones a snapshot so callers cannot mutate cached data.
func deepCopyMap(data map[string]any) map[string]any {
	clone := make(map[string]any, len(data))
	for key, value := range data {
		if subMap, isMap := value.(map[string]any); isMap {
			clone[key] = deepCopyMap(subMap)
		} else {
			clone[key] = value
		}
	}
	return clone
}
