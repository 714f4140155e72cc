// FILE: dynconf/scan.go
package dynconf

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// scanTagName is the struct tag consulted when decoding into targets.
const scanTagName = "toml"

// Scan decodes the merged configuration under basePath into target, which
// must be a non-nil struct pointer. Values resolve with the same
// first-match precedence and ${key} interpolation as the typed getters.
// An empty basePath decodes from the root.
func (c *Composite) Scan(basePath string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("scan target must be non-nil pointer, got %T", target)
	}

	nested := make(map[string]any)
	for _, key := range c.Keys() {
		value, err := c.resolveRaw(key)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", key, err)
		}
		setNestedValue(nested, key, value)
	}

	sectionData := navigateToPath(nested, basePath)
	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		if sectionData == nil {
			sectionMap = make(map[string]any) // empty section
		} else {
			return fmt.Errorf("path %q refers to non-map value (type %T)", basePath, sectionData)
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          scanTagName,
		WeaklyTypedInput: true,
		DecodeHook:       scanDecodeHook(),
		ZeroFields:       true,
	})
	if err != nil {
		return fmt.Errorf("decoder creation failed: %w", err)
	}

	if err := decoder.Decode(sectionMap); err != nil {
		return fmt.Errorf("decode failed for path %q: %w", basePath, err)
	}

	return nil
}

// ScanValidated decodes like Scan, then runs struct-tag validation
// (`validate:"..."`) over the result.
func (c *Composite) ScanValidated(basePath string, target any) error {
	if err := c.Scan(basePath, target); err != nil {
		return err
	}

	if err := scanValidator.Struct(target); err != nil {
		return fmt.Errorf("validation failed for path %q: %w", basePath, err)
	}
	return nil
}

var scanValidator = validator.New(validator.WithRequiredStructEnabled())

// scanDecodeHook returns the composite decode hook for struct scanning.
func scanDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToIPHookFunc(),
		mapstructure.StringToIPNetHookFunc(),
	)
}

// navigateToPath traverses the nested map to reach the specified path.
func navigateToPath(nested map[string]any, path string) any {
	path = strings.TrimSuffix(path, ".")
	if path == "" {
		return nested
	}

	current := any(nested)
	for _, segment := range strings.Split(path, ".") {
		currentMap, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		value, exists := currentMap[segment]
		if !exists {
			return nil
		}
		current = value
	}

	return current
}
