// FILE: dynconf/convert.go
package dynconf

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Converters turn raw snapshot values into the requested type. They are
// deliberately liberal about input representations (files produce typed
// values, env vars and CLI args produce strings) but a value that cannot
// be represented in the target type is a *TypeError, never a default.

// toStringValue converts a raw value to string.
func toStringValue(key string, val any) (string, error) {
	if s, ok := val.(string); ok {
		return s, nil
	}

	switch v := val.(type) {
	case fmt.Stringer:
		return v.String(), nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	}

	return "", newTypeError(key, val, "string", nil)
}

// toInt64Value converts a raw value to int64. Strings parse with base
// auto-detection ("0xFF" works); floats must be integral.
func toInt64Value(key string, val any) (int64, error) {
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, newTypeError(key, val, "int64", fmt.Errorf("unsigned value %d overflows int64", u))
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) {
			return 0, newTypeError(key, val, "int64", fmt.Errorf("float value %v is not integral", f))
		}
		return int64(f), nil
	case reflect.String:
		s := rv.String()
		if i, err := strconv.ParseInt(s, 0, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			return int64(f), nil
		}
		return 0, newTypeError(key, val, "int64", fmt.Errorf("cannot parse %q as integer", s))
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	}

	return 0, newTypeError(key, val, "int64", nil)
}

// toFloat64Value converts a raw value to float64.
func toFloat64Value(key string, val any) (float64, error) {
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.String:
		s := rv.String()
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
		return 0, newTypeError(key, val, "float64", fmt.Errorf("cannot parse %q as float", s))
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	}

	return 0, newTypeError(key, val, "float64", nil)
}

// toBoolValue converts a raw value to bool. Numeric values follow the
// 0=false, non-zero=true convention.
func toBoolValue(key string, val any) (bool, error) {
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		s := rv.String()
		if b, err := strconv.ParseBool(s); err == nil {
			return b, nil
		}
		return false, newTypeError(key, val, "bool", fmt.Errorf("cannot parse %q as bool", s))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0, nil
	}

	return false, newTypeError(key, val, "bool", nil)
}

// toDurationValue converts a raw value to time.Duration. Strings use
// time.ParseDuration; bare numbers are taken as nanoseconds.
func toDurationValue(key string, val any) (time.Duration, error) {
	if d, ok := val.(time.Duration); ok {
		return d, nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.String:
		s := rv.String()
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
		return 0, newTypeError(key, val, "time.Duration", fmt.Errorf("cannot parse %q as duration", s))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(rv.Int()), nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(rv.Float()), nil
	}

	return 0, newTypeError(key, val, "time.Duration", nil)
}

// toStringSliceValue converts a raw value to []string. A plain string is
// split on the separator with surrounding whitespace trimmed; slice values
// convert element-wise.
func toStringSliceValue(key string, val any, sep string) ([]string, error) {
	if sep == "" {
		sep = ","
	}

	switch v := val.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := toStringValue(key, item)
			if err != nil {
				return nil, newTypeError(key, val, "[]string", fmt.Errorf("element %v (type %T) is not a string", item, item))
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if v == "" {
			return []string{}, nil
		}
		parts := strings.Split(v, sep)
		for i, part := range parts {
			parts[i] = strings.TrimSpace(part)
		}
		return parts, nil
	}

	return nil, newTypeError(key, val, "[]string", nil)
}

// Typed composite getters. These resolve the key with first-match
// precedence, interpolate ${var} references in string values, and convert.
// An absent key is ErrKeyNotFound; callers wanting defaults and change
// notifications use the Property API instead.

// GetString returns the value for key converted to string.
func (c *Composite) GetString(key string) (string, error) {
	raw, err := c.resolveRaw(key)
	if err != nil {
		return "", err
	}
	return toStringValue(key, raw)
}

// GetInt64 returns the value for key converted to int64.
func (c *Composite) GetInt64(key string) (int64, error) {
	raw, err := c.resolveRaw(key)
	if err != nil {
		return 0, err
	}
	return toInt64Value(key, raw)
}

// GetFloat64 returns the value for key converted to float64.
func (c *Composite) GetFloat64(key string) (float64, error) {
	raw, err := c.resolveRaw(key)
	if err != nil {
		return 0, err
	}
	return toFloat64Value(key, raw)
}

// GetBool returns the value for key converted to bool.
func (c *Composite) GetBool(key string) (bool, error) {
	raw, err := c.resolveRaw(key)
	if err != nil {
		return false, err
	}
	return toBoolValue(key, raw)
}

// GetDuration returns the value for key converted to time.Duration.
func (c *Composite) GetDuration(key string) (time.Duration, error) {
	raw, err := c.resolveRaw(key)
	if err != nil {
		return 0, err
	}
	return toDurationValue(key, raw)
}

// GetStringSlice returns the value for key converted to []string, splitting
// plain strings on sep (default ",").
func (c *Composite) GetStringSlice(key, sep string) ([]string, error) {
	raw, err := c.resolveRaw(key)
	if err != nil {
		return nil, err
	}
	return toStringSliceValue(key, raw, sep)
}

// resolveRaw looks the key up and interpolates string values.
func (c *Composite) resolveRaw(key string) (any, error) {
	raw, ok := c.GetRaw(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return expandValue(raw, c, 0)
}
