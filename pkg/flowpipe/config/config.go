package config

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// BlockSeparator joins a block name and a key in flat key names,
// e.g. "detector:threshold" is key "threshold" of block "detector".
const BlockSeparator = ":"

// Config wraps a map[string]any for type-safe value extraction.
// Values are scalars (usually strings) or nested blocks.
// All accessor methods return default values if the key is missing
// or the value cannot be converted to the requested type.
//
// A Config is never modified in place; Merge and With return copies.
type Config struct {
	data map[string]any
}

// New creates a Config from the given map.
// If data is nil, an empty Config is returned.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// Get returns the value for key rendered as a string.
// Blocks are not scalars; Get reports false for them.
func (c Config) Get(key string) (string, bool) {
	v, ok := c.data[key]
	if !ok {
		return "", false
	}
	if _, isBlock := asBlock(v); isBlock {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// String returns the string value for key, or defaultVal if missing or a block.
func (c Config) String(key, defaultVal string) string {
	if s, ok := c.Get(key); ok {
		return s
	}
	return defaultVal
}

// Duration returns the duration value for key, or defaultVal if missing or invalid.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int, int64, float64: interpreted as seconds
//   - time.Duration: used directly
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	v, ok := c.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case float64:
		return time.Duration(val * float64(time.Second))
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case time.Duration:
		return val
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or invalid.
// Strings are parsed with strconv.ParseBool.
func (c Config) Bool(key string, defaultVal bool) bool {
	v, ok := c.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not convertible.
//
// Accepts:
//   - int, int64: used directly
//   - float64: only if there's no fractional part
//   - string: parsed as a base-10 integer
func (c Config) Int(key string, defaultVal int) int {
	v, ok := c.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n
		}
	}
	return defaultVal
}

// Float returns the float64 value for key, or defaultVal if missing or not convertible.
func (c Config) Float(key string, defaultVal float64) float64 {
	v, ok := c.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// StringSlice returns the string slice for key, or defaultVal if missing or not convertible.
//
// Accepts:
//   - []string: used directly
//   - []any: only if every element is a string
//   - string: split on commas, surrounding spaces trimmed
func (c Config) StringSlice(key string, defaultVal []string) []string {
	v, ok := c.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			result = append(result, s)
		}
		return result
	case string:
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultVal
}

// Any returns the raw value for key, or defaultVal if missing.
func (c Config) Any(key string, defaultVal any) any {
	v, ok := c.data[key]
	if !ok {
		return defaultVal
	}
	return v
}

// Has returns true if the key exists in the config.
func (c Config) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Nested returns the block stored under key.
//
// Both spellings of a block are merged: a nested map stored at key, and
// flat keys prefixed with key and BlockSeparator. The nested map wins
// when both define the same key. A missing block yields an empty Config.
func (c Config) Nested(key string) Config {
	out := make(map[string]any)
	prefix := key + BlockSeparator
	for k, v := range c.data {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			out[rest] = v
		}
	}
	if block, ok := asBlock(c.data[key]); ok {
		maps.Copy(out, block)
	}
	return New(out)
}

// IsBlock reports whether key holds a nested block.
func (c Config) IsBlock(key string) bool {
	_, ok := asBlock(c.data[key])
	return ok
}

// Keys returns the top-level keys in sorted order.
func (c Config) Keys() []string {
	return slices.Sorted(maps.Keys(c.data))
}

// Len returns the number of top-level keys.
func (c Config) Len() int {
	return len(c.data)
}

// Merge returns a copy of c with every key of other applied on top.
func (c Config) Merge(other Config) Config {
	out := make(map[string]any, len(c.data)+len(other.data))
	maps.Copy(out, c.data)
	maps.Copy(out, other.data)
	return New(out)
}

// With returns a copy of c with key set to value.
func (c Config) With(key string, value any) Config {
	out := make(map[string]any, len(c.data)+1)
	maps.Copy(out, c.data)
	out[key] = value
	return New(out)
}

// Raw returns the underlying map.
// The returned map should not be modified.
func (c Config) Raw() map[string]any {
	return c.data
}

// asBlock converts the map shapes produced by the YAML and JSON decoders.
func asBlock(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Config:
		return m.data, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}
