package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrParse indicates a configuration document that could not be decoded.
var ErrParse = errors.New("cannot parse configuration")

// ParseError reports a document that failed to decode. Path is empty for
// documents passed as bytes.
type ParseError struct {
	Format string
	Path   string
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%v: %s (%s): %v", ErrParse, e.Path, e.Format, e.Err)
	}
	return fmt.Sprintf("%v (%s): %v", ErrParse, e.Format, e.Err)
}

// Unwrap returns ErrParse and the decoder's error.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

type decoder func([]byte, *map[string]any) error

// decoders maps file extensions to formats.
var decoders = map[string]struct {
	format string
	decode decoder
}{
	".yaml": {"yaml", func(b []byte, m *map[string]any) error { return yaml.Unmarshal(b, m) }},
	".yml":  {"yaml", func(b []byte, m *map[string]any) error { return yaml.Unmarshal(b, m) }},
	".json": {"json", func(b []byte, m *map[string]any) error { return json.Unmarshal(b, m) }},
}

// FromFile loads a pipeline or process configuration, choosing the format
// by extension (.yaml, .yml, .json).
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	d, ok := decoders[ext]
	if !ok {
		return Config{}, &ParseError{Format: ext, Path: path, Err: errors.New("unsupported file extension")}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := decode(d.format, data, d.decode)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return Config{}, err
	}
	return cfg, nil
}

// FromYAML parses a YAML document. Nested mappings become blocks reachable
// through Nested.
func FromYAML(data []byte) (Config, error) {
	return decode("yaml", data, decoders[".yaml"].decode)
}

// FromJSON parses a JSON document.
func FromJSON(data []byte) (Config, error) {
	return decode("json", data, decoders[".json"].decode)
}

// decode requires the document's top level to be a mapping; an empty
// document yields an empty Config.
func decode(format string, data []byte, fn decoder) (Config, error) {
	var m map[string]any
	if err := fn(data, &m); err != nil {
		return Config{}, &ParseError{Format: format, Err: err}
	}
	return New(m), nil
}
