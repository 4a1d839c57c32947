package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingKey indicates a required configuration key is absent.
var ErrMissingKey = errors.New("missing required configuration key")

// Key declares one configuration setting a process understands.
type Key struct {
	// Name is the key as it appears in the process's block.
	Name string

	// Default is used when the key is absent. Ignored for required keys.
	Default any

	// Description is shown to users listing a process's settings.
	Description string

	// Required keys have no default; Apply fails when they are absent.
	Required bool
}

// MissingKeyError lists every required key absent from a Config.
type MissingKeyError struct {
	Keys []string
}

// Error implements the error interface.
func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingKey, strings.Join(e.Keys, ", "))
}

// Unwrap returns ErrMissingKey.
func (e *MissingKeyError) Unwrap() error {
	return ErrMissingKey
}

// Apply returns a copy of c with defaults filled in for absent keys.
// It fails with *MissingKeyError when a required key is absent.
func (c Config) Apply(keys []Key) (Config, error) {
	out := c
	var missing []string
	for _, k := range keys {
		if c.Has(k.Name) {
			continue
		}
		if k.Required {
			missing = append(missing, k.Name)
			continue
		}
		if k.Default != nil {
			out = out.With(k.Name, k.Default)
		}
	}
	if len(missing) > 0 {
		return c, &MissingKeyError{Keys: missing}
	}
	return out, nil
}
