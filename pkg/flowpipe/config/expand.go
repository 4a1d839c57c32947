package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrUndefinedVariable indicates a ${name} reference with no value.
var ErrUndefinedVariable = errors.New("undefined configuration variable")

// varPattern matches ${name}.
var varPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// UndefinedVariableError lists every variable referenced but not supplied.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUndefinedVariable, strings.Join(e.Names, ", "))
}

// Unwrap returns ErrUndefinedVariable.
func (e *UndefinedVariableError) Unwrap() error {
	return ErrUndefinedVariable
}

// Expand returns a copy of c with ${name} references in string values
// replaced from vars, descending into nested blocks and string lists.
// A value that is exactly one reference takes the variable's value with
// its type intact, so "${limit}" with limit=4 becomes the int 4.
//
// Every unresolved name is reported, sorted, in one *UndefinedVariableError.
func (c Config) Expand(vars map[string]any) (Config, error) {
	var missing []string
	out := expandMap(c.data, vars, &missing)
	if len(missing) > 0 {
		slices.Sort(missing)
		return c, &UndefinedVariableError{Names: slices.Compact(missing)}
	}
	return Config{data: out}, nil
}

func expandMap(m, vars map[string]any, missing *[]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = expandValue(v, vars, missing)
	}
	return out
}

func expandValue(v any, vars map[string]any, missing *[]string) any {
	switch val := v.(type) {
	case string:
		return expandString(val, vars, missing)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandValue(item, vars, missing)
		}
		return out
	default:
		if block, ok := asBlock(v); ok {
			return expandMap(block, vars, missing)
		}
		return v
	}
}

func expandString(s string, vars map[string]any, missing *[]string) any {
	if m := varPattern.FindStringSubmatch(s); m != nil && m[0] == s {
		if val, ok := vars[m[1]]; ok {
			return val
		}
		*missing = append(*missing, m[1])
		return s
	}
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := vars[name]; ok {
			return fmt.Sprintf("%v", val)
		}
		*missing = append(*missing, name)
		return match
	})
}
