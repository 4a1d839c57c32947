package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaViolation indicates a Config does not satisfy its JSON schema.
var ErrSchemaViolation = errors.New("configuration violates schema")

// SchemaError reports every schema violation found in one validation.
type SchemaError struct {
	Problems []string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: %s", ErrSchemaViolation, strings.Join(e.Problems, "; "))
}

// Unwrap returns ErrSchemaViolation.
func (e *SchemaError) Unwrap() error {
	return ErrSchemaViolation
}

// ValidateSchema checks c against a JSON schema document.
// An empty schema accepts everything.
func ValidateSchema(c Config, schema string) error {
	if strings.TrimSpace(schema) == "" {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(c.Raw()),
	)
	if err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return &SchemaError{Problems: problems}
}
