// Package errors classifies process failures and retries transient ones.
//
// A failure returned by a process is one of three kinds:
//   - Recoverable: confined to one cycle, turned into an error datum
//   - Transient: may succeed if the operation is repeated
//   - Fatal: the pipeline cannot continue
package errors

import (
	"errors"
	"fmt"
)

// Category represents how a failure should be handled.
type Category int

const (
	// CategoryRecoverable indicates a per-cycle failure.
	// The scheduler forwards it downstream as an error datum.
	CategoryRecoverable Category = iota

	// CategoryTransient indicates that repeating the operation will likely help.
	// Examples: a device that is still warming up, a busy remote endpoint.
	CategoryTransient

	// CategoryFatal indicates the whole pipeline must stop.
	// Examples: resource exhaustion, broken invariants.
	CategoryFatal
)

// ErrResourceExhausted marks failures caused by exhausted resources.
// Errors wrapping it are always fatal.
var ErrResourceExhausted = errors.New("resource exhausted")

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryRecoverable:
		return "recoverable"
	case CategoryTransient:
		return "transient"
	case CategoryFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Attempts is the number of attempts that have been made.
	Attempts int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %v (category: %s)", e.Context, e.Err, e.Category)
	}
	return fmt.Sprintf("%v (category: %s)", e.Err, e.Category)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Recoverable creates a recoverable error.
func Recoverable(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryRecoverable, context)
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Fatal creates a fatal error.
func Fatal(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryFatal, context)
}

// Categorize determines how an error should be handled.
// The outermost CategorizedError in the chain decides.
func Categorize(err error) Category {
	if err == nil {
		return CategoryRecoverable
	}

	if errors.Is(err, ErrResourceExhausted) {
		return CategoryFatal
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	// Unknown errors stay local to their cycle
	return CategoryRecoverable
}

// IsFatal reports whether the error must stop the pipeline.
func IsFatal(err error) bool {
	return err != nil && Categorize(err) == CategoryFatal
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return err != nil && Categorize(err) == CategoryTransient
}
