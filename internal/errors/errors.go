// Package errors is a drop-in replacement for the standard errors package
// that adds component, category, and key/value context to errors and forwards
// built errors to an optional telemetry reporter. Plain stdlib usage
// (errors.Is, errors.As, errors.New with no builder calls) keeps working.
package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
)

// Category classifies an error for metrics, telemetry, and HTTP mapping.
type Category string

// Error categories.
const (
	CategoryValidation    Category = "validation"
	CategoryNotFound      Category = "not-found"
	CategoryDatabase      Category = "database"
	CategoryNetwork       Category = "network"
	CategoryNotification  Category = "notification"
	CategoryConfiguration Category = "configuration"
	CategoryState         Category = "state"
	CategoryGeneric       Category = "generic"
)

// EnhancedError carries a wrapped cause plus component/category/context metadata.
type EnhancedError struct {
	Err       error
	component string
	category  Category
	context   map[string]any
}

// Error implements the error interface.
func (e *EnhancedError) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped cause for errors.Is/As traversal.
func (e *EnhancedError) Unwrap() error { return e.Err }

// GetComponent returns the component that produced the error, or "".
func (e *EnhancedError) GetComponent() string { return e.component }

// GetCategory returns the error category, CategoryGeneric if unset.
func (e *EnhancedError) GetCategory() Category {
	if e.category == "" {
		return CategoryGeneric
	}
	return e.category
}

// GetContext returns a context value by key.
func (e *EnhancedError) GetContext(key string) (any, bool) {
	v, ok := e.context[key]
	return v, ok
}

// Builder accumulates metadata before producing an EnhancedError.
type Builder struct {
	err *EnhancedError
}

// New starts a builder wrapping an existing error.
// The result is usable as a plain error without calling Build().
func New(err error) *Builder {
	return &Builder{err: &EnhancedError{Err: err, context: make(map[string]any)}}
}

// Newf starts a builder from a formatted message.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

// Component records which subsystem produced the error.
func (b *Builder) Component(component string) *Builder {
	b.err.component = component
	return b
}

// Category records the error category.
func (b *Builder) Category(category Category) *Builder {
	b.err.category = category
	return b
}

// Context attaches a key/value pair for diagnostics.
func (b *Builder) Context(key string, value any) *Builder {
	b.err.context[key] = value
	return b
}

// Build finalizes the error and reports it to the telemetry hook, if any.
func (b *Builder) Build() error {
	reporterMu.RLock()
	r := reporter
	reporterMu.RUnlock()
	if r != nil {
		r(b.err)
	}
	return b.err
}

// Reporter receives every built enhanced error. Implemented by the
// telemetry package; must be cheap and non-blocking.
type Reporter func(*EnhancedError)

var (
	reporter   Reporter
	reporterMu sync.RWMutex
)

// SetReporter registers the telemetry hook. A nil reporter disables reporting.
func SetReporter(r Reporter) {
	reporterMu.Lock()
	reporter = r
	reporterMu.Unlock()
}

// Stdlib passthrough.

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join wraps a list of errors.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// NewStd creates a plain stdlib error with no metadata. Use for sentinels.
func NewStd(text string) error { return stderrors.New(text) }
